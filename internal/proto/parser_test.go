package proto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanner_SimpleFrames(t *testing.T) {
	var buf bytes.Buffer
	WritePing(&buf)
	WritePong(&buf)
	WriteOK(&buf)
	WriteErr(&buf, "Slow Consumer")

	s := NewScanner()
	s.Feed(buf.Bytes())

	f, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, VerbPing, f.Verb)

	f, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, VerbPong, f.Verb)

	f, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, VerbOK, f.Verb)

	f, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, VerbErr, f.Verb)
	require.Equal(t, "Slow Consumer", f.ErrMessage)

	_, err = s.Next()
	require.ErrorIs(t, err, ErrNeedMore)
}

func TestScanner_PubRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	WritePub(&buf, "orders.new", "_INBOX.abc", []byte("hello world"))

	s := NewScanner()
	s.Feed(buf.Bytes())

	f, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, VerbPub, f.Verb)
	require.Equal(t, "orders.new", f.Subject)
	require.Equal(t, "_INBOX.abc", f.ReplyTo)
	require.Equal(t, []byte("hello world"), f.Payload)
}

func TestScanner_HMsgRoundTrip(t *testing.T) {
	h := NewHeader()
	h.Add("X-Trace", "1")
	h.Add("X-Trace", "2")

	var buf bytes.Buffer
	WriteHMsg(&buf, "orders.new", 42, "", h, 200, "OK", []byte("body"))

	s := NewScanner()
	s.Feed(buf.Bytes())

	f, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, VerbHMsg, f.Verb)
	require.Equal(t, int64(42), f.SID)
	require.Equal(t, 200, f.Status)
	require.Equal(t, "OK", f.StatusText)
	require.Equal(t, []byte("body"), f.Payload)
	require.Equal(t, []string{"1", "2"}, f.Headers.Values("X-Trace"))
}

// TestScanner_ByteAtATime feeds a complete frame stream split at every
// possible boundary, one byte per Feed call, and asserts the resulting
// frame sequence never depends on where the splits fell.
func TestScanner_ByteAtATime(t *testing.T) {
	var buf bytes.Buffer
	WriteSub(&buf, "orders.*", "", 1)
	WritePub(&buf, "orders.new", "", []byte("payload-data"))
	WriteUnsub(&buf, 1, 0)

	full := buf.Bytes()

	s := NewScanner()
	var frames []*Frame
	for i := 0; i < len(full); i++ {
		s.Feed(full[i : i+1])
		for {
			f, err := s.Next()
			if err == ErrNeedMore {
				break
			}
			require.NoError(t, err)
			frames = append(frames, f)
		}
	}

	require.Len(t, frames, 3)
	require.Equal(t, VerbSub, frames[0].Verb)
	require.Equal(t, VerbPub, frames[1].Verb)
	require.Equal(t, VerbUnsub, frames[2].Verb)
	require.Equal(t, "orders.new", frames[1].Subject)
	require.Equal(t, []byte("payload-data"), frames[1].Payload)
}

func TestScanner_NeedMoreDoesNotConsume(t *testing.T) {
	s := NewScanner()
	s.Feed([]byte("PUB orders.new 5\r\nhel"))

	_, err := s.Next()
	require.ErrorIs(t, err, ErrNeedMore)
	require.Equal(t, 21, s.Buffered())

	s.Feed([]byte("lo\r\n"))
	f, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), f.Payload)
	require.Equal(t, 0, s.Buffered())
}

func TestScanner_MalformedFrame(t *testing.T) {
	s := NewScanner()
	s.Feed([]byte("PUB orders.new notanumber\r\n"))

	_, err := s.Next()
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestScanner_UnterminatedControlLineBounded(t *testing.T) {
	s := NewScanner()
	s.Feed(bytes.Repeat([]byte("x"), MaxControlLine+1))

	_, err := s.Next()
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestScanner_InfoConnect(t *testing.T) {
	var buf bytes.Buffer
	WriteInfo(&buf, []byte(`{"server_id":"abc"}`))
	WriteConnect(&buf, []byte(`{"verbose":false}`))

	s := NewScanner()
	s.Feed(buf.Bytes())

	f, err := s.Next()
	require.NoError(t, err)
	require.Equal(t, VerbInfo, f.Verb)
	require.JSONEq(t, `{"server_id":"abc"}`, string(f.JSON))

	f, err = s.Next()
	require.NoError(t, err)
	require.Equal(t, VerbConnect, f.Verb)
	require.JSONEq(t, `{"verbose":false}`, string(f.JSON))
}
