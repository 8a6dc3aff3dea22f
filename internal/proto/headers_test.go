package proto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderBlock_RoundTrip(t *testing.T) {
	h := NewHeader()
	h.Add("Nats-Stream", "orders")
	h.Add("Nats-Sequence", "42")

	var buf bytes.Buffer
	writeHeaderBlock(&buf, h, 404, "No Messages")

	parsed, status, statusText, err := parseHeaderBlock(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 404, status)
	require.Equal(t, "No Messages", statusText)
	require.Equal(t, "orders", parsed.Get("Nats-Stream"))
	require.Equal(t, "42", parsed.Get("Nats-Sequence"))
}

func TestHeaderBlock_NoStatus(t *testing.T) {
	h := NewHeader()
	h.Add("X-A", "1")

	var buf bytes.Buffer
	writeHeaderBlock(&buf, h, 0, "")

	parsed, status, statusText, err := parseHeaderBlock(buf.Bytes())
	require.NoError(t, err)
	require.Equal(t, 0, status)
	require.Equal(t, "", statusText)
	require.Equal(t, "1", parsed.Get("X-A"))
}

func TestHeaderBlock_MissingVersionPrefix(t *testing.T) {
	_, _, _, err := parseHeaderBlock([]byte("Bogus/1.0\r\n\r\n"))
	require.Error(t, err)
}

func TestHeaderBlock_MalformedLine(t *testing.T) {
	_, _, _, err := parseHeaderBlock([]byte("NATS/1.0\r\nNoColonHere\r\n\r\n"))
	require.Error(t, err)
}

func TestHeader_SetReplacesAll(t *testing.T) {
	h := NewHeader()
	h.Add("K", "1")
	h.Add("K", "2")
	h.Set("K", "3")
	require.Equal(t, []string{"3"}, h.Values("K"))
	require.Equal(t, 1, h.Len())
}
