package flowmesh

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeServer accepts one connection, sends INFO, and replies PONG to the
// handshake PING.
func fakeServer(t *testing.T, info string) (addr string, done <-chan struct{}) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		defer ln.Close()

		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		conn.Write([]byte("INFO " + info + "\r\n"))

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "PING") {
				conn.Write([]byte("PONG\r\n"))

				continue
			}
			if strings.HasPrefix(line, "CONNECT") {
				continue
			}
		}
	}()

	return ln.Addr().String(), finished
}

func TestConnect_CompletesHandshake(t *testing.T) {
	addr, _ := fakeServer(t, `{"server_id":"s1","version":"0.1.0","max_payload":1048576,"proto":1,"headers":true}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Connect(ctx, nil, WithServers(addr))
	require.NoError(t, err)
	defer conn.Close()

	require.Equal(t, StateOpen, conn.State())
	require.EqualValues(t, 1048576, conn.MaxPayload())
}

func TestConnect_NoServersFails(t *testing.T) {
	_, err := Connect(context.Background(), nil)
	require.Error(t, err)
}

func TestConnect_AllServersFailingReturnsError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err := Connect(ctx, nil, WithServers("127.0.0.1:1"))
	require.Error(t, err)
}

// TestReplaySubscriptions_PreservesAutoUnsubscribeCap exercises the reconnect
// path directly: a subscription capped with AutoUnsubscribe and partially
// delivered against must come back from replay with an UNSUB carrying the
// remaining count, not a bare SUB that resurrects it as unlimited.
func TestReplaySubscriptions_PreservesAutoUnsubscribeCap(t *testing.T) {
	conn, lines := dialTestConn(t)
	<-lines // the internal request-reply inbox's SUB frame, sent during connect

	sub, err := conn.SubscribeSync("orders.new")
	require.NoError(t, err)
	<-lines // the SUB frame for orders.new

	require.NoError(t, sub.AutoUnsubscribe(5))
	<-lines // the AutoUnsubscribe UNSUB frame

	sub.Deliver("orders.new", "", nil, 0, "", []byte("a"))
	sub.Deliver("orders.new", "", nil, 0, "", []byte("b"))

	conn.replaySubscriptions()

	// Replay also re-issues a bare SUB for the connection's internal
	// request-reply inbox, interleaved in registry iteration order, so
	// collect every replayed frame and locate the orders.new pair by content
	// rather than assuming a fixed position.
	got := readLines(t, lines, 3)

	sid := strconv.FormatInt(sub.SID(), 10)
	subIdx := indexOf(got, "SUB orders.new "+sid)
	require.GreaterOrEqual(t, subIdx, 0, "replayed frames %v missing SUB for orders.new", got)
	require.Less(t, subIdx+1, len(got))
	require.Equal(t, "UNSUB "+sid+" 3", got[subIdx+1])
}

func readLines(t *testing.T, lines chan string, n int) []string {
	t.Helper()

	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		select {
		case line := <-lines:
			out = append(out, line)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d/%d, got so far: %v", i+1, n, out)
		}
	}

	return out
}

func indexOf(lines []string, want string) int {
	for i, line := range lines {
		if line == want {
			return i
		}
	}

	return -1
}

// TestReplaySubscriptions_SkipsExhaustedCap covers the defensive branch: a
// subscription that has already hit its AutoUnsubscribe cap (and would
// normally have been removed by Deliver) must not be resurrected by replay.
func TestReplaySubscriptions_SkipsExhaustedCap(t *testing.T) {
	conn, lines := dialTestConn(t)
	<-lines // the internal request-reply inbox's SUB frame, sent during connect

	sub, err := conn.SubscribeSync("orders.new")
	require.NoError(t, err)
	<-lines // the SUB frame for orders.new

	require.NoError(t, sub.AutoUnsubscribe(2))
	<-lines // the AutoUnsubscribe UNSUB frame

	sub.Deliver("orders.new", "", nil, 0, "", []byte("a"))
	sub.Deliver("orders.new", "", nil, 0, "", []byte("b"))
	require.True(t, sub.Closed())

	conn.replaySubscriptions()

	// Only the inbox subscription survives to be replayed; orders.new was
	// removed by Deliver once it hit its cap, so its SUB/UNSUB pair must not
	// reappear.
	got := readLines(t, lines, 1)
	require.NotContains(t, got[0], "orders.new")

	select {
	case line := <-lines:
		t.Fatalf("unexpected extra replayed frame: %q", line)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	addr, _ := fakeServer(t, `{"server_id":"s1","version":"0.1.0","max_payload":1024,"proto":1,"headers":true}`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Connect(ctx, nil, WithServers(addr))
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	require.Equal(t, StateClosed, conn.State())
}
