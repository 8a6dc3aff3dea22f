package flowmesh

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// echoServer replies to any PUB frame carrying a reply-to with a MSG frame
// on that reply-to, echoing the payload back verbatim.
func echoServer(t *testing.T) (addr string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		defer ln.Close()

		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		conn.Write([]byte(`INFO {"server_id":"s1","version":"0.1.0","max_payload":1048576,"proto":1,"headers":true}` + "\r\n"))

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			line = strings.TrimRight(line, "\r\n")

			switch {
			case strings.HasPrefix(line, "PING"):
				conn.Write([]byte("PONG\r\n"))
			case strings.HasPrefix(line, "PUB "):
				fields := strings.Fields(line)
				// PUB <subject> [reply] <len>
				var reply string
				var size int
				if len(fields) == 3 {
					size, _ = strconv.Atoi(fields[2])
				} else if len(fields) == 4 {
					reply = fields[2]
					size, _ = strconv.Atoi(fields[3])
				}

				payload := make([]byte, size+2) // +CRLF
				io.ReadFull(r, payload)

				if reply != "" {
					body := payload[:size]
					resp := "MSG " + reply + " 1 " + strconv.Itoa(len(body)) + "\r\n"
					conn.Write([]byte(resp))
					conn.Write(body)
					conn.Write([]byte("\r\n"))
				}
			}
		}
	}()

	return ln.Addr().String()
}

func dialEchoConn(t *testing.T) *Conn {
	t.Helper()

	addr := echoServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := Connect(ctx, nil, WithServers(addr))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestRequest_ReceivesReply(t *testing.T) {
	conn := dialEchoConn(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	reply, err := conn.Request(ctx, "orders.ping", []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), reply.Data)
}

func TestRequest_TimesOutWithoutReply(t *testing.T) {
	// A server that never replies leaves the deadline to fire.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		conn.Write([]byte(`INFO {"server_id":"s1","version":"0.1.0","max_payload":1048576,"proto":1}` + "\r\n"))

		r := bufio.NewReader(conn)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "PING") {
				conn.Write([]byte("PONG\r\n"))
			}
		}
	}()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dialCancel()

	conn, err := Connect(dialCtx, nil, WithServers(ln.Addr().String()))
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = conn.Request(ctx, "orders.ping", []byte("hello"))
	require.ErrorIs(t, err, ErrTimeout)
}

func TestRequest_FailsAfterClose(t *testing.T) {
	conn := dialEchoConn(t)
	require.NoError(t, conn.Close())

	_, err := conn.Request(context.Background(), "orders.ping", []byte("hello"))
	require.ErrorIs(t, err, ErrConnectionClosed)
}
