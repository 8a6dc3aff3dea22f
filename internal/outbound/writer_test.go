package outbound

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// syncBuf wraps bytes.Buffer with a mutex since the Writer's drain goroutine
// and the test's assertions both touch it.
type syncBuf struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuf) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buf.Write(p)
}

func (s *syncBuf) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.buf.String()
}

func TestWriter_EnqueueThenFlushDeliversInOrder(t *testing.T) {
	dst := &syncBuf{}
	w := New(dst, 8)
	defer w.Close()

	require.NoError(t, w.Enqueue(context.Background(), []byte("PING\r\n")))
	require.NoError(t, w.Enqueue(context.Background(), []byte("PING\r\n")))
	require.NoError(t, w.Flush())

	require.Equal(t, "PING\r\nPING\r\n", dst.String())
}

// TestWriter_DrainFlushesAutonomouslyWithoutExplicitFlush is the production
// scenario Flush-only tests mask: a single small frame must reach dst on
// its own once the queue drains, since nothing downstream (Publish, a PING
// keepalive, a SUB replay) calls Flush after Enqueue/TryEnqueue.
func TestWriter_DrainFlushesAutonomouslyWithoutExplicitFlush(t *testing.T) {
	dst := &syncBuf{}
	w := New(dst, 8)
	defer w.Close()

	require.NoError(t, w.Enqueue(context.Background(), []byte("PING\r\n")))

	require.Eventually(t, func() bool {
		return dst.String() == "PING\r\n"
	}, time.Second, time.Millisecond, "frame never reached dst without an explicit Flush")
}

func TestWriter_EnqueueRespectsCancellation(t *testing.T) {
	dst := &syncBuf{}
	w := New(dst, 1)
	defer w.Close()

	// Fill the queue's single slot without letting the drain loop empty it
	// by racing a flush against it — a full queue plus a canceled context
	// must return promptly rather than hang.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Drain naturally empties the queue quickly in real use; to reliably
	// exercise the cancellation path we cancel before enqueuing at all.
	err := w.Enqueue(ctx, []byte("x"))
	require.Error(t, err)
}

func TestWriter_SwapRedirectsSubsequentWrites(t *testing.T) {
	first := &syncBuf{}
	second := &syncBuf{}
	w := New(first, 8)
	defer w.Close()

	require.NoError(t, w.Enqueue(context.Background(), []byte("a")))
	require.NoError(t, w.Flush())

	w.Swap(second)
	require.NoError(t, w.Enqueue(context.Background(), []byte("b")))
	require.NoError(t, w.Flush())

	require.Equal(t, "a", first.String())
	require.Equal(t, "b", second.String())
}

func TestWriter_CloseStopsDrainGoroutine(t *testing.T) {
	dst := &syncBuf{}
	w := New(dst, 8)
	w.Close()

	err := w.Enqueue(context.Background(), []byte("x"))
	require.Error(t, err)
}

func TestWriter_CloseReturnsPromptly(t *testing.T) {
	dst := &syncBuf{}
	w := New(dst, 8)

	done := make(chan struct{})
	go func() {
		w.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}
