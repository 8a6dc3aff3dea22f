// Package outbound implements the command writer: a bounded queue of
// pre-formatted frames drained by a single goroutine onto the current
// transport, so a reconnect can swap the underlying socket without ever
// tearing a frame in progress.
package outbound

import (
	"bufio"
	"context"
	"io"
	"sync"
)

// command is one queue entry: either a frame to write, or a flush marker
// (frame == nil) whose ack channel is closed once everything queued ahead
// of it has been flushed to the destination.
type command struct {
	frame []byte
	ack   chan error
}

// Writer serializes writes onto a swappable io.Writer. Enqueue blocks under
// backpressure once the internal queue is full, honoring ctx cancellation;
// it never drops a command silently.
type Writer struct {
	mu     sync.Mutex
	dst    *bufio.Writer
	queue  chan command
	done   chan struct{}
	drainW sync.WaitGroup

	errMu   sync.Mutex
	lastErr error
}

// New returns a Writer with a queue capacity of size, running its drain
// goroutine against dst. Call Swap to attach a new transport after a
// reconnect; the drain loop keeps running across the swap.
func New(dst io.Writer, size int) *Writer {
	w := &Writer{
		dst:   bufio.NewWriter(dst),
		queue: make(chan command, size),
		done:  make(chan struct{}),
	}
	w.drainW.Add(1)
	go w.drain()

	return w
}

// Swap replaces the destination writer, e.g. after a reconnect. In-flight
// bytes already handed to the old writer are not retried; commands still in
// the queue are written to the new destination in order.
func (w *Writer) Swap(dst io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dst = bufio.NewWriter(dst)
}

// Enqueue submits a fully-formatted frame for writing. It blocks if the
// queue is full, returning ctx.Err() if ctx is done first.
func (w *Writer) Enqueue(ctx context.Context, frame []byte) error {
	select {
	case <-w.done:
		return io.ErrClosedPipe
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case w.queue <- command{frame: frame}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return io.ErrClosedPipe
	}
}

// TryEnqueue submits frame without blocking, returning false if the queue is
// full. Used for PING keepalives, which should never backpressure a slow
// consumer's own traffic.
func (w *Writer) TryEnqueue(frame []byte) bool {
	select {
	case w.queue <- command{frame: frame}:
		return true
	default:
		return false
	}
}

// Flush blocks until every currently-queued frame has been handed to the
// destination writer's Write and the buffer flushed.
func (w *Writer) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.queue <- command{ack: ack}:
	case <-w.done:
		return io.ErrClosedPipe
	}

	return <-ack
}

func (w *Writer) drain() {
	defer w.drainW.Done()

	for {
		select {
		case cmd, ok := <-w.queue:
			if !ok {
				return
			}
			if cmd.ack != nil {
				w.mu.Lock()
				err := w.dst.Flush()
				w.mu.Unlock()
				cmd.ack <- err

				continue
			}
			w.mu.Lock()
			_, err := w.dst.Write(cmd.frame)
			if err == nil && len(w.queue) == 0 {
				err = w.dst.Flush()
			}
			w.mu.Unlock()
			if err != nil {
				w.setErr(err)
			}
		case <-w.done:
			return
		}
	}
}

func (w *Writer) setErr(err error) {
	w.errMu.Lock()
	w.lastErr = err
	w.errMu.Unlock()
}

// Err returns the most recent write error, if any, cleared on read.
func (w *Writer) Err() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	err := w.lastErr
	w.lastErr = nil

	return err
}

// Close stops the drain goroutine and waits for it to exit.
func (w *Writer) Close() {
	close(w.done)
	w.drainW.Wait()
}
