package flowmesh

import (
	"bytes"
	"context"
	"fmt"

	"github.com/flowmesh-io/flowmesh-go/internal/proto"
)

// Publish sends data on subject with no reply-to. It blocks if the outbound
// writer's ring is full, honoring ctx cancellation, and returns as soon as
// the frame is queued; it does not wait for the server to acknowledge
// receipt.
func (c *Conn) Publish(ctx context.Context, subject string, data []byte) error {
	return c.publish(ctx, subject, "", nil, data)
}

// PublishRequest publishes data on subject with reply set, the fire-and-forget
// counterpart to Request.
func (c *Conn) PublishRequest(ctx context.Context, subject, reply string, data []byte) error {
	return c.publish(ctx, subject, reply, nil, data)
}

// PublishMsg publishes msg, using its Header if non-empty.
func (c *Conn) PublishMsg(ctx context.Context, msg *Msg) error {
	return c.publish(ctx, msg.Subject, msg.Reply, msg.Header, msg.Data)
}

func (c *Conn) publish(ctx context.Context, subject, reply string, header Header, data []byte) error {
	if c.State() == StateClosed {
		return wrapKind(KindTransport, ErrConnectionClosed)
	}
	if err := validateSubject(subject); err != nil {
		return err
	}
	if reply != "" {
		if err := validateSubject(reply); err != nil {
			return err
		}
	}

	maxPayload := c.maxPayload.Load()
	if maxPayload > 0 && int64(len(data)) > maxPayload {
		return wrapKind(KindPayloadTooLarge, fmt.Errorf("%w: %d bytes exceeds max_payload %d", ErrPayloadTooLarge, len(data), maxPayload))
	}

	var buf bytes.Buffer
	if len(header) == 0 {
		proto.WritePub(&buf, subject, reply, data)
	} else {
		h := proto.NewHeader()
		for k, values := range header {
			for _, v := range values {
				h.Add(k, v)
			}
		}
		proto.WriteHPub(&buf, subject, reply, h, data)
	}

	// Enqueue blocks under backpressure and honors ctx; a frame that has
	// already crossed into the ring keeps going to the wire even if ctx is
	// canceled afterward (the writer never tears a frame in progress), so
	// cancellation here only ever fails a publish that never committed.
	if err := c.writer.Enqueue(ctx, append([]byte(nil), buf.Bytes()...)); err != nil {
		if ctx.Err() != nil {
			return wrapKind(KindCanceled, ErrCanceled)
		}

		return wrapKind(KindTransport, ErrConnectionClosed)
	}

	c.opts.MetricsCollector.IncrementPublished(subject)

	return nil
}

// Flush blocks until every frame enqueued before the call has been written
// to the transport, or ctx is done.
func (c *Conn) Flush(ctx context.Context) error {
	w := c.writer
	if w == nil {
		return wrapKind(KindTransport, ErrConnectionClosed)
	}

	done := make(chan error, 1)
	go func() { done <- w.Flush() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return wrapKind(KindCanceled, ctx.Err())
	}
}
