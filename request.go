package flowmesh

import "context"

// Request publishes data on subject and blocks for a single reply, or until
// ctx is done. It is a thin wrapper over RequestMsg.
func (c *Conn) Request(ctx context.Context, subject string, data []byte) (*Msg, error) {
	return c.RequestMsg(ctx, &Msg{Subject: subject, Data: data})
}

// RequestMsg publishes msg on a fresh, unique reply-to inbox subject and
// waits for the first reply delivered there. The reply carries the subject,
// headers, status code and payload the responder sent; its Reply field is
// left empty, and its Sub is nil since it did not arrive via a Subscription.
func (c *Conn) RequestMsg(ctx context.Context, msg *Msg) (*Msg, error) {
	if c.State() == StateClosed {
		return nil, wrapKind(KindTransport, ErrConnectionClosed)
	}

	token, replies := c.mux.NewToken()
	replyTo := c.mux.FullSubject(token)

	if err := c.publish(ctx, msg.Subject, replyTo, msg.Header, msg.Data); err != nil {
		c.mux.Forget(token)

		return nil, err
	}

	select {
	case r := <-replies:
		out := &Msg{Subject: r.Subject, Data: r.Payload, Status: r.Status}
		if r.Headers != nil {
			out.Header = Header(r.Headers)
		}

		return out, nil
	case <-ctx.Done():
		c.mux.Forget(token)
		if ctx.Err() == context.Canceled {
			return nil, wrapKind(KindCanceled, ErrCanceled)
		}

		return nil, wrapKind(KindTimeout, ErrTimeout)
	case <-c.closed:
		c.mux.Forget(token)

		return nil, wrapKind(KindTransport, ErrConnectionClosed)
	}
}
