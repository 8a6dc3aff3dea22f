package flowmesh

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/flowmesh-io/flowmesh-go/internal/proto"
)

// DefaultSubscriptionPendingLimit bounds how many messages a Subscription
// buffers before it starts dropping them; each drop is logged and counted
// through IncrementSlowConsumer, and no error is returned to the caller.
const DefaultSubscriptionPendingLimit = 65536

// Subscription represents one live subscription. It satisfies the internal
// subs.Sink interface so the registry can deliver to it directly; Msgs
// returns the channel a synchronous caller reads from, while an
// asynchronous subscription instead feeds handler from a single dedicated
// per-subscription goroutine draining queueCh in delivery order.
type Subscription struct {
	conn    *Conn
	sid     int64
	subject string
	queue   string

	handler func(*Msg)
	msgs    chan *Msg // sync delivery target; nil for handler subscriptions
	queueCh chan *Msg // ordered handler-delivery queue; nil for sync subscriptions

	stopOnce sync.Once
	stopCh   chan struct{}

	maxMsgs   int64
	delivered atomic.Int64
	closed    atomic.Bool
	limit     int32
}

func newSubscription(conn *Conn, sid int64, subject, queue string, handler func(*Msg), pendingLimit int) *Subscription {
	s := &Subscription{
		conn: conn, sid: sid, subject: subject, queue: queue,
		handler: handler, limit: int32(pendingLimit),
	}
	if handler == nil {
		s.msgs = make(chan *Msg, pendingLimit)

		return s
	}

	s.queueCh = make(chan *Msg, pendingLimit)
	s.stopCh = make(chan struct{})
	go s.runHandler()

	return s
}

// runHandler is the single goroutine an asynchronous subscription uses to
// invoke handler, draining queueCh strictly in the order Deliver filled it
// so concurrent handler invocations can never reorder messages from the
// same subscription.
func (s *Subscription) runHandler() {
	for {
		// Drain anything already queued before honoring a stop signal, so a
		// message enqueued right before Unsubscribe/auto-unsubscribe still
		// gets delivered instead of being silently discarded by a select
		// that happens to pick stopCh.
		select {
		case msg := <-s.queueCh:
			s.handler(msg)

			continue
		default:
		}

		select {
		case msg := <-s.queueCh:
			s.handler(msg)
		case <-s.stopCh:
			return
		}
	}
}

func (s *Subscription) stopHandler() {
	if s.stopCh == nil {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Subscribe registers an asynchronous subscription: handler is invoked from
// a single dedicated goroutine, in the order messages arrive from the
// broker. subject may contain the wildcard tokens "*" and a trailing ">".
func (c *Conn) Subscribe(subject string, handler func(*Msg)) (*Subscription, error) {
	if handler == nil {
		return nil, wrapKind(KindUsage, fmt.Errorf("flowmesh: Subscribe requires a non-nil handler"))
	}

	return c.subscribe(subject, "", handler)
}

// SubscribeSync registers a synchronous subscription: callers read delivered
// messages from the returned Subscription's Msgs channel.
func (c *Conn) SubscribeSync(subject string) (*Subscription, error) {
	return c.subscribe(subject, "", nil)
}

// QueueSubscribe registers an asynchronous queue subscription: exactly one
// member of queue receives each matching message.
func (c *Conn) QueueSubscribe(subject, queue string, handler func(*Msg)) (*Subscription, error) {
	if handler == nil {
		return nil, wrapKind(KindUsage, fmt.Errorf("flowmesh: QueueSubscribe requires a non-nil handler"))
	}

	return c.subscribe(subject, queue, handler)
}

// QueueSubscribeSync registers a synchronous queue subscription.
func (c *Conn) QueueSubscribeSync(subject, queue string) (*Subscription, error) {
	return c.subscribe(subject, queue, nil)
}

func (c *Conn) subscribe(subject, queue string, handler func(*Msg)) (*Subscription, error) {
	if c.State() == StateClosed {
		return nil, wrapKind(KindTransport, ErrConnectionClosed)
	}
	if err := validateSubscribeSubject(subject); err != nil {
		return nil, err
	}
	if queue != "" && c.mux.Owns(subject) {
		return nil, wrapKind(KindUsage, fmt.Errorf("flowmesh: queue subscription on inbox subject %q: %w", subject, ErrUsage))
	}

	sid := c.registry.NextSID()
	sub := newSubscription(c, sid, subject, queue, handler, c.opts.SubscriptionPendingLimit)
	c.registry.Register(sid, subject, queue, sub)

	var buf bytes.Buffer
	proto.WriteSub(&buf, subject, queue, sid)
	if !c.writer.TryEnqueue(append([]byte(nil), buf.Bytes()...)) {
		c.registry.Remove(sid)

		return nil, wrapKind(KindTransport, fmt.Errorf("flowmesh: outbound queue full"))
	}

	return sub, nil
}

// Subject returns the subscribed pattern.
func (s *Subscription) Subject() string { return s.subject }

// Queue returns the queue-group name, or "" if this is not a queue subscription.
func (s *Subscription) Queue() string { return s.queue }

// SID returns the subscription's connection-scoped identifier.
func (s *Subscription) SID() int64 { return s.sid }

// Msgs returns the channel synchronous subscribers read from. It is nil for
// subscriptions created with a handler callback.
func (s *Subscription) Msgs() <-chan *Msg { return s.msgs }

// AutoUnsubscribe arranges for the subscription to unsubscribe itself after
// max messages have been delivered, mirroring UNSUB's optional max-messages
// argument.
func (s *Subscription) AutoUnsubscribe(max int) error {
	s.maxMsgs = int64(max)

	return s.conn.sendUnsub(s.sid, max)
}

// Unsubscribe cancels the subscription. It is idempotent: unsubscribing an
// already-closed Subscription is a no-op, matching the registry's
// idempotent Remove semantics.
func (s *Subscription) Unsubscribe() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.conn.removeSubscription(s.sid)
	s.stopHandler()

	return s.conn.sendUnsub(s.sid, 0)
}

// Closed reports whether the subscription has been unsubscribed. It
// implements the internal subs.Sink interface.
func (s *Subscription) Closed() bool { return s.closed.Load() }

// Deliver implements the internal subs.Sink interface, invoked by the
// connection's read loop for every MSG/HMSG frame matching this SID.
func (s *Subscription) Deliver(subject, reply string, headers map[string][]string, status int, statusText string, payload []byte) {
	if s.closed.Load() {
		return
	}

	msg := &Msg{Subject: subject, Reply: reply, Data: payload, Status: status, StatusText: statusText, sub: s}
	if headers != nil {
		msg.Header = Header(headers)
	}

	delivered := s.delivered.Add(1)
	if s.maxMsgs > 0 && delivered >= s.maxMsgs {
		s.closed.Store(true)
		s.conn.removeSubscription(s.sid)
		defer s.stopHandler()
	}

	if s.handler != nil {
		select {
		case s.queueCh <- msg:
		default:
			s.conn.opts.MetricsCollector.IncrementSlowConsumer(subject)
			s.conn.logger().Warn("slow consumer, dropping message", "subject", subject, "sid", s.sid)
		}

		return
	}

	select {
	case s.msgs <- msg:
	default:
		s.conn.opts.MetricsCollector.IncrementSlowConsumer(subject)
		s.conn.logger().Warn("slow consumer, dropping message", "subject", subject, "sid", s.sid)
	}
}
