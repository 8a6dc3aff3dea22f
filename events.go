package flowmesh

// EventHandlers holds optional callbacks for connection lifecycle events.
//
// All handlers are optional and invoked from a single dedicated event
// goroutine, never from the read loop or the writer goroutine, so a slow
// handler cannot stall message delivery. Handlers should return quickly;
// long-running work should be handed off to a caller-owned goroutine.
//
// Handlers observe events in the order they occur but a handler that blocks
// delays delivery of subsequent events (the event goroutine is single, not
// per-handler).
type EventHandlers struct {
	// ConnectedHandler fires once the handshake completes and the connection
	// enters StateOpen for the first time or after a reconnect.
	ConnectedHandler func(*Conn)

	// DisconnectedHandler fires when the transport is lost and the connection
	// enters StateReconnecting. err is the cause (transport or protocol error).
	DisconnectedHandler func(*Conn, error)

	// ReconnectingHandler fires when a reconnect attempt begins against the
	// next server in rotation.
	ReconnectingHandler func(*Conn, string)

	// ReconnectedHandler fires when a reconnect completes and subscription
	// replay has finished.
	ReconnectedHandler func(*Conn)

	// ClosedHandler fires once, when Close/Drain completes and the connection
	// reaches StateClosed permanently.
	ClosedHandler func(*Conn)

	// SubscriptionDroppedHandler fires when the registry sweep unsubscribes a
	// subscription whose sink was released without an explicit Unsubscribe.
	SubscriptionDroppedHandler func(*Conn, *Subscription, error)

	// HeartbeatLostHandler fires when a JetStream pull consumer misses two
	// consecutive idle heartbeats.
	HeartbeatLostHandler func(*Conn, string)

	// ConsumerTerminatedHandler fires when a JetStream pull consumer receives
	// a fatal terminal status (consumer deleted, ack-pending exceeded, ...).
	ConsumerTerminatedHandler func(*Conn, string, error)
}

// dispatcher runs EventHandlers callbacks on a dedicated goroutine fed by a
// bounded channel so the read loop never blocks on user code.
type dispatcher struct {
	handlers EventHandlers
	events   chan func()
	done     chan struct{}
}

func newDispatcher(h EventHandlers) *dispatcher {
	d := &dispatcher{handlers: h, events: make(chan func(), 64), done: make(chan struct{})}
	go d.run()

	return d
}

func (d *dispatcher) run() {
	for {
		select {
		case fn, ok := <-d.events:
			if !ok {
				return
			}
			fn()
		case <-d.done:
			// Drain remaining events best-effort, then exit.
			for {
				select {
				case fn := <-d.events:
					fn()
				default:
					return
				}
			}
		}
	}
}

// emit enqueues fn for asynchronous execution, dropping it silently if the
// dispatcher has already been stopped or the queue is saturated.
func (d *dispatcher) emit(fn func()) {
	select {
	case d.events <- fn:
	default:
	}
}

func (d *dispatcher) stop() {
	close(d.done)
}
