// Package subs implements the subscription registry: the SID-to-sink table
// the read loop consults to route each inbound MSG/HMSG frame, plus the
// explicit-handle lifecycle and periodic sweep that replace a garbage
// collector's weak references.
package subs

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// Sink receives delivered messages for one subscription. Implementations
// must not block; slow sinks are the caller's responsibility to buffer.
type Sink interface {
	// Deliver hands off one message. subject is the concrete subject the
	// message arrived on (which may differ from the subscribed pattern for
	// wildcard subscriptions); reply is the optional reply-to subject.
	// status/statusText carry a control-status line (e.g. 100 Idle
	// Heartbeat) when this frame is a JetStream status frame rather than
	// user data; status is 0 for ordinary messages.
	Deliver(subject, reply string, headers map[string][]string, status int, statusText string, payload []byte)
	// Closed reports whether the sink has already been released and should
	// be swept out of the registry.
	Closed() bool
}

// Entry is one live registration.
type Entry struct {
	SID     int64
	Subject string
	Queue   string
	Sink    Sink

	lastTouched atomic.Int64 // unix nanos of the last touch; Sweep checks Sink.Closed, not this
}

func (e *Entry) touch() { e.lastTouched.Store(time.Now().UnixNano()) }

// Registry maps SID to Entry with O(1) lookup on the read-loop hot path.
type Registry struct {
	entries *xsync.Map[int64, *Entry]
	nextSID atomic.Int64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{entries: xsync.NewMap[int64, *Entry]()}
}

// NextSID allocates the next subscription id. SIDs are assigned by the
// client, never the server, and are never reused within a connection's
// lifetime (the JetStream spec calls this out explicitly: reuse would let a
// stale in-flight MSG frame land on a Sink it no longer belongs to).
func (r *Registry) NextSID() int64 {
	return r.nextSID.Add(1)
}

// Register adds sink under sid, returning the Entry the caller can later
// pass to Remove or use for replay-on-reconnect bookkeeping.
func (r *Registry) Register(sid int64, subject, queue string, sink Sink) *Entry {
	e := &Entry{SID: sid, Subject: subject, Queue: queue, Sink: sink}
	e.touch()
	r.entries.Store(sid, e)

	return e
}

// Lookup returns the Entry for sid, or (nil, false) if it isn't registered.
func (r *Registry) Lookup(sid int64) (*Entry, bool) {
	e, ok := r.entries.Load(sid)
	if ok {
		e.touch()
	}

	return e, ok
}

// Remove unregisters sid. Removing a SID that is not registered — because it
// was already removed, or a UNSUB max-messages auto-completed it, or it was
// never registered on this connection — is a safe no-op, not an error: the
// registry's job is to converge on "sid has no sink", and it is already
// there.
func (r *Registry) Remove(sid int64) {
	r.entries.Delete(sid)
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	return r.entries.Size()
}

// Range calls fn for every live entry until fn returns false.
func (r *Registry) Range(fn func(*Entry) bool) {
	r.entries.Range(func(_ int64, e *Entry) bool {
		return fn(e)
	})
}

// Sweep removes every entry whose Sink reports Closed, returning the removed
// entries so the caller can issue UNSUB for each. This is a defense net: a
// well-behaved caller always calls Unsubscribe explicitly, but a sink
// dropped without one (e.g. its owning goroutine exited) would otherwise
// leak a registry entry and keep receiving frames the server thinks are
// still wanted.
func (r *Registry) Sweep() []*Entry {
	var stale []*Entry
	r.entries.Range(func(sid int64, e *Entry) bool {
		if e.Sink.Closed() {
			stale = append(stale, e)
		}

		return true
	})
	for _, e := range stale {
		r.entries.Delete(e.SID)
	}

	return stale
}
