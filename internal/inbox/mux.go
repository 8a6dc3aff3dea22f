// Package inbox implements the request/reply inbox multiplexer: a single
// wildcard subscription shared by every in-flight request, with O(1)
// token-based routing to per-request one-shot waiters.
package inbox

import (
	"strings"
	"sync"

	"github.com/nats-io/nuid"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/zeebo/xxh3"
)

// waiter is a one-shot delivery target for a single request's reply.
type waiter struct {
	once sync.Once
	ch   chan Reply
}

func (w *waiter) deliver(r Reply) {
	w.once.Do(func() {
		w.ch <- r
		close(w.ch)
	})
}

// Reply is one inbox delivery.
type Reply struct {
	Subject string
	Headers map[string][]string
	Status  int
	Payload []byte
}

// Mux routes replies arriving on prefix.* to the waiter registered for the
// trailing token, keyed by an xxh3 fingerprint of the token so lookup stays
// O(1) regardless of how many requests are in flight.
type Mux struct {
	prefix   string
	waiters  *xsync.Map[uint64, *waiter]
	tokens   *xsync.Map[uint64, string] // fingerprint collision guard
}

// New returns a Mux whose wildcard subscription subject is prefix + ".*".
// prefix should already contain the connection's unique inbox root (see
// NewInboxPrefix) so two connections never collide.
func New(prefix string) *Mux {
	return &Mux{
		prefix:  prefix,
		waiters: xsync.NewMap[uint64, *waiter](),
		tokens:  xsync.NewMap[uint64, string](),
	}
}

// Subject returns the wildcard subscription subject for this Mux.
func (m *Mux) Subject() string { return m.prefix + ".*" }

// Owns reports whether subject falls under this Mux's reply-token
// namespace, i.e. would be routed here rather than delivered to a normal
// subscriber.
func (m *Mux) Owns(subject string) bool {
	return subject == m.prefix || strings.HasPrefix(subject, m.prefix+".")
}

// NewInboxPrefix returns a fresh, globally-unique inbox root such as
// "_INBOX.<nuid>", suitable for constructing one Mux per connection.
func NewInboxPrefix() string {
	return "_INBOX." + nuid.Next()
}

func fingerprint(token string) uint64 {
	return xxh3.HashString(token)
}

// NewToken registers a fresh reply token and returns it along with a
// channel that receives exactly one Reply and is then closed. If the request
// is abandoned via Forget, the channel receives nothing and stays open.
func (m *Mux) NewToken() (token string, replies <-chan Reply) {
	token = nuid.Next()
	w := &waiter{ch: make(chan Reply, 1)}
	fp := fingerprint(token)
	m.waiters.Store(fp, w)
	m.tokens.Store(fp, token)

	return token, w.ch
}

// FullSubject returns the concrete reply-to subject for token.
func (m *Mux) FullSubject(token string) string { return m.prefix + "." + token }

// Forget releases the waiter for token without delivering, e.g. after a
// request's context is canceled.
func (m *Mux) Forget(token string) {
	fp := fingerprint(token)
	m.waiters.Delete(fp)
	m.tokens.Delete(fp)
}

// Route delivers r to the waiter registered for the last token of subject
// (subject must be prefix + "." + token). It reports whether a waiter was
// found; an unmatched reply (already delivered, forgotten, or a stray
// message on the wildcard subject) is silently dropped.
func (m *Mux) Route(subject string, r Reply) bool {
	token := subject
	if len(subject) > len(m.prefix)+1 {
		token = subject[len(m.prefix)+1:]
	}
	fp := fingerprint(token)
	if t, ok := m.tokens.Load(fp); !ok || t != token {
		return false
	}

	w, ok := m.waiters.LoadAndDelete(fp)
	if !ok {
		return false
	}
	m.tokens.Delete(fp)
	w.deliver(r)

	return true
}
