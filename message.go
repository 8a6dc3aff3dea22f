package flowmesh

import "context"

// Header is an ordered multimap of header key to values, matching the wire
// header block's ability to carry repeated keys.
type Header map[string][]string

// Get returns the first value for key, or "" if absent.
func (h Header) Get(key string) string {
	v := h[key]
	if len(v) == 0 {
		return ""
	}

	return v[0]
}

// Add appends value to key's list.
func (h Header) Add(key, value string) { h[key] = append(h[key], value) }

// Set replaces key's values with a single value.
func (h Header) Set(key, value string) { h[key] = []string{value} }

// Msg is an immutable message as delivered to a subscription sink or
// returned from a request.
type Msg struct {
	Subject string
	Reply   string
	Header  Header
	Data    []byte

	// Status carries a control-status code (e.g. 100 heartbeat, 404 no
	// messages) when this Msg represents a JetStream status frame rather
	// than user data. Zero means "ordinary message".
	Status     int
	StatusText string

	sub *Subscription
}

// Sub returns the Subscription this message was delivered on, or nil for a
// request/reply reply message.
func (m *Msg) Sub() *Subscription { return m.sub }

// IsStatus reports whether this Msg is a control-status frame rather than
// user data. The pull-consumer engine never hands a status frame to the
// message stream as ordinary data, but a core subscription sink may still
// surface one it wasn't expecting.
func (m *Msg) IsStatus() bool { return m.Status != 0 }

const (
	ackBodyAck        = "+ACK"
	ackBodyNak        = "-NAK"
	ackBodyInProgress = "+WPI"
	ackBodyTerm       = "+TERM"
)

// Ack acknowledges successful processing of a JetStream delivery. It is a
// no-op if the message has no reply subject (e.g. a core publish/subscribe
// message, or a consumer configured with AckNone).
func (m *Msg) Ack(ctx context.Context) error { return m.respond(ctx, ackBodyAck) }

// Nak signals that processing failed and the message should be redelivered,
// subject to the consumer's ack_wait and max_deliver.
func (m *Msg) Nak(ctx context.Context) error { return m.respond(ctx, ackBodyNak) }

// InProgress resets the redelivery timer without acknowledging, for
// handlers that need more than ack_wait to finish processing.
func (m *Msg) InProgress(ctx context.Context) error { return m.respond(ctx, ackBodyInProgress) }

// Term acknowledges the message as permanently failed: it will not be
// redelivered even though it was never successfully processed.
func (m *Msg) Term(ctx context.Context) error { return m.respond(ctx, ackBodyTerm) }

func (m *Msg) respond(ctx context.Context, body string) error {
	if m.Reply == "" || m.sub == nil {
		return nil
	}

	return m.sub.conn.Publish(ctx, m.Reply, []byte(body))
}
