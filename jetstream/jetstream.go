package jetstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	flowmesh "github.com/flowmesh-io/flowmesh-go"
)

// DefaultAPIPrefix is the subject namespace root the client prepends to
// every admin API call, matching the broker's default deployment.
const DefaultAPIPrefix = "$JS.API"

// JetStream is a typed client over one connection's JetStream admin API.
// It carries no server-side state of its own; every call is a fresh
// request/reply round trip.
type JetStream struct {
	conn    *flowmesh.Conn
	prefix  string
	timeout time.Duration
}

// Option configures a JetStream client.
type Option func(*JetStream)

// WithAPIPrefix overrides the "$JS.API" subject root, for brokers deployed
// with a custom JetStream domain or account-mapped prefix.
func WithAPIPrefix(prefix string) Option {
	return func(j *JetStream) { j.prefix = prefix }
}

// WithRequestTimeout bounds how long an admin API call waits for a response.
func WithRequestTimeout(d time.Duration) Option {
	return func(j *JetStream) { j.timeout = d }
}

// New returns a JetStream client bound to conn.
func New(conn *flowmesh.Conn, opts ...Option) *JetStream {
	j := &JetStream{conn: conn, prefix: DefaultAPIPrefix, timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(j)
	}

	return j
}

// Conn returns the underlying connection, letting a caller recover the raw
// client from a JetStream context.
func (j *JetStream) Conn() *flowmesh.Conn { return j.conn }

// apiSubject joins the configured prefix with a dot-separated verb such as
// "STREAM.CREATE.orders".
func (j *JetStream) apiSubject(verb string) string {
	return j.prefix + "." + verb
}

type apiEnvelope struct {
	Error *APIError `json:"error,omitempty"`
}

// apiRequest marshals req (nil for a bodyless request), publishes it to
// verb under the API prefix, and unmarshals a non-error response into resp
// (nil to discard the body). It returns *APIError unchanged when the
// broker's response embeds one.
func (j *JetStream) apiRequest(ctx context.Context, verb string, req, resp any) error {
	body := []byte("{}")
	if req != nil {
		encoded, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("jetstream: marshal %s request: %w", verb, err)
		}
		body = encoded
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	msg, err := j.conn.Request(ctx, j.apiSubject(verb), body)
	if err != nil {
		return fmt.Errorf("jetstream: %s: %w", verb, err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return fmt.Errorf("jetstream: decode %s response: %w", verb, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}

	if resp == nil {
		return nil
	}
	if err := json.Unmarshal(msg.Data, resp); err != nil {
		return fmt.Errorf("jetstream: decode %s response: %w", verb, err)
	}

	return nil
}
