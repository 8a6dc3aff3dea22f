package flowmesh

import "errors"

// Sentinel errors returned by the connection core.
//
// Callers should compare with errors.Is; components wrap these with
// fmt.Errorf("...: %w", err) to add context.
var (
	// ErrConnectionClosed is returned by any operation attempted after Close.
	ErrConnectionClosed = errors.New("flowmesh: connection closed")

	// ErrTimeout is returned when a request's deadline passes before a reply
	// arrives, or when Drain's context ends before its flush completes.
	ErrTimeout = errors.New("flowmesh: timeout")

	// ErrCanceled is returned when the caller's context is canceled before an
	// operation completes. Bytes already committed to the outbound ring are
	// still written to the wire; only the caller's wait is abandoned.
	ErrCanceled = errors.New("flowmesh: canceled")

	// ErrUsage indicates an invalid argument, e.g. a queue group on an inbox subject.
	ErrUsage = errors.New("flowmesh: invalid usage")

	// ErrPayloadTooLarge is returned when a publish exceeds the server's max_payload.
	ErrPayloadTooLarge = errors.New("flowmesh: payload exceeds max_payload")

	// ErrBadSubject is returned for a malformed or wildcard-on-publish subject.
	ErrBadSubject = errors.New("flowmesh: invalid subject")

	// ErrAuthorization is returned when the server rejects CONNECT.
	ErrAuthorization = errors.New("flowmesh: authorization failed")

	// ErrTLSHandshake is returned when the TLS upgrade fails.
	ErrTLSHandshake = errors.New("flowmesh: tls handshake failed")

	// ErrNoServers is returned when every server in the seed list has been tried and failed.
	ErrNoServers = errors.New("flowmesh: no servers available")

	// ErrMaxReconnectsExceeded is returned when reconnect attempts are exhausted.
	ErrMaxReconnectsExceeded = errors.New("flowmesh: max reconnects exceeded")

	// ErrSubscriptionClosed is returned by operations on an unsubscribed Subscription.
	ErrSubscriptionClosed = errors.New("flowmesh: subscription closed")

	// ErrSlowConsumer is returned when a subscription's sink is dropped and swept
	// before the caller explicitly unsubscribed.
	ErrSlowConsumer = errors.New("flowmesh: slow consumer")

	// ErrHeartbeatLost is observable via events; also returned to pull-consumer
	// callers when a heartbeat window is missed twice in a row.
	ErrHeartbeatLost = errors.New("flowmesh: heartbeat lost")

	// ErrConsumerTerminated indicates a JetStream pull-consumer terminal status
	// (consumer deleted, ack-pending exceeded, or an unexpected 4xx/5xx).
	ErrConsumerTerminated = errors.New("flowmesh: consumer terminated")

	// ErrProtocol indicates a malformed inbound frame.
	ErrProtocol = errors.New("flowmesh: protocol error")
)

// Kind classifies an error for programmatic dispatch, mirroring the error
// kinds a caller needs to distinguish reconnect-triggering failures from
// terminal ones.
type Kind int

const (
	// KindUnknown is the zero value; never returned by this package.
	KindUnknown Kind = iota
	// KindProtocol wraps ErrProtocol.
	KindProtocol
	// KindAuth tags authentication failures; a CONNECT rejected by the server
	// wraps ErrAuthorization.
	KindAuth
	// KindTLS wraps ErrTLSHandshake.
	KindTLS
	// KindTransport indicates the socket closed or a write failed.
	KindTransport
	// KindTimeout wraps ErrTimeout.
	KindTimeout
	// KindCanceled wraps ErrCanceled.
	KindCanceled
	// KindUsage wraps ErrUsage.
	KindUsage
	// KindPayloadTooLarge wraps ErrPayloadTooLarge.
	KindPayloadTooLarge
	// KindAPI wraps a jetstream.APIError.
	KindAPI
	// KindConsumerTerminated wraps ErrConsumerTerminated.
	KindConsumerTerminated
	// KindHeartbeatLost wraps ErrHeartbeatLost.
	KindHeartbeatLost
)

// String returns the human-readable name of the Kind.
func (k Kind) String() string {
	switch k {
	case KindProtocol:
		return "Protocol"
	case KindAuth:
		return "Auth"
	case KindTLS:
		return "Tls"
	case KindTransport:
		return "Transport"
	case KindTimeout:
		return "Timeout"
	case KindCanceled:
		return "Canceled"
	case KindUsage:
		return "Usage"
	case KindPayloadTooLarge:
		return "PayloadTooLarge"
	case KindAPI:
		return "ApiError"
	case KindConsumerTerminated:
		return "ConsumerTerminated"
	case KindHeartbeatLost:
		return "HeartbeatLost"
	default:
		return "Unknown"
	}
}

// Error is a Kind-tagged error wrapping an underlying cause.
type Error struct {
	Kind  Kind
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause == nil {
		return "flowmesh: " + e.Kind.String()
	}

	return e.Kind.String() + ": " + e.Cause.Error()
}

// Unwrap allows errors.Is/errors.As to see through to Cause.
func (e *Error) Unwrap() error { return e.Cause }

// wrapKind builds a *Error tagged with kind, wrapping cause.
func wrapKind(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}
