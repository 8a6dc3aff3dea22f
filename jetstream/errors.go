package jetstream

import (
	"errors"
	"fmt"
)

// ErrConsumerTerminated is returned when a pull consumer receives a fatal
// terminal status (consumer deleted, ack-pending exceeded, or an
// unrecognized 4xx/5xx).
var ErrConsumerTerminated = errors.New("jetstream: consumer terminated")

// ErrHeartbeatLost is reported via Notification to a Consume caller when
// two consecutive idle_heartbeat windows pass with no activity from the
// broker.
var ErrHeartbeatLost = errors.New("jetstream: heartbeat lost")

// ErrIteratorClosed is returned by MessageIterator.Next after Stop was
// called and no fatal error occurred.
var ErrIteratorClosed = errors.New("jetstream: message iterator closed")

// APIError is the {code, err_code, description} error object the broker's
// admin API embeds in a JSON response.
type APIError struct {
	Code        int    `json:"code"`
	ErrCode     int    `json:"err_code"`
	Description string `json:"description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("jetstream api error %d (err_code %d): %s", e.Code, e.ErrCode, e.Description)
}
