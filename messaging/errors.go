package messaging

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNilEvent is returned when a nil event is dispatched.
	ErrNilEvent = errors.New("messaging: event cannot be nil")

	// ErrMissingEventType is returned when an event has no type to derive a
	// routing key from.
	ErrMissingEventType = errors.New("messaging: event type is required")

	// ErrInvalidExchangeType is returned for exchange types the broker does
	// not know.
	ErrInvalidExchangeType = errors.New("messaging: invalid exchange type")

	// ErrConsumerStopped is returned when a stopped consumer is initialized
	// or started again. Stopped is terminal: construct a fresh consumer to
	// resume, even against the same queue.
	ErrConsumerStopped = errors.New("messaging: consumer is stopped")

	// ErrConsumerStarted is returned when Start is called on a consumer that
	// is already consuming. A second consume stream on the same channel would
	// split deliveries between the two.
	ErrConsumerStarted = errors.New("messaging: consumer already started")
)

// PublishError represents a failed publish of one event.
type PublishError struct {
	EventID    string
	EventType  string
	Exchange   string
	RoutingKey string
	Err        error
	Timestamp  time.Time
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("messaging publish error: event %s (%s) to %s/%s: %v",
		e.EventID, e.EventType, e.Exchange, e.RoutingKey, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// ConsumerError represents a failed consumer setup or consume operation.
type ConsumerError struct {
	Op        string
	Queue     string
	Err       error
	Timestamp time.Time
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("messaging consumer error: %s on queue %s: %v", e.Op, e.Queue, e.Err)
}

func (e *ConsumerError) Unwrap() error {
	return e.Err
}
