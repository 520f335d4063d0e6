package rabbitmq

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	// ErrMissingURL is returned when a ConnectionManager is constructed
	// without a broker URL. This is a configuration error: the process must
	// supply the URL before messaging can function.
	ErrMissingURL = errors.New("rabbitmq: broker URL is required")

	// ErrNotConnected is returned when a channel is requested but no live
	// connection could be obtained.
	ErrNotConnected = errors.New("rabbitmq: not connected")
)

// ConnectionError represents a failure at the broker-client boundary while
// connecting or opening channels.
type ConnectionError struct {
	Op        string    // Operation that failed
	URL       string    // Connection URL (sanitized)
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rabbitmq connection error: %s failed: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TopologyError represents a failure declaring an exchange, queue, or binding.
type TopologyError struct {
	Component string // exchange, queue, or binding
	Name      string // Component name
	Err       error  // Underlying error
	Timestamp time.Time
}

func (e *TopologyError) Error() string {
	return fmt.Sprintf("rabbitmq topology error: declare %s %q: %v", e.Component, e.Name, e.Err)
}

func (e *TopologyError) Unwrap() error {
	return e.Err
}

// SanitizeURL removes credentials from a broker URL for logging.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	return u.String()
}
