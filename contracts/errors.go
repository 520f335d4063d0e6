package contracts

import "errors"

var (
	// ErrEncodeFailed is returned when an event cannot be serialized to its wire form.
	ErrEncodeFailed = errors.New("contracts: event encode failed")

	// ErrDecodeFailed is returned when a message body is not a valid wire-form event.
	ErrDecodeFailed = errors.New("contracts: event decode failed")

	// ErrWrongEventType is returned when a typed payload view is applied to an
	// event of a different type.
	ErrWrongEventType = errors.New("contracts: wrong event type")
)
