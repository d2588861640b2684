package inflight

import "errors"

var (
	// ErrInFlight is returned when the same key is already being processed.
	ErrInFlight = errors.New("operation already in progress")
	// ErrCapacity is returned when the guard holds its maximum number of keys.
	ErrCapacity = errors.New("too many operations in progress")
)
