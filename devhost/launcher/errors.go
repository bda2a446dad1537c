package launcher

import "errors"

var (
	// ErrPortExhausted is returned when no port in the configured range can be bound.
	ErrPortExhausted = errors.New("no free port found")

	// ErrInterrupted is returned when the launch is cancelled before the served process starts.
	ErrInterrupted = errors.New("launch interrupted")
)
