package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed indicates the transport background tasks have terminated,
	// so no frame can be received or submitted anymore.
	ErrClosed = errors.New("transport closed")
	// ErrBrokenPipe indicates the completion of a write was dropped
	// without being resolved, e.g. the writer task died mid-flight.
	ErrBrokenPipe = errors.New("broken pipe")
)

// LaggedError is returned by Subscription.Recv when the subscriber fell
// behind and the oldest frames were discarded.
type LaggedError struct {
	Skipped uint64
}

// Error implements error.
func (e *LaggedError) Error() string {
	return fmt.Sprintf("subscriber lagged, %d frames skipped", e.Skipped)
}
