package transport

import (
	"context"
	"sync"
)

// Completion is a single-use acknowledgment of a submitted frame.
type Completion struct {
	ch   chan error
	once sync.Once
}

// NewCompletion creates a Completion.
func NewCompletion() *Completion {
	return &Completion{ch: make(chan error, 1)}
}

// Resolve delivers the outcome of the write, nil for success.
// Only the first Resolve or Drop takes effect.
func (c *Completion) Resolve(err error) {
	c.once.Do(func() {
		c.ch <- err
		close(c.ch)
	})
}

// Drop abandons the completion without an outcome.
// The waiter observes ErrBrokenPipe.
func (c *Completion) Drop() {
	c.once.Do(func() {
		close(c.ch)
	})
}

// Wait blocks until the completion is resolved or dropped.
// The outcome can be consumed only once.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case err, ok := <-c.ch:
		if !ok {
			return ErrBrokenPipe
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
