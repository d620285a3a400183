// Package transport defines the capability shared by frame transports:
// subscribe to inbound frames and submit outbound frames.
package transport

import (
	"context"
	"errors"
)

// Transport exchanges frames with a device.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Subscribe returns a subscription receiving every frame delivered
	// from now on, or nil if no frame can ever be received again.
	Subscribe() *Subscription
	// Submit enqueues a frame for transmission. If done is not nil it is
	// resolved once the frame is handed to the stream, or with an error if
	// it never will be. Submit doesn't wait for the physical write.
	Submit(frame []byte, done *Completion) error
}

// Read subscribes and waits for exactly one frame.
func Read(ctx context.Context, t Transport) ([]byte, error) {
	sub := t.Subscribe()
	if sub == nil {
		return nil, ErrClosed
	}
	defer sub.Close()
	for {
		frame, err := sub.Recv(ctx)
		var lagged *LaggedError
		if errors.As(err, &lagged) {
			continue
		}
		return frame, err
	}
}

// Write submits a frame and waits until it is written.
// It returns the frame on success.
func Write(ctx context.Context, t Transport, frame []byte) ([]byte, error) {
	done := NewCompletion()
	if err := t.Submit(frame, done); err != nil {
		return nil, err
	}
	if err := done.Wait(ctx); err != nil {
		return nil, err
	}
	return frame, nil
}
