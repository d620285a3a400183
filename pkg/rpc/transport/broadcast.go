package transport

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultSubscriberBuffer is the number of frames buffered per subscriber
// before the oldest ones are discarded.
const DefaultSubscriberBuffer = 32

// Broadcaster fans frames out to all current subscribers.
// The producer only publishes; subscriptions own their membership and
// must be closed by whoever created them.
type Broadcaster struct {
	bufSize int
	subs    map[*Subscription]struct{}
	closed  bool
	lock    sync.Mutex
}

// NewBroadcaster creates a Broadcaster buffering up to bufSize frames
// per subscriber.
func NewBroadcaster(bufSize int) *Broadcaster {
	if bufSize <= 0 {
		bufSize = DefaultSubscriberBuffer
	}
	return &Broadcaster{
		bufSize: bufSize,
		subs:    make(map[*Subscription]struct{}),
	}
}

// Subscribe creates a subscription, nil if the broadcaster is closed.
func (b *Broadcaster) Subscribe() *Subscription {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return nil
	}
	s := &Subscription{b: b, ch: make(chan []byte, b.bufSize)}
	b.subs[s] = struct{}{}
	return s
}

// Send delivers frame to every subscriber and returns how many received it.
// No subscriber is not an error. Send never blocks on slow subscribers.
// The frame is shared and must not be modified afterwards.
func (b *Broadcaster) Send(frame []byte) int {
	b.lock.Lock()
	defer b.lock.Unlock()
	for s := range b.subs {
		s.deliver(frame)
	}
	return len(b.subs)
}

// Subscribers returns the number of live subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subs)
}

// Close ends all subscriptions. Frames already buffered can still be
// received; afterwards Recv returns ErrClosed. Subscribe returns nil.
func (b *Broadcaster) Close() {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
}

// CloseIfIdle closes the broadcaster only if it has no live subscriptions.
// Otherwise it's left open and the number of live subscriptions is returned.
func (b *Broadcaster) CloseIfIdle() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	if n := len(b.subs); n > 0 {
		return n
	}
	b.closed = true
	return 0
}

// Subscription receives frames from a Broadcaster in arrival order.
type Subscription struct {
	b      *Broadcaster
	ch     chan []byte
	lagged atomic.Uint64
}

// must be called with b.lock held.
func (s *Subscription) deliver(frame []byte) {
	for {
		select {
		case s.ch <- frame:
			return
		default:
		}
		select {
		case <-s.ch:
			s.lagged.Add(1)
		default:
		}
	}
}

// Recv waits for the next frame. It returns a *LaggedError once after
// frames were discarded, and ErrClosed when the subscription ended.
func (s *Subscription) Recv(ctx context.Context) ([]byte, error) {
	if n := s.lagged.Swap(0); n > 0 {
		return nil, &LaggedError{Skipped: n}
	}
	select {
	case frame, ok := <-s.ch:
		if !ok {
			return nil, ErrClosed
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	b := s.b
	b.lock.Lock()
	defer b.lock.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}
