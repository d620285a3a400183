package transport

import (
	"container/list"
	"context"
	"sync"
)

// Submission is a frame waiting to be written.
type Submission struct {
	Frame      []byte
	Completion *Completion
}

// Resolve resolves the completion if present.
func (s Submission) Resolve(err error) {
	if s.Completion != nil {
		s.Completion.Resolve(err)
	}
}

// Queue is an unbounded FIFO of submissions with a single consumer.
// Pushing never blocks on the consumer.
type Queue struct {
	lock   sync.Mutex
	items  list.List
	notify chan struct{}
	closed bool
}

// NewQueue creates a Queue.
func NewQueue() *Queue {
	return &Queue{notify: make(chan struct{}, 1)}
}

// Push appends a submission. If the queue is closed, done is resolved
// with ErrClosed and ErrClosed is returned.
func (q *Queue) Push(frame []byte, done *Completion) error {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		if done != nil {
			done.Resolve(ErrClosed)
		}
		return ErrClosed
	}
	q.items.PushBack(Submission{Frame: frame, Completion: done})
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pop waits for the next submission in order.
// It returns ErrClosed once the queue is closed.
func (q *Queue) Pop(ctx context.Context) (Submission, error) {
	for {
		q.lock.Lock()
		if q.closed {
			q.lock.Unlock()
			return Submission{}, ErrClosed
		}
		if elm := q.items.Front(); elm != nil {
			q.items.Remove(elm)
			q.lock.Unlock()
			return elm.Value.(Submission), nil
		}
		q.lock.Unlock()
		select {
		case <-q.notify:
		case <-ctx.Done():
			return Submission{}, ctx.Err()
		}
	}
}

// Len returns the number of pending submissions.
func (q *Queue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return q.items.Len()
}

// Close rejects further submissions and drops all pending ones.
func (q *Queue) Close() {
	q.lock.Lock()
	defer q.lock.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for elm := q.items.Front(); elm != nil; elm = elm.Next() {
		if done := elm.Value.(Submission).Completion; done != nil {
			done.Drop()
		}
	}
	q.items.Init()
	close(q.notify)
}
