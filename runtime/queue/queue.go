// Package queue provides the FIFO queues that decouple capture sources,
// relays and playback inside a live session.
//
// Bounded applies backpressure: Put suspends while the queue is full and never
// drops. Unbounded never blocks producers and can be drained in one call, which
// is how queued playback audio is discarded at a turn boundary.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by Put and Get once a queue has been closed and, for
// Get, emptied.
var ErrClosed = errors.New("queue closed")

// Bounded is a fixed-capacity FIFO backed by a buffered channel.
type Bounded[T any] struct {
	ch     chan T
	done   chan struct{}
	closer sync.Once
}

// NewBounded creates a queue holding at most capacity items. A capacity below
// one is treated as one.
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{
		ch:   make(chan T, capacity),
		done: make(chan struct{}),
	}
}

// Put appends v, suspending while the queue is full. It returns ctx.Err() if
// the context ends first, or ErrClosed if the queue is closed while waiting.
func (q *Bounded[T]) Put(ctx context.Context, v T) error {
	select {
	case <-q.done:
		return ErrClosed
	default:
	}

	select {
	case q.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrClosed
	}
}

// Get removes and returns the oldest item, suspending while the queue is empty.
func (q *Bounded[T]) Get(ctx context.Context) (T, error) {
	var zero T
	select {
	case v := <-q.ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-q.done:
		// Deliver anything still buffered before reporting closure.
		select {
		case v := <-q.ch:
			return v, nil
		default:
			return zero, ErrClosed
		}
	}
}

// Len returns the number of buffered items.
func (q *Bounded[T]) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Bounded[T]) Cap() int {
	return cap(q.ch)
}

// Close wakes all waiters. It is safe to call more than once.
func (q *Bounded[T]) Close() {
	q.closer.Do(func() { close(q.done) })
}

// Unbounded is a FIFO with no capacity limit. Put never blocks.
type Unbounded[T any] struct {
	mu     sync.Mutex
	items  []T
	notify chan struct{}
	closed bool
}

// NewUnbounded creates an empty unbounded queue.
func NewUnbounded[T any]() *Unbounded[T] {
	return &Unbounded[T]{
		notify: make(chan struct{}, 1),
	}
}

// Put appends v. It returns ErrClosed after Close.
func (q *Unbounded[T]) Put(v T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.mu.Unlock()

	q.signal()
	return nil
}

// Get removes and returns the oldest item, suspending until one is available.
func (q *Unbounded[T]) Get(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				q.signal()
			}
			return v, nil
		}
		if q.closed {
			q.mu.Unlock()
			q.signal()
			return zero, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Drain discards every pending item and returns how many were dropped.
func (q *Unbounded[T]) Drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}

// Len returns the number of pending items.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes waiting consumers. Items already
// queued can still be read.
func (q *Unbounded[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// signal performs a non-blocking wakeup of one waiting consumer.
func (q *Unbounded[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
