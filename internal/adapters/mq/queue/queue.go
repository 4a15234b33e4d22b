// Package queue defines the contract for enqueuing and consuming fan-out jobs.
//
// The in-memory implementation is a bounded FIFO backed by a buffered
// channel. Items are delivered in enqueue order to whoever reads Dequeue.
package queue

import (
	"context"
	"sync"

	"github.com/okian/scorecast/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1024
	defaultName          = "default"
)

// Queue provides bounded, context-aware enqueue and channel-based dequeue.
type Queue[T any] interface {
	// EnqueueWait adds an item, waiting for free space until ctx is done.
	EnqueueWait(ctx context.Context, item T) error

	// Dequeue returns a channel that will receive items as they become available.
	// The channel is closed when the queue is closed and drained.
	Dequeue() <-chan T

	// Len returns the current number of queued items.
	Len() int

	// Capacity returns the maximum number of queued items.
	Capacity() int

	// Close gracefully shuts down the queue.
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue[T any] struct {
	items    chan T
	capacity int
	name     string

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	cfg := settings{capacity: defaultQueueCapacity, name: defaultName}
	for _, opt := range opts {
		opt(&cfg)
	}

	q := &InMemoryQueue[T]{
		items:    make(chan T, cfg.capacity),
		capacity: cfg.capacity,
		name:     cfg.name,
	}
	metrics.UpdateFanoutQueueSize(q.name, 0)
	return q
}

// EnqueueWait adds an item, blocking while the queue is full until ctx is done.
func (q *InMemoryQueue[T]) EnqueueWait(ctx context.Context, item T) error {
	// Holding the read lock while blocked keeps Close from closing the
	// channel under a pending send; Close waits for us instead.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	select {
	case q.items <- item:
		metrics.UpdateFanoutQueueSize(q.name, len(q.items))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue[T]) Dequeue() <-chan T {
	return q.items
}

// Len returns the current number of queued items.
func (q *InMemoryQueue[T]) Len() int {
	size := len(q.items)
	metrics.UpdateFanoutQueueSize(q.name, size)
	return size
}

// Capacity returns the maximum number of queued items.
func (q *InMemoryQueue[T]) Capacity() int {
	return q.capacity
}

// Close gracefully shuts down the queue. Items already queued stay readable.
func (q *InMemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil // already closed
	}

	close(q.items)
	q.closed = true
	return nil
}
