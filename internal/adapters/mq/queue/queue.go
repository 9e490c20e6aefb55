// Package queue is the in-process outbox for domain events.
//
// Request handlers enqueue without blocking; when the outbox is full the
// event is dropped and counted rather than slowing the request down.
package queue

import (
	"context"
	"sync"

	"github.com/softai/coursecore/internal/domain/model"
	"github.com/softai/coursecore/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Event is the payload flowing through the queue.
type Event = model.Event

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an event. It never blocks; ErrFull and ErrClosed report
	// an event that was not accepted.
	Enqueue(ctx context.Context, e Event) error
	// Dequeue returns the channel events are delivered on. It is closed
	// once the queue is closed and drained.
	Dequeue() <-chan Event
	Len() int
	Close() error
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	events   chan Event
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.events = make(chan Event, q.capacity)
	metrics.UpdateEventQueueSize(0)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam: Event passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordEventDropped("closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordEventDropped("context_cancelled")
		return err
	}

	select {
	case q.events <- e:
		metrics.UpdateEventQueueSize(len(q.events))
		return nil
	default:
		metrics.RecordEventDropped("queue_full")
		return ErrFull
	}
}

func (q *InMemoryQueue) Dequeue() <-chan Event {
	return q.events
}

// Len returns the current number of buffered events.
func (q *InMemoryQueue) Len() int {
	n := len(q.events)
	metrics.UpdateEventQueueSize(n)
	return n
}

// Close stops accepting events. Buffered events remain readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.events)
	q.closed = true
	return nil
}

// IsClosed reports whether Close has been called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
