package outbox

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("outbox: queue is closed")

// Queue is an unbounded FIFO with many producers and a single consumer.
// Push never blocks. The consumer waits on Ready and then takes everything
// queued so far with Drain.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool
	ready  chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{
		ready: make(chan struct{}, 1),
	}
}

// Push appends item. It fails only after Close.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Ready fires at least once after one or more Pushes.
func (q *Queue[T]) Ready() <-chan struct{} {
	return q.ready
}

// Drain removes and returns every queued item in push order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close rejects further Pushes. Items already queued can still be drained.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}
