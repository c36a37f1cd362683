// Package queue provides the FIFO queues used to hand work between goroutines.
// Queues are unbounded: Push never blocks and memory grows with the backlog.
package queue

import (
	"context"
	"sync"

	"github.com/eapache/queue"
)

type Queue[T any] struct {
	mu    sync.Mutex
	items *queue.Queue

	// holds a token while items are available
	ready chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{
		items: queue.New(),
		ready: make(chan struct{}, 1),
	}
}

// Push appends item at the end of the queue.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items.Add(item)
	q.mu.Unlock()

	q.signal()
}

// TryPop removes the first item without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.pop()
}

// Pop removes the first item, waiting for one if the queue is empty.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		q.mu.Lock()
		item, ok := q.pop()
		q.mu.Unlock()

		if ok {
			return item, nil
		}

		select {
		case <-ctx.Done():
			var zero T

			return zero, ctx.Err()
		case <-q.ready:
		}
	}
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.items.Length()
}

// pop must be called with the lock held.
func (q *Queue[T]) pop() (T, bool) {
	if q.items.Length() == 0 {
		var zero T

		return zero, false
	}

	item := q.items.Remove().(T)

	if q.items.Length() > 0 {
		q.signal()
	}

	return item, true
}

func (q *Queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
