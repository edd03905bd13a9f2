// Package client is the intake side of the engine: it accepts operations
// over RPC, keeps them in a fee-ordered pool, and assembles batches for
// submission under the configured bundler identity.
package client

import (
	"sync"

	"github.com/pkg/errors"
)

// Queue is a keyed FIFO. The client stages the operations of the batch being
// submitted here so a failed submission can be unwound op by op.
type Queue[T any] struct {
	items []T
	keys  map[string]int
	mu    sync.Mutex
}

func NewQueue[T any](capacity uint) *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0, capacity),
		keys:  make(map[string]int),
	}
}

// EnqueueTail appends an item under key.
func (q *Queue[T]) EnqueueTail(key string, item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, item)
	q.keys[key] = len(q.items) - 1
}

// Dequeue pops the head, reporting false on an empty queue.
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	for key, idx := range q.keys {
		if idx == 0 {
			delete(q.keys, key)
		} else {
			q.keys[key] = idx - 1
		}
	}
	return item, true
}

// Contains reports whether key is queued.
func (q *Queue[T]) Contains(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, found := q.keys[key]
	return found
}

// Delete removes the item at index, shifting later entries down.
func (q *Queue[T]) Delete(index int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if index < 0 || index >= len(q.items) {
		return errors.New("index out of range")
	}
	q.items = append(q.items[:index], q.items[index+1:]...)
	for key, idx := range q.keys {
		if idx > index {
			q.keys[key] = idx - 1
		} else if idx == index {
			delete(q.keys, key)
		}
	}
	return nil
}

// Size returns the number of queued items.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}

// ToSlice copies the queue contents in order.
func (q *Queue[T]) ToSlice() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]T(nil), q.items...)
}

// Reset drops all items.
func (q *Queue[T]) Reset(capacity uint) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = make([]T, 0, capacity)
	q.keys = make(map[string]int)
}
