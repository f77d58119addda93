package queue

import (
	"sync"
)

// Queue is a thread-safe write-behind buffer keyed by K. Pushing a key that
// is already pending replaces its value but keeps its original position, so
// a drained batch holds each key once, in first-push order.
type Queue[K comparable, V any] struct {
	mu    sync.Mutex
	keys  []K
	items map[K]V
}

// New creates a new empty queue.
func New[K comparable, V any]() *Queue[K, V] {
	return &Queue[K, V]{
		items: make(map[K]V),
	}
}

// Push adds or replaces the pending value for key.
func (q *Queue[K, V]) Push(key K, value V) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.items[key]; !ok {
		q.keys = append(q.keys, key)
	}
	q.items[key] = value
}

// Get returns the pending value for key.
func (q *Queue[K, V]) Get(key K) (V, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, ok := q.items[key]
	return v, ok
}

// Empty returns true if the queue has no items.
func (q *Queue[K, V]) Empty() bool {
	return q.Len() == 0
}

// Len returns the number of pending keys.
func (q *Queue[K, V]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.keys)
}

// GetAndEmpty returns all pending values and clears the queue.
func (q *Queue[K, V]) GetAndEmpty() []V {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := make([]V, len(q.keys))
	for i, k := range q.keys {
		result[i] = q.items[k]
	}
	q.keys = q.keys[:0]
	clear(q.items)
	return result
}
