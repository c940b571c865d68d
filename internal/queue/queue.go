// Package queue buffers rows between the storage backends and their
// database writer.
package queue

import "sync"

// Batch is a FIFO of pending rows handed out in bounded batches. It is safe
// for concurrent use.
type Batch[T any] struct {
	mu    sync.Mutex
	items []T
	size  int
}

// NewBatch creates a queue whose Take returns at most size items. A size of
// zero or less hands out everything at once.
func NewBatch[T any](size int) *Batch[T] {
	return &Batch[T]{size: size}
}

// Push appends items.
func (q *Batch[T]) Push(items ...T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
}

// Take removes and returns the oldest batch, nil when the queue is empty.
func (q *Batch[T]) Take() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	n := len(q.items)
	if q.size > 0 && n > q.size {
		n = q.size
	}
	batch := make([]T, n)
	copy(batch, q.items)
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return batch
}

// Requeue puts a batch that failed to write back at the front, ahead of
// anything pushed since it was taken.
func (q *Batch[T]) Requeue(batch []T) {
	if len(batch) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(append(make([]T, 0, len(batch)+len(q.items)), batch...), q.items...)
}

// Len returns the number of pending items.
func (q *Batch[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
