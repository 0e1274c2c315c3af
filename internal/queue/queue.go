// Package queue provides the bounded FIFO buffer between ingestion and the worker.
package queue

import (
	"context"
	"time"

	"pressbot/internal/model"
)

// Item is one unit of work: the persisted seen-article row plus its source.
type Item struct {
	Article model.SeenArticle
	Source  model.FeedSource
}

// Queue is a bounded FIFO of items awaiting processing. The scheduler
// is the producer, the worker the single consumer.
type Queue struct {
	ch chan Item
}

// New creates a queue with the given capacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Item, capacity)}
}

// Push enqueues one item, blocking while the queue is full.
func (q *Queue) Push(ctx context.Context, item Item) error {
	select {
	case q.ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPush enqueues without blocking; reports whether the item fit.
func (q *Queue) TryPush(item Item) bool {
	select {
	case q.ch <- item:
		return true
	default:
		return false
	}
}

// PopBatch collects up to max items. It blocks until at least one item
// arrives (or ctx is done), then keeps gathering until max is reached
// or wait elapses. FIFO order is preserved.
func (q *Queue) PopBatch(ctx context.Context, max int, wait time.Duration) []Item {
	if max <= 0 {
		return nil
	}

	var batch []Item
	select {
	case item := <-q.ch:
		batch = append(batch, item)
	case <-ctx.Done():
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for len(batch) < max {
		select {
		case item := <-q.ch:
			batch = append(batch, item)
		case <-timer.C:
			return batch
		case <-ctx.Done():
			return batch
		}
	}
	return batch
}

// Len returns the number of buffered items.
func (q *Queue) Len() int {
	return len(q.ch)
}
