package rendezvous

import (
	"context"
	"sync"
	"time"
)

// PendingAction is a browser action awaiting dispatch to the extension.
// Created by a tool adapter immediately before it blocks; consumed
// exactly once by the dispatcher; never mutated after creation.
type PendingAction struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"`
	Parameters map[string]any `json:"parameters"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Queue is a FIFO of pending actions shared between worker goroutines
// (producers) and the per-connection dispatcher (consumer). Push never
// blocks; Next blocks until an item arrives or the context is done.
type Queue struct {
	mu    sync.Mutex
	items []*PendingAction
	wake  chan struct{}
}

// NewQueue creates an empty action queue.
func NewQueue() *Queue {
	return &Queue{
		wake: make(chan struct{}, 1),
	}
}

// Push appends an action to the queue in submission order.
func (q *Queue) Push(action *PendingAction) {
	q.mu.Lock()
	q.items = append(q.items, action)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Next removes and returns the oldest pending action, blocking until
// one is available or the context is cancelled.
func (q *Queue) Next(ctx context.Context) (*PendingAction, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			action := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return action, nil
		}
		q.mu.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the current queue depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
