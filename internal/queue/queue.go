// Package queue is the in-process work queue feeding the jobs worker with
// submitted scrape runs.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrQueueClosed = errors.New("queue is closed")

// Task points at one persisted scrape run awaiting execution.
type Task struct {
	RunID      string
	Retailer   string
	EnqueuedAt time.Time
}

type Queue interface {
	Push(task *Task) error
	Pop(ctx context.Context) (*Task, error)
	Size() int
	Close() error
}

// InMemoryQueue is a FIFO queue with a context-aware blocking Pop. Blocked
// Pops wait on a broadcast channel that is replaced on every wake-up, so a
// cancelled Pop leaves no state behind for the others to trip over.
type InMemoryQueue struct {
	mu     sync.Mutex
	tasks  []*Task
	wake   chan struct{}
	closed bool
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		tasks: make([]*Task, 0),
		wake:  make(chan struct{}),
	}
}

func (q *InMemoryQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	if task.EnqueuedAt.IsZero() {
		task.EnqueuedAt = time.Now()
	}
	q.tasks = append(q.tasks, task)
	q.notify()

	return nil
}

// notify wakes every blocked Pop. Caller holds q.mu.
func (q *InMemoryQueue) notify() {
	close(q.wake)
	q.wake = make(chan struct{})
}

// Pop blocks until a task is available, the queue closes, or ctx ends.
// Already queued work drains before the closed error surfaces.
func (q *InMemoryQueue) Pop(ctx context.Context) (*Task, error) {
	for {
		q.mu.Lock()
		if len(q.tasks) > 0 {
			task := q.tasks[0]
			q.tasks = q.tasks[1:]
			q.mu.Unlock()
			return task, nil
		}
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wake:
		}
	}
}

func (q *InMemoryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.notify()

	return nil
}
