package queue

import (
	"sync"
)

// Task is a unit of work executed on the tick goroutine
type Task func()

// Inbox hands work from any goroutine over to the tick goroutine. Tasks run
// in submission order when the owner calls Drain.
type Inbox struct {
	mu      sync.Mutex
	pending []Task
	spare   []Task
}

// NewInbox creates an empty inbox
func NewInbox() *Inbox {
	return &Inbox{}
}

// Push enqueues a task. Safe for concurrent use.
func (q *Inbox) Push(t Task) {
	if t == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, t)
	q.mu.Unlock()
}

// Drain runs every task queued before the call and returns how many ran.
// Tasks pushed while draining wait for the next Drain.
func (q *Inbox) Drain() int {
	q.mu.Lock()
	batch := q.pending
	q.pending = q.spare[:0]
	q.mu.Unlock()

	for i, t := range batch {
		t()
		batch[i] = nil
	}

	q.mu.Lock()
	q.spare = batch[:0]
	q.mu.Unlock()
	return len(batch)
}

// Len returns the number of queued tasks
func (q *Inbox) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
