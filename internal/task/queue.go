package task

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skybox-dev/skybox/internal/logging"
)

// Task statuses.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Task is one unit of background work. Fields are snapshots taken under
// the queue lock; callers receive copies.
type Task struct {
	ID          string
	Label       string
	Status      string
	Err         error
	StartedAt   time.Time
	CompletedAt time.Time
}

// Settled reports whether the task has finished, successfully or not.
func (t Task) Settled() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// Queue runs enqueued functions on their own goroutines and tracks
// their outcomes. The zero value is not usable; call NewQueue.
type Queue struct {
	mu           sync.Mutex
	tasks        []*Task
	pending      int
	settled      chan struct{}
	shuttingDown bool
}

// NewQueue creates an empty task queue.
func NewQueue() *Queue {
	return &Queue{settled: make(chan struct{})}
}

// Enqueue registers the task and starts fn on its own goroutine without
// waiting for it. The returned snapshot reflects the task at
// registration time.
func (q *Queue) Enqueue(label string, fn func() error) Task {
	t := &Task{
		ID:        uuid.NewString(),
		Label:     label,
		Status:    StatusPending,
		StartedAt: time.Now(),
	}

	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.pending++
	q.mu.Unlock()

	logging.Debug("background task enqueued", "id", t.ID, "label", label)

	go func() {
		q.mu.Lock()
		t.Status = StatusRunning
		q.mu.Unlock()

		err := fn()

		q.mu.Lock()
		if err != nil {
			t.Status = StatusFailed
			t.Err = err
		} else {
			t.Status = StatusCompleted
		}
		t.CompletedAt = time.Now()
		q.pending--
		close(q.settled)
		q.settled = make(chan struct{})
		q.mu.Unlock()

		logging.Debug("background task settled", "id", t.ID, "label", label, "status", t.Status)
	}()

	return *t
}

// Pending returns the number of tasks that have not settled yet.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Tasks returns a snapshot of every task enqueued so far, in
// registration order.
func (q *Queue) Tasks() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Task, len(q.tasks))
	for i, t := range q.tasks {
		out[i] = *t
	}
	return out
}

// WaitAll blocks until every enqueued task has settled or the context
// is canceled. Tasks enqueued while waiting are waited for too.
func (q *Queue) WaitAll(ctx context.Context) error {
	for {
		q.mu.Lock()
		if q.pending == 0 {
			q.mu.Unlock()
			return nil
		}
		// Subscribe while holding the lock, then re-check on wake:
		// a task settling between the counter check and the channel
		// grab would otherwise be missed forever.
		ch := q.settled
		q.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// SetShuttingDown marks the process as draining so callers can render
// in-flight work differently.
func (q *Queue) SetShuttingDown(v bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.shuttingDown = v
}

// ShuttingDown reports whether a drain is in progress.
func (q *Queue) ShuttingDown() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shuttingDown
}
