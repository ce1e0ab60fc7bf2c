package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/leadflow/lead-import/internal/domain/lead"
	"github.com/oklog/ulid/v2"
)

const defaultMaxAttempts = 5

type taskState string

const (
	taskQueued  taskState = "queued"
	taskRunning taskState = "running"
	taskDone    taskState = "done"
	taskFailed  taskState = "failed"
)

type taskEntry struct {
	task      domain.SliceTask
	state     taskState
	leaseTill time.Time
	lastError string
}

// TaskQueue is an in-process continuation queue with the same lease
// semantics as the Postgres queue.
type TaskQueue struct {
	mu    sync.Mutex
	tasks []*taskEntry
	now   func() time.Time
}

func NewTaskQueue() *TaskQueue {
	return &TaskQueue{now: time.Now}
}

func (q *TaskQueue) Enqueue(ctx context.Context, task domain.SliceTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task.ID = ulid.Make().String()
	task.Attempts = 0
	if task.MaxAttempts <= 0 {
		task.MaxAttempts = defaultMaxAttempts
	}
	q.tasks = append(q.tasks, &taskEntry{task: task, state: taskQueued})
	return nil
}

func (q *TaskQueue) ClaimNext(ctx context.Context, leaseDuration time.Duration) (*domain.SliceTask, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for _, e := range q.tasks {
		// An expired lease is reclaimed even past max attempts so the worker
		// can settle the job.
		claimable := (e.state == taskQueued && e.task.Attempts < e.task.MaxAttempts) ||
			(e.state == taskRunning && now.After(e.leaseTill))
		if !claimable {
			continue
		}
		e.state = taskRunning
		e.leaseTill = now.Add(leaseDuration)
		e.task.Attempts++
		task := e.task
		return &task, nil
	}
	return nil, nil
}

func (q *TaskQueue) Heartbeat(ctx context.Context, taskID string, leaseDuration time.Duration) error {
	return q.update(taskID, func(e *taskEntry) {
		if e.state == taskRunning {
			e.leaseTill = q.now().Add(leaseDuration)
		}
	})
}

func (q *TaskQueue) Complete(ctx context.Context, taskID string) error {
	return q.update(taskID, func(e *taskEntry) { e.state = taskDone })
}

func (q *TaskQueue) Requeue(ctx context.Context, taskID string, reason string) error {
	return q.update(taskID, func(e *taskEntry) {
		e.state = taskQueued
		e.lastError = reason
	})
}

func (q *TaskQueue) Fail(ctx context.Context, taskID string, reason string) error {
	return q.update(taskID, func(e *taskEntry) {
		e.state = taskFailed
		e.lastError = reason
	})
}

// Pending reports how many tasks are waiting to be claimed.
func (q *TaskQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, e := range q.tasks {
		if e.state == taskQueued {
			n++
		}
	}
	return n
}

func (q *TaskQueue) update(taskID string, fn func(e *taskEntry)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.tasks {
		if e.task.ID == taskID {
			fn(e)
			return nil
		}
	}
	return nil
}
