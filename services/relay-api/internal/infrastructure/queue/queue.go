package queue

import (
	"context"
	"time"
)

// Task represents a claimed generation job.
type Task struct {
	JobID    string
	UserID   string
	Attempts int
	QueuedAt time.Time
}

// TaskQueue defines the interface for task queue operations.
type TaskQueue interface {
	// Dequeue claims the next available task, or returns nil when idle
	Dequeue(ctx context.Context) (*Task, error)

	// MarkCompleted records the task's output
	MarkCompleted(ctx context.Context, task *Task, resultMediaID string) error

	// MarkFailed requeues the task with backoff, or fails it for good
	MarkFailed(ctx context.Context, task *Task, err error) error

	// GetQueueDepth returns the number of queued tasks
	GetQueueDepth(ctx context.Context) (int64, error)
}
