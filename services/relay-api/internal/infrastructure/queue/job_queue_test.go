package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/pkg/relay/retry"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/status"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/queue"
	repo "github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/repository/relay"
)

func newQueue(t *testing.T, maxAttempts int) (*queue.JobQueue, *repo.MemoryRepository) {
	t.Helper()
	store := repo.NewMemoryRepository()
	backoff := retry.Policy{InitialDelay: 0, BackoffStrategy: retry.BackoffFixed}
	return queue.NewJobQueue(store, maxAttempts, backoff, zerolog.Nop()), store
}

func enqueue(t *testing.T, store *repo.MemoryRepository, id string) {
	t.Helper()
	now := time.Now().UTC().Add(-time.Second)
	job := &generation.Job{ID: id, UserID: "alice", Status: status.StatusQueued, Prompt: "p", AvailableAt: now, CreatedAt: now}
	if err := store.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("create job: %v", err)
	}
}

func TestJobQueue_RetriesThenFails(t *testing.T) {
	ctx := context.Background()
	q, store := newQueue(t, 2)
	enqueue(t, store, "job_1")

	task, err := q.Dequeue(ctx)
	if err != nil || task == nil {
		t.Fatalf("dequeue: %v %v", task, err)
	}
	if err := q.MarkFailed(ctx, task, fmt.Errorf("engine timeout")); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	job, _ := store.GetJob(ctx, "job_1")
	if job.Status != status.StatusQueued {
		t.Fatalf("first failure must requeue, got %s", job.Status)
	}

	task, _ = q.Dequeue(ctx)
	if task == nil || task.Attempts != 2 {
		t.Fatalf("expected second attempt, got %+v", task)
	}
	if err := q.MarkFailed(ctx, task, fmt.Errorf("engine timeout")); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	job, _ = store.GetJob(ctx, "job_1")
	if job.Status != status.StatusFailed || job.ErrorMessage != "engine timeout" {
		t.Fatalf("exhausted job must fail, got %+v", job)
	}
}

func TestJobQueue_PermanentErrorsFailImmediately(t *testing.T) {
	ctx := context.Background()
	q, store := newQueue(t, 5)
	enqueue(t, store, "job_1")

	task, _ := q.Dequeue(ctx)
	if err := q.MarkFailed(ctx, task, fmt.Errorf("%w: input gone", generation.ErrPermanent)); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	job, _ := store.GetJob(ctx, "job_1")
	if job.Status != status.StatusFailed {
		t.Fatalf("permanent failure must not be retried, got %s", job.Status)
	}
}

func TestJobQueue_CompleteAndDepth(t *testing.T) {
	ctx := context.Background()
	q, store := newQueue(t, 1)
	enqueue(t, store, "job_1")
	enqueue(t, store, "job_2")

	depth, _ := q.GetQueueDepth(ctx)
	if depth != 2 {
		t.Fatalf("expected depth 2, got %d", depth)
	}

	task, _ := q.Dequeue(ctx)
	if err := q.MarkCompleted(ctx, task, "media_1"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	job, _ := store.GetJob(ctx, task.JobID)
	if !job.Succeeded() {
		t.Fatalf("expected completed job, got %+v", job)
	}

	if err := q.MarkCompleted(ctx, task, "media_1"); !errors.Is(err, status.ErrInvalidTransition) {
		t.Fatalf("completing twice must fail, got %v", err)
	}
}
