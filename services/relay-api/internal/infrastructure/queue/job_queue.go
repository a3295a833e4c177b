package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/pkg/relay/retry"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/metrics"
)

// JobQueue implements TaskQueue on the generation_jobs table.
type JobQueue struct {
	jobs        generation.Repository
	maxAttempts int
	backoff     retry.Policy
	now         func() time.Time
	log         zerolog.Logger
}

// NewJobQueue creates a queue that retries failed jobs up to maxAttempts.
func NewJobQueue(jobs generation.Repository, maxAttempts int, backoff retry.Policy, log zerolog.Logger) *JobQueue {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &JobQueue{
		jobs:        jobs,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		now:         time.Now,
		log:         log.With().Str("component", "job-queue").Logger(),
	}
}

// Dequeue claims the next available job.
func (q *JobQueue) Dequeue(ctx context.Context) (*Task, error) {
	job, err := q.jobs.ClaimNextJob(ctx, q.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("dequeue task: %w", err)
	}
	if job == nil {
		return nil, nil
	}
	return &Task{
		JobID:    job.ID,
		UserID:   job.UserID,
		Attempts: job.Attempts,
		QueuedAt: job.CreatedAt,
	}, nil
}

// MarkCompleted stores the result media id.
func (q *JobQueue) MarkCompleted(ctx context.Context, task *Task, resultMediaID string) error {
	if err := q.jobs.CompleteJob(ctx, task.JobID, resultMediaID, q.now().UTC()); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed requeues the job with a growing delay while attempts remain and
// the failure is not permanent; otherwise the job fails.
func (q *JobQueue) MarkFailed(ctx context.Context, task *Task, taskErr error) error {
	message := taskErr.Error()
	now := q.now().UTC()

	if task.Attempts < q.maxAttempts && !errors.Is(taskErr, generation.ErrPermanent) {
		delay := q.backoff.CalculateDelay(task.Attempts)
		q.log.Warn().
			Str("job_id", task.JobID).
			Int("attempt", task.Attempts).
			Dur("retry_in", delay).
			Err(taskErr).
			Msg("generation failed, requeueing")
		if err := q.jobs.RequeueJob(ctx, task.JobID, message, now.Add(delay)); err != nil {
			return fmt.Errorf("requeue: %w", err)
		}
		return nil
	}

	if err := q.jobs.FailJob(ctx, task.JobID, message, now); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// GetQueueDepth returns the number of queued jobs and publishes it as a gauge.
func (q *JobQueue) GetQueueDepth(ctx context.Context) (int64, error) {
	depth, err := q.jobs.CountQueuedJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("get queue depth: %w", err)
	}
	metrics.SetQueueDepth(depth)
	return depth, nil
}

var _ TaskQueue = (*JobQueue)(nil)
