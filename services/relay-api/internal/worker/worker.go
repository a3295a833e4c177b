package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/metrics"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/observability"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/queue"
)

// Executor runs one claimed generation job and returns the stored media id.
type Executor interface {
	Execute(ctx context.Context, jobID string) (string, error)
}

// Worker processes generation jobs from the queue.
type Worker struct {
	id           int
	queue        queue.TaskQueue
	executor     Executor
	instrumenter *observability.JobInstrumenter
	pollInterval time.Duration
	taskTimeout  time.Duration
	log          zerolog.Logger
	stopChan     chan struct{}
	stopOnce     sync.Once
}

// NewWorker creates a new background worker.
func NewWorker(
	id int,
	queue queue.TaskQueue,
	executor Executor,
	instrumenter *observability.JobInstrumenter,
	pollInterval time.Duration,
	taskTimeout time.Duration,
	log zerolog.Logger,
) *Worker {
	return &Worker{
		id:           id,
		queue:        queue,
		executor:     executor,
		instrumenter: instrumenter,
		pollInterval: pollInterval,
		taskTimeout:  taskTimeout,
		log:          log.With().Int("worker_id", id).Str("component", "worker").Logger(),
		stopChan:     make(chan struct{}),
	}
}

// Start polls the queue until ctx is done or Stop is called. The queue is
// drained before waiting for the next tick.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info().Msg("worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker stopped by context")
			return
		case <-w.stopChan:
			w.log.Info().Msg("worker stopped")
			return
		case <-ticker.C:
			for w.processNextTask(ctx) {
				select {
				case <-ctx.Done():
					return
				case <-w.stopChan:
					return
				default:
				}
			}
		}
	}
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

// processNextTask reports whether a task was handled.
func (w *Worker) processNextTask(ctx context.Context) bool {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to dequeue task")
		return false
	}
	if task == nil {
		return false
	}

	w.log.Info().
		Str("job_id", task.JobID).
		Str("user_id", task.UserID).
		Int("attempt", task.Attempts).
		Msg("processing generation job")

	start := time.Now()
	var mediaID string
	run := func(ctx context.Context) error {
		taskCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
		defer cancel()
		var err error
		mediaID, err = w.executor.Execute(taskCtx, task.JobID)
		return err
	}
	if w.instrumenter != nil {
		err = w.instrumenter.InstrumentJob(ctx, task.JobID, task.Attempts, run)
	} else {
		err = run(ctx)
	}

	if err != nil {
		metrics.RecordJob("error", time.Since(start))
		w.log.Error().Err(err).Str("job_id", task.JobID).Msg("generation job failed")
		if markErr := w.queue.MarkFailed(ctx, task, err); markErr != nil {
			w.log.Error().Err(markErr).Str("job_id", task.JobID).Msg("failed to mark task as failed")
		}
		return true
	}

	if err := w.queue.MarkCompleted(ctx, task, mediaID); err != nil {
		metrics.RecordJob("error", time.Since(start))
		w.log.Error().Err(err).Str("job_id", task.JobID).Msg("failed to mark task as completed")
		return true
	}
	metrics.RecordJob("success", time.Since(start))
	w.log.Info().Str("job_id", task.JobID).Str("media_id", mediaID).Msg("generation job completed")
	return true
}
