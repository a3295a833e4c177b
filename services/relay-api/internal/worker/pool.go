package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/observability"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/queue"
)

// Pool manages multiple background workers.
type Pool struct {
	workers      []*Worker
	queue        queue.TaskQueue
	executor     Executor
	instrumenter *observability.JobInstrumenter
	cfg          Config
	log          zerolog.Logger
	wg           sync.WaitGroup
}

// Config contains worker pool configuration.
type Config struct {
	WorkerCount  int
	PollInterval time.Duration
	TaskTimeout  time.Duration
	StopTimeout  time.Duration
}

// NewPool creates a new worker pool. instrumenter may be nil.
func NewPool(
	queue queue.TaskQueue,
	executor Executor,
	instrumenter *observability.JobInstrumenter,
	cfg Config,
	log zerolog.Logger,
) *Pool {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 30 * time.Second
	}
	return &Pool{
		queue:        queue,
		executor:     executor,
		instrumenter: instrumenter,
		cfg:          cfg,
		log:          log.With().Str("component", "worker-pool").Logger(),
	}
}

// Start initializes and starts all workers.
func (p *Pool) Start(ctx context.Context) error {
	p.log.Info().Int("worker_count", p.cfg.WorkerCount).Dur("poll_interval", p.cfg.PollInterval).Msg("starting worker pool")

	p.workers = make([]*Worker, p.cfg.WorkerCount)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		worker := NewWorker(i+1, p.queue, p.executor, p.instrumenter, p.cfg.PollInterval, p.cfg.TaskTimeout, p.log)
		p.workers[i] = worker

		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Start(ctx)
		}(worker)
	}

	p.log.Info().Msg("worker pool started")
	return nil
}

// Stop gracefully shuts down all workers.
func (p *Pool) Stop() {
	p.log.Info().Msg("stopping worker pool")

	for _, worker := range p.workers {
		worker.Stop()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("all workers stopped gracefully")
	case <-time.After(p.cfg.StopTimeout):
		p.log.Warn().Msg("worker pool shutdown timed out")
	}
}

// GetQueueDepth returns the current queue depth.
func (p *Pool) GetQueueDepth(ctx context.Context) (int64, error) {
	return p.queue.GetQueueDepth(ctx)
}
