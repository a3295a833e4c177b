// Package poller watches remote generation jobs until they reach a terminal state.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/pkg/relay/relayerr"
	"github.com/janhq/jan-relay/pkg/relay/retry"
)

// Default cadences.
const (
	DefaultInterval      = 3 * time.Second
	DefaultDraftInterval = 4 * time.Second
	DefaultMaxInterval   = 15 * time.Second
)

// JobSource reads job status. *api.Client satisfies it.
type JobSource interface {
	GetJob(ctx context.Context, jobID string) (*api.Job, error)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Update is one observation of a watched job.
type Update struct {
	JobID           string
	Status          api.JobStatus
	ResultReference string
	ErrorMessage    string
	// Err is set when watching stopped because of a transport or server error.
	Err   error
	Polls int
}

// Terminal reports whether this is the last update of the sequence.
func (u Update) Terminal() bool {
	return u.Status.IsTerminal()
}

// Succeeded reports whether the job completed with a result.
func (u Update) Succeeded() bool {
	return u.Status == api.JobCompleted
}

// Config tunes a Poller.
type Config struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Sleep       SleepFunc
	Logger      zerolog.Logger
}

// Poller turns a job handle into a finite stream of updates.
type Poller struct {
	source JobSource
	policy retry.Policy
	sleep  SleepFunc
	log    zerolog.Logger
}

// New builds a Poller. Zero config values fall back to the defaults.
func New(source JobSource, cfg Config) *Poller {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ceiling := cfg.MaxInterval
	if ceiling <= 0 {
		ceiling = DefaultMaxInterval
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Poller{
		source: source,
		policy: retry.PollPolicy(interval, ceiling),
		sleep:  sleep,
		log:    cfg.Logger.With().Str("component", "job-poller").Logger(),
	}
}

// Watch polls jobID until it completes or fails and streams what it sees.
//
// The channel carries a progress update whenever the observed status changes and
// exactly one terminal update (completed or failed) before it closes. Throttling
// responses never reach the channel; they stretch the poll delay instead.
// Cancelling ctx closes the channel without a terminal update. The remote job
// keeps running.
func (p *Poller) Watch(ctx context.Context, jobID string) <-chan Update {
	out := make(chan Update, 1)
	go func() {
		defer close(out)
		p.run(ctx, jobID, out)
	}()
	return out
}

// Wait drains Watch and returns the terminal update.
func (p *Poller) Wait(ctx context.Context, jobID string) (Update, error) {
	var last Update
	for update := range p.Watch(ctx, jobID) {
		last = update
	}
	if !last.Terminal() {
		if err := ctx.Err(); err != nil {
			return last, err
		}
		return last, context.Canceled
	}
	return last, nil
}

func (p *Poller) run(ctx context.Context, jobID string, out chan<- Update) {
	log := p.log.With().Str("job_id", jobID).Logger()
	delay := p.policy.CalculateDelay(1)
	var lastStatus api.JobStatus

	for polls := 1; ; polls++ {
		job, err := p.source.GetJob(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if relayerr.IsThrottled(err) {
				delay = p.policy.Next(delay)
				log.Debug().Dur("delay", delay).Int("polls", polls).Msg("job status throttled, backing off")
				if p.sleep(ctx, delay) != nil {
					return
				}
				continue
			}
			log.Warn().Err(err).Int("polls", polls).Msg("job status request failed")
			emit(ctx, out, Update{
				JobID:        jobID,
				Status:       api.JobFailed,
				ErrorMessage: "generation status unavailable",
				Err:          watchFailure(err),
				Polls:        polls,
			})
			return
		}

		update := Update{
			JobID:           jobID,
			Status:          job.Status,
			ResultReference: job.ResultURL,
			ErrorMessage:    job.ErrorMessage,
			Polls:           polls,
		}

		if update.Terminal() {
			log.Debug().Str("status", string(job.Status)).Int("polls", polls).Msg("job reached terminal state")
			emit(ctx, out, update)
			return
		}

		if job.Status != lastStatus {
			lastStatus = job.Status
			if !emit(ctx, out, update) {
				return
			}
		}

		if p.sleep(ctx, delay) != nil {
			return
		}
	}
}

func emit(ctx context.Context, out chan<- Update, update Update) bool {
	select {
	case out <- update:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// watchFailure reports any non-throttle poll error as generic, keeping the
// status and request id for the diagnostic.
func watchFailure(err error) *relayerr.Error {
	failure := &relayerr.Error{
		Kind:    relayerr.KindGeneric,
		Op:      "watch job",
		Message: "generation status unavailable",
		Err:     err,
	}
	var cause *relayerr.Error
	if errors.As(err, &cause) {
		failure.Status = cause.Status
		failure.Code = cause.Code
		failure.RequestID = cause.RequestID
	}
	return failure
}
