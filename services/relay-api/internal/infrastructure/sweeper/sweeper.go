package sweeper

import (
	"context"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/metrics"
	"github.com/janhq/jan-relay/services/relay-api/internal/utils/platformerrors"
)

const sweepTimeout = time.Minute

// StaleJobFailer fails jobs stuck in processing.
type StaleJobFailer interface {
	FailStaleJobs(ctx context.Context, cutoff time.Time, message string) (int64, error)
}

// DraftSweeper removes abandoned drafts.
type DraftSweeper interface {
	SweepDrafts(ctx context.Context, ttl time.Duration) (int64, error)
}

// Config controls what is swept and when.
type Config struct {
	Schedule      string
	JobStaleAfter time.Duration
	DraftTTL      time.Duration
}

// Sweeper periodically fails jobs whose worker died and removes drafts
// nobody published.
type Sweeper struct {
	ctab   *crontab.Crontab
	jobs   StaleJobFailer
	drafts DraftSweeper
	cfg    Config
	now    func() time.Time
	log    zerolog.Logger
}

// New creates a sweeper.
func New(jobs StaleJobFailer, drafts DraftSweeper, cfg Config, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		ctab:   crontab.New(),
		jobs:   jobs,
		drafts: drafts,
		cfg:    cfg,
		now:    time.Now,
		log:    log.With().Str("component", "sweeper").Logger(),
	}
}

// Run sweeps once, then on every schedule tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.SweepOnce(ctx)

	if err := s.ctab.AddJob(s.cfg.Schedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		s.SweepOnce(jobCtx)
	}); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerInfrastructure, err, "failed to add sweep job")
	}
	s.log.Info().Str("schedule", s.cfg.Schedule).Msg("sweeper scheduled")

	<-ctx.Done()
	s.ctab.Shutdown()
	return nil
}

// SweepOnce runs both sweeps.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	if s.cfg.JobStaleAfter > 0 {
		cutoff := s.now().UTC().Add(-s.cfg.JobStaleAfter)
		n, err := s.jobs.FailStaleJobs(ctx, cutoff, "generation timed out")
		if err != nil {
			s.log.Error().Err(err).Msg("failed to sweep stale jobs")
		} else if n > 0 {
			metrics.RecordSwept("job", n)
			s.log.Warn().Int64("count", n).Msg("failed stale generation jobs")
		}
	}

	if s.cfg.DraftTTL > 0 {
		n, err := s.drafts.SweepDrafts(ctx, s.cfg.DraftTTL)
		if err != nil {
			s.log.Error().Err(err).Msg("failed to sweep drafts")
		} else if n > 0 {
			metrics.RecordSwept("draft", n)
			s.log.Info().Int64("count", n).Msg("removed expired drafts")
		}
	}
}
