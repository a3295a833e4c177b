package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/status"
	"github.com/janhq/jan-relay/services/relay-api/internal/utils/idgen"
)

// Service owns the generation job lifecycle up to producing media. Claiming,
// retrying and completing jobs is driven by the worker queue.
type Service struct {
	jobs   Repository
	engine Engine
	media  MediaStore
	now    func() time.Time
	log    zerolog.Logger
}

// NewService wires dependencies.
func NewService(jobs Repository, engine Engine, media MediaStore, log zerolog.Logger) *Service {
	return &Service{
		jobs:   jobs,
		engine: engine,
		media:  media,
		now:    time.Now,
		log:    log.With().Str("component", "generation-service").Logger(),
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit queues a new job.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*Job, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, fmt.Errorf("%w: prompt is required", ErrPermanent)
	}

	now := s.now().UTC()
	job := &Job{
		ID:           idgen.New(idgen.PrefixJob),
		UserID:       in.UserID,
		Kind:         KindPanel,
		Status:       status.StatusQueued,
		Prompt:       prompt,
		SystemPrompt: strings.TrimSpace(in.SystemPrompt),
		InputMediaID: in.InputMediaID,
		AvailableAt:  now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.log.Debug().
		Str("job_id", job.ID).
		Str("user_id", job.UserID).
		Bool("conditioned", job.InputMediaID != "").
		Msg("generation job queued")
	return job, nil
}

// Get returns the job with the given id.
func (s *Service) Get(ctx context.Context, jobID string) (*Job, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// MediaURL returns a link clients can fetch the media from.
func (s *Service) MediaURL(ctx context.Context, mediaID string) (string, error) {
	if mediaID == "" {
		return "", nil
	}
	return s.media.URL(ctx, mediaID)
}

// Media returns a stored object.
func (s *Service) Media(ctx context.Context, mediaID string) (*Media, error) {
	return s.media.Get(ctx, mediaID)
}

// Execute renders the job and stores the output. It returns the new media id.
func (s *Service) Execute(ctx context.Context, jobID string) (string, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("load job: %w", err)
	}
	if job.Status != status.StatusProcessing {
		return "", fmt.Errorf("%w: job %s is %s", ErrPermanent, job.ID, job.Status)
	}

	req := Request{
		JobID:  job.ID,
		Prompt: job.EnginePrompt(),
	}
	if job.InputMediaID != "" {
		input, err := s.media.Get(ctx, job.InputMediaID)
		if err != nil {
			if errors.Is(err, ErrMediaNotFound) {
				return "", fmt.Errorf("%w: input media %s is gone", ErrPermanent, job.InputMediaID)
			}
			return "", fmt.Errorf("load input media: %w", err)
		}
		req.Input = input
	}

	started := s.now()
	out, err := s.engine.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("engine %s: %w", s.engine.Name(), err)
	}
	if out == nil || len(out.Data) == 0 {
		return "", fmt.Errorf("engine %s returned no image", s.engine.Name())
	}

	contentType := out.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(out.Data).String()
	}
	media := &Media{
		ID:          idgen.New(idgen.PrefixMedia),
		ContentType: contentType,
		Data:        out.Data,
	}
	if err := s.media.Put(ctx, media); err != nil {
		return "", fmt.Errorf("store output: %w", err)
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("media_id", media.ID).
		Str("content_type", contentType).
		Int("bytes", len(out.Data)).
		Dur("duration", s.now().Sub(started)).
		Msg("generation finished")
	return media.ID, nil
}
