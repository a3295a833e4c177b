package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	"github.com/janhq/jan-relay/services/relay-api/internal/utils/idgen"
	"github.com/janhq/jan-relay/services/relay-api/internal/utils/platformerrors"
)

// Jobs is the part of the generation service the relay depends on.
type Jobs interface {
	Submit(ctx context.Context, in generation.SubmitInput) (*generation.Job, error)
	Get(ctx context.Context, jobID string) (*generation.Job, error)
	MediaURL(ctx context.Context, mediaID string) (string, error)
}

// Service implements the relay rules. It is the only place a step is published.
type Service struct {
	repo   Repository
	jobs   Jobs
	locker TurnLocker
	policy Policy
	now    func() time.Time
	log    zerolog.Logger
}

// NewService wires dependencies.
func NewService(repo Repository, jobs Jobs, locker TurnLocker, policy Policy, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		jobs:   jobs,
		locker: locker,
		policy: policy,
		now:    time.Now,
		log:    log.With().Str("component", "relay-service").Logger(),
	}
}

// WithClock overrides the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateSession opens a new chain originated by userID. A zero maxSteps
// selects the default length.
func (s *Service) CreateSession(ctx context.Context, userID string, maxSteps int) (*Session, error) {
	if maxSteps == 0 {
		maxSteps = s.policy.DefaultMaxSteps
	}
	if !s.policy.allows(maxSteps) {
		return nil, validation(ctx, fmt.Sprintf("max_steps must be one of %v", s.policy.AllowedMaxSteps))
	}

	now := s.now().UTC()
	session := &Session{
		ID:           idgen.New(idgen.PrefixSession),
		OriginatorID: userID,
		MaxSteps:     maxSteps,
		Status:       SessionOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "create session")
	}
	s.log.Info().Str("session_id", session.ID).Str("user_id", userID).Int("max_steps", maxSteps).Msg("relay session created")
	return session, nil
}

// GetSession returns the chain and the caller's own drafts.
func (s *Service) GetSession(ctx context.Context, userID, sessionID string) (*SessionView, error) {
	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	steps, err := s.repo.ListSteps(ctx, sessionID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list steps")
	}
	s.resolveStepMedia(ctx, steps)

	drafts, err := s.repo.ListDrafts(ctx, sessionID, userID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list drafts")
	}
	views := make([]DraftView, 0, len(drafts))
	for _, d := range drafts {
		view, err := s.draftView(ctx, d)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}

	return &SessionView{Session: *session, Steps: steps, Drafts: views}, nil
}

// UpdateMaxSteps changes the chain length. Only allowed before the second
// step, by the author of step 1 or, on an empty chain, by the originator.
func (s *Service) UpdateMaxSteps(ctx context.Context, userID, sessionID string, maxSteps int) (*Session, error) {
	if !s.policy.allows(maxSteps) {
		return nil, validation(ctx, fmt.Sprintf("max_steps must be one of %v", s.policy.AllowedMaxSteps))
	}

	var updated *Session
	err := s.repo.WithinTx(ctx, func(tx Repository) error {
		session, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return s.notFoundOr(ctx, err, "session not found")
		}
		steps, err := tx.ListSteps(ctx, sessionID)
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list steps")
		}
		if len(steps) > 1 {
			return validation(ctx, "chain length can only change before the second step is published")
		}
		owner := session.OriginatorID
		if len(steps) == 1 {
			owner = steps[0].AuthorID
		}
		if owner != userID {
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
				"only the author of the first step can change the chain length", nil, "")
		}

		session.MaxSteps = maxSteps
		session.syncStatus()
		session.UpdatedAt = s.now().UTC()
		if err := tx.UpdateSession(ctx, session); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "update session")
		}
		updated = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CreateDraft submits a generation job continuing step in.BasedOnStepNumber.
func (s *Service) CreateDraft(ctx context.Context, userID, sessionID string, in CreateDraftInput) (*DraftView, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, validation(ctx, "prompt is required")
	}

	session, err := s.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsComplete() {
		return nil, sessionComplete(ctx)
	}

	steps, err := s.repo.ListSteps(ctx, sessionID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list steps")
	}

	base := in.BasedOnStepNumber
	if base < 0 || base > len(steps) {
		return nil, reference(ctx, fmt.Sprintf("step %d does not exist", base))
	}

	var inputMedia, systemPrompt string
	if base == 0 {
		if len(steps) == 0 && session.OriginatorID != userID {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
				"only the originator can start the chain", nil, "")
		}
		if in.InputMediaID != "" {
			return nil, reference(ctx, "the first step takes no input image")
		}
	} else {
		step := steps[base-1]
		if step.MediaID == "" {
			return nil, reference(ctx, fmt.Sprintf("step %d has no image to continue from", base))
		}
		if in.InputMediaID != "" && in.InputMediaID != step.MediaID {
			return nil, reference(ctx, fmt.Sprintf("input image does not belong to step %d", base))
		}
		inputMedia = step.MediaID
		systemPrompt = s.policy.ContinuityPrompt
	}

	job, err := s.jobs.Submit(ctx, generation.SubmitInput{
		UserID:       userID,
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		InputMediaID: inputMedia,
	})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "submit generation job")
	}

	draft := &Draft{
		ID:                idgen.New(idgen.PrefixDraft),
		SessionID:         sessionID,
		AuthorID:          userID,
		BasedOnStepNumber: base,
		JobID:             job.ID,
		UserPrompt:        prompt,
		SystemPrompt:      systemPrompt,
		CreatedAt:         s.now().UTC(),
	}
	if err := s.repo.CreateDraft(ctx, draft); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "create draft")
	}

	s.log.Info().
		Str("session_id", sessionID).
		Str("draft_id", draft.ID).
		Str("job_id", job.ID).
		Int("based_on_step", base).
		Msg("draft created")
	return &DraftView{Draft: *draft, Job: job}, nil
}

// PublishDraft commits a ready draft as the next step. At most one publish per
// step number can succeed; everything else is rejected with a reason.
func (s *Service) PublishDraft(ctx context.Context, userID, sessionID, draftID, title string) (*PublishResult, error) {
	draft, err := s.ownedDraft(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if draft.SessionID != sessionID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound,
			"draft not found in this session", nil, "")
	}

	release, err := s.locker.Acquire(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrTurnLocked) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
				"another participant is publishing this turn", err, "").
				WithReason(platformerrors.ReasonTurnInProgress)
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "acquire publish turn")
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn().Err(err).Str("session_id", sessionID).Msg("release publish turn")
		}
	}()

	var published *Step
	var after *Session
	err = s.repo.WithinTx(ctx, func(tx Repository) error {
		session, err := tx.LockSession(ctx, sessionID)
		if err != nil {
			return s.notFoundOr(ctx, err, "session not found")
		}
		if session.IsComplete() {
			return sessionComplete(ctx)
		}

		steps, err := tx.ListSteps(ctx, sessionID)
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "list steps")
		}
		if draft.BasedOnStepNumber != len(steps) {
			return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
				fmt.Sprintf("step %d was already published", draft.BasedOnStepNumber+1), nil, "",
				map[string]any{"session_id": sessionID, "based_on_step": draft.BasedOnStepNumber, "latest_step": len(steps)}).
				WithReason(platformerrors.ReasonStepConflict)
		}

		now := s.now().UTC()
		if wait := s.cooldownRemaining(userID, steps, now); wait > 0 {
			return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
				"you published the latest step; wait before publishing again", nil, "",
				map[string]any{"session_id": sessionID, "cooldown_remaining": wait.String()}).
				WithReason(platformerrors.ReasonCooldownActive).
				WithRetryAfter(wait)
		}

		job, err := s.jobs.Get(ctx, draft.JobID)
		if err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load draft job")
		}
		if !job.Succeeded() {
			return validation(ctx, fmt.Sprintf("draft is not ready (job %s)", job.Status))
		}

		step := &Step{
			ID:          idgen.New(idgen.PrefixStep),
			SessionID:   sessionID,
			StepNumber:  len(steps) + 1,
			AuthorID:    userID,
			MediaID:     job.ResultMediaID,
			PromptText:  draft.UserPrompt,
			Title:       strings.TrimSpace(title),
			PublishedAt: now,
		}
		if err := tx.InsertStep(ctx, step); err != nil {
			if errors.Is(err, ErrDuplicateStep) {
				return stepConflict(ctx, fmt.Sprintf("step %d was already published", step.StepNumber), err)
			}
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "insert step")
		}
		if _, err := tx.DeleteDraftsByAuthor(ctx, sessionID, userID); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "clear drafts")
		}

		session.StepCount = step.StepNumber
		if session.Title == "" && step.StepNumber == 1 {
			session.Title = step.Title
		}
		session.syncStatus()
		session.UpdatedAt = now
		if err := tx.UpdateSession(ctx, session); err != nil {
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "update session")
		}
		published = step
		after = session
		return nil
	})
	if err != nil {
		return nil, err
	}

	if url, err := s.jobs.MediaURL(ctx, published.MediaID); err == nil {
		published.MediaURL = url
	}
	s.log.Info().
		Str("session_id", sessionID).
		Str("step_id", published.ID).
		Int("step_number", published.StepNumber).
		Str("user_id", userID).
		Bool("session_complete", after.IsComplete()).
		Msg("step published")
	return &PublishResult{Step: *published, Session: *after}, nil
}

// DeleteDraft removes one of the caller's drafts.
func (s *Service) DeleteDraft(ctx context.Context, userID, draftID string) error {
	if _, err := s.ownedDraft(ctx, userID, draftID); err != nil {
		return err
	}
	if err := s.repo.DeleteDraft(ctx, draftID); err != nil {
		return s.notFoundOr(ctx, err, "draft not found")
	}
	return nil
}

// GetJob returns one of the caller's generation jobs and a link to its output.
func (s *Service) GetJob(ctx context.Context, userID, jobID string) (*generation.Job, string, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, generation.ErrJobNotFound) {
			return nil, "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "job not found", err, "")
		}
		return nil, "", platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load job")
	}
	if job.UserID != userID {
		return nil, "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "job not found", nil, "")
	}
	var url string
	if job.Succeeded() {
		url, err = s.jobs.MediaURL(ctx, job.ResultMediaID)
		if err != nil {
			return nil, "", platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "resolve result url")
		}
	}
	return job, url, nil
}

// SweepDrafts deletes unpublished drafts older than ttl.
func (s *Service) SweepDrafts(ctx context.Context, ttl time.Duration) (int64, error) {
	return s.repo.DeleteDraftsCreatedBefore(ctx, s.now().Add(-ttl))
}

// cooldownRemaining reports how long userID must wait before publishing on top
// of steps.
func (s *Service) cooldownRemaining(userID string, steps []Step, now time.Time) time.Duration {
	if s.policy.Cooldown <= 0 || len(steps) == 0 {
		return 0
	}
	last := steps[len(steps)-1]
	if last.AuthorID != userID {
		return 0
	}
	elapsed := now.Sub(last.PublishedAt)
	if elapsed >= s.policy.Cooldown {
		return 0
	}
	return s.policy.Cooldown - elapsed
}

func (s *Service) loadSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, s.notFoundOr(ctx, err, "session not found")
	}
	return session, nil
}

func (s *Service) ownedDraft(ctx context.Context, userID, draftID string) (*Draft, error) {
	draft, err := s.repo.GetDraft(ctx, draftID)
	if err != nil {
		return nil, s.notFoundOr(ctx, err, "draft not found")
	}
	if draft.AuthorID != userID {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, "draft not found", nil, "")
	}
	return draft, nil
}

func (s *Service) draftView(ctx context.Context, d Draft) (*DraftView, error) {
	view := &DraftView{Draft: d}
	job, err := s.jobs.Get(ctx, d.JobID)
	if err != nil {
		if errors.Is(err, generation.ErrJobNotFound) {
			return view, nil
		}
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "load draft job")
	}
	view.Job = job
	if job.Succeeded() {
		if url, err := s.jobs.MediaURL(ctx, job.ResultMediaID); err == nil {
			view.OutputMediaURL = url
		}
	}
	return view, nil
}

func (s *Service) resolveStepMedia(ctx context.Context, steps []Step) {
	for i := range steps {
		url, err := s.jobs.MediaURL(ctx, steps[i].MediaID)
		if err != nil {
			s.log.Warn().Err(err).Str("media_id", steps[i].MediaID).Msg("resolve step media")
			continue
		}
		steps[i].MediaURL = url
	}
}

func (s *Service) notFoundOr(ctx context.Context, err error, message string) error {
	if errors.Is(err, ErrNotFound) {
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeNotFound, message, err, "")
	}
	return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, message)
}

func validation(ctx context.Context, message string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, message, nil, "").
		WithReason(platformerrors.ReasonValidationFailed)
}

func reference(ctx context.Context, message string) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, message, nil, "").
		WithReason(platformerrors.ReasonReferenceUnavailable)
}

func sessionComplete(ctx context.Context) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
		"this relay is complete", nil, "").
		WithReason(platformerrors.ReasonSessionComplete)
}

func stepConflict(ctx context.Context, message string, cause error) error {
	return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, message, cause, "").
		WithReason(platformerrors.ReasonStepConflict)
}
