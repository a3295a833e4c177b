package relay

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	domain "github.com/janhq/jan-relay/services/relay-api/internal/domain/relay"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/status"
	"github.com/janhq/jan-relay/services/relay-api/internal/utils/platformerrors"
)

type memoryStore struct {
	// txMu serialises WithinTx callers the way row locks do in PostgreSQL.
	txMu sync.Mutex
	mu   sync.RWMutex

	sessions map[string]domain.Session
	steps    map[string][]domain.Step
	drafts   map[string]domain.Draft
	jobs     map[string]generation.Job
}

// MemoryRepository keeps everything in process memory. Writes made inside
// WithinTx are not rolled back when fn fails.
type MemoryRepository struct {
	store *memoryStore
	inTx  bool
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{store: &memoryStore{
		sessions: make(map[string]domain.Session),
		steps:    make(map[string][]domain.Step),
		drafts:   make(map[string]domain.Draft),
		jobs:     make(map[string]generation.Job),
	}}
}

// CreateSession stores a new chain.
func (r *MemoryRepository) CreateSession(_ context.Context, session *domain.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.sessions[session.ID] = *session
	return nil
}

// GetSession returns a copy of the chain header.
func (r *MemoryRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	session, ok := r.store.sessions[id]
	if !ok {
		return nil, notFound(ctx, "session not found")
	}
	return &session, nil
}

// LockSession is GetSession; WithinTx already holds the store lock.
func (r *MemoryRepository) LockSession(ctx context.Context, id string) (*domain.Session, error) {
	return r.GetSession(ctx, id)
}

// UpdateSession replaces the mutable header fields.
func (r *MemoryRepository) UpdateSession(ctx context.Context, session *domain.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	current, ok := r.store.sessions[session.ID]
	if !ok {
		return notFound(ctx, "session not found")
	}
	current.Title = session.Title
	current.MaxSteps = session.MaxSteps
	current.StepCount = session.StepCount
	current.Status = session.Status
	current.UpdatedAt = session.UpdatedAt
	r.store.sessions[session.ID] = current
	return nil
}

// ListSteps returns the published steps in order.
func (r *MemoryRepository) ListSteps(_ context.Context, sessionID string) ([]domain.Step, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	steps := append([]domain.Step(nil), r.store.steps[sessionID]...)
	return steps, nil
}

// InsertStep appends a step, rejecting a taken step number.
func (r *MemoryRepository) InsertStep(ctx context.Context, step *domain.Step) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.steps[step.SessionID] {
		if existing.StepNumber == step.StepNumber {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
				"step already published", domain.ErrDuplicateStep, "")
		}
	}
	steps := append(r.store.steps[step.SessionID], *step)
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })
	r.store.steps[step.SessionID] = steps
	return nil
}

// CreateDraft stores a draft.
func (r *MemoryRepository) CreateDraft(_ context.Context, draft *domain.Draft) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.drafts[draft.ID] = *draft
	return nil
}

// GetDraft returns a copy of a draft.
func (r *MemoryRepository) GetDraft(ctx context.Context, id string) (*domain.Draft, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	draft, ok := r.store.drafts[id]
	if !ok {
		return nil, notFound(ctx, "draft not found")
	}
	return &draft, nil
}

// ListDrafts returns the author's drafts in a session, oldest first.
func (r *MemoryRepository) ListDrafts(_ context.Context, sessionID, authorID string) ([]domain.Draft, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var drafts []domain.Draft
	for _, d := range r.store.drafts {
		if d.SessionID == sessionID && d.AuthorID == authorID {
			drafts = append(drafts, d)
		}
	}
	sort.Slice(drafts, func(i, j int) bool {
		if drafts[i].CreatedAt.Equal(drafts[j].CreatedAt) {
			return drafts[i].ID < drafts[j].ID
		}
		return drafts[i].CreatedAt.Before(drafts[j].CreatedAt)
	})
	return drafts, nil
}

// DeleteDraft removes one draft.
func (r *MemoryRepository) DeleteDraft(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.drafts[id]; !ok {
		return notFound(ctx, "draft not found")
	}
	delete(r.store.drafts, id)
	return nil
}

// DeleteDraftsByAuthor removes an author's drafts in a session.
func (r *MemoryRepository) DeleteDraftsByAuthor(_ context.Context, sessionID, authorID string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for id, d := range r.store.drafts {
		if d.SessionID == sessionID && d.AuthorID == authorID {
			delete(r.store.drafts, id)
			n++
		}
	}
	return n, nil
}

// DeleteDraftsCreatedBefore removes drafts older than cutoff.
func (r *MemoryRepository) DeleteDraftsCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var n int64
	for id, d := range r.store.drafts {
		if d.CreatedAt.Before(cutoff) {
			delete(r.store.drafts, id)
			n++
		}
	}
	return n, nil
}

// WithinTx runs fn while holding the store's transaction lock.
func (r *MemoryRepository) WithinTx(_ context.Context, fn func(tx domain.Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	r.store.txMu.Lock()
	defer r.store.txMu.Unlock()
	return fn(&MemoryRepository{store: r.store, inTx: true})
}

// CreateJob stores a job.
func (r *MemoryRepository) CreateJob(_ context.Context, job *generation.Job) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.jobs[job.ID] = *job
	return nil
}

// GetJob returns a copy of a job.
func (r *MemoryRepository) GetJob(ctx context.Context, id string) (*generation.Job, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	job, ok := r.store.jobs[id]
	if !ok {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"job not found", generation.ErrJobNotFound, "")
	}
	return &job, nil
}

// ClaimNextJob moves the oldest available queued job to processing.
func (r *MemoryRepository) ClaimNextJob(_ context.Context, now time.Time) (*generation.Job, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var next *generation.Job
	for id := range r.store.jobs {
		job := r.store.jobs[id]
		if job.Status != status.StatusQueued || job.AvailableAt.After(now) {
			continue
		}
		if next == nil || job.AvailableAt.Before(next.AvailableAt) ||
			(job.AvailableAt.Equal(next.AvailableAt) && job.ID < next.ID) {
			candidate := job
			next = &candidate
		}
	}
	if next == nil {
		return nil, nil
	}

	started := now
	next.Status = status.StatusProcessing
	next.Attempts++
	next.StartedAt = &started
	next.UpdatedAt = now
	r.store.jobs[next.ID] = *next
	claimed := *next
	return &claimed, nil
}

// CompleteJob records the output of a processing job.
func (r *MemoryRepository) CompleteJob(ctx context.Context, id, resultMediaID string, at time.Time) error {
	return r.finishJob(ctx, id, func(job *generation.Job) {
		job.Status = status.StatusCompleted
		job.ResultMediaID = resultMediaID
		job.ErrorMessage = ""
		job.CompletedAt = &at
		job.UpdatedAt = at
	})
}

// FailJob marks a processing job as failed.
func (r *MemoryRepository) FailJob(ctx context.Context, id, message string, at time.Time) error {
	return r.finishJob(ctx, id, func(job *generation.Job) {
		job.Status = status.StatusFailed
		job.ErrorMessage = message
		job.CompletedAt = &at
		job.UpdatedAt = at
	})
}

// RequeueJob returns a processing job to the queue.
func (r *MemoryRepository) RequeueJob(ctx context.Context, id, message string, availableAt time.Time) error {
	return r.finishJob(ctx, id, func(job *generation.Job) {
		job.Status = status.StatusQueued
		job.ErrorMessage = message
		job.AvailableAt = availableAt
		job.UpdatedAt = time.Now().UTC()
	})
}

func (r *MemoryRepository) finishJob(ctx context.Context, id string, apply func(job *generation.Job)) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	job, ok := r.store.jobs[id]
	if !ok {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"job not found", generation.ErrJobNotFound, "")
	}
	if job.Status != status.StatusProcessing {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
			"job is not processing", status.ErrInvalidTransition, "")
	}
	apply(&job)
	r.store.jobs[id] = job
	return nil
}

// FailStaleJobs fails jobs stuck in processing since before cutoff.
func (r *MemoryRepository) FailStaleJobs(_ context.Context, cutoff time.Time, message string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := time.Now().UTC()
	var n int64
	for id, job := range r.store.jobs {
		if job.Status != status.StatusProcessing || job.StartedAt == nil || !job.StartedAt.Before(cutoff) {
			continue
		}
		job.Status = status.StatusFailed
		job.ErrorMessage = message
		job.CompletedAt = &now
		job.UpdatedAt = now
		r.store.jobs[id] = job
		n++
	}
	return n, nil
}

// CountQueuedJobs returns the queue depth.
func (r *MemoryRepository) CountQueuedJobs(_ context.Context) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var n int64
	for _, job := range r.store.jobs {
		if job.Status == status.StatusQueued {
			n++
		}
	}
	return n, nil
}
