package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/pkg/relay/api"
)

// DefaultRefreshInterval is the passive refresh cadence while a chain is viewed.
const DefaultRefreshInterval = 25 * time.Second

// Fetcher loads a session envelope. *api.Client satisfies it.
type Fetcher interface {
	GetSession(ctx context.Context, sessionID string) (*api.SessionEnvelope, error)
}

// EventKind tags a Watch event.
type EventKind string

// EventUpdated is raised once each time a refresh observes new steps.
const EventUpdated EventKind = "updated"

// Event is delivered by Watch.
type Event struct {
	Kind          EventKind
	Snapshot      Snapshot
	PreviousSteps int
}

// Load fetches a one-off snapshot.
func Load(ctx context.Context, fetcher Fetcher, sessionID string) (Snapshot, error) {
	env, err := fetcher.GetSession(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return FromEnvelope(env, time.Now()), nil
}

// Model holds the current snapshot of one chain and reconciles optimistic local
// updates with authoritative refreshes.
type Model struct {
	fetcher   Fetcher
	sessionID string
	log       zerolog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	current Snapshot
	loaded  bool
}

// Option customises a Model.
type Option func(*Model)

// WithLogger sets the model logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Model) { m.log = log }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

// NewModel creates an empty model for sessionID.
func NewModel(fetcher Fetcher, sessionID string, opts ...Option) *Model {
	m := &Model{
		fetcher:   fetcher,
		sessionID: sessionID,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With().Str("component", "session-model").Str("session_id", sessionID).Logger()
	return m
}

// SessionID returns the id of the modelled chain.
func (m *Model) SessionID() string {
	return m.sessionID
}

// Snapshot returns the current snapshot.
func (m *Model) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Loaded reports whether at least one snapshot has been applied.
func (m *Model) Loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Load fetches and applies the authoritative snapshot.
func (m *Model) Load(ctx context.Context) (Snapshot, error) {
	snap, _, err := m.Refresh(ctx)
	return snap, err
}

// Refresh fetches the session and merges it. grew reports new steps.
func (m *Model) Refresh(ctx context.Context) (snap Snapshot, grew bool, err error) {
	env, err := m.fetcher.GetSession(ctx, m.sessionID)
	if err != nil {
		return m.Snapshot(), false, err
	}
	snap, grew = m.Apply(FromEnvelope(env, m.now()))
	return snap, grew, nil
}

// Apply merges next into the model and returns the merged snapshot. The first
// snapshot applied to a model never counts as growth.
//
// Merging is idempotent and monotone: steps are keyed by number and never
// removed, so a stale snapshot cannot roll the chain back and re-applying the
// same snapshot changes nothing.
func (m *Model) Apply(next Snapshot) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, wasLoaded := m.current, m.loaded
	merged := mergeSnapshots(prev, next, wasLoaded)
	m.current = merged
	m.loaded = true
	return merged, wasLoaded && len(merged.Steps) > len(prev.Steps)
}

// ApplyPublished records a step this client just published, ahead of the next
// authoritative refresh.
func (m *Model) ApplyPublished(step api.Step) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	before := len(m.current.Steps)
	next := m.current
	next.Steps = append(append([]api.Step(nil), m.current.Steps...), step)
	next.Drafts = nil
	merged := mergeSnapshots(m.current, next, m.loaded)
	m.current = merged
	m.loaded = true
	return merged, len(merged.Steps) > before
}

// Watch refreshes on interval until ctx is done and raises EventUpdated once
// per observed growth. Refresh failures are logged and retried on the next tick.
func (m *Model) Watch(ctx context.Context, interval time.Duration) <-chan Event {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	out := make(chan Event, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			before := m.Snapshot().StepCount()
			snap, grew, err := m.Refresh(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.log.Warn().Err(err).Msg("passive session refresh failed")
				continue
			}
			if !grew {
				continue
			}
			m.log.Info().Int("steps", snap.StepCount()).Int("previous_steps", before).Msg("session updated by another participant")
			select {
			case out <- Event{Kind: EventUpdated, Snapshot: snap, PreviousSteps: before}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func mergeSnapshots(prev, next Snapshot, havePrev bool) Snapshot {
	if !havePrev {
		next.Session.StepCount = len(next.Steps)
		return next
	}
	if next.Session.ID != "" && prev.Session.ID != "" && next.Session.ID != prev.Session.ID {
		return prev
	}

	byNumber := make(map[int]api.Step, len(prev.Steps)+len(next.Steps))
	for _, step := range prev.Steps {
		byNumber[step.StepNumber] = step
	}
	for _, step := range next.Steps {
		if existing, ok := byNumber[step.StepNumber]; ok && existing.ID != "" && step.ID == "" {
			continue
		}
		byNumber[step.StepNumber] = step
	}
	steps := make([]api.Step, 0, len(byNumber))
	for _, step := range byNumber {
		steps = append(steps, step)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })

	merged := next
	stale := len(next.Steps) < len(prev.Steps)
	if stale || next.Session.ID == "" {
		merged.Session = prev.Session
		merged.Drafts = prev.Drafts
		if next.FetchedAt.Before(prev.FetchedAt) {
			merged.FetchedAt = prev.FetchedAt
		}
	}
	merged.Steps = steps
	merged.Session.StepCount = len(steps)
	if merged.Session.MaxSteps > 0 && len(steps) >= merged.Session.MaxSteps {
		merged.Session.Status = api.SessionComplete
	}
	return merged
}
