// Package draft tracks the speculative continuations a user generates for one
// relay interaction before deciding which, if any, to publish.
package draft

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/pkg/relay/relayerr"
	"github.com/janhq/jan-relay/pkg/relay/session"
)

// Client is the subset of the relay API used by the manager. *api.Client satisfies it.
type Client interface {
	CreateDraft(ctx context.Context, sessionID string, req api.CreateDraftRequest) (*api.CreateDraftResponse, error)
	DeleteDraft(ctx context.Context, draftID string) error
}

// Candidate is one generation attempt within an interaction.
type Candidate struct {
	Draft api.Draft
	Job   api.Job
}

// ID returns the draft id.
func (c Candidate) ID() string { return c.Draft.ID }

// Ready reports whether the candidate has output that can be published.
func (c Candidate) Ready() bool {
	return c.Draft.Status == api.DraftReady && c.Draft.OutputMediaReference != ""
}

// Pending reports whether the candidate's job is still running.
func (c Candidate) Pending() bool {
	return c.Draft.Status == api.DraftPending
}

// DisplayPrompt returns the prompt as the user wrote it.
func (c Candidate) DisplayPrompt() string {
	if c.Draft.UserPrompt != "" {
		return c.Draft.UserPrompt
	}
	return StripContinuityPrefix(c.Draft.Prompt)
}

// StripContinuityPrefix removes the conditioning instruction from a combined
// prompt. It only exists for backends that do not return user_prompt.
func StripContinuityPrefix(prompt string) string {
	trimmed := strings.TrimSpace(prompt)
	if rest, ok := strings.CutPrefix(trimmed, api.ContinuityInstruction); ok {
		return strings.TrimSpace(rest)
	}
	return trimmed
}

// Manager holds the browsable candidate set of one interaction.
type Manager struct {
	client    Client
	sessionID string
	log       zerolog.Logger

	mu         sync.Mutex
	candidates []Candidate
	selected   int
}

// NewManager creates an empty candidate set for sessionID.
func NewManager(client Client, sessionID string, log zerolog.Logger) *Manager {
	return &Manager{
		client:    client,
		sessionID: sessionID,
		log:       log.With().Str("component", "draft-manager").Str("session_id", sessionID).Logger(),
		selected:  -1,
	}
}

// Create validates the request against snap and asks the backend for a new
// continuation of basedOn. The new candidate is appended and selected.
func (m *Manager) Create(ctx context.Context, snap session.Snapshot, basedOn int, prompt string) (Candidate, error) {
	const op = "create draft"

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Candidate{}, &relayerr.Error{Kind: relayerr.KindValidation, Reason: relayerr.ReasonValidationFailed, Op: op, Message: "prompt is required"}
	}
	if snap.ID() != "" && snap.ID() != m.sessionID {
		return Candidate{}, relayerr.New(relayerr.KindValidation, op, "snapshot belongs to another session")
	}
	if snap.IsComplete() {
		return Candidate{}, &relayerr.Error{Kind: relayerr.KindSessionClosed, Reason: relayerr.ReasonSessionComplete, Op: op, Message: "this relay is already complete"}
	}
	if basedOn < 0 || basedOn > snap.StepCount() {
		return Candidate{}, &relayerr.Error{Kind: relayerr.KindReference, Reason: relayerr.ReasonReferenceUnavailable, Op: op, Message: "the step to continue from does not exist"}
	}

	var media string
	if basedOn > 0 {
		step, ok := snap.Step(basedOn)
		if !ok || step.MediaReference == "" {
			return Candidate{}, &relayerr.Error{Kind: relayerr.KindReference, Reason: relayerr.ReasonReferenceUnavailable, Op: op, Message: "the step to continue from has no media"}
		}
		media = step.MediaReference
	}

	created, err := m.client.CreateDraft(ctx, m.sessionID, api.CreateDraftRequest{
		Prompt:            prompt,
		InputMediaID:      media,
		BasedOnStepNumber: basedOn,
	})
	if err != nil {
		return Candidate{}, relayerr.Wrap(op, err)
	}

	candidate := Candidate{Draft: created.Draft, Job: created.Job}
	if candidate.Draft.JobID == "" {
		candidate.Draft.JobID = created.Job.ID
	}
	if candidate.Draft.Status == "" {
		candidate.Draft.Status = api.DraftPending
	}

	m.mu.Lock()
	m.candidates = append(m.candidates, candidate)
	m.selected = len(m.candidates) - 1
	m.mu.Unlock()

	m.log.Debug().Str("draft_id", candidate.ID()).Str("job_id", candidate.Job.ID).Int("based_on_step", basedOn).Msg("draft created")
	return candidate, nil
}

// Candidates returns a copy of the candidate set in creation order.
func (m *Manager) Candidates() []Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Candidate(nil), m.candidates...)
}

// Len returns the number of candidates.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.candidates)
}

// Selected returns the candidate currently shown to the user.
func (m *Manager) Selected() (Candidate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selected < 0 || m.selected >= len(m.candidates) {
		return Candidate{}, false
	}
	return m.candidates[m.selected], true
}

// SelectedIndex returns the selected position, or -1.
func (m *Manager) SelectedIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selected
}

// Select moves the selection to i. Out of range indexes are ignored.
func (m *Manager) Select(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.candidates) {
		return false
	}
	m.selected = i
	return true
}

// Next selects the following candidate, wrapping around.
func (m *Manager) Next() (Candidate, bool) {
	return m.step(1)
}

// Prev selects the preceding candidate, wrapping around.
func (m *Manager) Prev() (Candidate, bool) {
	return m.step(-1)
}

func (m *Manager) step(delta int) (Candidate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.candidates)
	if n == 0 {
		return Candidate{}, false
	}
	m.selected = ((m.selected+delta)%n + n) % n
	return m.candidates[m.selected], true
}

// HasReady reports whether any candidate can be published.
func (m *Manager) HasReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.candidates {
		if c.Ready() {
			return true
		}
	}
	return false
}

// MarkReady records a completed job for draftID.
func (m *Manager) MarkReady(draftID, outputReference string) (Candidate, bool) {
	return m.update(draftID, func(c *Candidate) {
		c.Draft.Status = api.DraftReady
		c.Draft.OutputMediaReference = outputReference
		c.Draft.ErrorMessage = ""
		c.Job.Status = api.JobCompleted
		c.Job.ResultURL = outputReference
	})
}

// MarkFailed records a failed job for draftID.
func (m *Manager) MarkFailed(draftID, message string) (Candidate, bool) {
	return m.update(draftID, func(c *Candidate) {
		c.Draft.Status = api.DraftFailed
		c.Draft.ErrorMessage = message
		c.Job.Status = api.JobFailed
		c.Job.ErrorMessage = message
	})
}

func (m *Manager) update(draftID string, fn func(*Candidate)) (Candidate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.candidates {
		if m.candidates[i].ID() == draftID {
			fn(&m.candidates[i])
			return m.candidates[i], true
		}
	}
	return Candidate{}, false
}

// Discard deletes draftID remotely and drops it from the set. A draft the
// backend no longer knows (already published or deleted) is dropped silently.
func (m *Manager) Discard(ctx context.Context, draftID string) error {
	if draftID == "" {
		return nil
	}
	if err := m.client.DeleteDraft(ctx, draftID); err != nil && !relayerr.IsKind(err, relayerr.KindNotFound) {
		return relayerr.Wrap("discard draft", err)
	}
	m.remove(draftID)
	return nil
}

// Clear discards every candidate. Local state is dropped even when some
// remote deletes fail; the joined error reports them.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.candidates))
	for _, c := range m.candidates {
		ids = append(ids, c.ID())
	}
	m.candidates = nil
	m.selected = -1
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.client.DeleteDraft(ctx, id); err != nil && !relayerr.IsKind(err, relayerr.KindNotFound) {
			m.log.Warn().Err(err).Str("draft_id", id).Msg("failed to discard stale draft")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Reset drops local candidates without calling the backend, e.g. after a
// publish already removed them server side.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = nil
	m.selected = -1
}

func (m *Manager) remove(draftID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.candidates {
		if c.ID() != draftID {
			continue
		}
		m.candidates = append(m.candidates[:i], m.candidates[i+1:]...)
		switch {
		case len(m.candidates) == 0:
			m.selected = -1
		case m.selected > i || m.selected >= len(m.candidates):
			m.selected--
		}
		return
	}
}
