// Package session is the read-side model of a relay chain.
package session

import (
	"sort"
	"time"

	"github.com/janhq/jan-relay/pkg/relay/api"
)

// Snapshot is an immutable view of a chain at one point in time.
//
// The client's view of the latest step is a cache: another participant may have
// published since FetchedAt. Only the publish call decides who wins.
type Snapshot struct {
	Session   api.Session
	Steps     []api.Step
	Drafts    []api.Draft
	FetchedAt time.Time
}

// FromEnvelope converts a GET /relay/sessions/{id} payload, ordering steps.
func FromEnvelope(env *api.SessionEnvelope, fetchedAt time.Time) Snapshot {
	if env == nil {
		return Snapshot{FetchedAt: fetchedAt}
	}
	steps := append([]api.Step(nil), env.Steps...)
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepNumber < steps[j].StepNumber })
	return Snapshot{
		Session:   env.Session,
		Steps:     steps,
		Drafts:    append([]api.Draft(nil), env.Drafts...),
		FetchedAt: fetchedAt,
	}
}

// ID returns the session id.
func (s Snapshot) ID() string {
	return s.Session.ID
}

// StepCount returns the number of published steps.
func (s Snapshot) StepCount() int {
	return len(s.Steps)
}

// IsComplete reports whether the chain reached its bound.
func (s Snapshot) IsComplete() bool {
	if s.Session.MaxSteps > 0 && len(s.Steps) >= s.Session.MaxSteps {
		return true
	}
	return s.Session.Status == api.SessionComplete
}

// Status derives open/complete from the step count.
func (s Snapshot) Status() api.SessionStatus {
	if s.IsComplete() {
		return api.SessionComplete
	}
	return api.SessionOpen
}

// RemainingSteps returns how many steps can still be published.
func (s Snapshot) RemainingSteps() int {
	remaining := s.Session.MaxSteps - len(s.Steps)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// LastStep returns the latest published step.
func (s Snapshot) LastStep() (api.Step, bool) {
	if len(s.Steps) == 0 {
		return api.Step{}, false
	}
	return s.Steps[len(s.Steps)-1], true
}

// Step returns the step with the given number.
func (s Snapshot) Step(number int) (api.Step, bool) {
	for _, step := range s.Steps {
		if step.StepNumber == number {
			return step, true
		}
	}
	return api.Step{}, false
}

// LastAuthorID returns the author of the latest step.
func (s Snapshot) LastAuthorID() string {
	last, ok := s.LastStep()
	if !ok {
		return ""
	}
	return last.AuthorID
}

// LastPublishedAt returns when the latest step was published.
func (s Snapshot) LastPublishedAt() time.Time {
	last, ok := s.LastStep()
	if !ok {
		return time.Time{}
	}
	return last.PublishedAt
}

// CanResize reports whether userID may still change the chain bound: only before
// a second step exists, and only the author of step 1 (or the originator of an
// empty chain).
func (s Snapshot) CanResize(userID string) bool {
	if userID == "" || len(s.Steps) > 1 {
		return false
	}
	if first, ok := s.Step(1); ok {
		return first.AuthorID == userID
	}
	return s.Session.OriginatorID == userID
}

// ContinuationBase returns the step number a new draft should build on and the
// media it continues from. An empty chain continues from step 0 with no media.
func (s Snapshot) ContinuationBase() (int, string) {
	last, ok := s.LastStep()
	if !ok {
		return 0, ""
	}
	return last.StepNumber, last.MediaReference
}

// CooldownRemaining returns how long userID must still wait before publishing,
// assuming the given policy window. Zero when userID is not the latest author.
func (s Snapshot) CooldownRemaining(userID string, window time.Duration, now time.Time) time.Duration {
	last, ok := s.LastStep()
	if !ok || userID == "" || last.AuthorID != userID {
		return 0
	}
	remaining := last.PublishedAt.Add(window).Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
