package relay

import (
	"time"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/status"
)

// SessionStatus is the lifecycle state of a chain.
type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionComplete SessionStatus = "complete"
)

// DraftStatus is derived from the draft's generation job.
type DraftStatus string

const (
	DraftPending DraftStatus = "pending"
	DraftReady   DraftStatus = "ready"
	DraftFailed  DraftStatus = "failed"
)

// Session is a bounded chain of published steps.
type Session struct {
	ID           string
	OriginatorID string
	Title        string
	MaxSteps     int
	StepCount    int
	Status       SessionStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsComplete reports whether the chain reached its bound.
func (s *Session) IsComplete() bool {
	return s.StepCount >= s.MaxSteps
}

func (s *Session) syncStatus() {
	if s.IsComplete() {
		s.Status = SessionComplete
	} else {
		s.Status = SessionOpen
	}
}

// Step is an immutable published panel.
type Step struct {
	ID          string
	SessionID   string
	StepNumber  int
	AuthorID    string
	MediaID     string
	PromptText  string
	Title       string
	PublishedAt time.Time

	// MediaURL is resolved on read and never stored.
	MediaURL string
}

// Draft is a candidate continuation owned by its author.
type Draft struct {
	ID                string
	SessionID         string
	AuthorID          string
	BasedOnStepNumber int
	JobID             string
	UserPrompt        string
	SystemPrompt      string
	CreatedAt         time.Time
}

// DraftView is a draft together with the state of its job.
type DraftView struct {
	Draft
	Job            *generation.Job
	OutputMediaURL string
}

// Status derives the draft status from its job.
func (d *DraftView) Status() DraftStatus {
	if d.Job == nil {
		return DraftPending
	}
	switch d.Job.Status {
	case status.StatusCompleted:
		return DraftReady
	case status.StatusFailed:
		return DraftFailed
	default:
		return DraftPending
	}
}

// SessionView is what a participant sees of a session.
type SessionView struct {
	Session Session
	Steps   []Step
	// Drafts holds only the caller's drafts.
	Drafts []DraftView
}

// Policy holds the configurable rules of a relay.
type Policy struct {
	DefaultMaxSteps  int
	AllowedMaxSteps  []int
	Cooldown         time.Duration
	ContinuityPrompt string
}

func (p Policy) allows(maxSteps int) bool {
	for _, n := range p.AllowedMaxSteps {
		if n == maxSteps {
			return true
		}
	}
	return false
}

// PublishResult is the new step and the session header after it.
type PublishResult struct {
	Step    Step
	Session Session
}

// CreateDraftInput is a request to continue the chain.
type CreateDraftInput struct {
	Prompt            string
	InputMediaID      string
	BasedOnStepNumber int
}
