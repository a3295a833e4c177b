package generation

import (
	"errors"
	"time"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/status"
)

// Kind identifies what a job produces.
type Kind string

const (
	// KindPanel renders one relay panel, optionally conditioned on an input image.
	KindPanel Kind = "panel"
)

var (
	// ErrJobNotFound is returned when a job id does not resolve.
	ErrJobNotFound = errors.New("generation job not found")
	// ErrMediaNotFound is returned when a media id does not resolve.
	ErrMediaNotFound = errors.New("media not found")
	// ErrPermanent marks failures that retrying cannot fix.
	ErrPermanent = errors.New("permanent generation failure")
)

// Job is one asynchronous generation request.
type Job struct {
	ID            string
	UserID        string
	Kind          Kind
	Status        status.Status
	Prompt        string
	SystemPrompt  string
	InputMediaID  string
	ResultMediaID string
	ErrorMessage  string
	Attempts      int
	AvailableAt   time.Time
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	UpdatedAt     time.Time
}

// Succeeded reports whether the job finished with an output.
func (j *Job) Succeeded() bool {
	return j != nil && j.Status == status.StatusCompleted && j.ResultMediaID != ""
}

// EnginePrompt joins the conditioning text and the user prompt.
func (j *Job) EnginePrompt() string {
	if j.SystemPrompt == "" {
		return j.Prompt
	}
	return j.SystemPrompt + " " + j.Prompt
}

// Media is a stored binary object.
type Media struct {
	ID          string
	ContentType string
	Data        []byte
}

// SubmitInput is the request to create a job.
type SubmitInput struct {
	UserID       string
	Prompt       string
	SystemPrompt string
	InputMediaID string
}

// Request is what an Engine receives.
type Request struct {
	JobID  string
	Prompt string
	Input  *Media
}

// Output is what an Engine returns.
type Output struct {
	Data        []byte
	ContentType string
}
