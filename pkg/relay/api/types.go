package api

import "time"

// SessionStatus is the lifecycle state of a relay chain.
type SessionStatus string

const (
	SessionOpen     SessionStatus = "open"
	SessionComplete SessionStatus = "complete"
)

// DraftStatus is the lifecycle state of a speculative continuation.
type DraftStatus string

const (
	DraftPending DraftStatus = "pending"
	DraftReady   DraftStatus = "ready"
	DraftFailed  DraftStatus = "failed"
)

// JobStatus is the lifecycle state of a remote generation job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether the job will not change status again.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Session is the wire representation of a relay chain header.
type Session struct {
	ID           string        `json:"id"`
	MaxSteps     int           `json:"max_steps"`
	Status       SessionStatus `json:"status"`
	OriginatorID string        `json:"originator_id"`
	Title        string        `json:"title,omitempty"`
	StepCount    int           `json:"step_count"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Step is one published panel.
type Step struct {
	ID             string    `json:"id"`
	SessionID      string    `json:"session_id"`
	StepNumber     int       `json:"step_number"`
	AuthorID       string    `json:"author_id"`
	PublishedAt    time.Time `json:"published_at"`
	MediaReference string    `json:"media_reference"`
	MediaURL       string    `json:"media_url,omitempty"`
	PromptText     string    `json:"prompt_text"`
	Title          string    `json:"title,omitempty"`
}

// Draft is a candidate continuation owned by its creator.
type Draft struct {
	ID                   string      `json:"id"`
	SessionID            string      `json:"session_id"`
	BasedOnStepNumber    int         `json:"based_on_step"`
	JobID                string      `json:"job_id"`
	Status               DraftStatus `json:"status"`
	OutputMediaReference string      `json:"output_media_reference,omitempty"`
	UserPrompt           string      `json:"user_prompt,omitempty"`
	SystemPrompt         string      `json:"system_prompt,omitempty"`
	Prompt               string      `json:"prompt,omitempty"`
	ErrorMessage         string      `json:"error_message,omitempty"`
	AuthorID             string      `json:"author_id"`
	CreatedAt            time.Time   `json:"created_at"`
}

// Job is the observable state of a generation job.
type Job struct {
	ID           string    `json:"id"`
	Status       JobStatus `json:"status"`
	ResultURL    string    `json:"result_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SessionEnvelope is returned by GET /relay/sessions/{id}.
type SessionEnvelope struct {
	Session Session `json:"session"`
	Steps   []Step  `json:"steps"`
	Drafts  []Draft `json:"drafts"`
}

// CreateSessionRequest opens a new chain.
type CreateSessionRequest struct {
	MaxSteps int `json:"max_steps,omitempty" validate:"omitempty,gt=0"`
}

// UpdateSessionRequest changes the chain bound.
type UpdateSessionRequest struct {
	MaxSteps int `json:"max_steps" validate:"required,gt=0"`
}

// CreateDraftRequest asks for a continuation of BasedOnStepNumber.
type CreateDraftRequest struct {
	Prompt            string `json:"prompt" validate:"required,max=4000"`
	InputMediaID      string `json:"input_media_id,omitempty" validate:"omitempty,max=64"`
	BasedOnStepNumber int    `json:"based_on_step" validate:"gte=0"`
}

// CreateDraftResponse carries the draft and the job producing it.
type CreateDraftResponse struct {
	Job   Job   `json:"job"`
	Draft Draft `json:"draft"`
}

// PublishRequest commits a draft.
type PublishRequest struct {
	Title string `json:"title,omitempty" validate:"omitempty,max=200"`
}

// ErrorBody is the error envelope written by relay-api.
type ErrorBody struct {
	Code              string `json:"code"`
	Error             string `json:"error"`
	Message           string `json:"message,omitempty"`
	Reason            string `json:"reason,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
	RequestID         string `json:"request_id,omitempty"`
}

// ContinuityInstruction is the conditioning text relay-api prepends to a user's
// prompt when it asks the engine for a continuation. It is returned separately as
// system_prompt; clients only need it to clean up a combined prompt.
const ContinuityInstruction = "Continue the story from the previous panel. Keep the same art style, characters, subject, lighting and color palette."
