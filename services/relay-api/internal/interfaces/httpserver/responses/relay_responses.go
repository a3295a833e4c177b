package responses

import (
	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/relay"
)

// MapSession converts a session header to its wire form.
func MapSession(s *relay.Session) api.Session {
	return api.Session{
		ID:           s.ID,
		MaxSteps:     s.MaxSteps,
		Status:       api.SessionStatus(s.Status),
		OriginatorID: s.OriginatorID,
		Title:        s.Title,
		StepCount:    s.StepCount,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// MapStep converts a published step to its wire form.
func MapStep(s *relay.Step) api.Step {
	return api.Step{
		ID:             s.ID,
		SessionID:      s.SessionID,
		StepNumber:     s.StepNumber,
		AuthorID:       s.AuthorID,
		PublishedAt:    s.PublishedAt,
		MediaReference: s.MediaID,
		MediaURL:       s.MediaURL,
		PromptText:     s.PromptText,
		Title:          s.Title,
	}
}

// MapDraft converts a draft and its job state to the wire form.
func MapDraft(d *relay.DraftView) api.Draft {
	out := api.Draft{
		ID:                   d.ID,
		SessionID:            d.SessionID,
		BasedOnStepNumber:    d.BasedOnStepNumber,
		JobID:                d.JobID,
		Status:               api.DraftStatus(d.Status()),
		OutputMediaReference: d.OutputMediaURL,
		UserPrompt:           d.UserPrompt,
		SystemPrompt:         d.SystemPrompt,
		Prompt:               combinedPrompt(d.SystemPrompt, d.UserPrompt),
		AuthorID:             d.AuthorID,
		CreatedAt:            d.CreatedAt,
	}
	if d.Job != nil {
		out.ErrorMessage = d.Job.ErrorMessage
		if d.Job.Status.IsTerminal() && !d.Job.Succeeded() && out.ErrorMessage == "" {
			out.ErrorMessage = "generation failed"
		}
	}
	return out
}

// MapJob converts a job and its result link to the wire form.
func MapJob(j *generation.Job, resultURL string) api.Job {
	out := api.Job{
		ID:        j.ID,
		Status:    api.JobStatus(j.Status),
		ResultURL: resultURL,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
	if !j.Succeeded() {
		out.ErrorMessage = j.ErrorMessage
	}
	return out
}

// MapSessionView builds the GET session envelope.
func MapSessionView(v *relay.SessionView) api.SessionEnvelope {
	envelope := api.SessionEnvelope{
		Session: MapSession(&v.Session),
		Steps:   make([]api.Step, 0, len(v.Steps)),
		Drafts:  make([]api.Draft, 0, len(v.Drafts)),
	}
	for i := range v.Steps {
		envelope.Steps = append(envelope.Steps, MapStep(&v.Steps[i]))
	}
	for i := range v.Drafts {
		envelope.Drafts = append(envelope.Drafts, MapDraft(&v.Drafts[i]))
	}
	return envelope
}

func combinedPrompt(system, user string) string {
	if system == "" {
		return user
	}
	return system + " " + user
}
