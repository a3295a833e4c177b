package relay

import (
	"gorm.io/datatypes"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	domain "github.com/janhq/jan-relay/services/relay-api/internal/domain/relay"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/status"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/database/entities"
)

func sessionToEntity(s *domain.Session) *entities.RelaySession {
	return &entities.RelaySession{
		ID:           s.ID,
		OriginatorID: s.OriginatorID,
		Title:        s.Title,
		MaxSteps:     s.MaxSteps,
		StepCount:    s.StepCount,
		Status:       string(s.Status),
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func sessionFromEntity(e *entities.RelaySession) *domain.Session {
	return &domain.Session{
		ID:           e.ID,
		OriginatorID: e.OriginatorID,
		Title:        e.Title,
		MaxSteps:     e.MaxSteps,
		StepCount:    e.StepCount,
		Status:       domain.SessionStatus(e.Status),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func stepToEntity(s *domain.Step) *entities.RelayStep {
	return &entities.RelayStep{
		ID:          s.ID,
		SessionID:   s.SessionID,
		StepNumber:  s.StepNumber,
		AuthorID:    s.AuthorID,
		MediaID:     s.MediaID,
		PromptText:  s.PromptText,
		Title:       s.Title,
		PublishedAt: s.PublishedAt,
	}
}

func stepFromEntity(e *entities.RelayStep) domain.Step {
	return domain.Step{
		ID:          e.ID,
		SessionID:   e.SessionID,
		StepNumber:  e.StepNumber,
		AuthorID:    e.AuthorID,
		MediaID:     e.MediaID,
		PromptText:  e.PromptText,
		Title:       e.Title,
		PublishedAt: e.PublishedAt,
	}
}

func draftToEntity(d *domain.Draft) *entities.RelayDraft {
	return &entities.RelayDraft{
		ID:           d.ID,
		SessionID:    d.SessionID,
		AuthorID:     d.AuthorID,
		BasedOnStep:  d.BasedOnStepNumber,
		JobID:        d.JobID,
		UserPrompt:   d.UserPrompt,
		SystemPrompt: d.SystemPrompt,
		CreatedAt:    d.CreatedAt,
	}
}

func draftFromEntity(e *entities.RelayDraft) domain.Draft {
	return domain.Draft{
		ID:                e.ID,
		SessionID:         e.SessionID,
		AuthorID:          e.AuthorID,
		BasedOnStepNumber: e.BasedOnStep,
		JobID:             e.JobID,
		UserPrompt:        e.UserPrompt,
		SystemPrompt:      e.SystemPrompt,
		CreatedAt:         e.CreatedAt,
	}
}

func jobToEntity(j *generation.Job) *entities.GenerationJob {
	return &entities.GenerationJob{
		ID:     j.ID,
		UserID: j.UserID,
		Kind:   string(j.Kind),
		Status: string(j.Status),
		Params: datatypes.NewJSONType(entities.JobParams{
			Prompt:       j.Prompt,
			SystemPrompt: j.SystemPrompt,
			InputMediaID: j.InputMediaID,
		}),
		ResultMediaID: j.ResultMediaID,
		ErrorMessage:  j.ErrorMessage,
		Attempts:      j.Attempts,
		AvailableAt:   j.AvailableAt,
		CreatedAt:     j.CreatedAt,
		StartedAt:     j.StartedAt,
		CompletedAt:   j.CompletedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

func jobFromEntity(e *entities.GenerationJob) *generation.Job {
	params := e.Params.Data()
	return &generation.Job{
		ID:            e.ID,
		UserID:        e.UserID,
		Kind:          generation.Kind(e.Kind),
		Status:        status.Status(e.Status),
		Prompt:        params.Prompt,
		SystemPrompt:  params.SystemPrompt,
		InputMediaID:  params.InputMediaID,
		ResultMediaID: e.ResultMediaID,
		ErrorMessage:  e.ErrorMessage,
		Attempts:      e.Attempts,
		AvailableAt:   e.AvailableAt,
		CreatedAt:     e.CreatedAt,
		StartedAt:     e.StartedAt,
		CompletedAt:   e.CompletedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
