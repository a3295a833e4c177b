package handlers

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/relay"
)

// RelayService is the part of relay.Service the handlers call.
type RelayService interface {
	CreateSession(ctx context.Context, userID string, maxSteps int) (*relay.Session, error)
	GetSession(ctx context.Context, userID, sessionID string) (*relay.SessionView, error)
	UpdateMaxSteps(ctx context.Context, userID, sessionID string, maxSteps int) (*relay.Session, error)
	CreateDraft(ctx context.Context, userID, sessionID string, in relay.CreateDraftInput) (*relay.DraftView, error)
	PublishDraft(ctx context.Context, userID, sessionID, draftID, title string) (*relay.PublishResult, error)
	DeleteDraft(ctx context.Context, userID, draftID string) error
	GetJob(ctx context.Context, userID, jobID string) (*generation.Job, string, error)
}

// MediaReader serves stored panels.
type MediaReader interface {
	Media(ctx context.Context, mediaID string) (*generation.Media, error)
}

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Session *SessionHandler
	Draft   *DraftHandler
	Job     *JobHandler
	Media   *MediaHandler
}

// NewProvider constructs the handler provider. media may be nil when panels
// are served from object storage.
func NewProvider(service RelayService, media MediaReader, log zerolog.Logger) *Provider {
	p := &Provider{
		Session: NewSessionHandler(service, log),
		Draft:   NewDraftHandler(service, log),
		Job:     NewJobHandler(service, log),
	}
	if media != nil {
		p.Media = NewMediaHandler(media, log)
	}
	return p
}
