// Package publish commits drafts as canonical relay steps.
package publish

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/pkg/relay/relayerr"
)

// Publisher is the publish endpoint. *api.Client satisfies it.
type Publisher interface {
	PublishDraft(ctx context.Context, sessionID, draftID string, req api.PublishRequest) (*api.Step, error)
}

// Coordinator sends publish requests and classifies their failures.
//
// The backend is the only arbiter of whether a draft's base step is still the
// latest. The coordinator never retries: a conflict means the user must look at
// the new latest step and regenerate against it.
type Coordinator struct {
	publisher Publisher
	log       zerolog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(publisher Publisher, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		publisher: publisher,
		log:       log.With().Str("component", "publish-coordinator").Logger(),
	}
}

// Publish commits draftID as the next step of sessionID.
func (c *Coordinator) Publish(ctx context.Context, sessionID, draftID, title string) (api.Step, error) {
	const op = "publish"
	if sessionID == "" || draftID == "" {
		return api.Step{}, relayerr.New(relayerr.KindValidation, op, "a session and a draft are required")
	}

	step, err := c.publisher.PublishDraft(ctx, sessionID, draftID, api.PublishRequest{Title: strings.TrimSpace(title)})
	if err != nil {
		classified := classify(op, err)
		c.log.Info().
			Str("session_id", sessionID).
			Str("draft_id", draftID).
			Str("kind", string(classified.Kind)).
			Str("reason", classified.Reason).
			Msg("publish rejected")
		return api.Step{}, classified
	}

	c.log.Info().
		Str("session_id", sessionID).
		Str("draft_id", draftID).
		Int("step_number", step.StepNumber).
		Msg("draft published")
	return *step, nil
}

// classify makes sure every publish failure carries one of the distinct
// publish kinds, including failures that arrived without a reason code.
func classify(op string, err error) *relayerr.Error {
	e := relayerr.Wrap(op, err)
	if e.Kind == relayerr.KindTurnConflict && e.Reason == "" {
		e.Reason = relayerr.ReasonStepConflict
	}
	if e.Kind == relayerr.KindNotFound {
		// A draft that disappeared was published or discarded elsewhere.
		e.Kind = relayerr.KindValidation
	}
	return e
}

// IsConflict reports whether err means another participant won the turn.
func IsConflict(err error) bool {
	return relayerr.IsKind(err, relayerr.KindTurnConflict)
}

// IsCooldown reports whether err is a same-author cooldown rejection.
func IsCooldown(err error) bool {
	return relayerr.IsKind(err, relayerr.KindCooldown)
}
