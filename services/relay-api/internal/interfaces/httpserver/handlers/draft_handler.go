package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/services/relay-api/internal/domain/relay"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/metrics"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/observability"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/middlewares"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/responses"
	"github.com/janhq/jan-relay/services/relay-api/internal/utils/platformerrors"
)

const publishedOutcome = "published"

// DraftHandler exposes draft creation, publication and deletion.
type DraftHandler struct {
	service  RelayService
	validate *validator.Validate
	log      zerolog.Logger
}

// NewDraftHandler constructs the handler.
func NewDraftHandler(service RelayService, log zerolog.Logger) *DraftHandler {
	return &DraftHandler{
		service:  service,
		validate: newValidator(),
		log:      log.With().Str("handler", "draft").Logger(),
	}
}

// Create handles POST /v1/relay/sessions/:id/drafts
// @Summary Start a draft continuation
// @Description Submits a generation job continuing based_on_step. The draft is private to its author until published.
// @Tags Relay
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body api.CreateDraftRequest true "Draft request"
// @Success 202 {object} api.CreateDraftResponse
// @Failure 400 {object} responses.ErrorResponse
// @Failure 429 {object} responses.ErrorResponse
// @Router /v1/relay/sessions/{id}/drafts [post]
func (h *DraftHandler) Create(c *gin.Context) {
	var req api.CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "")
		return
	}
	if !validRequest(c, h.validate, req) {
		return
	}

	sessionID := c.Param("id")
	ctx, span := observability.StartDraftSpan(c.Request.Context(), sessionID, req.BasedOnStepNumber, req.Prompt)
	defer span.End()

	view, err := h.service.CreateDraft(ctx, middlewares.UserIDFromContext(c), sessionID, relay.CreateDraftInput{
		Prompt:            req.Prompt,
		InputMediaID:      req.InputMediaID,
		BasedOnStepNumber: req.BasedOnStepNumber,
	})
	if err != nil {
		observability.RecordError(span, err, platformerrors.ReasonOf(err))
		responses.HandleError(c, err, "failed to create draft")
		return
	}
	metrics.RecordDraftCreated(view.BasedOnStepNumber > 0)

	c.JSON(http.StatusAccepted, api.CreateDraftResponse{
		Job:   responses.MapJob(view.Job, ""),
		Draft: responses.MapDraft(view),
	})
}

// Publish handles POST /v1/relay/sessions/:id/drafts/:draftId/publish
// @Summary Publish a draft as the next step
// @Description Commits a ready draft. Fails with step_conflict when someone else published first, cooldown_active after publishing the latest step, turn_in_progress while another publish runs.
// @Tags Relay
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param draftId path string true "Draft ID"
// @Param request body api.PublishRequest false "Publish options"
// @Success 201 {object} api.Step
// @Failure 400 {object} responses.ErrorResponse
// @Failure 409 {object} responses.ErrorResponse
// @Router /v1/relay/sessions/{id}/drafts/{draftId}/publish [post]
func (h *DraftHandler) Publish(c *gin.Context) {
	var req api.PublishRequest
	// title is optional, so an empty body of any framing is accepted
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "")
		return
	}
	if !validRequest(c, h.validate, req) {
		return
	}

	userID := middlewares.UserIDFromContext(c)
	sessionID := c.Param("id")
	draftID := c.Param("draftId")
	ctx, span := observability.StartPublishSpan(c.Request.Context(), sessionID, draftID, userID)
	defer span.End()

	result, err := h.service.PublishDraft(ctx, userID, sessionID, draftID, req.Title)
	if err != nil {
		reason := platformerrors.ReasonOf(err)
		if reason == "" {
			reason = platformerrors.ReasonInternal
		}
		metrics.RecordPublish(reason, false)
		observability.RecordError(span, err, reason)
		responses.HandleError(c, err, "failed to publish draft")
		return
	}
	metrics.RecordPublish(publishedOutcome, result.Session.IsComplete())

	c.JSON(http.StatusCreated, responses.MapStep(&result.Step))
}

// Delete handles DELETE /v1/relay/drafts/:draftId
// @Summary Discard a draft
// @Tags Relay
// @Param draftId path string true "Draft ID"
// @Success 204
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/relay/drafts/{draftId} [delete]
func (h *DraftHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteDraft(c.Request.Context(), middlewares.UserIDFromContext(c), c.Param("draftId")); err != nil {
		responses.HandleError(c, err, "failed to delete draft")
		return
	}
	c.Status(http.StatusNoContent)
}
