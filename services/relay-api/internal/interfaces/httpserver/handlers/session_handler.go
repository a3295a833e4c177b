package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/pkg/relay/api"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/metrics"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/middlewares"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/responses"
	"github.com/janhq/jan-relay/services/relay-api/internal/utils/platformerrors"
)

// SessionHandler exposes the relay session endpoints.
type SessionHandler struct {
	service  RelayService
	validate *validator.Validate
	log      zerolog.Logger
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(service RelayService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service:  service,
		validate: newValidator(),
		log:      log.With().Str("handler", "session").Logger(),
	}
}

// Create handles POST /v1/relay/sessions
// @Summary Open a relay session
// @Description Creates a new chain originated by the caller. max_steps defaults to the configured length.
// @Tags Relay
// @Accept json
// @Produce json
// @Param request body api.CreateSessionRequest false "Session options"
// @Success 201 {object} api.Session
// @Failure 400 {object} responses.ErrorResponse
// @Router /v1/relay/sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req api.CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "")
			return
		}
	}
	if !validRequest(c, h.validate, req) {
		return
	}

	session, err := h.service.CreateSession(c.Request.Context(), middlewares.UserIDFromContext(c), req.MaxSteps)
	if err != nil {
		responses.HandleError(c, err, "failed to create session")
		return
	}
	metrics.SessionsCreatedTotal.Inc()
	c.JSON(http.StatusCreated, responses.MapSession(session))
}

// Get handles GET /v1/relay/sessions/:id
// @Summary Get a relay session
// @Description Returns the session header, its published steps and the caller's own drafts.
// @Tags Relay
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} api.SessionEnvelope
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/relay/sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	view, err := h.service.GetSession(c.Request.Context(), middlewares.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		responses.HandleError(c, err, "failed to get session")
		return
	}
	c.JSON(http.StatusOK, responses.MapSessionView(view))
}

// Update handles PATCH /v1/relay/sessions/:id
// @Summary Change the chain length
// @Tags Relay
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body api.UpdateSessionRequest true "New length"
// @Success 200 {object} api.Session
// @Failure 400 {object} responses.ErrorResponse
// @Failure 403 {object} responses.ErrorResponse
// @Router /v1/relay/sessions/{id} [patch]
func (h *SessionHandler) Update(c *gin.Context) {
	var req api.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleNewError(c, platformerrors.ErrorTypeValidation, "invalid request body", "")
		return
	}
	if !validRequest(c, h.validate, req) {
		return
	}

	session, err := h.service.UpdateMaxSteps(c.Request.Context(), middlewares.UserIDFromContext(c), c.Param("id"), req.MaxSteps)
	if err != nil {
		responses.HandleError(c, err, "failed to update session")
		return
	}
	c.JSON(http.StatusOK, responses.MapSession(session))
}
