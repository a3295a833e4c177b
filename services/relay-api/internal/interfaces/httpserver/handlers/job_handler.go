package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/middlewares"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/responses"
)

// JobHandler exposes generation job status.
type JobHandler struct {
	service RelayService
	log     zerolog.Logger
}

// NewJobHandler constructs the handler.
func NewJobHandler(service RelayService, log zerolog.Logger) *JobHandler {
	return &JobHandler{
		service: service,
		log:     log.With().Str("handler", "job").Logger(),
	}
}

// Get handles GET /v1/generation/jobs/:jobId
// @Summary Get generation job status
// @Tags Generation
// @Produce json
// @Param jobId path string true "Job ID"
// @Success 200 {object} api.Job
// @Failure 404 {object} responses.ErrorResponse
// @Router /v1/generation/jobs/{jobId} [get]
func (h *JobHandler) Get(c *gin.Context) {
	job, url, err := h.service.GetJob(c.Request.Context(), middlewares.UserIDFromContext(c), c.Param("jobId"))
	if err != nil {
		responses.HandleError(c, err, "failed to get job")
		return
	}
	c.JSON(http.StatusOK, responses.MapJob(job, url))
}
