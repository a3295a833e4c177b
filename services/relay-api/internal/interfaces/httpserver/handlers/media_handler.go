package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/domain/generation"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/responses"
	"github.com/janhq/jan-relay/services/relay-api/internal/utils/platformerrors"
)

// MediaHandler serves panels kept by the in-memory media store.
type MediaHandler struct {
	media MediaReader
	log   zerolog.Logger
}

// NewMediaHandler constructs the handler.
func NewMediaHandler(media MediaReader, log zerolog.Logger) *MediaHandler {
	return &MediaHandler{
		media: media,
		log:   log.With().Str("handler", "media").Logger(),
	}
}

// Get handles GET /v1/media/:id
func (h *MediaHandler) Get(c *gin.Context) {
	media, err := h.media.Media(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, generation.ErrMediaNotFound) {
			responses.HandleNewError(c, platformerrors.ErrorTypeNotFound, "media not found", "")
			return
		}
		responses.HandleError(c, platformerrors.NewError(c.Request.Context(), platformerrors.LayerHandler,
			platformerrors.ErrorTypeExternal, "media storage unavailable", err, ""), "failed to load media")
		return
	}
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, media.ContentType, media.Data)
}
