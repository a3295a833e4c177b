package middlewares

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/auth"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/responses"
	"github.com/janhq/jan-relay/services/relay-api/internal/utils/platformerrors"
)

const userIDKey = "user_id"

// AuthMiddleware resolves the caller and rejects anonymous requests.
func AuthMiddleware(authenticator auth.Authenticator, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := authenticator.Authenticate(c.Request)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("path", c.FullPath()).
				Str("method", c.Request.Method).
				Msg("unauthenticated request")
			responses.HandleError(c, platformerrors.NewError(c.Request.Context(), platformerrors.LayerRoute,
				platformerrors.ErrorTypeUnauthorized, "authentication required", err, ""), "unauthorized")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserIDFromContext returns the authenticated user id, or "".
func UserIDFromContext(c *gin.Context) string {
	return c.GetString(userIDKey)
}
