package middlewares

import (
	"net"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/metrics"
	"github.com/janhq/jan-relay/services/relay-api/internal/infrastructure/ratelimit"
	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/responses"
	"github.com/janhq/jan-relay/services/relay-api/internal/utils/platformerrors"
)

// RateLimitMiddleware applies a named per-caller limit. Limiter failures let
// the request through.
func RateLimitMiddleware(policy string, limiter ratelimit.Limiter, retryAfter time.Duration, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := policy + ":" + rateKey(c)
		allowed, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn().Err(err).Str("policy", policy).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if !allowed {
			metrics.RecordRateLimited(policy)
			responses.HandleError(c, platformerrors.NewError(c.Request.Context(), platformerrors.LayerRoute,
				platformerrors.ErrorTypeRateLimited, "too many requests", nil, "").
				WithReason(platformerrors.ReasonRateLimited).
				WithRetryAfter(retryAfter), "too many requests")
			return
		}
		c.Next()
	}
}

func rateKey(c *gin.Context) string {
	if userID := UserIDFromContext(c); userID != "" {
		return "user:" + userID
	}
	ip := clientIP(c.ClientIP())
	if ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}

// Normalize IPv6-mapped IPv4 etc.
func clientIP(raw string) string {
	if raw == "" {
		return ""
	}
	if ip := net.ParseIP(raw); ip != nil {
		return ip.String()
	}
	return raw
}
