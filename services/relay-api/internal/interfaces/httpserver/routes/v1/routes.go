package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/handlers"
)

// Middlewares holds the per-route middleware chains. Nil entries are skipped.
type Middlewares struct {
	Auth           gin.HandlerFunc
	DraftLimit     gin.HandlerFunc
	PublishLimit   gin.HandlerFunc
	JobStatusLimit gin.HandlerFunc
}

// Routes encapsulates versioned route registration.
type Routes struct {
	handlers *handlers.Provider
	mw       Middlewares
}

// NewRoutes builds the v1 route registrar.
func NewRoutes(handlerProvider *handlers.Provider, mw Middlewares) *Routes {
	return &Routes{
		handlers: handlerProvider,
		mw:       mw,
	}
}

// Register attaches all v1 routes under /v1 prefix.
func (r *Routes) Register(engine *gin.Engine) {
	group := engine.Group("/v1")

	// Media links are handed out to anyone who can see a step.
	if r.handlers.Media != nil {
		group.GET("/media/:id", r.handlers.Media.Get)
	}

	protected := group.Group("")
	if r.mw.Auth != nil {
		protected.Use(r.mw.Auth)
	}
	registerRelayRoutes(protected, r.handlers, r.mw)
	registerGenerationRoutes(protected, r.handlers.Job, r.mw)
}

func chain(mw gin.HandlerFunc, handler gin.HandlerFunc) []gin.HandlerFunc {
	if mw == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{mw, handler}
}
