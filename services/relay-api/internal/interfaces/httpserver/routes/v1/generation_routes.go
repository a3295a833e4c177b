package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/handlers"
)

func registerGenerationRoutes(router gin.IRoutes, handler *handlers.JobHandler, mw Middlewares) {
	router.GET("/generation/jobs/:jobId", chain(mw.JobStatusLimit, handler.Get)...)
}
