package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/janhq/jan-relay/services/relay-api/internal/interfaces/httpserver/handlers"
)

func registerRelayRoutes(router gin.IRoutes, h *handlers.Provider, mw Middlewares) {
	router.POST("/relay/sessions", h.Session.Create)
	router.GET("/relay/sessions/:id", h.Session.Get)
	router.PATCH("/relay/sessions/:id", h.Session.Update)

	router.POST("/relay/sessions/:id/drafts", chain(mw.DraftLimit, h.Draft.Create)...)
	router.POST("/relay/sessions/:id/drafts/:draftId/publish", chain(mw.PublishLimit, h.Draft.Publish)...)
	router.DELETE("/relay/drafts/:draftId", h.Draft.Delete)
}
