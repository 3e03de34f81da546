package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vybekart-ssh/Vybekart-Backend/internal/handler"
	"github.com/vybekart-ssh/Vybekart-Backend/pkg/constants"
)

// New builds the HTTP router.
func New(
	sessionHandler *handler.SessionHandler,
	streamWS *handler.StreamWSHandler,
	health *handler.HealthHandler,
	viewerLimiter *handler.IPRateLimiter,
) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handler.CallerIdentity())

	r.GET(constants.PathHealth, health.Health)
	r.GET(constants.PathReady, health.Ready)

	// REST streams
	streams := r.Group(constants.PathStreams)
	{
		streams.POST("", handler.RequireAuth(), handler.RequireRole(handler.RoleSeller), sessionHandler.CreateSession)
		streams.GET("/active", sessionHandler.ListActive)
		streams.GET("/:id", sessionHandler.GetSession)
		streams.PATCH("/:id", handler.RequireAuth(), sessionHandler.UpdateSession)
		streams.PATCH("/:id/stop", handler.RequireAuth(), sessionHandler.StopSession)
		streams.DELETE("/:id", handler.RequireAuth(), sessionHandler.DeleteSession)
		streams.POST("/:id/token", handler.RequireAuth(), sessionHandler.JoinToken)
		streams.GET("/:id/viewer-token", viewerLimiter.Middleware(), sessionHandler.ViewerToken)
	}

	// WebSocket gateway: rooms are joined with join_room events
	r.GET(constants.PathGateway, streamWS.ServeWS)

	return r
}
