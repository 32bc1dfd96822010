package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/tribechat/internal/middleware"
)

type Handlers struct {
	Lobbies       *LobbyHandler
	Messages      *MessageHandler
	Tribes        *TribeHandler
	Notifications *NotificationHandler
	WS            *WSHandler

	// Health, when set, is checked by GET /v1/health.
	Health func(ctx context.Context) error

	// AfterAuth runs after token validation on every /v1 route.
	AfterAuth []gin.HandlerFunc
}

// NewRouter registers every route. Everything under /v1 except the
// health check requires a valid token.
func NewRouter(jwtSecret string, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/v1/health", func(c *gin.Context) {
		if h.Health != nil {
			if err := h.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(jwtSecret))
	v1.Use(h.AfterAuth...)

	v1.GET("/ws", h.WS.Serve)

	v1.POST("/lobbies/direct", h.Lobbies.OpenDirect)
	v1.POST("/lobbies/direct/start", h.Lobbies.StartDirect)
	v1.POST("/lobbies/group", h.Lobbies.OpenGroup)
	v1.GET("/lobbies", h.Lobbies.List)
	v1.POST("/lobbies/:id/hide", h.Lobbies.Hide)
	v1.DELETE("/lobbies/:id", h.Lobbies.DeleteConversation)
	v1.GET("/lobbies/:id/messages", h.Lobbies.History)
	v1.POST("/lobbies/:id/files", h.Lobbies.SendFile)

	v1.DELETE("/messages/:id", h.Messages.Delete)

	v1.POST("/tribes/:id/lobby", h.Tribes.Open)
	v1.DELETE("/tribes/:id/lobby", h.Tribes.Hide)
	v1.GET("/tribes/:id/messages", h.Tribes.History)
	v1.DELETE("/tribes/:id/messages/:messageId", h.Tribes.DeleteMessage)

	v1.GET("/notifications", h.Notifications.List)
	v1.POST("/notifications/tribe-created", h.Notifications.TribeCreated)
	v1.POST("/notifications/friend-request", h.Notifications.FriendRequest)
	v1.POST("/notifications/friend-accept", h.Notifications.FriendAccept)

	return r
}
