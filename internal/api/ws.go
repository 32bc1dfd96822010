package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/tribechat/internal/middleware"
	"github.com/lalith-99/tribechat/internal/realtime"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Clients connect from the web and mobile apps on other origins.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WSHandler struct {
	gateway *realtime.Gateway
	logger  *zap.Logger
}

func NewWSHandler(gateway *realtime.Gateway, logger *zap.Logger) *WSHandler {
	return &WSHandler{gateway: gateway, logger: logger}
}

// Serve handles GET /v1/ws and blocks until the connection closes.
func (h *WSHandler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	h.gateway.Serve(c.Request.Context(), conn, middleware.GetUserID(c))
}
