package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/chat"
	"github.com/lalith-99/tribechat/internal/middleware"
	"go.uber.org/zap"
)

// NotificationHandler exposes the caller's notifications and the hooks
// other services call when a tribe is created or a friend request moves.
type NotificationHandler struct {
	fanout *chat.Fanout
	logger *zap.Logger
}

func NewNotificationHandler(fanout *chat.Fanout, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{fanout: fanout, logger: logger}
}

// List handles GET /v1/notifications.
func (h *NotificationHandler) List(c *gin.Context) {
	notes, err := h.fanout.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

type tribeCreatedRequest struct {
	Title string `json:"title" binding:"required"`
}

// TribeCreated handles POST /v1/notifications/tribe-created.
func (h *NotificationHandler) TribeCreated(c *gin.Context) {
	var req tribeCreatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	added, err := h.fanout.TribeCreated(writeContext(c), req.Title)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"added": added})
}

type friendRequestRequest struct {
	TargetUserID uuid.UUID `json:"targetUserId" binding:"required"`
}

// FriendRequest handles POST /v1/notifications/friend-request. The caller
// is the requester.
func (h *NotificationHandler) FriendRequest(c *gin.Context) {
	var req friendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.fanout.FriendRequestSent(writeContext(c), req.TargetUserID, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type friendAcceptRequest struct {
	RequesterID uuid.UUID `json:"requesterId" binding:"required"`
}

// FriendAccept handles POST /v1/notifications/friend-accept. The caller
// is the one accepting.
func (h *NotificationHandler) FriendAccept(c *gin.Context) {
	var req friendAcceptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.fanout.FriendRequestAccepted(writeContext(c), req.RequesterID, middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
