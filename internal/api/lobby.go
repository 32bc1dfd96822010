package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/chat"
	"github.com/lalith-99/tribechat/internal/middleware"
	"github.com/lalith-99/tribechat/internal/models"
	"go.uber.org/zap"
)

// LobbyHandler serves direct and group lobbies and their messages.
type LobbyHandler struct {
	lobbies  *chat.LobbyService
	messages *chat.MessageService
	logger   *zap.Logger
}

func NewLobbyHandler(lobbies *chat.LobbyService, messages *chat.MessageService, logger *zap.Logger) *LobbyHandler {
	return &LobbyHandler{lobbies: lobbies, messages: messages, logger: logger}
}

type directLobbyRequest struct {
	UserID uuid.UUID `json:"userId" binding:"required"`
}

// OpenDirect handles POST /v1/lobbies/direct.
func (h *LobbyHandler) OpenDirect(c *gin.Context) {
	var req directLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	lobby, err := h.lobbies.GetOrCreateDirect(writeContext(c), middleware.GetUserID(c), req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, lobby)
}

// StartDirect handles POST /v1/lobbies/direct/start. Unlike OpenDirect it
// also unhides the lobby for both users.
func (h *LobbyHandler) StartDirect(c *gin.Context) {
	var req directLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	lobby, err := h.lobbies.ReactivateForBothSides(writeContext(c), middleware.GetUserID(c), req.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, lobby)
}

type groupLobbyRequest struct {
	UserIDs []uuid.UUID `json:"userIds" binding:"required,min=1"`
}

// OpenGroup handles POST /v1/lobbies/group. The caller is always a
// participant.
func (h *LobbyHandler) OpenGroup(c *gin.Context) {
	var req groupLobbyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ids := append([]uuid.UUID{middleware.GetUserID(c)}, req.UserIDs...)
	lobby, err := h.lobbies.GetOrCreateGroup(writeContext(c), ids)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, lobby)
}

// List handles GET /v1/lobbies.
func (h *LobbyHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)

	lobbies, err := h.lobbies.ListForUser(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	summaries, err := h.lobbies.Counterparts(ctx, userID, lobbies)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// Hide handles POST /v1/lobbies/:id/hide.
func (h *LobbyHandler) Hide(c *gin.Context) {
	if err := h.lobbies.HideForUser(writeContext(c), c.Param("id"), middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteConversation handles DELETE /v1/lobbies/:id: the lobby and all of
// its messages are deleted for the caller.
func (h *LobbyHandler) DeleteConversation(c *gin.Context) {
	purged, err := h.messages.HideConversation(writeContext(c), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": purged})
}

// History handles GET /v1/lobbies/:id/messages.
func (h *LobbyHandler) History(c *gin.Context) {
	msgs, err := h.messages.History(c.Request.Context(), c.Param("id"), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type fileMessageRequest struct {
	FileRef string `json:"fileRef" binding:"required"`
}

// SendFile handles POST /v1/lobbies/:id/files. The file itself is uploaded
// elsewhere; this records the message pointing at it.
func (h *LobbyHandler) SendFile(c *gin.Context) {
	var req fileMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	msg, err := h.messages.Send(writeContext(c), chat.SendRequest{
		LobbyID:  c.Param("id"),
		SenderID: middleware.GetUserID(c).String(),
		Kind:     models.KindFile,
		FileRef:  req.FileRef,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}
