package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/tribechat/internal/chat"
	"github.com/lalith-99/tribechat/internal/middleware"
	"go.uber.org/zap"
)

// TribeHandler serves the chat lobby of a tribe. :id is the tribe id,
// which is also the lobby id.
type TribeHandler struct {
	tribes   *chat.TribeLobbyService
	messages *chat.MessageService
	logger   *zap.Logger
}

func NewTribeHandler(tribes *chat.TribeLobbyService, messages *chat.MessageService, logger *zap.Logger) *TribeHandler {
	return &TribeHandler{tribes: tribes, messages: messages, logger: logger}
}

// Open handles POST /v1/tribes/:id/lobby.
func (h *TribeHandler) Open(c *gin.Context) {
	tribeID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	lobby, err := h.tribes.GetOrCreate(writeContext(c), tribeID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, lobby)
}

// Hide handles DELETE /v1/tribes/:id/lobby.
func (h *TribeHandler) Hide(c *gin.Context) {
	tribeID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.tribes.HideForUser(writeContext(c), tribeID.String(), middleware.GetUserID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// History handles GET /v1/tribes/:id/messages.
func (h *TribeHandler) History(c *gin.Context) {
	tribeID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	msgs, err := h.messages.History(c.Request.Context(), tribeID.String(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// DeleteMessage handles DELETE /v1/tribes/:id/messages/:messageId.
func (h *TribeHandler) DeleteMessage(c *gin.Context) {
	tribeID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	messageID, ok := int64Param(c, "messageId")
	if !ok {
		return
	}
	deleteMessage(c, h.messages, h.logger, chat.DeleteRequest{
		MessageID: messageID,
		LobbyID:   tribeID.String(),
	})
}
