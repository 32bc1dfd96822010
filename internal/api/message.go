package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/tribechat/internal/chat"
	"github.com/lalith-99/tribechat/internal/middleware"
	"go.uber.org/zap"
)

type MessageHandler struct {
	messages *chat.MessageService
	logger   *zap.Logger
}

func NewMessageHandler(messages *chat.MessageService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{messages: messages, logger: logger}
}

// Delete handles DELETE /v1/messages/:id?scope=forMe|forEveryone.
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := int64Param(c, "id")
	if !ok {
		return
	}
	deleteMessage(c, h.messages, h.logger, chat.DeleteRequest{MessageID: messageID})
}

// deleteMessage fills in actor and scope from the request and runs the
// deletion. scope defaults to forMe.
func deleteMessage(c *gin.Context, messages *chat.MessageService, logger *zap.Logger, req chat.DeleteRequest) {
	req.ActorID = middleware.GetUserID(c)
	req.Scope = chat.DeleteScope(c.DefaultQuery("scope", string(chat.ScopeForMe)))

	purged, err := messages.Delete(writeContext(c), req)
	if err != nil {
		respondError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messageId": req.MessageID, "purged": purged})
}
