package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/tribechat/internal/auth"
)

const (
	ContextKeyUserID      = "user_id"
	ContextKeyDisplayName = "display_name"
)

// AuthMiddleware validates the bearer token and stores the caller in the
// gin context. Browsers cannot set headers on a websocket upgrade, so a
// "token" query parameter is accepted as well.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		claims, err := auth.ParseToken(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyDisplayName, claims.DisplayName)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

// GetUserID returns the authenticated user, or uuid.Nil outside the
// middleware.
func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetDisplayName(c *gin.Context) string {
	return c.GetString(ContextKeyDisplayName)
}

// UserRecorder accepts profiles learned from tokens.
type UserRecorder interface {
	PutUser(id uuid.UUID, displayName string)
}

// RecordCaller copies the caller's id and display name into users. It is
// used with the in-memory directory so local runs need no profile store.
func RecordCaller(users UserRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := GetUserID(c); id != uuid.Nil {
			name := GetDisplayName(c)
			if name == "" {
				name = id.String()[:8]
			}
			users.PutUser(id, name)
		}
		c.Next()
	}
}
