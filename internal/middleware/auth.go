package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/chatarchive/internal/auth"
)

// Keys under which the authenticated app is stored in gin.Context.
const (
	ContextKeyAppID   = "app_id"
	ContextKeyAppName = "app_name"
)

// AuthMiddleware rejects requests without a valid "Bearer <token>"
// Authorization header and stores the calling app in the context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyAppID, claims.AppID)
		c.Set(ContextKeyAppName, claims.AppName)
		c.Next()
	}
}

// GetAppID returns the authenticated app, or uuid.Nil outside the
// middleware.
func GetAppID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyAppID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetAppName(c *gin.Context) string {
	return c.GetString(ContextKeyAppName)
}
