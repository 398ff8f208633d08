package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const ContextUserIDKey = "user_id"

// Identity resolves the requesting user from the X-User-Id header or the
// user_id query parameter. Handlers decide whether a missing identity is an
// error.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if userID == "" {
			userID = strings.TrimSpace(c.Query("user_id"))
		}
		if userID != "" {
			c.Set(ContextUserIDKey, userID)
		}
		c.Next()
	}
}

// UserID returns the resolved user id, empty when the request carried none.
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ContextUserIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
