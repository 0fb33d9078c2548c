package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderUserID carries the user id forwarded by the identity gateway.
const HeaderUserID = "X-User-ID"

// IdentityMiddleware rejects requests without an authenticated user id.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + HeaderUserID + " header"})
			return
		}
		withValue(c, ContextKeyUserID, userID)
		c.Next()
	}
}
