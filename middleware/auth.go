package middleware

import (
	"strings"

	"github.com/Govind-619/SettleSphere/utils"
	"github.com/gin-gonic/gin"
)

// CallerIDKey is the gin context key holding the authenticated user ID
const CallerIDKey = "caller_id"

// CallerAuth authenticates an optional bearer token. Requests without one
// pass through anonymous; the gateway never sends one. A token that is
// present but invalid is rejected. With an empty secret the middleware does
// nothing.
func CallerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		// Extract token from Bearer header
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		userID, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			utils.LogError("Invalid token: %v", err)
			utils.Unauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set(CallerIDKey, userID)
		utils.LogDebug("Caller %d authenticated", userID)
		c.Next()
	}
}

// CallerID returns the authenticated user ID, if any
func CallerID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(CallerIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
