package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"

	"restaurant-service/utils"
)

// Context keys set by AuthMiddleware and read by the guard and handlers.
const (
	CtxAuthenticated = "authenticated"
	CtxUserID        = "userID"
	CtxRole          = "role"
)

// AuthMiddleware parses an optional Bearer token and records the caller's
// identity in the request context. It never rejects by itself: whether an
// unauthenticated caller may proceed is the access guard's decision.
func AuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(CtxAuthenticated, false)

		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		tokenString := strings.TrimPrefix(header, "Bearer ")
		id, err := utils.ParseAuthToken(secret, tokenString)
		if err != nil {
			c.Next()
			return
		}

		c.Set(CtxAuthenticated, true)
		c.Set(CtxUserID, id.UserID)
		c.Set(CtxRole, id.Role)
		c.Next()
	}
}
