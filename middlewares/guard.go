package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"restaurant-service/guard"
	"restaurant-service/models"
	"restaurant-service/session"
)

// GuardMiddleware evaluates the access guard for a route. Denial is a
// silent redirect, never an error payload; the guard's verdict is ordinary
// control flow. A failed binding lookup is the one exception: that is an
// infrastructure fault, not an access decision, and surfaces as 503 rather
// than masquerading as "never checked in".
func GuardMiddleware(sessions *session.Manager, rule guard.Rule, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticated := c.GetBool(CtxAuthenticated)

		var role models.Role
		if v, ok := c.Get(CtxRole); ok {
			role, _ = v.(models.Role)
		}

		var tableID string
		if rule.RequiresTableBinding && authenticated {
			bound, err := sessions.GuardContext(c.Request.Context(), authenticated, role, c.GetString(CtxUserID))
			if err != nil {
				log.Error().Err(err).Str("path", c.FullPath()).Msg("table binding lookup failed")
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
				return
			}
			tableID = bound
		}

		decision := guard.Evaluate(guard.Context{
			Authenticated: authenticated,
			Role:          role,
			TableID:       tableID,
		}, rule, c.Query("tableId"))

		if !decision.Allowed {
			RecordAccessDenied(c.FullPath())
			c.Redirect(http.StatusSeeOther, decision.Redirect)
			c.Abort()
			return
		}
		c.Next()
	}
}
