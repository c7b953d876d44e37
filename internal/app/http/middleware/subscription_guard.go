package middleware

import (
	"net/http"
	"strings"
	"time"

	"gympro-app/internal/domain/gate"
	"gympro-app/internal/gatekeeper"

	"github.com/gin-gonic/gin"
)

// Routes that stay reachable while a blocker is up: everything the user
// needs to pay, export their data, or leave.
var blockerAllowedPrefixes = []string{
	"/app-subscriptions",
	"/checkout",
	"/plans",
	"/settings/export",
	"/support",
	"/logout",
	"/health",
}

func readOnly(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

func blockerAllows(path string) bool {
	for _, prefix := range blockerAllowedPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// RequireSubscriptionAccess blocks requests for users whose gate is a hard
// blocker, except on the allow-listed billing and exit routes. Warnings never
// block; gate evaluation errors fail open.
func RequireSubscriptionAccess(svc *gatekeeper.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if blockerAllows(c.Request.URL.Path) {
			c.Next()
			return
		}

		userID := c.GetUint("user_id")
		if userID == 0 {
			c.Next()
			return
		}

		cfg, sub, err := svc.Evaluate(c.Request.Context(), userID)
		if err != nil {
			// Fail open: an evaluation error must not lock a paying user out.
			c.Next()
			return
		}
		if cfg == nil || cfg.Type != gate.TypeBlocker {
			c.Next()
			return
		}

		// Read-only grace: for a few days after the hard gate comes up, reads
		// still work so the user can look at their data while deciding.
		if readOnly(c.Request.Method) && sub != nil && sub.SoftGraceExpiresAt != nil &&
			time.Now().Before(sub.SoftGraceExpiresAt.Add(gate.ReadOnlyGraceDuration)) {
			c.Next()
			return
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "Subscription required",
			"blocker": cfg,
		})
	}
}
