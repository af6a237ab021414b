package middlewares

import (
	"net/http"

	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// RequireCapability must run after RequireAuth.
func (m *AuthMiddleware) RequireCapability(cap user.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok || role == "" {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}
		if !role.Can(cap) {
			abortWithError(c, http.StatusForbidden, "forbidden", "Manager role required")
			return
		}
		c.Next()
	}
}

// RequirePasswordChanged blocks tokens that still carry the must-change
// flag, except on the routes listed in exempt (matched on FullPath).
func (m *AuthMiddleware) RequirePasswordChanged(exempt ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(exempt))
	for _, p := range exempt {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.FullPath()]; ok {
			c.Next()
			return
		}

		claims, ok := ClaimsFromContext(c)
		if ok && claims.MustChangePassword {
			abortWithError(c, http.StatusForbidden, "password_change_required", "Password change required")
			return
		}
		c.Next()
	}
}
