package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/attendance/internal/actorctx"
	"github.com/geocoder89/attendance/internal/auth"
	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, bool)
}

type AuthMiddleware struct {
	tokens TokenVerifier
}

func NewAuthMiddleware(tokens TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth accepts only "Authorization: Bearer <token>". Every failure
// gets the same 401 so callers learn nothing about why.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "No token provided")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if raw == "" {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "No token provided")
			return
		}

		claims, ok := m.tokens.Verify(raw)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
			return
		}

		c.Set(ctxClaimsKey, claims)

		// services read the caller from the request context
		c.Request = c.Request.WithContext(actorctx.With(c.Request.Context(), actorctx.Actor{
			UserID:             claims.UserID,
			Email:              claims.Email,
			Role:               user.Role(claims.Role),
			MustChangePassword: claims.MustChangePassword,
		}))

		c.Next()
	}
}

// Helpers so handlers don't need to know the magic keys.

func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(ctxClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	claims, ok := ClaimsFromContext(c)
	if !ok || claims.UserID == "" {
		return "", false
	}
	return claims.UserID, true
}

func RoleFromContext(c *gin.Context) (user.Role, bool) {
	claims, ok := ClaimsFromContext(c)
	if !ok {
		return "", false
	}
	return user.Role(claims.Role), true
}

func ActorFromContext(c *gin.Context) (actorctx.Actor, bool) {
	return actorctx.From(c.Request.Context())
}
