package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/geocoder89/attendance/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, user.User, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (string, error)
	Me(ctx context.Context, userID string) (user.User, error)
}

type AuthHandler struct {
	auth Authenticator
	log  *slog.Logger
}

func NewAuthHandler(auth Authenticator, log *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=72"`
}

// sessionUser is what the client keeps after login.
type sessionUser struct {
	user.User
	HasChangedPassword bool `json:"hasChangedPassword"`
}

func toSessionUser(u user.User) sessionUser {
	return sessionUser{User: u, HasChangedPassword: !u.MustChangePassword}
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// short timeout for the store lookup
	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	token, u, err := h.auth.Login(cctx, req.Email, req.Password)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not log in")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    toSessionUser(u),
	})
}

func (h *AuthHandler) ChangePassword(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	var req ChangePasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	token, err := h.auth.ChangePassword(cctx, userID, req.OldPassword, req.NewPassword)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not change password")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Password changed successfully",
		"token":   token,
	})
}

func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := requestContext(ctx, 2*time.Second)
	defer cancel()

	u, err := h.auth.Me(cctx, userID)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not load user")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": toSessionUser(u)})
}
