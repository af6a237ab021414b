package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/attendance/internal/domain/attendance"
	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/geocoder89/attendance/internal/http/middlewares"
	"github.com/geocoder89/attendance/internal/lock"
	"github.com/geocoder89/attendance/internal/service"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

// requestContext bounds store work by d while keeping the request id and
// actor carried on the request context.
func requestContext(ctx *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), d)
}

// RespondError keeps a top-level "message" for existing clients next to the
// structured envelope.
func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"message": message,
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

// respondServiceError maps domain sentinels to status codes. Anything
// unrecognised is logged and answered with fallback as a 500.
func respondServiceError(ctx *gin.Context, log *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, attendance.ErrAlreadyCheckedIn):
		RespondError(ctx, http.StatusBadRequest, "already_checked_in", "Already checked in today", nil)
	case errors.Is(err, attendance.ErrNotCheckedIn):
		RespondError(ctx, http.StatusBadRequest, "not_checked_in", "Need to check in first", nil)
	case errors.Is(err, attendance.ErrAlreadyCheckedOut):
		RespondError(ctx, http.StatusBadRequest, "already_checked_out", "Already checked out today", nil)
	case errors.Is(err, attendance.ErrInvalidStatus):
		RespondBadRequest(ctx, "Invalid attendance status", nil)
	case errors.Is(err, attendance.ErrInvalidDate):
		RespondBadRequest(ctx, "Invalid date", gin.H{"date": "must be YYYY-MM-DD"})
	case errors.Is(err, attendance.ErrAlreadyRecorded):
		RespondConflict(ctx, "already_recorded", "Attendance already recorded for this date")
	case errors.Is(err, attendance.ErrNotFound):
		RespondNotFound(ctx, "Attendance record not found")
	case errors.Is(err, user.ErrNotFound):
		RespondNotFound(ctx, "User not found")
	case errors.Is(err, user.ErrDuplicateEmail):
		RespondConflict(ctx, "email_taken", "Email already exists")
	case errors.Is(err, user.ErrInvalidRole):
		RespondBadRequest(ctx, "Invalid role", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		RespondUnauthorized(ctx, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, service.ErrWeakPassword):
		RespondBadRequest(ctx, "Password must be at least 8 characters and differ from the current one", nil)
	case errors.Is(err, service.ErrSelfDelete):
		RespondBadRequest(ctx, "You cannot delete your own account", nil)
	case errors.Is(err, service.ErrForbidden):
		RespondForbidden(ctx, "Not allowed to access this resource")
	case errors.Is(err, lock.ErrNotAcquired), errors.Is(err, context.DeadlineExceeded):
		RespondError(ctx, http.StatusServiceUnavailable, "busy", "Please try again", nil)
	default:
		if log != nil {
			log.ErrorContext(ctx.Request.Context(), fallback, "err", err)
		}
		RespondInternal(ctx, fallback)
	}
}
