package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/attendance/internal/actorctx"
	"github.com/geocoder89/attendance/internal/domain/attendance"
	"github.com/geocoder89/attendance/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type AttendanceTracker interface {
	CheckIn(ctx context.Context, userID string) (attendance.Record, error)
	CheckOut(ctx context.Context, userID string) (attendance.Record, error)
	History(ctx context.Context, actor actorctx.Actor, userID string) ([]attendance.Record, error)
	ListAll(ctx context.Context, filter attendance.ListFilter) ([]attendance.WithUser, error)
	Amend(ctx context.Context, id string, req attendance.AmendRequest) (attendance.Record, error)
	MarkDay(ctx context.Context, req attendance.MarkRequest) (attendance.Record, error)
}

type AttendanceHandler struct {
	tracker AttendanceTracker
	log     *slog.Logger
}

func NewAttendanceHandler(tracker AttendanceTracker, log *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{tracker: tracker, log: log}
}

// lock wait plus the store round trips
const transitionTimeout = 3 * time.Second

func (h *AttendanceHandler) CheckIn(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := requestContext(ctx, transitionTimeout)
	defer cancel()

	rec, err := h.tracker.CheckIn(cctx, userID)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not check in")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Checked in successfully",
		"record":  rec,
	})
}

func (h *AttendanceHandler) CheckOut(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	cctx, cancel := requestContext(ctx, transitionTimeout)
	defer cancel()

	rec, err := h.tracker.CheckOut(cctx, userID)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not check out")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message": "Checked out successfully",
		"record":  rec,
	})
}

// History answers GET /attendance?userId=.
func (h *AttendanceHandler) History(ctx *gin.Context) {
	actor, ok := middlewares.ActorFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing identity context")
		return
	}

	userID := strings.TrimSpace(ctx.Query("userId"))
	if userID == "" {
		RespondBadRequest(ctx, "userId is required", gin.H{"userId": "is required"})
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	records, err := h.tracker.History(cctx, actor, userID)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not list attendance")
		return
	}

	ctx.JSON(http.StatusOK, records)
}

// ListAll answers GET /attendance/all?date=YYYY-MM-DD.
func (h *AttendanceHandler) ListAll(ctx *gin.Context) {
	var filter attendance.ListFilter

	if date := strings.TrimSpace(ctx.Query("date")); date != "" {
		if !attendance.ValidDate(date) {
			RespondBadRequest(ctx, "Invalid date", gin.H{"date": "must be YYYY-MM-DD"})
			return
		}
		filter.Date = &date
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	records, err := h.tracker.ListAll(cctx, filter)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not list attendance")
		return
	}

	ctx.JSON(http.StatusOK, records)
}

func (h *AttendanceHandler) Amend(ctx *gin.Context) {
	var req attendance.AmendRequest
	if !BindJSON(ctx, &req) {
		return
	}

	if req.Status == nil && req.Notes == nil {
		RespondBadRequest(ctx, "Nothing to update", gin.H{"fields": []string{"status", "notes"}})
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	rec, err := h.tracker.Amend(cctx, ctx.Param("id"), req)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not update attendance")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"record": rec})
}

// MarkDay answers POST /attendance/manual.
func (h *AttendanceHandler) MarkDay(ctx *gin.Context) {
	var req attendance.MarkRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, transitionTimeout)
	defer cancel()

	rec, err := h.tracker.MarkDay(cctx, req)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not record attendance")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"message": "Attendance recorded",
		"record":  rec,
	})
}
