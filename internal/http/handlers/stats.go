package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/attendance/internal/domain/attendance"
	"github.com/gin-gonic/gin"
)

type TeamStatsReader interface {
	TeamStats(ctx context.Context) (attendance.TeamStats, error)
}

type StatsHandler struct {
	stats TeamStatsReader
	log   *slog.Logger
}

func NewStatsHandler(stats TeamStatsReader, log *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, log: log}
}

func (h *StatsHandler) Team(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	s, err := h.stats.TeamStats(cctx)
	if err != nil {
		respondServiceError(ctx, h.log, err, "Could not load team stats")
		return
	}

	ctx.JSON(http.StatusOK, s)
}
