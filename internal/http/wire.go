package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/attendance/internal/auth"
	"github.com/geocoder89/attendance/internal/observability"
	"github.com/geocoder89/attendance/internal/security"
	"github.com/geocoder89/attendance/internal/service"
)

// Backends are the swappable pieces behind the services: postgres or
// memory stores, Redis or in-process lock and cache, RabbitMQ or log events.
type Backends struct {
	Users     service.CredentialStore
	Ledger    service.Ledger
	Locker    service.Locker
	Publisher service.Publisher
	Stats     service.StatsCache
}

// NewDeps builds the services on top of b. now is nil outside tests.
func NewDeps(log *slog.Logger, prom *observability.Prom, metrics http.Handler, hasher *security.Hasher, tokens *auth.Manager, loc *time.Location, now func() time.Time, b Backends) Deps {
	attendanceSvc := service.NewAttendanceService(b.Ledger, b.Locker, b.Publisher, b.Stats, prom, log, loc)
	if now != nil {
		attendanceSvc = attendanceSvc.WithClock(now)
	}

	return Deps{
		Log:        log,
		Prom:       prom,
		Metrics:    metrics,
		Tokens:     tokens,
		Auth:       service.NewAuthService(b.Users, hasher, tokens, log),
		Employees:  service.NewEmployeeService(b.Users, hasher, b.Publisher, b.Stats, prom, log, attendanceSvc.Today),
		Attendance: attendanceSvc,
		Stats:      service.NewStatsService(b.Users, b.Ledger, b.Stats, prom, attendanceSvc.Today),
	}
}
