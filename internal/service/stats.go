package service

import (
	"context"
	"fmt"

	"github.com/geocoder89/attendance/internal/domain/attendance"
	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/geocoder89/attendance/internal/observability"
)

type StatsService struct {
	users  CredentialStore
	ledger Ledger
	cache  StatsCache
	prom   *observability.Prom
	today  func() string
}

func NewStatsService(users CredentialStore, ledger Ledger, cache StatsCache, prom *observability.Prom, today func() string) *StatsService {
	return &StatsService{users: users, ledger: ledger, cache: cache, prom: prom, today: today}
}

// TeamStats counts employees and today's attendance by status.
func (s *StatsService) TeamStats(ctx context.Context) (attendance.TeamStats, error) {
	date := s.today()

	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		if st, ok := s.cache.Get(ctx, date); ok {
			s.prom.ObserveStatsCache("hit")
			return st, nil
		}
		s.prom.ObserveStatsCache("miss")

		// read before counting so a concurrent invalidation wins
		gen, cacheable = s.cache.Generation(ctx)
	}

	total, err := s.users.CountByRole(ctx, user.RoleEmployee)
	if err != nil {
		return attendance.TeamStats{}, fmt.Errorf("count employees: %w", err)
	}

	counts, err := s.ledger.CountByDateAndStatus(ctx, date)
	if err != nil {
		return attendance.TeamStats{}, fmt.Errorf("count attendance: %w", err)
	}

	st := attendance.TeamStats{
		TotalEmployees: total,
		PresentToday:   counts[attendance.StatusPresent],
		AbsentToday:    counts[attendance.StatusAbsent],
		LateToday:      counts[attendance.StatusLate],
	}

	if cacheable {
		s.cache.Set(ctx, date, gen, st)
	}
	return st, nil
}
