package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/attendance/internal/actorctx"
	"github.com/geocoder89/attendance/internal/domain/attendance"
	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/geocoder89/attendance/internal/events"
	"github.com/geocoder89/attendance/internal/observability"
)

// AttendanceService drives the daily NoRecord -> CheckedIn -> CheckedOut
// flow. Transitions for one (user, date) run under a lock so two requests
// cannot both observe NoRecord.
type AttendanceService struct {
	ledger    Ledger
	locker    Locker
	publisher Publisher
	stats     StatsCache
	prom      *observability.Prom
	log       *slog.Logger
	loc       *time.Location
	now       func() time.Time
}

func NewAttendanceService(ledger Ledger, locker Locker, publisher Publisher, stats StatsCache, prom *observability.Prom, log *slog.Logger, loc *time.Location) *AttendanceService {
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceService{
		ledger:    ledger,
		locker:    locker,
		publisher: publisher,
		stats:     stats,
		prom:      prom,
		log:       log,
		loc:       loc,
		now:       time.Now,
	}
}

// WithClock returns a copy reading the time from now.
func (s *AttendanceService) WithClock(now func() time.Time) *AttendanceService {
	cp := *s
	cp.now = now
	return &cp
}

// Today is the current calendar date in the service location.
func (s *AttendanceService) Today() string {
	return s.now().In(s.loc).Format(attendance.DateLayout)
}

func lockKey(userID, date string) string {
	return "attendance:" + userID + ":" + date
}

// locked runs fn while holding the (user, date) lock. Events are published
// by the callers after it returns so a slow broker never holds the lock.
func (s *AttendanceService) locked(ctx context.Context, userID, date string, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, lockKey(userID, date))
	if err != nil {
		return fmt.Errorf("acquire attendance lock: %w", err)
	}
	defer unlock()

	return fn()
}

func (s *AttendanceService) CheckIn(ctx context.Context, userID string) (attendance.Record, error) {
	now := s.now().In(s.loc)
	date := now.Format(attendance.DateLayout)

	var rec attendance.Record
	err := s.locked(ctx, userID, date, func() error {
		existing, err := s.ledger.FindByUserAndDate(ctx, userID, date)

		switch {
		case err == nil && attendance.StateOf(&existing) != attendance.StateNoRecord:
			return attendance.ErrAlreadyCheckedIn

		case err == nil:
			// marked by a manager earlier in the day
			in := now.Format(attendance.TimeLayout)
			status := attendance.StatusPresent
			zero := 0.0
			rec, err = s.ledger.Update(ctx, existing.ID, attendance.Patch{
				CheckInTime: &in,
				Status:      &status,
				TotalHours:  &zero,
			})
			return err

		case errors.Is(err, attendance.ErrNotFound):
			rec, err = s.ledger.Insert(ctx, attendance.NewCheckIn(userID, now))
			return err
		}
		return err
	})

	if err != nil {
		result := "error"
		if errors.Is(err, attendance.ErrAlreadyCheckedIn) {
			result = "already_checked_in"
		}
		s.prom.ObserveTransition("check_in", result)
		return attendance.Record{}, err
	}

	s.prom.ObserveTransition("check_in", "ok")
	s.invalidateStats(ctx, date)
	s.publish(ctx, events.TypeCheckedIn, events.CheckedInPayload{
		RecordID:    rec.ID,
		UserID:      rec.UserID,
		Date:        rec.Date,
		CheckInTime: deref(rec.CheckInTime),
	})

	return rec, nil
}

func (s *AttendanceService) CheckOut(ctx context.Context, userID string) (attendance.Record, error) {
	now := s.now().In(s.loc)
	date := now.Format(attendance.DateLayout)

	var rec attendance.Record
	err := s.locked(ctx, userID, date, func() error {
		existing, err := s.ledger.FindByUserAndDate(ctx, userID, date)
		if err != nil && !errors.Is(err, attendance.ErrNotFound) {
			return err
		}

		var current *attendance.Record
		if err == nil {
			current = &existing
		}

		switch attendance.StateOf(current) {
		case attendance.StateNoRecord:
			return attendance.ErrNotCheckedIn
		case attendance.StateCheckedOut:
			return attendance.ErrAlreadyCheckedOut
		}

		out := now.Format(attendance.TimeLayout)
		hours, err := attendance.HoursBetween(*existing.CheckInTime, out)
		if err != nil {
			return err
		}

		rec, err = s.ledger.Update(ctx, existing.ID, attendance.Patch{
			CheckOutTime: &out,
			TotalHours:   &hours,
		})
		return err
	})

	if err != nil {
		result := "error"
		switch {
		case errors.Is(err, attendance.ErrNotCheckedIn):
			result = "not_checked_in"
		case errors.Is(err, attendance.ErrAlreadyCheckedOut):
			result = "already_checked_out"
		}
		s.prom.ObserveTransition("check_out", result)
		return attendance.Record{}, err
	}

	s.prom.ObserveTransition("check_out", "ok")
	s.invalidateStats(ctx, date)
	s.publish(ctx, events.TypeCheckedOut, events.CheckedOutPayload{
		RecordID:     rec.ID,
		UserID:       rec.UserID,
		Date:         rec.Date,
		CheckInTime:  deref(rec.CheckInTime),
		CheckOutTime: deref(rec.CheckOutTime),
		TotalHours:   rec.TotalHours,
	})

	return rec, nil
}

// MarkDay lets a manager record a day nobody checked in for. The day must
// not have a record yet; a later check-in fills in the times.
func (s *AttendanceService) MarkDay(ctx context.Context, req attendance.MarkRequest) (attendance.Record, error) {
	if !req.Status.Valid() {
		return attendance.Record{}, attendance.ErrInvalidStatus
	}
	if !attendance.ValidDate(req.Date) {
		return attendance.Record{}, attendance.ErrInvalidDate
	}

	var rec attendance.Record
	err := s.locked(ctx, req.UserID, req.Date, func() error {
		var err error
		rec, err = s.ledger.Insert(ctx, attendance.NewMarked(req, s.now()))
		if errors.Is(err, attendance.ErrAlreadyCheckedIn) {
			return attendance.ErrAlreadyRecorded
		}
		return err
	})
	if err != nil {
		return attendance.Record{}, err
	}

	s.prom.ObserveTransition("mark", "ok")
	s.invalidateStats(ctx, rec.Date)
	return rec, nil
}

// History lists a user's records newest first. Only managers may read
// someone else's.
func (s *AttendanceService) History(ctx context.Context, actor actorctx.Actor, userID string) ([]attendance.Record, error) {
	if actor.UserID != userID && !actor.Can(user.CapManageTeam) {
		return nil, ErrForbidden
	}
	return s.ledger.ListByUser(ctx, userID)
}

func (s *AttendanceService) ListAll(ctx context.Context, filter attendance.ListFilter) ([]attendance.WithUser, error) {
	return s.ledger.ListAll(ctx, filter)
}

// Amend applies a manager's status/notes change. Times and hours
// stay as recorded by the check-in flow.
func (s *AttendanceService) Amend(ctx context.Context, id string, req attendance.AmendRequest) (attendance.Record, error) {
	if req.Status != nil && !req.Status.Valid() {
		return attendance.Record{}, attendance.ErrInvalidStatus
	}

	rec, err := s.ledger.Update(ctx, id, attendance.Patch{
		Status: req.Status,
		Notes:  req.Notes,
	})
	if err != nil {
		return attendance.Record{}, err
	}

	s.prom.ObserveTransition("amend", "ok")
	s.invalidateStats(ctx, rec.Date)
	return rec, nil
}

func (s *AttendanceService) invalidateStats(ctx context.Context, date string) {
	if s.stats != nil {
		s.stats.Invalidate(ctx, date)
	}
}

// publish is best effort: the transition is already stored.
func (s *AttendanceService) publish(ctx context.Context, t events.Type, payload any) {
	publish(ctx, s.publisher, s.prom, s.log, t, payload)
}

func publish(ctx context.Context, p Publisher, prom *observability.Prom, log *slog.Logger, t events.Type, payload any) {
	if p == nil {
		return
	}

	err := p.Publish(ctx, t, payload)
	prom.ObservePublish(string(t), err)

	if err != nil {
		log.WarnContext(ctx, "event publish failed", "event_type", string(t), "error", err)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
