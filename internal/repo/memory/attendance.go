package memory

import (
	"context"
	"time"

	"github.com/geocoder89/attendance/internal/domain/attendance"
	"github.com/geocoder89/attendance/internal/domain/user"
)

type AttendanceRepo struct {
	s *Store
}

func NewAttendanceRepo(s *Store) *AttendanceRepo {
	return &AttendanceRepo{s: s}
}

func (r *AttendanceRepo) FindByUserAndDate(_ context.Context, userID, date string) (attendance.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.byUserDate[userDateKey(userID, date)]
	if !ok {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return r.s.attendance[id], nil
}

func (r *AttendanceRepo) GetByID(_ context.Context, id string) (attendance.Record, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rec, ok := r.s.attendance[id]
	if !ok {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return rec, nil
}

// Insert enforces one record per (user, date) the same way the unique
// constraint does in Postgres.
func (r *AttendanceRepo) Insert(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[rec.UserID]; !ok {
		return attendance.Record{}, user.ErrNotFound
	}

	key := userDateKey(rec.UserID, rec.Date)
	if _, taken := r.s.byUserDate[key]; taken {
		return attendance.Record{}, attendance.ErrAlreadyCheckedIn
	}

	r.s.attendance[rec.ID] = rec
	r.s.byUserDate[key] = rec.ID
	if r.s.byUser[rec.UserID] == nil {
		r.s.byUser[rec.UserID] = make(map[string]struct{})
	}
	r.s.byUser[rec.UserID][rec.ID] = struct{}{}
	return rec, nil
}

// Update never changes the user or date, so the indexes stay valid.
func (r *AttendanceRepo) Update(_ context.Context, id string, p attendance.Patch) (attendance.Record, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.attendance[id]
	if !ok {
		return attendance.Record{}, attendance.ErrNotFound
	}

	if p.CheckInTime != nil {
		v := *p.CheckInTime
		rec.CheckInTime = &v
	}
	if p.CheckOutTime != nil {
		v := *p.CheckOutTime
		rec.CheckOutTime = &v
	}
	if p.Status != nil {
		rec.Status = *p.Status
	}
	if p.TotalHours != nil {
		rec.TotalHours = *p.TotalHours
	}
	if p.Notes != nil {
		v := *p.Notes
		rec.Notes = &v
	}
	rec.UpdatedAt = time.Now().UTC()

	r.s.attendance[id] = rec
	return rec, nil
}

func (r *AttendanceRepo) ListByUser(_ context.Context, userID string) ([]attendance.Record, error) {
	r.s.mu.RLock()
	out := make([]attendance.Record, 0, len(r.s.byUser[userID]))
	for id := range r.s.byUser[userID] {
		out = append(out, r.s.attendance[id])
	}
	r.s.mu.RUnlock()

	sortRecordsNewestFirst(out)
	return out, nil
}

func (r *AttendanceRepo) ListAll(_ context.Context, filter attendance.ListFilter) ([]attendance.WithUser, error) {
	r.s.mu.RLock()
	records := []attendance.Record{}
	for _, rec := range r.s.attendance {
		if filter.Date != nil && rec.Date != *filter.Date {
			continue
		}
		records = append(records, rec)
	}

	sortRecordsNewestFirst(records)

	out := make([]attendance.WithUser, 0, len(records))
	for _, rec := range records {
		item := attendance.WithUser{Record: rec}
		if u, ok := r.s.users[rec.UserID]; ok {
			sum := u.Summary()
			item.User = &sum
		}
		out = append(out, item)
	}
	r.s.mu.RUnlock()

	return out, nil
}

func (r *AttendanceRepo) CountByDateAndStatus(_ context.Context, date string) (map[attendance.Status]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := map[attendance.Status]int{}
	for _, rec := range r.s.attendance {
		if rec.Date == date {
			counts[rec.Status]++
		}
	}
	return counts, nil
}
