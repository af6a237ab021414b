package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/geocoder89/attendance/internal/domain/attendance"
	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/geocoder89/attendance/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const attendanceColumns = `id, user_id, date, check_in_time, check_out_time, status, total_hours, notes, created_at, updated_at`

type AttendanceRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewAttendanceRepo(pool *pgxpool.Pool, prom *observability.Prom) *AttendanceRepo {
	return &AttendanceRepo{pool: pool, prom: prom}
}

func scanRecord(row pgx.Row) (attendance.Record, error) {
	var rec attendance.Record

	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Date,
		&rec.CheckInTime,
		&rec.CheckOutTime,
		&rec.Status,
		&rec.TotalHours,
		&rec.Notes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)

	return rec, err
}

func (r *AttendanceRepo) FindByUserAndDate(ctx context.Context, userID, date string) (attendance.Record, error) {
	if uuid.Validate(userID) != nil {
		return attendance.Record{}, attendance.ErrNotFound
	}

	var rec attendance.Record
	err := r.prom.ObserveDB("attendance.find_by_user_date", func() error {
		var e error
		rec, e = scanRecord(r.pool.QueryRow(ctx,
			`SELECT `+attendanceColumns+` FROM attendance WHERE user_id = $1 AND date = $2`,
			userID, date,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrNotFound
		}
		return attendance.Record{}, err
	}
	return rec, nil
}

func (r *AttendanceRepo) GetByID(ctx context.Context, id string) (attendance.Record, error) {
	if uuid.Validate(id) != nil {
		return attendance.Record{}, attendance.ErrNotFound
	}

	var rec attendance.Record
	err := r.prom.ObserveDB("attendance.get_by_id", func() error {
		var e error
		rec, e = scanRecord(r.pool.QueryRow(ctx, `SELECT `+attendanceColumns+` FROM attendance WHERE id = $1`, id))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrNotFound
		}
		return attendance.Record{}, err
	}
	return rec, nil
}

// Insert stores a new record. A second record for the same (user, date)
// loses on the unique constraint and comes back as ErrAlreadyCheckedIn.
func (r *AttendanceRepo) Insert(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	if uuid.Validate(rec.UserID) != nil {
		return attendance.Record{}, user.ErrNotFound
	}

	var out attendance.Record

	err := r.prom.ObserveDB("attendance.insert", func() error {
		var e error
		out, e = scanRecord(r.pool.QueryRow(ctx, `
			INSERT INTO attendance (id, user_id, date, check_in_time, check_out_time, status, total_hours, notes, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			RETURNING `+attendanceColumns,
			rec.ID, rec.UserID, rec.Date, rec.CheckInTime, rec.CheckOutTime,
			rec.Status, rec.TotalHours, rec.Notes, rec.CreatedAt, rec.UpdatedAt,
		))
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == "23505" && pgErr.ConstraintName == "attendance_user_date_uniq":
				return attendance.Record{}, attendance.ErrAlreadyCheckedIn
			case pgErr.Code == "23503":
				return attendance.Record{}, user.ErrNotFound
			}
		}
		return attendance.Record{}, err
	}
	return out, nil
}

func (r *AttendanceRepo) Update(ctx context.Context, id string, p attendance.Patch) (attendance.Record, error) {
	if uuid.Validate(id) != nil {
		return attendance.Record{}, attendance.ErrNotFound
	}

	var status *string
	if p.Status != nil {
		s := string(*p.Status)
		status = &s
	}

	var out attendance.Record
	err := r.prom.ObserveDB("attendance.update", func() error {
		var e error
		out, e = scanRecord(r.pool.QueryRow(ctx, `
			UPDATE attendance
			SET check_in_time = COALESCE($2, check_in_time),
				check_out_time = COALESCE($3, check_out_time),
				status = COALESCE($4, status),
				total_hours = COALESCE($5, total_hours),
				notes = COALESCE($6, notes),
				updated_at = NOW()
			WHERE id = $1
			RETURNING `+attendanceColumns,
			id, p.CheckInTime, p.CheckOutTime, status, p.TotalHours, p.Notes,
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Record{}, attendance.ErrNotFound
		}
		return attendance.Record{}, err
	}
	return out, nil
}

func (r *AttendanceRepo) ListByUser(ctx context.Context, userID string) ([]attendance.Record, error) {
	out := []attendance.Record{}
	if uuid.Validate(userID) != nil {
		return out, nil
	}

	err := r.prom.ObserveDB("attendance.list_by_user", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT `+attendanceColumns+`
			FROM attendance
			WHERE user_id = $1
			ORDER BY date DESC
		`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("list attendance by user: %w", err)
	}
	return out, nil
}

// ListAll returns every record with its owner summary, newest first.
func (r *AttendanceRepo) ListAll(ctx context.Context, filter attendance.ListFilter) ([]attendance.WithUser, error) {
	baseQuery := `
		SELECT a.id, a.user_id, a.date, a.check_in_time, a.check_out_time, a.status,
			a.total_hours, a.notes, a.created_at, a.updated_at,
			u.id, u.name, u.email, u.role, u.department, u.employee_code, u.avatar
		FROM attendance a
		LEFT JOIN users u ON u.id = a.user_id
	`

	var conds []string
	var args []interface{}
	argsPosition := 1

	if filter.Date != nil {
		conds = append(conds, fmt.Sprintf("a.date = $%d", argsPosition))
		args = append(args, *filter.Date)
		argsPosition++
	}

	query := baseQuery
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY a.date DESC, a.check_in_time ASC NULLS LAST"

	out := []attendance.WithUser{}

	err := r.prom.ObserveDB("attendance.list_all", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				rec                      attendance.Record
				uid, name, email, role   *string
				department, code, avatar *string
			)

			err := rows.Scan(
				&rec.ID, &rec.UserID, &rec.Date, &rec.CheckInTime, &rec.CheckOutTime, &rec.Status,
				&rec.TotalHours, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt,
				&uid, &name, &email, &role, &department, &code, &avatar,
			)
			if err != nil {
				return err
			}

			item := attendance.WithUser{Record: rec}
			if uid != nil {
				item.User = &user.Summary{
					ID:           *uid,
					Name:         deref(name),
					Email:        deref(email),
					Role:         user.Role(deref(role)),
					Department:   deref(department),
					EmployeeCode: deref(code),
					Avatar:       avatar,
				}
			}
			out = append(out, item)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return out, nil
}

// CountByDateAndStatus returns the number of records per status for a date.
func (r *AttendanceRepo) CountByDateAndStatus(ctx context.Context, date string) (map[attendance.Status]int, error) {
	counts := map[attendance.Status]int{}

	err := r.prom.ObserveDB("attendance.count_by_date_status", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT status, COUNT(*)
			FROM attendance
			WHERE date = $1
			GROUP BY status
		`, date)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				s attendance.Status
				n int
			)
			if err := rows.Scan(&s, &n); err != nil {
				return err
			}
			counts[s] = n
		}
		return rows.Err()
	})

	if err != nil {
		return nil, err
	}
	return counts, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
