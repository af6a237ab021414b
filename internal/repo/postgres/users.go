package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/geocoder89/attendance/internal/observability"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, password_hash, role, department, employee_code, avatar, must_change_password, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Department,
		&u.EmployeeCode,
		&u.Avatar,
		&u.MustChangePassword,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB("users.get_by_email", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`,
			user.NormalizeEmail(email),
		))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if uuid.Validate(id) != nil {
		return user.User{}, user.ErrNotFound
	}

	var u user.User

	err := r.prom.ObserveDB("users.get_by_id", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return e
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

// Create inserts the user and assigns the next employee code for its role.
// Codes are computed under a per-role advisory lock held for the transaction,
// the unique index on employee_code backs it up.
func (r *UsersRepo) Create(ctx context.Context, nu user.NewUser) (u user.User, err error) {
	if !nu.Role.Valid() {
		err = user.ErrInvalidRole
		return
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.prom.ObserveDB("users.create.code_lock", func() error {
		_, e := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "users.employee_code:"+string(nu.Role))
		return e
	})
	if err != nil {
		return
	}

	var codes []string
	err = r.prom.ObserveDB("users.create.codes", func() error {
		rows, e := tx.Query(ctx, `SELECT employee_code FROM users WHERE role = $1`, nu.Role)
		if e != nil {
			return e
		}
		codes, e = pgx.CollectRows(rows, pgx.RowTo[string])
		return e
	})
	if err != nil {
		return
	}

	now := time.Now().UTC()

	err = r.prom.ObserveDB("users.create.insert", func() error {
		var e error
		u, e = scanUser(tx.QueryRow(ctx, `
			INSERT INTO users (id, name, email, password_hash, role, department, employee_code, avatar, must_change_password, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
			RETURNING `+userColumns,
			uuid.NewString(), nu.Name, user.NormalizeEmail(nu.Email), nu.PasswordHash, nu.Role,
			nu.Department, user.NextCode(nu.Role, codes), nu.Avatar, nu.MustChangePassword, now,
		))
		return e
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "users_email_lower_uniq" {
			err = user.ErrDuplicateEmail
		}
		return
	}

	err = tx.Commit(ctx)
	return
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return user.ErrNotFound
	}

	var affected int64
	err := r.prom.ObserveDB("users.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	if uuid.Validate(id) != nil {
		return user.ErrNotFound
	}

	var affected int64
	err := r.prom.ObserveDB("users.update_password", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE users
			SET password_hash = $2, must_change_password = FALSE, updated_at = NOW()
			WHERE id = $1
		`, id, hash)
		affected = tag.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UsersRepo) List(ctx context.Context, filter user.ListFilter) ([]user.User, error) {
	out := []user.User{}

	err := r.prom.ObserveDB("users.list", func() error {
		var role *string
		if filter.Role != nil {
			s := string(*filter.Role)
			role = &s
		}

		rows, err := r.pool.Query(ctx, `
			SELECT `+userColumns+`
			FROM users
			WHERE ($1::text IS NULL OR role = $1)
			ORDER BY role DESC, employee_code ASC
		`, role)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return out, nil
}

func (r *UsersRepo) CountByRole(ctx context.Context, role user.Role) (int, error) {
	var n int
	err := r.prom.ObserveDB("users.count_by_role", func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, role).Scan(&n)
	})
	return n, err
}
