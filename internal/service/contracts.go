package service

import (
	"context"

	"github.com/geocoder89/attendance/internal/auth"
	"github.com/geocoder89/attendance/internal/domain/attendance"
	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/geocoder89/attendance/internal/events"
)

// CredentialStore is the user repository every service shares. Both
// repo/postgres.UsersRepo and repo/memory.UsersRepo satisfy it.
type CredentialStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Create(ctx context.Context, u user.NewUser) (user.User, error)
	Delete(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, hash string) error
	List(ctx context.Context, filter user.ListFilter) ([]user.User, error)
	CountByRole(ctx context.Context, role user.Role) (int, error)
}

type Ledger interface {
	FindByUserAndDate(ctx context.Context, userID, date string) (attendance.Record, error)
	GetByID(ctx context.Context, id string) (attendance.Record, error)
	Insert(ctx context.Context, rec attendance.Record) (attendance.Record, error)
	Update(ctx context.Context, id string, p attendance.Patch) (attendance.Record, error)
	ListByUser(ctx context.Context, userID string) ([]attendance.Record, error)
	ListAll(ctx context.Context, filter attendance.ListFilter) ([]attendance.WithUser, error)
	CountByDateAndStatus(ctx context.Context, date string) (map[attendance.Status]int, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Check(hash, plain string) bool
}

type TokenIssuer interface {
	GenerateToken(id auth.Identity) (string, error)
	Verify(token string) (*auth.Claims, bool)
}

type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

type Publisher interface {
	Publish(ctx context.Context, t events.Type, payload any) error
}

type StatsCache interface {
	Get(ctx context.Context, date string) (attendance.TeamStats, bool)
	Generation(ctx context.Context) (int64, bool)
	Set(ctx context.Context, date string, gen int64, s attendance.TeamStats)
	Invalidate(ctx context.Context, date string)
}
