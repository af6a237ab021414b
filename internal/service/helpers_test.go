package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/attendance/internal/auth"
	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/geocoder89/attendance/internal/events"
	"github.com/geocoder89/attendance/internal/lock"
	"github.com/geocoder89/attendance/internal/repo/memory"
	"github.com/geocoder89/attendance/internal/security"
	"golang.org/x/crypto/bcrypt"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type publishedEvent struct {
	Type    events.Type
	Payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, t events.Type, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{Type: t, Payload: payload})
	return nil
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	users      *memory.UsersRepo
	ledger     *memory.AttendanceRepo
	hasher     *security.Hasher
	tokens     *auth.Manager
	publisher  *recordingPublisher
	auth       *AuthService
	attendance *AttendanceService
	employees  *EmployeeService
	stats      *StatsService
	now        time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	f := &fixture{
		users:     memory.NewUsersRepo(store),
		ledger:    memory.NewAttendanceRepo(store),
		hasher:    security.NewHasher(bcrypt.MinCost),
		tokens:    auth.NewManager("test-secret", time.Hour),
		publisher: &recordingPublisher{},
		now:       time.Date(2024, 3, 4, 9, 45, 0, 0, time.UTC),
	}

	log := discardLogger()
	f.auth = NewAuthService(f.users, f.hasher, f.tokens, log)
	f.attendance = NewAttendanceService(f.ledger, lock.NewKeyedMutex(), f.publisher, nil, nil, log, time.UTC).
		WithClock(func() time.Time { return f.now })
	f.employees = NewEmployeeService(f.users, f.hasher, f.publisher, nil, nil, log, f.attendance.Today)
	f.stats = NewStatsService(f.users, f.ledger, nil, nil, f.attendance.Today)

	return f
}

func (f *fixture) seed(t *testing.T, email, password string, role user.Role) user.User {
	t.Helper()

	hash, err := f.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u, err := f.users.Create(context.Background(), user.NewUser{
		Name:               "Seeded " + email,
		Email:              email,
		PasswordHash:       hash,
		Role:               role,
		Department:         "Engineering",
		MustChangePassword: true,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", email, err)
	}
	return u
}
