package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/geocoder89/attendance/internal/actorctx"
	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/geocoder89/attendance/internal/events"
	"github.com/geocoder89/attendance/internal/observability"
)

type CreateEmployeeRequest struct {
	Name       string  `json:"name" binding:"required,max=200"`
	Email      string  `json:"email" binding:"required,email"`
	Department string  `json:"department" binding:"required,max=200"`
	Password   string  `json:"password" binding:"required,min=8,max=72"`
	Role       string  `json:"role" binding:"omitempty,oneof=employee manager"`
	Avatar     *string `json:"avatar" binding:"omitempty,url"`
}

type EmployeeService struct {
	users     CredentialStore
	hasher    PasswordHasher
	publisher Publisher
	stats     StatsCache
	prom      *observability.Prom
	log       *slog.Logger
	today     func() string
}

func NewEmployeeService(users CredentialStore, hasher PasswordHasher, publisher Publisher, stats StatsCache, prom *observability.Prom, log *slog.Logger, today func() string) *EmployeeService {
	return &EmployeeService{
		users:     users,
		hasher:    hasher,
		publisher: publisher,
		stats:     stats,
		prom:      prom,
		log:       log,
		today:     today,
	}
}

func DefaultAvatar(email string) string {
	return "https://i.pravatar.cc/150?u=" + url.QueryEscape(user.NormalizeEmail(email))
}

// Create adds an account that must change its password on first login.
// The store assigns the employee code.
func (s *EmployeeService) Create(ctx context.Context, actor actorctx.Actor, req CreateEmployeeRequest) (user.User, error) {
	role := user.RoleEmployee
	if req.Role != "" {
		r, err := user.ParseRole(req.Role)
		if err != nil {
			return user.User{}, err
		}
		role = r
	}

	if len(req.Password) < MinPasswordLength {
		return user.User{}, ErrWeakPassword
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("hash password: %w", err)
	}

	avatar := DefaultAvatar(req.Email)
	if req.Avatar != nil && strings.TrimSpace(*req.Avatar) != "" {
		avatar = strings.TrimSpace(*req.Avatar)
	}

	u, err := s.users.Create(ctx, user.NewUser{
		Name:               strings.TrimSpace(req.Name),
		Email:              user.NormalizeEmail(req.Email),
		PasswordHash:       hash,
		Role:               role,
		Department:         strings.TrimSpace(req.Department),
		Avatar:             &avatar,
		MustChangePassword: true,
	})
	if err != nil {
		return user.User{}, err
	}

	s.log.InfoContext(ctx, "employee created",
		"user_id", u.ID,
		"employee_code", u.EmployeeCode,
		"created_by", actor.UserID,
	)

	s.invalidateStats(ctx)
	publish(ctx, s.publisher, s.prom, s.log, events.TypeEmployeeCreated, events.EmployeeCreatedPayload{
		UserID:       u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         string(u.Role),
		EmployeeCode: u.EmployeeCode,
		CreatedBy:    actor.UserID,
	})

	return u, nil
}

// Delete removes a user and, through the store, their attendance records.
func (s *EmployeeService) Delete(ctx context.Context, actor actorctx.Actor, id string) error {
	if id == actor.UserID {
		return ErrSelfDelete
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "employee deleted", "user_id", id, "deleted_by", actor.UserID)

	s.invalidateStats(ctx)
	publish(ctx, s.publisher, s.prom, s.log, events.TypeEmployeeDeleted, events.EmployeeDeletedPayload{
		UserID:    id,
		DeletedBy: actor.UserID,
	})
	return nil
}

func (s *EmployeeService) List(ctx context.Context, filter user.ListFilter) ([]user.User, error) {
	return s.users.List(ctx, filter)
}

func (s *EmployeeService) invalidateStats(ctx context.Context) {
	if s.stats != nil && s.today != nil {
		s.stats.Invalidate(ctx, s.today())
	}
}
