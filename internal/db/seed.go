package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/attendance/internal/config"
	"github.com/geocoder89/attendance/internal/domain/user"
)

type SeedStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	Create(ctx context.Context, u user.NewUser) (user.User, error)
}

type PasswordHasher interface {
	Hash(plain string) (string, error)
}

type SeedUser struct {
	Name       string
	Email      string
	Password   string
	Role       user.Role
	Department string
	Avatar     string
}

// SeedUsersFromConfig lists the accounts that must exist at startup.
func SeedUsersFromConfig(cfg config.Config) []SeedUser {
	var seeds []SeedUser

	if cfg.SeedManagerEmail != "" && cfg.SeedManagerPassword != "" {
		seeds = append(seeds, SeedUser{
			Name:       cfg.SeedManagerName,
			Email:      cfg.SeedManagerEmail,
			Password:   cfg.SeedManagerPassword,
			Role:       user.RoleManager,
			Department: cfg.SeedManagerDepartment,
		})
	}

	if cfg.SeedDemoUsers {
		seeds = append(seeds,
			SeedUser{
				Name:       "Sarah Jenkins",
				Email:      "sarah@company.com",
				Password:   cfg.SeedDemoPassword,
				Role:       user.RoleEmployee,
				Department: "Engineering",
				Avatar:     "https://i.pravatar.cc/150?u=sarah",
			},
			SeedUser{
				Name:       "Michael Chen",
				Email:      "michael@company.com",
				Password:   cfg.SeedDemoPassword,
				Role:       user.RoleManager,
				Department: "Engineering",
				Avatar:     "https://i.pravatar.cc/150?u=michael",
			},
		)
	}

	return seeds
}

// EnsureSeedUsers creates every seed whose email is not taken yet. Existing
// accounts are left untouched, including their passwords.
func EnsureSeedUsers(ctx context.Context, store SeedStore, hasher PasswordHasher, seeds []SeedUser, log *slog.Logger) error {
	for _, s := range seeds {
		_, err := store.GetByEmail(ctx, s.Email)

		if err == nil {
			continue
		}

		if !errors.Is(err, user.ErrNotFound) {
			return err
		}

		hash, err := hasher.Hash(s.Password)

		if err != nil {
			return err
		}

		var avatar *string
		if s.Avatar != "" {
			a := s.Avatar
			avatar = &a
		}

		u, err := store.Create(ctx, user.NewUser{
			Name:               s.Name,
			Email:              s.Email,
			PasswordHash:       hash,
			Role:               s.Role,
			Department:         s.Department,
			Avatar:             avatar,
			MustChangePassword: true,
		})

		// another instance may have seeded it between the lookup and the insert
		if errors.Is(err, user.ErrDuplicateEmail) {
			continue
		}

		if err != nil {
			return err
		}

		log.Info("seeded user", "user_id", u.ID, "role", u.Role, "employee_code", u.EmployeeCode)
	}

	return nil
}
