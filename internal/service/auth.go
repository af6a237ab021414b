package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/attendance/internal/auth"
	"github.com/geocoder89/attendance/internal/domain/user"
)

type AuthService struct {
	users  CredentialStore
	hasher PasswordHasher
	tokens TokenIssuer
	log    *slog.Logger
}

func NewAuthService(users CredentialStore, hasher PasswordHasher, tokens TokenIssuer, log *slog.Logger) *AuthService {
	return &AuthService{users: users, hasher: hasher, tokens: tokens, log: log}
}

// Login returns a session token and the user. Unknown email and wrong
// password both come back as ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, user.User, error) {
	u, err := s.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", user.User{}, ErrInvalidCredentials
		}
		return "", user.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if !s.hasher.Check(u.PasswordHash, password) {
		return "", user.User{}, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(identityOf(u))
	if err != nil {
		return "", user.User{}, fmt.Errorf("issue token: %w", err)
	}

	s.log.InfoContext(ctx, "user logged in", "user_id", u.ID, "role", u.Role)
	return token, u, nil
}

// VerifyToken never reports why a token was rejected.
func (s *AuthService) VerifyToken(token string) (*auth.Claims, bool) {
	return s.tokens.Verify(token)
}

// ChangePassword swaps the password and returns a fresh token without the
// must-change flag.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (string, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	if !s.hasher.Check(u.PasswordHash, oldPassword) {
		return "", ErrInvalidCredentials
	}

	if len(newPassword) < MinPasswordLength || newPassword == oldPassword {
		return "", ErrWeakPassword
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return "", err
	}

	u.MustChangePassword = false
	token, err := s.tokens.GenerateToken(identityOf(u))
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}

	s.log.InfoContext(ctx, "password changed", "user_id", u.ID)
	return token, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (user.User, error) {
	return s.users.GetByID(ctx, userID)
}

func identityOf(u user.User) auth.Identity {
	return auth.Identity{
		UserID:             u.ID,
		Email:              u.Email,
		Role:               string(u.Role),
		MustChangePassword: u.MustChangePassword,
	}
}
