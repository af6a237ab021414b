package memory

import (
	"context"
	"sort"
	"time"

	"github.com/geocoder89/attendance/internal/domain/user"
	"github.com/google/uuid"
)

type UsersRepo struct {
	s *Store
}

func NewUsersRepo(s *Store) *UsersRepo {
	return &UsersRepo{s: s}
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	email = user.NormalizeEmail(email)

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return r.s.users[id], nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) Create(_ context.Context, nu user.NewUser) (user.User, error) {
	if !nu.Role.Valid() {
		return user.User{}, user.ErrInvalidRole
	}

	email := user.NormalizeEmail(nu.Email)

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, taken := r.s.byEmail[email]; taken {
		return user.User{}, user.ErrDuplicateEmail
	}

	var codes []string
	for _, existing := range r.s.users {
		if existing.Role == nu.Role {
			codes = append(codes, existing.EmployeeCode)
		}
	}

	now := time.Now().UTC()
	u := user.User{
		ID:                 uuid.NewString(),
		Name:               nu.Name,
		Email:              email,
		PasswordHash:       nu.PasswordHash,
		Role:               nu.Role,
		Department:         nu.Department,
		EmployeeCode:       user.NextCode(nu.Role, codes),
		Avatar:             nu.Avatar,
		MustChangePassword: nu.MustChangePassword,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	r.s.users[u.ID] = u
	r.s.byEmail[email] = u.ID

	return u, nil
}

func (r *UsersRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	delete(r.s.users, id)
	delete(r.s.byEmail, u.Email)

	for recID := range r.s.byUser[id] {
		rec := r.s.attendance[recID]
		delete(r.s.byUserDate, userDateKey(id, rec.Date))
		delete(r.s.attendance, recID)
	}
	delete(r.s.byUser, id)
	return nil
}

func (r *UsersRepo) UpdatePassword(_ context.Context, id, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = hash
	u.MustChangePassword = false
	u.UpdatedAt = time.Now().UTC()
	r.s.users[id] = u
	return nil
}

func (r *UsersRepo) List(_ context.Context, filter user.ListFilter) ([]user.User, error) {
	r.s.mu.RLock()
	out := make([]user.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, u)
	}
	r.s.mu.RUnlock()

	// managers first, then by code
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role > out[j].Role
		}
		return out[i].EmployeeCode < out[j].EmployeeCode
	})
	return out, nil
}

func (r *UsersRepo) CountByRole(_ context.Context, role user.Role) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, u := range r.s.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}
