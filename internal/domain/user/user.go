package user

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
)

// Capability is something a role is allowed to do beyond its own records.
type Capability string

const (
	// CapManageTeam covers adding/removing employees, reading everyone's
	// attendance, amending records and team stats.
	CapManageTeam Capability = "manage_team"
)

var roleCapabilities = map[Role][]Capability{
	RoleEmployee: nil,
	RoleManager:  {CapManageTeam},
}

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email already exists")
	ErrInvalidRole    = errors.New("invalid role")
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleEmployee:
		return RoleEmployee, nil
	case RoleManager:
		return RoleManager, nil
	default:
		return "", ErrInvalidRole
	}
}

func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

func (r Role) Can(c Capability) bool {
	for _, granted := range roleCapabilities[r] {
		if granted == c {
			return true
		}
	}
	return false
}

// CodePrefix is the tag in front of the sequential employee code.
func (r Role) CodePrefix() string {
	if r == RoleManager {
		return "MGR"
	}
	return "EMP"
}

type User struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"` // never expose hash in JSON
	Role               Role      `json:"role"`
	Department         string    `json:"department"`
	EmployeeCode       string    `json:"employeeId"`
	Avatar             *string   `json:"avatar,omitempty"`
	MustChangePassword bool      `json:"mustChangePassword"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// NewUser is what the credential store needs to create an account. The
// employee code is assigned by the store.
type NewUser struct {
	Name               string
	Email              string
	PasswordHash       string
	Role               Role
	Department         string
	Avatar             *string
	MustChangePassword bool
}

type ListFilter struct {
	Role *Role
}

// Summary is the public slice of a user embedded in joined attendance rows.
type Summary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Role         Role    `json:"role"`
	Department   string  `json:"department"`
	EmployeeCode string  `json:"employeeId"`
	Avatar       *string `json:"avatar,omitempty"`
}

func (u User) Summary() Summary {
	return Summary{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         u.Role,
		Department:   u.Department,
		EmployeeCode: u.EmployeeCode,
		Avatar:       u.Avatar,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FormatCode renders the n-th code for a role, e.g. EMP007.
func FormatCode(role Role, n int) string {
	return fmt.Sprintf("%s%03d", role.CodePrefix(), n)
}

// CodeNumber extracts the sequence number from a code of the given role.
// Codes of another role or with a malformed suffix report false.
func CodeNumber(role Role, code string) (int, bool) {
	prefix := role.CodePrefix()
	if !strings.HasPrefix(code, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(code, prefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// NextCode returns the code following the highest existing one for role.
func NextCode(role Role, existing []string) string {
	max := 0
	for _, c := range existing {
		if n, ok := CodeNumber(role, c); ok && n > max {
			max = n
		}
	}
	return FormatCode(role, max+1)
}
