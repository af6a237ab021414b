package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenTypeAccess = "access"

type Claims struct {
	UserID             string `json:"sub"`
	Email              string `json:"email"`
	Role               string `json:"role"`
	MustChangePassword bool   `json:"mcp"`
	TokenType          string `json:"typ"`
	JTI                string `json:"jti"`
	jwt.RegisteredClaims
}

// Identity is what gets embedded into a session token.
type Identity struct {
	UserID             string
	Email              string
	Role               string
	MustChangePassword bool
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock swaps the time source, used by tests to mint already-expired tokens.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now
	return &cp
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) GenerateToken(id Identity) (string, error) {
	now := m.now().UTC()

	claims := Claims{
		UserID:             id.UserID,
		Email:              id.Email,
		Role:               id.Role,
		MustChangePassword: id.MustChangePassword,
		TokenType:          tokenTypeAccess,
		JTI:                uuid.NewString(),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Subject:   id.UserID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *Manager) ParseAndValidate(tokenStr string) (claims *Claims, err error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256

		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	if err != nil {
		return
	}
	claims, ok := token.Claims.(*Claims)

	if !ok || !token.Valid {
		err = errors.New("invalid token")
		return
	}
	return
}

// Verify returns the claims of a valid session token. Every failure (expiry,
// bad signature, tampering, wrong type) is reported the same way.
func (m *Manager) Verify(tokenStr string) (*Claims, bool) {
	claims, err := m.ParseAndValidate(tokenStr)
	if err != nil {
		return nil, false
	}
	if claims.TokenType != tokenTypeAccess || claims.UserID == "" {
		return nil, false
	}
	return claims, true
}
