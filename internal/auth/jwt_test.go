package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/attendance/internal/auth"
	"github.com/golang-jwt/jwt/v5"
)

func testIdentity() auth.Identity {
	return auth.Identity{UserID: "user-1", Email: "sarah@company.com", Role: "employee", MustChangePassword: true}
}

func TestManager_RoundTrip(t *testing.T) {
	m := auth.NewManager("test-secret", 7*24*time.Hour)

	token, err := m.GenerateToken(testIdentity())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, ok := m.Verify(token)
	if !ok {
		t.Fatalf("expected token to verify")
	}
	if claims.UserID != "user-1" || claims.Email != "sarah@company.com" || claims.Role != "employee" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if !claims.MustChangePassword {
		t.Fatalf("expected mcp claim to survive the round trip")
	}
	if got := claims.ExpiresAt.Sub(claims.IssuedAt.Time); got != 7*24*time.Hour {
		t.Fatalf("expiry window: got %s", got)
	}
}

func TestManager_RejectsExpired(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)
	past := m.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })

	token, err := past.GenerateToken(testIdentity())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, ok := m.Verify(token); ok {
		t.Fatalf("expired token must not verify")
	}
}

func TestManager_RejectsForeignSecret(t *testing.T) {
	issuer := auth.NewManager("other-secret", time.Hour)
	m := auth.NewManager("test-secret", time.Hour)

	token, _ := issuer.GenerateToken(testIdentity())

	if _, ok := m.Verify(token); ok {
		t.Fatalf("token signed with another secret must not verify")
	}
}

func TestManager_RejectsTampering(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)
	token, _ := m.GenerateToken(testIdentity())

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape")
	}

	// re-sign the payload of a manager token with the employee's signature
	forged, _ := m.GenerateToken(auth.Identity{UserID: "user-1", Email: "sarah@company.com", Role: "manager"})
	forgedParts := strings.Split(forged, ".")
	tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]

	if _, ok := m.Verify(tampered); ok {
		t.Fatalf("tampered token must not verify")
	}
	if _, ok := m.Verify("garbage"); ok {
		t.Fatalf("garbage must not verify")
	}
	if _, ok := m.Verify(""); ok {
		t.Fatalf("empty token must not verify")
	}
}

func TestManager_RejectsNoneAlgorithm(t *testing.T) {
	m := auth.NewManager("test-secret", time.Hour)

	claims := auth.Claims{
		UserID:    "user-1",
		Role:      "manager",
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	if _, ok := m.Verify(unsigned); ok {
		t.Fatalf("alg=none must not verify")
	}
}
