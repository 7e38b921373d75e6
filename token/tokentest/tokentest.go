// Package tokentest mints signed tokens for tests.
package tokentest

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Secret is the HMAC key tokens are signed with.
const Secret = "tokentest-secret"

type Claims struct {
	Subject   string
	Name      string
	Email     string
	Picture   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Mint returns an HS256 token carrying c.
func Mint(tb testing.TB, c Claims) string {
	tb.Helper()

	claims := jwtlib.MapClaims{
		"sub": c.Subject,
		"exp": c.ExpiresAt.Unix(),
		"jti": uuid.New().String(),
	}
	if !c.IssuedAt.IsZero() {
		claims["iat"] = c.IssuedAt.Unix()
	}
	if c.Name != "" {
		claims["name"] = c.Name
	}
	if c.Email != "" {
		claims["email"] = c.Email
	}
	if c.Picture != "" {
		claims["picture"] = c.Picture
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte(Secret))
	if err != nil {
		tb.Fatalf("tokentest: failed to sign token: %v", err)
	}
	return signed
}

// ExpiringIn mints a token for a default user that expires d after now.
func ExpiringIn(tb testing.TB, now time.Time, d time.Duration) string {
	tb.Helper()
	return Mint(tb, Claims{
		Subject:   "user-1",
		Name:      "Ana Lima",
		Email:     "ana@example.com",
		IssuedAt:  now,
		ExpiresAt: now.Add(d),
	})
}
