package token

import (
	"encoding/json"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
)

// Claims is the decoded, advisory view of a session token. It is produced
// without signature verification: the backend is the only verifier, so Claims
// may drive UI hints and timer scheduling but never authorization decisions.
type Claims struct {
	Subject   string // Users unique ID
	Name      string // Display name
	Email     string // Email address
	Picture   string // Optional avatar URL
	IssuedAt  int64  // Issued at time (seconds since epoch)
	ExpiresAt int64  // Expiration (seconds since epoch)
	ID        string // Unique token ID (jti), when present
}

// Decode parses the structure of a JWT and extracts its claims. It fails with
// errors.ErrDecode when the token is malformed or lacks a subject or expiry.
func Decode(raw string) (*Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.Wrapf(errors.ErrDecode, "empty token")
	}

	unverifiedToken, _, err := jwtlib.NewParser().ParseUnverified(raw, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Join(errors.ErrDecode, err)
	}

	claims, ok := unverifiedToken.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrapf(errors.ErrDecode, "error extracting claims")
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, errors.Wrapf(errors.ErrDecode, "token missing sub claim")
	}

	exp, ok := numericClaim(claims["exp"])
	if !ok {
		return nil, errors.Wrapf(errors.ErrDecode, "token missing exp claim")
	}

	iat, _ := numericClaim(claims["iat"])
	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	picture, _ := claims["picture"].(string)
	jti, _ := claims["jti"].(string)

	return &Claims{
		Subject:   sub,
		Name:      name,
		Email:     email,
		Picture:   picture,
		IssuedAt:  iat,
		ExpiresAt: exp,
		ID:        jti,
	}, nil
}

// Expiry returns the expiry as a time.Time
func (c *Claims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0).UTC()
}

// TimeUntilExpiry returns how long the token remains valid from now. It is
// negative or zero once the token has expired.
func (c *Claims) TimeUntilExpiry(now time.Time) time.Duration {
	return time.Duration(c.ExpiresAt*1000-now.UnixMilli()) * time.Millisecond
}

// Expired reports whether the token is expired at now
func (c *Claims) Expired(now time.Time) bool {
	return c.TimeUntilExpiry(now) <= 0
}

// User returns the identity carried by the claims
func (c *Claims) User() users.User {
	return users.User{
		ID:         c.Subject,
		Name:       c.Name,
		Email:      c.Email,
		PictureURL: c.Picture,
	}
}

func numericClaim(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, ferr := n.Float64()
			if ferr != nil {
				return 0, false
			}
			return int64(f), true
		}
		return i, true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
