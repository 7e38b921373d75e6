package authfake

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-session/users"
)

// IssuedToken is a verified session token.
type IssuedToken struct {
	Subject   string
	ID        string
	ExpiresAt time.Time
}

// Issuer creates and validates the fake backend's session tokens.
type Issuer struct {
	signer  *HMACSigner
	issuer  string
	ttl     time.Duration
	nowFunc func() time.Time
}

func NewIssuer(signer *HMACSigner, issuer string, ttl time.Duration, now func() time.Time) *Issuer {
	return &Issuer{
		signer:  signer,
		issuer:  issuer,
		ttl:     ttl,
		nowFunc: now,
	}
}

// Issue creates a session token for user.
func (i *Issuer) Issue(user *users.User) (string, error) {
	now := i.nowFunc()
	claims := jwtlib.MapClaims{
		"iss":   i.issuer,              // Issuer of the token
		"sub":   user.ID,               // Users unique ID
		"name":  user.Name,             // Display name
		"email": user.Email,            // Email address
		"iat":   now.Unix(),            // Issued At
		"exp":   now.Add(i.ttl).Unix(), // Expiry
		"jti":   uuid.New().String(),   // Unique token ID for revocation
	}
	if user.PictureURL != "" {
		claims["picture"] = user.PictureURL
	}
	return i.signer.Sign(claims)
}

// Verify checks the signature and expiry of raw.
func (i *Issuer) Verify(raw string) (*IssuedToken, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("[Issuer Verify] empty token")
	}

	parsed, err := jwtlib.ParseWithClaims(raw, jwtlib.MapClaims{}, i.signer.VerificationKey,
		jwtlib.WithTimeFunc(i.nowFunc),
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, fmt.Errorf("[Issuer Verify] invalid token: %w", err)
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("[Issuer Verify] error extracting claims from token")
	}
	sub, _ := claims.GetSubject()
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("[Issuer Verify] token missing exp claim")
	}
	jti, _ := claims["jti"].(string)

	return &IssuedToken{Subject: sub, ID: jti, ExpiresAt: exp.Time}, nil
}
