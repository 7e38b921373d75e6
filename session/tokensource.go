package session

import (
	"fmt"

	"github.com/jrsteele09/go-auth-session/internal/errors"
	"golang.org/x/oauth2"
)

type tokenSource struct {
	m *Manager
}

// TokenSource exposes the current session token to code built on
// golang.org/x/oauth2. It never refreshes; the manager's timers do that.
func (m *Manager) TokenSource() oauth2.TokenSource {
	return tokenSource{m: m}
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	raw, ok := ts.m.store.Get()
	if !ok {
		return nil, fmt.Errorf("[TokenSource Token] %w", errors.ErrNoToken)
	}
	claims, err := ts.m.store.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("[TokenSource Token] %w", err)
	}
	return &oauth2.Token{
		AccessToken: raw,
		TokenType:   "Bearer",
		Expiry:      claims.Expiry(),
	}, nil
}
