package token

import (
	"fmt"
	"strings"

	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store is the single source of truth for the persisted session token. It has
// no knowledge of timers; callers re-arm scheduling after Set.
type Store struct {
	repo   Repo
	logger zerolog.Logger
}

type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

func NewStore(repo Repo, options ...StoreOption) *Store {
	s := &Store{
		repo:   repo,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Get returns the stored token, or false when none is stored. Backend read
// failures are logged and reported as absent.
func (s *Store) Get() (string, bool) {
	raw, err := s.repo.Get()
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			s.logger.Err(err).Msg("Failed to read stored token")
		}
		return "", false
	}
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	return raw, true
}

// Set persists raw, fully replacing any previous token.
func (s *Store) Set(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("[Store Set] refusing to store an empty token")
	}
	if err := s.repo.Set(raw); err != nil {
		return fmt.Errorf("[Store Set] failed to persist token: %w", err)
	}
	return nil
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	if err := s.repo.Clear(); err != nil && !errors.Is(err, errors.ErrNotFound) {
		return fmt.Errorf("[Store Clear] failed to remove token: %w", err)
	}
	return nil
}

// Decode parses raw without verifying its signature
func (s *Store) Decode(raw string) (*Claims, error) {
	return Decode(raw)
}

// Claims returns the decoded claims of the stored token, if any
func (s *Store) Claims() (*Claims, bool) {
	raw, ok := s.Get()
	if !ok {
		return nil, false
	}
	claims, err := Decode(raw)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// UserFromStoredToken returns the identity in the stored token, or nil when
// there is no token or it cannot be decoded. It is a UI hint only.
func (s *Store) UserFromStoredToken() *users.User {
	claims, ok := s.Claims()
	if !ok {
		return nil
	}
	u := claims.User()
	return &u
}

// Watch reports changes made to the underlying storage by other processes.
// Repos that cannot observe changes return a no-op stop function.
func (s *Store) Watch(onChange func()) (func() error, error) {
	w, ok := s.repo.(Watcher)
	if !ok {
		return func() error { return nil }, nil
	}
	return w.Watch(onChange)
}
