package session

import (
	"time"

	"github.com/jrsteele09/go-auth-session/users"
)

// Phase is where the session is in its lifecycle.
type Phase int

const (
	PhaseInitializing Phase = iota
	PhaseUnauthenticated
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseInitializing:
		return "INITIALIZING"
	case PhaseUnauthenticated:
		return "UNAUTHENTICATED"
	case PhaseAuthenticated:
		return "AUTHENTICATED"
	default:
		return "UNKNOWN"
	}
}

// State is a snapshot of the session as the UI sees it. User is nil whenever
// IsAuthenticated is false.
type State struct {
	Phase           Phase
	User            *users.User
	IsAuthenticated bool
	IsLoading       bool
	Error           string
	ExpiresAt       time.Time
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

type LoginResult struct {
	Success bool
	User    *users.User
	Error   string
}

// ErrorEvent is published whenever the session records a user-visible error.
type ErrorEvent struct {
	Message string
	Err     error
	At      time.Time
}

// Warning is published when the session is about to expire.
type Warning struct {
	MinutesLeft int
	ExpiresAt   time.Time
	Message     string
}
