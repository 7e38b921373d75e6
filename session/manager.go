// Package session owns the client's session lifecycle: it logs in, keeps the
// token refreshed, warns before expiry and signs out when the token can no
// longer be renewed.
package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/authapi"
	"github.com/jrsteele09/go-auth-session/events"
	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/scheduler"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/jrsteele09/go-auth-session/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	DefaultRefreshPerMinute = 6
	DefaultRefreshBurst     = 3
)

// Backend is the subset of the session API the manager calls.
type Backend interface {
	Login(ctx context.Context, credential string) (*authapi.Grant, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context, current string) (string, error)
	VerifySession(ctx context.Context) (bool, error)
	GetUser(ctx context.Context) (*users.User, error)
}

var _ Backend = (*authapi.Client)(nil)

type Manager struct {
	store      *token.Store
	backend    Backend
	sched      *scheduler.Scheduler
	authFailed *events.Bus[events.AuthFailed]
	limiter    *rate.Limiter
	refreshes  singleflight.Group
	messages   *messages
	nowFunc    func() time.Time
	logger     zerolog.Logger

	schedulerOptions []scheduler.Option
	messageOverrides map[MessageID]string
	watch            bool

	changes    events.Bus[State]
	errs       events.Bus[ErrorEvent]
	warnings   events.Bus[Warning]
	countdowns events.Bus[time.Duration]

	lock         sync.Mutex
	state        State
	current      string // token this manager last stored or adopted
	epoch        uint64 // advanced by every sign-out
	authFailedID events.ListenerID
	stopWatch    func() error
	closed       bool
}

type Option func(*Manager)

func WithNowFunc(now func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = now
		m.schedulerOptions = append(m.schedulerOptions, scheduler.WithNowFunc(now))
	}
}

func WithAfterFunc(afterFunc scheduler.AfterFunc) Option {
	return func(m *Manager) {
		m.schedulerOptions = append(m.schedulerOptions, scheduler.WithAfterFunc(afterFunc))
	}
}

func WithTimings(t scheduler.Timings) Option {
	return func(m *Manager) {
		m.schedulerOptions = append(m.schedulerOptions, scheduler.WithTimings(t))
	}
}

// WithRefreshLimit caps refresh attempts to perMinute with the given burst.
func WithRefreshLimit(perMinute, burst int) Option {
	return func(m *Manager) {
		if perMinute <= 0 || burst <= 0 {
			m.limiter = nil
			return
		}
		m.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
	}
}

// WithAuthFailed sets the bus guard failures are received on. Defaults to the
// process-wide bus.
func WithAuthFailed(bus *events.Bus[events.AuthFailed]) Option {
	return func(m *Manager) {
		m.authFailed = bus
	}
}

// WithWatch follows changes other processes make to the token storage.
func WithWatch(watch bool) Option {
	return func(m *Manager) {
		m.watch = watch
	}
}

func WithMessages(overrides map[MessageID]string) Option {
	return func(m *Manager) {
		m.messageOverrides = overrides
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
		m.schedulerOptions = append(m.schedulerOptions, scheduler.WithLogger(logger))
	}
}

func New(store *token.Store, backend Backend, options ...Option) (*Manager, error) {
	m := &Manager{
		store:      store,
		backend:    backend,
		authFailed: events.AuthFailedBus(),
		limiter:    rate.NewLimiter(rate.Every(time.Minute/DefaultRefreshPerMinute), DefaultRefreshBurst),
		nowFunc:    time.Now,
		logger:     log.Logger,
		state:      State{Phase: PhaseInitializing, IsLoading: true},
	}
	for _, opt := range options {
		opt(m)
	}

	msgs, err := newMessages(m.messageOverrides)
	if err != nil {
		return nil, err
	}
	m.messages = msgs
	m.sched = scheduler.New(m.onRefreshTimer, m.schedulerOptions...)

	if m.authFailed != nil {
		m.authFailedID = m.authFailed.AddListener(m.onAuthFailed)
	}
	if m.watch {
		stop, err := m.store.Watch(m.onExternalChange)
		if err != nil {
			m.logger.Err(err).Msg("Failed to watch token storage")
		} else {
			m.stopWatch = stop
		}
	}
	return m, nil
}

// State returns a snapshot of the current session.
func (m *Manager) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state.clone()
}

// Scheduler exposes the timers armed for the current token.
func (m *Manager) Scheduler() *scheduler.Scheduler {
	return m.sched
}

// Initialize restores a stored session. A stored token the backend still
// accepts becomes an authenticated session; an invalid one is discarded. When
// the backend cannot be asked the token is kept for the next attempt.
func (m *Manager) Initialize(ctx context.Context) {
	m.update(func(s *State) {
		s.Phase = PhaseInitializing
		s.IsLoading = true
	})

	raw, ok := m.store.Get()
	if !ok {
		m.settle(nil, "", time.Time{})
		return
	}
	stored := m.store.UserFromStoredToken()
	if stored == nil {
		m.logger.Info().Msg("Discarding undecodable stored token")
		m.clearStore()
		m.settle(nil, "", time.Time{})
		return
	}

	valid, err := m.backend.VerifySession(ctx)
	if err != nil {
		m.logger.Err(err).Msg("Failed to verify stored session")
		m.settle(nil, m.messages.render(MessageVerifyFailed, map[string]string{"reason": reason(err)}), time.Time{})
		m.publishError(err)
		return
	}
	if !valid {
		m.logger.Info().Str("sub", stored.ID).Msg("Stored session is no longer valid")
		m.clearStore()
		m.settle(nil, "", time.Time{})
		return
	}

	claims, err := m.arm(raw)
	if err != nil {
		m.logger.Info().Err(err).Msg("Stored session cannot be scheduled")
		m.clearStore()
		m.settle(nil, "", time.Time{})
		return
	}

	user := claims.User()
	if profile, err := m.backend.GetUser(ctx); err != nil {
		m.logger.Debug().Err(err).Msg("Profile fetch failed, using token claims")
	} else {
		user = user.Merge(profile)
	}

	m.lock.Lock()
	m.current = raw
	m.lock.Unlock()
	m.settle(&user, "", claims.Expiry())
}

// Login exchanges credential for a session. It never panics and reports
// failures in the result and the session error.
func (m *Manager) Login(ctx context.Context, credential string) LoginResult {
	m.update(func(s *State) {
		s.IsLoading = true
		s.Error = ""
	})

	fail := func(err error) LoginResult {
		msg := m.messages.render(MessageLoginFailed, map[string]string{"reason": reason(err)})
		m.logger.Err(err).Msg("Login failed")
		m.update(func(s *State) {
			s.IsLoading = false
			s.Error = msg
		})
		m.publishError(err)
		return LoginResult{Success: false, Error: msg}
	}

	if credential == "" {
		return fail(fmt.Errorf("[Manager Login] %w: empty credential", errors.ErrAuthRejected))
	}

	grant, err := m.backend.Login(ctx, credential)
	if err != nil {
		return fail(err)
	}
	m.lock.Lock()
	m.current = grant.Token
	m.lock.Unlock()
	if err := m.store.Set(grant.Token); err != nil {
		m.lock.Lock()
		m.current = ""
		m.lock.Unlock()
		return fail(err)
	}
	claims, err := m.arm(grant.Token)
	if err != nil {
		m.localSignOut("", nil)
		return fail(fmt.Errorf("[Manager Login] %w: %w", errors.ErrInvalidResponse, err))
	}

	user := claims.User().Merge(grant.User)
	if user.LastLogin.IsZero() {
		user.LastLogin = m.nowFunc()
	}

	m.settle(&user, "", claims.Expiry())

	m.logger.Info().Str("sub", user.ID).Time("expires_at", claims.Expiry()).Msg("Signed in")
	return LoginResult{Success: true, User: &user}
}

// Logout ends the session. The backend is told on a best-effort basis; local
// state is always cleared.
func (m *Manager) Logout(ctx context.Context) {
	m.signOut(ctx, "", nil)
}

// RefreshToken extends the session. On failure the session is ended and an
// explanatory error recorded.
func (m *Manager) RefreshToken(ctx context.Context) bool {
	if _, err := m.Refresh(ctx); err != nil {
		if errors.Is(err, errors.ErrSessionInvalid) {
			return false
		}
		m.logger.Err(err).Msg("Session refresh failed")
		msg := m.messages.render(MessageSessionExpired, nil)
		if errors.Is(err, errors.ErrRefreshThrottled) {
			msg = m.messages.render(MessageRefreshThrottled, nil)
		}
		m.signOut(ctx, msg, err)
		return false
	}
	return true
}

// ClearError removes the recorded error and leaves everything else alone.
func (m *Manager) ClearError() {
	m.update(func(s *State) {
		s.Error = ""
	})
}

// Close disarms timers and detaches from storage and the auth-failed bus. The
// stored token is left in place.
func (m *Manager) Close() error {
	m.lock.Lock()
	if m.closed {
		m.lock.Unlock()
		return nil
	}
	m.closed = true
	stop := m.stopWatch
	m.stopWatch = nil
	m.lock.Unlock()

	m.sched.Disarm()
	if m.authFailed != nil {
		m.authFailed.RemoveListener(m.authFailedID)
	}
	if stop != nil {
		return stop()
	}
	return nil
}

// arm schedules timers for raw and returns its claims.
func (m *Manager) arm(raw string) (*token.Claims, error) {
	claims, err := token.Decode(raw)
	if err != nil {
		return nil, err
	}
	if err := m.sched.Arm(raw, m.onWarning); err != nil {
		return nil, err
	}
	return claims, nil
}

// signOut tears the session down. When a token is still stored the backend is
// asked to revoke it first.
func (m *Manager) signOut(ctx context.Context, message string, cause error) {
	if _, ok := m.store.Get(); ok && m.backend != nil {
		if err := m.backend.Logout(ctx); err != nil {
			m.logger.Debug().Err(err).Msg("Backend logout failed")
		}
	}
	m.localSignOut(message, cause)
}

// localSignOut clears local state without talking to the backend.
func (m *Manager) localSignOut(message string, cause error) {
	m.lock.Lock()
	m.epoch++
	m.current = ""
	m.lock.Unlock()
	m.sched.Disarm()
	m.clearStore()
	m.settle(nil, message, time.Time{})
	if message != "" {
		m.publishErrorMessage(message, cause)
	}
}

func (m *Manager) clearStore() {
	if err := m.store.Clear(); err != nil {
		m.logger.Err(err).Msg("Failed to clear stored token")
	}
}

// settle records the outcome of an operation. A non-nil user means
// authenticated.
func (m *Manager) settle(user *users.User, message string, expiresAt time.Time) {
	m.update(func(s *State) {
		s.IsLoading = false
		s.Error = message
		s.User = user
		s.IsAuthenticated = user != nil
		s.ExpiresAt = expiresAt
		if user != nil {
			s.Phase = PhaseAuthenticated
		} else {
			s.Phase = PhaseUnauthenticated
		}
	})
}

func (m *Manager) update(apply func(*State)) {
	m.lock.Lock()
	apply(&m.state)
	snapshot := m.state.clone()
	m.lock.Unlock()
	m.changes.Emit(snapshot)
}

func (m *Manager) publishError(err error) {
	m.lock.Lock()
	msg := m.state.Error
	m.lock.Unlock()
	m.publishErrorMessage(msg, err)
}

func (m *Manager) publishErrorMessage(message string, err error) {
	m.errs.Emit(ErrorEvent{Message: message, Err: err, At: m.nowFunc()})
}

// reason renders err for a user-visible message.
func reason(err error) string {
	var statusErr *authapi.StatusError
	switch {
	case errors.Is(err, errors.ErrNetwork):
		return "the server could not be reached"
	case errors.Is(err, errors.ErrAuthRejected):
		return "the credential was rejected"
	case errors.Is(err, errors.ErrInvalidResponse):
		return "the server sent an unexpected response"
	case errors.As(err, &statusErr):
		return "the server returned " + strconv.Itoa(statusErr.StatusCode)
	default:
		return err.Error()
	}
}
