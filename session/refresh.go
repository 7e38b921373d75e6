package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-auth-session/events"
	"github.com/jrsteele09/go-auth-session/internal/errors"
)

const refreshKey = "refresh"

// Refresh exchanges the stored token for a new one and re-arms the timers.
// Concurrent callers share a single in-flight exchange. Refresh does not end
// the session on failure; callers decide how to clean up.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	v, err, shared := m.refreshes.Do(refreshKey, func() (any, error) {
		return m.refresh(ctx)
	})
	if shared {
		m.logger.Debug().Msg("Joined in-flight session refresh")
	}
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	if m.limiter != nil && !m.limiter.AllowN(m.nowFunc(), 1) {
		return "", fmt.Errorf("[Manager Refresh] %w", errors.ErrRefreshThrottled)
	}

	current, ok := m.store.Get()
	if !ok {
		return "", fmt.Errorf("[Manager Refresh] %w: %w", errors.ErrRefreshFailed, errors.ErrNoToken)
	}

	m.lock.Lock()
	epoch := m.epoch
	m.lock.Unlock()

	next, err := m.backend.Refresh(ctx, current)
	if err != nil {
		return "", fmt.Errorf("[Manager Refresh] %w: %w", errors.ErrRefreshFailed, err)
	}
	claims, err := m.store.Decode(next)
	if err != nil {
		return "", fmt.Errorf("[Manager Refresh] %w: %w", errors.ErrRefreshFailed, err)
	}

	m.lock.Lock()
	if m.epoch != epoch {
		m.lock.Unlock()
		return "", m.discardRefresh()
	}
	m.current = next
	m.lock.Unlock()

	if err := m.store.Set(next); err != nil {
		return "", fmt.Errorf("[Manager Refresh] %w: %w", errors.ErrRefreshFailed, err)
	}
	if _, err := m.arm(next); err != nil {
		return "", fmt.Errorf("[Manager Refresh] %w: %w", errors.ErrRefreshFailed, err)
	}

	// A sign-out that raced the store write above wins.
	m.lock.Lock()
	if m.epoch != epoch {
		current := m.current
		m.lock.Unlock()
		m.undoRefresh(next, current)
		return "", m.discardRefresh()
	}
	user := claims.User().Merge(m.state.User)
	m.state.Phase = PhaseAuthenticated
	m.state.IsAuthenticated = true
	m.state.IsLoading = false
	m.state.User = &user
	m.state.ExpiresAt = claims.Expiry()
	snapshot := m.state.clone()
	m.lock.Unlock()

	m.changes.Emit(snapshot)
	m.logger.Debug().Str("sub", claims.Subject).Time("expires_at", claims.Expiry()).Msg("Session refreshed")
	return next, nil
}

// undoRefresh puts storage and timers back the way the sign-out, or a login
// that followed it, left them.
func (m *Manager) undoRefresh(next, current string) {
	if current == "" {
		m.sched.Disarm()
		m.clearStore()
		return
	}
	if raw, ok := m.store.Get(); ok && raw == next {
		if err := m.store.Set(current); err != nil {
			m.logger.Err(err).Msg("Failed to restore stored token")
		}
	}
	if _, err := m.arm(current); err != nil {
		m.logger.Err(err).Msg("Failed to re-arm restored session")
	}
}

// discardRefresh reports a refresh whose session was signed out while the
// exchange was in flight.
func (m *Manager) discardRefresh() error {
	m.logger.Debug().Msg("Discarding refresh for a session that has ended")
	return fmt.Errorf("[Manager Refresh] %w: %w", errors.ErrRefreshFailed, errors.ErrSessionInvalid)
}

func (m *Manager) onRefreshTimer() {
	m.RefreshToken(context.Background())
}

// onWarning publishes the expiry warning and starts the countdown. A
// countdown that reaches zero ends the session.
func (m *Manager) onWarning(minutesLeft int) {
	expiresAt := m.sched.Status().ExpiresAt
	if expiresAt.IsZero() {
		m.lock.Lock()
		expiresAt = m.state.ExpiresAt
		m.lock.Unlock()
	}

	m.warnings.Emit(Warning{
		MinutesLeft: minutesLeft,
		ExpiresAt:   expiresAt,
		Message:     m.messages.render(MessageExpiryWarning, map[string]string{"minutes": fmt.Sprint(minutesLeft)}),
	})

	m.sched.StartCountdown(expiresAt,
		func(remaining time.Duration) { m.countdowns.Emit(remaining) },
		func() {
			m.logger.Info().Time("expires_at", expiresAt).Msg("Session expired")
			m.localSignOut(m.messages.render(MessageSessionExpired, nil), errors.ErrTokenExpired)
		},
	)
}

// onAuthFailed handles a request the guard could not recover. The guard has
// already cleared the stored token.
func (m *Manager) onAuthFailed(ev events.AuthFailed) {
	m.lock.Lock()
	wasAuthenticated := m.state.IsAuthenticated
	m.lock.Unlock()

	m.logger.Info().Err(ev.Reason).Msg("Authenticated request could not be recovered")
	message := ""
	if wasAuthenticated {
		message = m.messages.render(MessageSessionExpired, nil)
	}
	m.localSignOut(message, ev.Reason)
}

// onExternalChange reconciles the session with a token written or removed by
// another process.
func (m *Manager) onExternalChange() {
	raw, ok := m.store.Get()

	m.lock.Lock()
	current := m.current
	authenticated := m.state.IsAuthenticated
	m.lock.Unlock()

	switch {
	case !ok && current == "":
		return
	case !ok:
		m.logger.Info().Msg("Stored token removed elsewhere")
		message := ""
		if authenticated {
			message = m.messages.render(MessageSignedOutElsewhere, nil)
		}
		m.localSignOut(message, errors.ErrNoToken)
	case raw == current:
		return
	default:
		claims, err := m.arm(raw)
		if err != nil {
			m.logger.Info().Err(err).Msg("Ignoring unusable token written elsewhere")
			return
		}
		m.lock.Lock()
		m.current = raw
		previous := m.state.User
		m.lock.Unlock()

		user := claims.User()
		if previous.SameIdentity(&user) {
			user = user.Merge(previous)
		}
		m.settle(&user, "", claims.Expiry())
		m.logger.Info().Str("sub", claims.Subject).Msg("Adopted token written elsewhere")
	}
}
