package scheduler

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-session/internal/errors"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FixedRefreshInterval = 15 * time.Minute
	WarningWindow        = 5 * time.Minute
	SafetyMargin         = 60 * time.Second
	CountdownTick        = time.Second
)

// Timer is the handle returned by an AfterFunc. *time.Timer satisfies it.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Timings struct {
	RefreshInterval time.Duration
	WarningWindow   time.Duration
	SafetyMargin    time.Duration
	CountdownTick   time.Duration
}

func DefaultTimings() Timings {
	return Timings{
		RefreshInterval: FixedRefreshInterval,
		WarningWindow:   WarningWindow,
		SafetyMargin:    SafetyMargin,
		CountdownTick:   CountdownTick,
	}
}

// Status is a snapshot of what the scheduler currently has armed.
type Status struct {
	RefreshArmed bool
	WarningArmed bool
	RefreshAt    time.Time
	WarningAt    time.Time
	ExpiresAt    time.Time
}

// Scheduler arms a proactive refresh and an expiry warning for the current
// session token. At most one refresh timer and one warning timer exist at a
// time; arming always replaces whatever was armed before.
type Scheduler struct {
	onRefresh func()
	nowFunc   func() time.Time
	afterFunc AfterFunc
	timings   Timings
	logger    zerolog.Logger

	lock         sync.Mutex
	generation   uint64
	refreshTimer Timer
	warningTimer Timer
	countdown    *Countdown
	status       Status
}

type Option func(*Scheduler)

func WithNowFunc(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.nowFunc = now
	}
}

func WithAfterFunc(afterFunc AfterFunc) Option {
	return func(s *Scheduler) {
		s.afterFunc = afterFunc
	}
}

// WithTimings overrides the default intervals. Zero fields keep their defaults.
func WithTimings(t Timings) Option {
	return func(s *Scheduler) {
		if t.RefreshInterval > 0 {
			s.timings.RefreshInterval = t.RefreshInterval
		}
		if t.WarningWindow > 0 {
			s.timings.WarningWindow = t.WarningWindow
		}
		if t.SafetyMargin > 0 {
			s.timings.SafetyMargin = t.SafetyMargin
		}
		if t.CountdownTick > 0 {
			s.timings.CountdownTick = t.CountdownTick
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func New(onRefresh func(), options ...Option) *Scheduler {
	s := &Scheduler{
		onRefresh: onRefresh,
		nowFunc:   time.Now,
		afterFunc: realAfterFunc,
		timings:   DefaultTimings(),
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Scheduler) Timings() Timings {
	return s.timings
}

// WarningMinutes is the minutes-left value passed to warning callbacks.
func (s *Scheduler) WarningMinutes() int {
	return int(s.timings.WarningWindow / time.Minute)
}

// Arm disarms any existing timers and schedules a refresh and, when the token
// lives longer than the warning window, an expiry warning for raw. A token
// that cannot be decoded returns ErrDecode and a token already past its expiry
// returns ErrTokenExpired; in both cases nothing is armed.
func (s *Scheduler) Arm(raw string, onWarning func(minutesLeft int)) error {
	claims, err := token.Decode(raw)
	if err != nil {
		s.Disarm()
		return err
	}

	now := s.nowFunc()
	untilExpiry := claims.TimeUntilExpiry(now)
	if untilExpiry <= 0 {
		s.Disarm()
		return errors.Wrapf(errors.ErrTokenExpired, "[Scheduler Arm] token for %s expired at %s", claims.Subject, claims.Expiry().Format(time.RFC3339))
	}

	refreshDelay := min(s.timings.RefreshInterval, untilExpiry-s.timings.SafetyMargin)
	if refreshDelay < 0 {
		refreshDelay = 0
	}

	s.lock.Lock()
	previous := s.disarmLocked()
	defer func() {
		s.lock.Unlock()
		previous.Stop()
	}()

	gen := s.generation
	s.status.ExpiresAt = claims.Expiry()
	s.status.RefreshArmed = true
	s.status.RefreshAt = now.Add(refreshDelay)
	s.refreshTimer = s.afterFunc(refreshDelay, func() {
		if !s.claim(gen, func() { s.refreshTimer = nil; s.status.RefreshArmed = false }) {
			return
		}
		s.logger.Debug().Str("sub", claims.Subject).Msg("Refresh timer fired")
		if s.onRefresh != nil {
			s.onRefresh()
		}
	})

	if untilExpiry > s.timings.WarningWindow && onWarning != nil {
		warningDelay := untilExpiry - s.timings.WarningWindow
		minutes := s.WarningMinutes()
		s.status.WarningArmed = true
		s.status.WarningAt = now.Add(warningDelay)
		s.warningTimer = s.afterFunc(warningDelay, func() {
			if !s.claim(gen, func() { s.warningTimer = nil; s.status.WarningArmed = false }) {
				return
			}
			onWarning(minutes)
		})
	}

	s.logger.Debug().
		Str("sub", claims.Subject).
		Dur("refresh_in", refreshDelay).
		Bool("warning", s.status.WarningArmed).
		Time("expires_at", s.status.ExpiresAt).
		Msg("Session timers armed")
	return nil
}

// claim reports whether a firing timer still belongs to the current
// generation, applying clear under the lock when it does.
func (s *Scheduler) claim(gen uint64, clear func()) bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	if gen != s.generation {
		return false
	}
	clear()
	return true
}

// Disarm cancels the refresh and warning timers and any running countdown.
// Calling it with nothing armed is a no-op.
func (s *Scheduler) Disarm() {
	s.lock.Lock()
	countdown := s.disarmLocked()
	s.lock.Unlock()

	countdown.Stop()
}

// disarmLocked stops both timers and starts a new generation. The caller
// holds the lock and stops the returned countdown after releasing it.
func (s *Scheduler) disarmLocked() *Countdown {
	s.generation++
	if s.refreshTimer != nil {
		s.refreshTimer.Stop()
		s.refreshTimer = nil
	}
	if s.warningTimer != nil {
		s.warningTimer.Stop()
		s.warningTimer = nil
	}
	countdown := s.countdown
	s.countdown = nil
	s.status = Status{}
	return countdown
}

func (s *Scheduler) Status() Status {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.status
}

// StartCountdown replaces any running countdown with one that reports the time
// left until expiresAt every tick and calls onDone once it reaches zero. The
// countdown is stopped by the next Arm or Disarm.
func (s *Scheduler) StartCountdown(expiresAt time.Time, onTick func(remaining time.Duration), onDone func()) *Countdown {
	c := &Countdown{
		expiresAt: expiresAt,
		tick:      s.timings.CountdownTick,
		nowFunc:   s.nowFunc,
		afterFunc: s.afterFunc,
		onTick:    onTick,
		onDone:    onDone,
	}

	s.lock.Lock()
	previous := s.countdown
	s.countdown = c
	s.lock.Unlock()

	previous.Stop()
	c.schedule(0)
	return c
}
