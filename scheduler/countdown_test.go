package scheduler_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-auth-session/scheduler"
	"github.com/jrsteele09/go-auth-session/scheduler/clockfake"
	"github.com/jrsteele09/go-auth-session/token/tokentest"
	"github.com/stretchr/testify/require"
)

func TestCountdown_TicksToZero(t *testing.T) {
	clock := clockfake.New(start)
	sched := scheduler.New(nil,
		scheduler.WithNowFunc(clock.Now),
		scheduler.WithAfterFunc(clock.AfterFunc),
	)

	var ticks []time.Duration
	done := 0
	sched.StartCountdown(start.Add(3*time.Second), func(d time.Duration) { ticks = append(ticks, d) }, func() { done++ })

	clock.Advance(0)
	require.Equal(t, []time.Duration{3 * time.Second}, ticks)

	clock.Advance(10 * time.Second)
	require.Equal(t, []time.Duration{3 * time.Second, 2 * time.Second, time.Second}, ticks)
	require.Equal(t, 1, done)
	require.Zero(t, clock.Pending())
}

func TestCountdown_StopAndRearm(t *testing.T) {
	clock := clockfake.New(start)
	sched := scheduler.New(nil,
		scheduler.WithNowFunc(clock.Now),
		scheduler.WithAfterFunc(clock.AfterFunc),
	)

	ticks := 0
	done := 0
	c := sched.StartCountdown(start.Add(time.Minute), func(time.Duration) { ticks++ }, func() { done++ })
	clock.Advance(5 * time.Second)
	require.Equal(t, 6, ticks)

	c.Stop()
	c.Stop()
	require.True(t, c.Stopped())
	clock.Advance(time.Minute)
	require.Equal(t, 6, ticks)
	require.Zero(t, done)

	c = sched.StartCountdown(clock.Now().Add(time.Minute), func(time.Duration) { ticks++ }, func() { done++ })
	require.NoError(t, sched.Arm(tokentest.ExpiringIn(t, clock.Now(), time.Hour), nil))
	require.True(t, c.Stopped())
	clock.Advance(2 * time.Minute)
	require.Zero(t, done)
}

func TestCountdown_ReplacesPrevious(t *testing.T) {
	clock := clockfake.New(start)
	sched := scheduler.New(nil,
		scheduler.WithNowFunc(clock.Now),
		scheduler.WithAfterFunc(clock.AfterFunc),
	)

	first := sched.StartCountdown(start.Add(time.Minute), nil, nil)
	second := sched.StartCountdown(start.Add(2*time.Minute), nil, nil)
	require.True(t, first.Stopped())
	require.False(t, second.Stopped())
	require.Equal(t, start.Add(2*time.Minute), second.ExpiresAt())

	var nilCountdown *scheduler.Countdown
	nilCountdown.Stop()
}
