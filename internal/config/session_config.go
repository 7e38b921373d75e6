package config

import (
	"strconv"
	"time"
)

type SessionConfig interface {
	GetRefreshInterval() time.Duration
	GetWarningWindow() time.Duration
	GetSafetyMargin() time.Duration
	GetCountdownTick() time.Duration
	GetRefreshPerMinute() int
	GetRefreshBurst() int
}

type Session struct {
	file *File
}

var _ SessionConfig = Session{}

func (s Session) GetRefreshInterval() time.Duration {
	return GetDuration("SESSION_REFRESH_INTERVAL", s.sessionValue(func(f SessionFile) string { return f.RefreshInterval }), 15*time.Minute)
}

func (s Session) GetWarningWindow() time.Duration {
	return GetDuration("SESSION_WARNING_WINDOW", s.sessionValue(func(f SessionFile) string { return f.WarningWindow }), 5*time.Minute)
}

func (s Session) GetSafetyMargin() time.Duration {
	return GetDuration("SESSION_SAFETY_MARGIN", s.sessionValue(func(f SessionFile) string { return f.SafetyMargin }), 60*time.Second)
}

func (s Session) GetCountdownTick() time.Duration {
	return GetDuration("SESSION_COUNTDOWN_TICK", s.sessionValue(func(f SessionFile) string { return f.CountdownTick }), time.Second)
}

func (s Session) GetRefreshPerMinute() int {
	if s.file != nil && s.file.Session.RefreshPerMinute > 0 {
		return getInt("SESSION_REFRESH_PER_MINUTE", s.file.Session.RefreshPerMinute)
	}
	return getInt("SESSION_REFRESH_PER_MINUTE", 6)
}

func (s Session) GetRefreshBurst() int {
	if s.file != nil && s.file.Session.RefreshBurst > 0 {
		return getInt("SESSION_REFRESH_BURST", s.file.Session.RefreshBurst)
	}
	return getInt("SESSION_REFRESH_BURST", 3)
}

func (s Session) sessionValue(get func(SessionFile) string) string {
	if s.file == nil {
		return ""
	}
	return get(s.file.Session)
}

func getInt(envVar string, defaultValue int) int {
	n, err := strconv.Atoi(GetEnv(envVar, ""))
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
