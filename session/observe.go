package session

import "time"

// OnChange calls fn with every new state. The returned func unsubscribes.
func (m *Manager) OnChange(fn func(State)) func() {
	id := m.changes.AddListener(fn)
	return func() { m.changes.RemoveListener(id) }
}

func (m *Manager) OnError(fn func(ErrorEvent)) func() {
	id := m.errs.AddListener(fn)
	return func() { m.errs.RemoveListener(id) }
}

func (m *Manager) OnWarning(fn func(Warning)) func() {
	id := m.warnings.AddListener(fn)
	return func() { m.warnings.RemoveListener(id) }
}

// OnCountdown reports the time left every countdown tick after a warning.
func (m *Manager) OnCountdown(fn func(remaining time.Duration)) func() {
	id := m.countdowns.AddListener(fn)
	return func() { m.countdowns.RemoveListener(id) }
}
