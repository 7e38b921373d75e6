package session

import (
	"fmt"
	"io"

	"github.com/valyala/fasttemplate"
)

type MessageID string

const (
	MessageSessionExpired     MessageID = "session_expired"
	MessageExpiryWarning      MessageID = "expiry_warning"
	MessageLoginFailed        MessageID = "login_failed"
	MessageVerifyFailed       MessageID = "verify_failed"
	MessageSignedOutElsewhere MessageID = "signed_out_elsewhere"
	MessageRefreshThrottled   MessageID = "refresh_throttled"
)

var defaultMessages = map[MessageID]string{
	MessageSessionExpired:     "Your session has expired. Please sign in again.",
	MessageExpiryWarning:      "Your session will expire in {{minutes}} minutes. Continue to stay signed in.",
	MessageLoginFailed:        "Sign in failed: {{reason}}",
	MessageVerifyFailed:       "Could not verify your session: {{reason}}",
	MessageSignedOutElsewhere: "You were signed out in another window.",
	MessageRefreshThrottled:   "Too many attempts to extend your session. Try again in a minute.",
}

type messages struct {
	templates map[MessageID]*fasttemplate.Template
}

func newMessages(overrides map[MessageID]string) (*messages, error) {
	m := &messages{templates: make(map[MessageID]*fasttemplate.Template, len(defaultMessages))}
	for id, text := range defaultMessages {
		if override, ok := overrides[id]; ok {
			text = override
		}
		t, err := fasttemplate.NewTemplate(text, "{{", "}}")
		if err != nil {
			return nil, fmt.Errorf("[newMessages] invalid template %s: %w", id, err)
		}
		m.templates[id] = t
	}
	return m, nil
}

// render fills the template for id. Missing arguments render as empty strings.
func (m *messages) render(id MessageID, args map[string]string) string {
	t, ok := m.templates[id]
	if !ok {
		return string(id)
	}
	return t.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		return w.Write([]byte(args[tag]))
	})
}
