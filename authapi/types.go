package authapi

import "github.com/jrsteele09/go-auth-session/users"

// TokenRequest is the body of the login and refresh calls.
type TokenRequest struct {
	// Token is the credential being exchanged.
	// Login: the external credential (e.g. a Google ID token)
	// Refresh: the current session token
	Token string `json:"token"`
}

// LoginResponse is returned from the login endpoints.
type LoginResponse struct {
	// Token is the backend-issued session JWT.
	// Usage: Sent as "Authorization: Bearer <token>" on every later call
	Token *string `json:"token,omitempty"`

	// User is the backend's view of the signed-in user.
	// Note: Claims in Token take precedence; this fills in the picture URL
	User *users.User `json:"user,omitempty"`
}

// RefreshResponse is returned from the refresh endpoint.
type RefreshResponse struct {
	// Token replaces the current session token in full.
	Token *string `json:"token,omitempty"`
}

// SessionResponse is returned from the session check endpoint.
type SessionResponse struct {
	// Valid reports whether the bearer token is still accepted.
	// A missing field is treated as an invalid response, not as false
	Valid *bool `json:"valid,omitempty"`
}

// UserResponse is returned from the profile endpoint.
type UserResponse struct {
	User *users.User `json:"user,omitempty"`
}

// ErrorResponse is the body backends send with non-2xx statuses.
type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Grant is a successfully issued session token together with the user it
// belongs to.
type Grant struct {
	Token string
	User  *users.User
}
