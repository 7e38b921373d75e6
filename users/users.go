package users

import (
	"strings"
	"time"
)

// User is the signed-in identity as seen by the client. It is derived from the
// session token claims and, when available, the backend's login/profile response.
type User struct {
	ID         string    `json:"id,omitempty"`              // Token subject
	Name       string    `json:"name,omitempty"`            // Display name
	Email      string    `json:"email,omitempty"`           // User's email address
	PictureURL string    `json:"profile_picture,omitempty"` // Avatar URL (login/profile responses only)
	LastLogin  time.Time `json:"last_login,omitempty"`      // Time of the last interactive login on this client
}

// Merge returns a copy of u with empty fields filled from other. Identity
// fields (ID) are never taken from other when u already has one.
func (u User) Merge(other *User) User {
	if other == nil {
		return u
	}
	if u.ID == "" {
		u.ID = other.ID
	}
	if u.Name == "" {
		u.Name = other.Name
	}
	if u.Email == "" {
		u.Email = other.Email
	}
	if u.PictureURL == "" {
		u.PictureURL = other.PictureURL
	}
	if u.LastLogin.IsZero() {
		u.LastLogin = other.LastLogin
	}
	return u
}

// DisplayName returns the best human readable label for the user.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if strings.TrimSpace(u.Name) != "" {
		return u.Name
	}
	return u.Email
}

// SameIdentity reports whether both users refer to the same subject.
func (u *User) SameIdentity(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.ID == other.ID
}
