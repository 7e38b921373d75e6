package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session client
var (
	// Token errors
	ErrDecode       = errors.New("malformed token")
	ErrTokenExpired = errors.New("token expired")
	ErrNoToken      = errors.New("no stored token")

	// Backend errors
	ErrAuthRejected    = errors.New("authentication rejected")
	ErrRefreshFailed   = errors.New("token refresh failed")
	ErrNetwork         = errors.New("network error")
	ErrInvalidResponse = errors.New("invalid response from backend")

	// Session errors
	ErrRefreshThrottled = errors.New("too many refresh attempts")
	ErrSessionInvalid   = errors.New("session is no longer valid")

	// General errors
	ErrNotFound = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines errors, dropping nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}
