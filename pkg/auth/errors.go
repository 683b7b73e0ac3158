package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when an operation needs a caller identity
	ErrNotAuthenticated = errors.New("Not authenticated")

	// ErrInvalidToken covers malformed, expired and revoked session tokens
	ErrInvalidToken = errors.New("invalid or expired token")
)

// AuthError is a failed sign-up or sign-in. Message is safe to show the caller.
type AuthError struct {
	Op      string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// ProfileLookupError means the profile of an authenticated identity could not be read
type ProfileLookupError struct {
	UserID string
	Err    error
}

func (e *ProfileLookupError) Error() string {
	return fmt.Sprintf("failed to load profile for user %s: %v", e.UserID, e.Err)
}

func (e *ProfileLookupError) Unwrap() error {
	return e.Err
}

// InvalidProfileFieldError is returned when a profile update touches a field
// the caller may not change
type InvalidProfileFieldError struct {
	Field string
}

func (e *InvalidProfileFieldError) Error() string {
	return fmt.Sprintf("profile field %q cannot be updated", e.Field)
}

// IsAuthError reports whether err is an *AuthError
func IsAuthError(err error) bool {
	var target *AuthError
	return errors.As(err, &target)
}

// IsProfileLookupError reports whether err is a *ProfileLookupError
func IsProfileLookupError(err error) bool {
	var target *ProfileLookupError
	return errors.As(err, &target)
}

// IsInvalidProfileField reports whether err is an *InvalidProfileFieldError
func IsInvalidProfileField(err error) bool {
	var target *InvalidProfileFieldError
	return errors.As(err, &target)
}
