package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken is returned when an access token fails signature or claim checks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionNotFound covers every refresh miss: unknown token, wrong device, expired, already rotated.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned by Validate when a well-formed token has no live row behind it.
	ErrSessionExpired = errors.New("session expired or invalid")

	// ErrInvalidCredentials means the user exists but the password did not match.
	ErrInvalidCredentials = errors.New("invalid password")

	// ErrUserNotFound means no user has the presented username.
	ErrUserNotFound = errors.New("user not found")

	// ErrSessionCapReached is returned when a new device would exceed MaxSessionsPerUser.
	ErrSessionCapReached = errors.New("session limit reached")

	// ErrUserMissing means a live session points at a user that no longer exists.
	// It is an internal error, never a reason to treat the caller as authenticated.
	ErrUserMissing = errors.New("session user missing")

	// ErrInvalidInput is returned before any store access when required fields are absent.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")

	// ErrSigningKeyMissing is the ErrConfig case where no access-token key is configured.
	ErrSigningKeyMissing = fmt.Errorf("%w: signing key missing", ErrConfig)
)

// CapError carries the limit that refused a login.
type CapError struct {
	Limit  int
	Active int
}

func (e CapError) Error() string {
	return fmt.Sprintf("%s: %d of %d", ErrSessionCapReached, e.Active, e.Limit)
}

func (e CapError) Unwrap() error { return ErrSessionCapReached }
