// Package common defines shared constants and sentinel errors used across
// client and server layers of tokenkeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrConflict   = errors.New("concurrent modification")

	// Errors surfaced to callers of the session API. They are deliberately
	// coarse: the caller never learns why a token or credential was rejected.
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid token")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrMisconfiguration    = errors.New("misconfiguration")

	// Refresh token lifecycle errors.
	ErrTokenNotFound = errors.New("refresh token not found")
	ErrTokenInactive = errors.New("refresh token inactive")
	ErrTokenReused   = &reuseError{}

	// Access token errors.
	ErrTokenExpired = errors.New("token expired")

	ErrorInternal = errors.New("internal error")
)

// reuseError marks presentation of an already rotated refresh token. It
// matches ErrTokenInactive too, so callers that only care about "inactive"
// do not need a second check.
type reuseError struct{}

func (e *reuseError) Error() string { return "refresh token reused" }

func (e *reuseError) Is(target error) bool {
	return target == ErrTokenInactive
}
