package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
	ErrValidation     = errors.New("validation failed")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is locked")
	ErrAccountDisabled    = errors.New("account is disabled")

	// Session token errors
	ErrMissingToken      = errors.New("missing bearer token")
	ErrMalformedToken    = errors.New("malformed token")
	ErrInvalidSignature  = errors.New("invalid token signature")
	ErrTokenExpired      = errors.New("token expired")
	ErrInactivityExpired = errors.New("session expired due to inactivity")

	// Two-factor errors
	ErrTwoFactorNotEnabled  = errors.New("two-factor authentication is not enabled")
	ErrInvalidPin           = errors.New("invalid pin")
	ErrInvalidCode          = errors.New("invalid code")
	ErrTwoFactorRateLimited = errors.New("too many two-factor verification attempts")
)

// IsTokenError reports whether err belongs to the session token family.
func IsTokenError(err error) bool {
	return errors.Is(err, ErrMissingToken) ||
		errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrInactivityExpired)
}
