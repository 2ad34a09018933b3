package models

import "time"

// LoginAttempt is one row of the login audit trail.
type LoginAttempt struct {
	ID            int64     `db:"id"`
	Identifier    string    `db:"identifier"`
	UserID        *int64    `db:"user_id"`
	IPAddress     string    `db:"ip_address"`
	UserAgent     string    `db:"user_agent"`
	AttemptTime   time.Time `db:"attempt_time"`
	Success       bool      `db:"success"`
	FailureReason *string   `db:"failure_reason"`
}

// TwoFactorAttempt records one TOTP verification for throttling.
type TwoFactorAttempt struct {
	ID            int64
	UserID        int64
	IPAddress     string
	Success       bool
	FailureReason *string
	AttemptedAt   time.Time
}

// Failure reasons stored with attempts
const (
	FailureReasonUnknownIdentifier = "unknown_identifier"
	FailureReasonBadPassword       = "bad_password"
	FailureReasonLocked            = "account_locked"
	FailureReasonDisabled          = "account_disabled"
	FailureReasonInvalidCode       = "invalid_code"
)
