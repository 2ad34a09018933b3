package models

import (
	"time"
)

// MaxFailedLoginAttempts is the number of consecutive bad passwords that locks an account.
const MaxFailedLoginAttempts = 5

// User is an account row joined with its role and profile display names.
type User struct {
	ID                  int64
	Email               string
	Login               string
	PasswordHash        string
	FailedLoginAttempts int
	IsLocked            bool
	IsActive            bool
	LastLoginAt         *time.Time

	TwoFactorEnabled bool
	TwoFactorSecret  *string // base32, nil when 2FA is off
	TwoFactorPinHash *string // bcrypt, nil when 2FA is off

	RoleID      *int64
	RoleName    string
	ProfileID   *int64
	ProfileName string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subject projects the identity claims carried by a session token.
func (u *User) Subject() SessionSubject {
	s := SessionSubject{
		UserID:      u.ID,
		Email:       u.Email,
		Login:       u.Login,
		RoleName:    u.RoleName,
		ProfileName: u.ProfileName,
	}
	if u.RoleID != nil {
		s.RoleID = *u.RoleID
	}
	if u.ProfileID != nil {
		s.ProfileID = *u.ProfileID
	}
	return s
}

// FailedLoginResult is the counter state after an atomic failed-login increment.
type FailedLoginResult struct {
	Attempts   int
	Locked     bool
	JustLocked bool // this increment is the one that locked the account
}
