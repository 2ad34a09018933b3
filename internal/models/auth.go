package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionSubject is the identity embedded in a session token.
type SessionSubject struct {
	UserID      int64
	Email       string
	Login       string
	RoleID      int64
	RoleName    string
	ProfileID   int64
	ProfileName string
}

// SessionClaims is the signed payload of a session token.
// jti, iat, exp and nbf live in the embedded RegisteredClaims.
type SessionClaims struct {
	UserID       int64            `json:"user_id"`
	Email        string           `json:"email"`
	Login        string           `json:"login"`
	RoleID       int64            `json:"role_id,omitempty"`
	RoleName     string           `json:"role_name,omitempty"`
	ProfileID    int64            `json:"profile_id,omitempty"`
	ProfileName  string           `json:"profile_name,omitempty"`
	LastActivity *jwt.NumericDate `json:"last_activity"`
	jwt.RegisteredClaims
}

// Subject returns the identity portion of the claims.
func (c *SessionClaims) Subject() SessionSubject {
	return SessionSubject{
		UserID:      c.UserID,
		Email:       c.Email,
		Login:       c.Login,
		RoleID:      c.RoleID,
		RoleName:    c.RoleName,
		ProfileID:   c.ProfileID,
		ProfileName: c.ProfileName,
	}
}

// LastActivityTime falls back to iat for tokens that never carried last_activity.
func (c *SessionClaims) LastActivityTime() time.Time {
	if c.LastActivity != nil {
		return c.LastActivity.Time
	}
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}
