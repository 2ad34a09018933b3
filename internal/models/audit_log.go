package models

import "time"

// AuditLog is one persisted security event. Only account-level events
// (lockouts, unlocks, status changes and 2FA changes) are stored; login
// attempts have their own table.
type AuditLog struct {
	ID            int64             `json:"id"`
	AuditType     string            `json:"audit_type"`
	EventType     string            `json:"event_type"`
	UserID        *int64            `json:"user_id,omitempty"`
	ActorID       *int64            `json:"actor_id,omitempty"`
	Success       bool              `json:"success"`
	IPAddress     *string           `json:"ip_address,omitempty"`
	FailureReason *string           `json:"failure_reason,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// PersistedAuditEvents lists the event types written to audit_logs
var PersistedAuditEvents = []string{
	"account_locked",
	"account_unlocked",
	"account_activated",
	"account_deactivated",
	"2fa_enabled",
	"2fa_disabled",
	"2fa_disable_failed",
}
