package logger

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	UserID        int64  // 0 when the account is unknown
	Identifier    string // login or email as submitted, masked before logging
	TokenID       string // jti of the session involved, if any
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditSink persists audit events next to the log stream
type AuditSink interface {
	SaveAuditEvent(ctx context.Context, auditType string, event AuditEvent, at time.Time) error
}

// AuditLogger writes structured audit records through slog and, for the
// event types registered with WithSink, to a durable sink
type AuditLogger struct {
	logger    *slog.Logger
	now       func() time.Time
	sink      AuditSink
	persisted map[string]bool
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// WithSink persists the listed event types through sink. Sink failures
// are logged and never surface to the caller.
func (al *AuditLogger) WithSink(sink AuditSink, eventTypes ...string) *AuditLogger {
	al.sink = sink
	al.persisted = make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		al.persisted[t] = true
	}
	return al
}

// LogAuthAttempt logs login attempts
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	al.log("auth", event)
}

// LogSessionEvent logs token verification and activity refresh
func (al *AuditLogger) LogSessionEvent(event AuditEvent) {
	al.log("session", event)
}

// LogTwoFactorEvent logs 2FA enable, disable and verify
func (al *AuditLogger) LogTwoFactorEvent(event AuditEvent) {
	al.log("two_factor", event)
}

// LogAccountAction logs administrative account changes
func (al *AuditLogger) LogAccountAction(eventType string, actorID, userID int64, metadata map[string]string) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadata["actor_id"] = strconv.FormatInt(actorID, 10)
	al.log("account", AuditEvent{
		EventType: eventType,
		UserID:    userID,
		Success:   true,
		Metadata:  metadata,
	})
}

func (al *AuditLogger) log(auditType string, event AuditEvent) {
	at := al.now()
	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", at.UTC().Format(time.RFC3339)),
	}

	if event.UserID != 0 {
		attrs = append(attrs, slog.Int64("user_id", event.UserID))
	}
	if event.Identifier != "" {
		attrs = append(attrs, slog.String("identifier", SanitizedIdentifier(event.Identifier)))
	}
	if event.TokenID != "" {
		attrs = append(attrs, slog.String("jti", event.TokenID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)

	if al.sink != nil && al.persisted[event.EventType] {
		al.persist(auditType, event, at)
	}
}

func (al *AuditLogger) persist(auditType string, event AuditEvent, at time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := al.sink.SaveAuditEvent(ctx, auditType, event, at); err != nil {
		al.logger.Error("failed to persist audit event",
			slog.String("event_type", event.EventType),
			slog.Any("error", err))
	}
}
