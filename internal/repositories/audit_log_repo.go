package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/BradenHooton/carebase/internal/database"
	"github.com/BradenHooton/carebase/internal/models"
	pkglogger "github.com/BradenHooton/carebase/pkg/logger"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLogRepository handles audit log data access
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{pool: db.Pool}
}

// SaveAuditEvent implements logger.AuditSink. The actor_id metadata key,
// when present, is lifted into its own column.
func (r *AuditLogRepository) SaveAuditEvent(ctx context.Context, auditType string, event pkglogger.AuditEvent, at time.Time) error {
	var userID, actorID *int64
	if event.UserID != 0 {
		userID = &event.UserID
	}

	metadata := make(map[string]string, len(event.Metadata))
	for k, v := range event.Metadata {
		if k == "actor_id" {
			if id, err := strconv.ParseInt(v, 10, 64); err == nil {
				actorID = &id
				continue
			}
		}
		metadata[k] = v
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	query := `
		INSERT INTO audit_logs (audit_type, event_type, user_id, actor_id, success, ip_address, failure_reason, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, $9)
	`

	_, err = r.pool.Exec(ctx, query,
		auditType, event.EventType, userID, actorID, event.Success,
		event.IPAddress, event.FailureReason, metadataJSON, at,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}

	return nil
}

// ListByUser returns the most recent events about userID, newest first
func (r *AuditLogRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, audit_type, event_type, user_id, actor_id, success, ip_address, failure_reason, metadata, created_at
		FROM audit_logs
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}

	logs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.AuditLog, error) {
		var l models.AuditLog
		err := row.Scan(&l.ID, &l.AuditType, &l.EventType, &l.UserID, &l.ActorID, &l.Success,
			&l.IPAddress, &l.FailureReason, &l.Metadata, &l.CreatedAt)
		return &l, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit logs: %w", err)
	}

	return logs, nil
}

// DeleteBefore removes audit logs older than threshold
func (r *AuditLogRepository) DeleteBefore(ctx context.Context, threshold time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to delete audit logs: %w", err)
	}
	return result.RowsAffected(), nil
}
