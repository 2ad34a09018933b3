package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/carebase/internal/database"
	"github.com/BradenHooton/carebase/internal/models"
)

// LoginAttemptRepository keeps the login audit trail
type LoginAttemptRepository struct {
	db *database.DB
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{db: db}
}

// RecordAttempt stores one login attempt
func (r *LoginAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	query := `
		INSERT INTO login_attempts (identifier, user_id, ip_address, user_agent, success, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, attempt_time
	`

	err := r.db.Pool.QueryRow(ctx, query,
		attempt.Identifier,
		attempt.UserID,
		attempt.IPAddress,
		attempt.UserAgent,
		attempt.Success,
		attempt.FailureReason,
	).Scan(&attempt.ID, &attempt.AttemptTime)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}

	return nil
}

// DeleteAttemptsBefore purges audit rows older than threshold
func (r *LoginAttemptRepository) DeleteAttemptsBefore(ctx context.Context, threshold time.Time) (int64, error) {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM login_attempts WHERE attempt_time < $1`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to delete login attempts: %w", err)
	}
	return result.RowsAffected(), nil
}
