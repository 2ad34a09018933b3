package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/carebase/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TwoFactorAttemptRepository defines TOTP verification attempt persistence
type TwoFactorAttemptRepository interface {
	RecordAttempt(ctx context.Context, attempt *models.TwoFactorAttempt) error
	GetFailedAttemptCount(ctx context.Context, userID int64, since time.Time) (int, error)
	DeleteExpiredAttempts(ctx context.Context, threshold time.Time) (int64, error)
}

type twoFactorAttemptRepoImpl struct {
	db *pgxpool.Pool
}

func NewTwoFactorAttemptRepository(db *pgxpool.Pool) TwoFactorAttemptRepository {
	return &twoFactorAttemptRepoImpl{db: db}
}

func (r *twoFactorAttemptRepoImpl) RecordAttempt(ctx context.Context, attempt *models.TwoFactorAttempt) error {
	query := `
		INSERT INTO two_factor_attempts (user_id, ip_address, success, failure_reason, attempted_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, attempted_at
	`

	err := r.db.QueryRow(ctx, query,
		attempt.UserID,
		attempt.IPAddress,
		attempt.Success,
		attempt.FailureReason,
	).Scan(&attempt.ID, &attempt.AttemptedAt)
	if err != nil {
		return fmt.Errorf("failed to record 2FA attempt: %w", err)
	}

	return nil
}

// GetFailedAttemptCount counts failed verifications for a user since the given time
func (r *twoFactorAttemptRepoImpl) GetFailedAttemptCount(ctx context.Context, userID int64, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM two_factor_attempts
		WHERE user_id = $1 AND success = false AND attempted_at >= $2
	`

	var count int
	if err := r.db.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get failed attempt count: %w", err)
	}

	return count, nil
}

func (r *twoFactorAttemptRepoImpl) DeleteExpiredAttempts(ctx context.Context, threshold time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM two_factor_attempts WHERE attempted_at < $1`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired 2FA attempts: %w", err)
	}

	return result.RowsAffected(), nil
}
