package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/carebase/internal/database"
	"github.com/BradenHooton/carebase/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

const userColumns = `
	u.id, u.email, u.login, u.password_hash, u.failed_login_attempts, u.is_locked, u.is_active,
	u.last_login_at, u.two_factor_enabled, u.two_factor_secret, u.two_factor_pin_hash,
	u.role_id, COALESCE(r.nom, ''), u.profile_id, COALESCE(p.nom, ''), u.created_at, u.updated_at`

const userFrom = `
	FROM users u
	LEFT JOIN roles r ON r.id = u.role_id
	LEFT JOIN profiles p ON p.id = u.profile_id`

// scanUserRow populates a User from a row selected with userColumns
func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User

	err := scanner.Scan(
		&user.ID, &user.Email, &user.Login, &user.PasswordHash,
		&user.FailedLoginAttempts, &user.IsLocked, &user.IsActive, &user.LastLoginAt,
		&user.TwoFactorEnabled, &user.TwoFactorSecret, &user.TwoFactorPinHash,
		&user.RoleID, &user.RoleName, &user.ProfileID, &user.ProfileName,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + userFrom + ` WHERE u.id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

// GetByLoginOrEmail looks a user up by login or case-insensitive email.
// When both are given and match different accounts, the login match wins.
func (r *UserRepository) GetByLoginOrEmail(ctx context.Context, login, email string) (*models.User, error) {
	login = strings.TrimSpace(login)
	email = strings.TrimSpace(email)
	if login == "" && email == "" {
		return nil, models.ErrNotFound
	}

	query := `SELECT ` + userColumns + userFrom + `
		WHERE ($1 <> '' AND u.login = $1) OR ($2 <> '' AND LOWER(u.email) = LOWER($2))
		ORDER BY (u.login = $1) DESC
		LIMIT 1`
	return scanUserRow(r.pool.QueryRow(ctx, query, login, email))
}

// RecordFailedLogin increments the failure counter in a single statement and
// locks the account once the counter reaches maxAttempts. Concurrent callers
// serialize on the row lock, so exactly one of them observes JustLocked.
func (r *UserRepository) RecordFailedLogin(ctx context.Context, id int64, maxAttempts int) (*models.FailedLoginResult, error) {
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    is_locked = is_locked OR failed_login_attempts + 1 >= $2,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING failed_login_attempts, is_locked
	`

	var result models.FailedLoginResult
	if err := r.pool.QueryRow(ctx, query, id, maxAttempts).Scan(&result.Attempts, &result.Locked); err != nil {
		return nil, database.MapPostgresError(err)
	}
	result.JustLocked = result.Locked && result.Attempts == maxAttempts

	return &result, nil
}

// RecordSuccessfulLogin resets the failure counter and stamps last_login_at.
// It refuses to touch a row that was locked in the meantime.
func (r *UserRepository) RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, last_login_at = $2, updated_at = NOW()
		WHERE id = $1 AND NOT is_locked
	`

	result, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrAccountLocked
	}

	return nil
}

// EnableTwoFactor stores the secret and PIN hash and flips the flag together.
// It never overwrites an enrolment: an account that already has 2FA yields ErrConflict.
func (r *UserRepository) EnableTwoFactor(ctx context.Context, id int64, secret, pinHash string) error {
	query := `
		UPDATE users
		SET two_factor_enabled = TRUE, two_factor_secret = $2, two_factor_pin_hash = $3, updated_at = NOW()
		WHERE id = $1 AND NOT two_factor_enabled
	`
	result, err := r.pool.Exec(ctx, query, id, secret, pinHash)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user %d: %w", id, err)
	}
	if exists {
		return fmt.Errorf("%w: two-factor authentication is already enabled", models.ErrConflict)
	}
	return models.ErrNotFound
}

// DisableTwoFactor clears the flag, secret and PIN hash together
func (r *UserRepository) DisableTwoFactor(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET two_factor_enabled = FALSE, two_factor_secret = NULL, two_factor_pin_hash = NULL, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id)
}

// Unlock clears the lock and the failure counter
func (r *UserRepository) Unlock(ctx context.Context, id int64) error {
	query := `
		UPDATE users
		SET is_locked = FALSE, failed_login_attempts = 0, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id)
}

func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`
	return r.execOne(ctx, query, id, active)
}

// EnsureRole returns the id of the named role, creating it if needed
func (r *UserRepository) EnsureRole(ctx context.Context, name string) (int64, error) {
	query := `
		INSERT INTO roles (nom) VALUES ($1)
		ON CONFLICT (nom) DO UPDATE SET nom = EXCLUDED.nom
		RETURNING id
	`

	var id int64
	if err := r.pool.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to ensure role %q: %w", name, database.MapPostgresError(err))
	}
	return id, nil
}

// Create inserts a new account and returns it with role and profile names
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, login, password_hash, is_active, role_id, profile_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.pool.QueryRow(ctx, query,
		user.Email, user.Login, user.PasswordHash, user.IsActive, user.RoleID, user.ProfileID,
	).Scan(&id)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return r.GetByID(ctx, id)
}

// CountByRole returns how many accounts hold the named role
func (r *UserRepository) CountByRole(ctx context.Context, roleName string) (int, error) {
	query := `SELECT COUNT(*) FROM users u JOIN roles r ON r.id = u.role_id WHERE r.nom = $1`

	var count int
	if err := r.pool.QueryRow(ctx, query, roleName).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

func (r *UserRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
