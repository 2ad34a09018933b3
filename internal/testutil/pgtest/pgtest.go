// Package pgtest starts a throwaway PostgreSQL container with the schema
// applied, for integration tests run with -tags integration.
package pgtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/BradenHooton/carebase/internal/database"
	"github.com/BradenHooton/carebase/internal/models"
	"github.com/BradenHooton/carebase/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pressly/goose/v3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

// TestDB manages PostgreSQL testcontainer and database operations
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// Setup creates a PostgreSQL testcontainer and runs migrations
func Setup(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("carebase"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := database.NewFromPool(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// Suppress goose logs
	goose.SetLogger(log.New(io.Discard, "", 0))
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		pool.Close()
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         db,
	}, nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates account, attempt and audit tables for test isolation.
// Seeded roles are kept.
func (db *TestDB) CleanupTables(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `TRUNCATE TABLE audit_logs, two_factor_attempts, login_attempts, users, profiles RESTART IDENTITY CASCADE`)
	if err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}

// SeedUser inserts an active account holding roleName. The password is
// hashed at the minimum bcrypt cost to keep tests fast.
func (db *TestDB) SeedUser(ctx context.Context, login, email, password, roleName string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (login, email, password_hash, role_id)
		VALUES ($1, $2, $3, (SELECT id FROM roles WHERE nom = $4))
		RETURNING id
	`

	user := &models.User{Login: login, Email: email, PasswordHash: string(hash), IsActive: true, RoleName: roleName}
	if err := db.Pool.QueryRow(ctx, query, login, email, string(hash), roleName).Scan(&user.ID); err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}
