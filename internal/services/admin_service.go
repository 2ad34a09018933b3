package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/BradenHooton/carebase/internal/models"
	pkglogger "github.com/BradenHooton/carebase/pkg/logger"
)

// AccountAdminRepository is the subset of UserRepository used by AdminService
type AccountAdminRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	Unlock(ctx context.Context, id int64) error
	SetActive(ctx context.Context, id int64, active bool) error
}

// AuditTrailReader reads persisted security events
type AuditTrailReader interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.AuditLog, error)
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 200
)

// AdminService performs administrative account changes. Unlock is the
// only way a locked account becomes usable again.
type AdminService struct {
	repo        AccountAdminRepository
	trail       AuditTrailReader
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// AdminServiceOption configures an AdminService
type AdminServiceOption func(*AdminService)

// WithAuditTrail enables ListAuditEvents
func WithAuditTrail(trail AuditTrailReader) AdminServiceOption {
	return func(s *AdminService) {
		s.trail = trail
	}
}

func NewAdminService(repo AccountAdminRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger, opts ...AdminServiceOption) *AdminService {
	s := &AdminService{
		repo:        repo,
		logger:      logger,
		auditLogger: auditLogger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UnlockAccount clears the lock and resets the failed-login counter
func (s *AdminService) UnlockAccount(ctx context.Context, actorID, userID int64) error {
	if err := s.repo.Unlock(ctx, userID); err != nil {
		return s.mapRepoError("unlock", userID, err)
	}

	s.logger.Info("account unlocked", slog.Int64("user_id", userID), slog.Int64("actor_id", actorID))
	s.auditLogger.LogAccountAction("account_unlocked", actorID, userID, nil)
	return nil
}

// SetAccountActive activates or deactivates an account. Admins cannot
// deactivate themselves.
func (s *AdminService) SetAccountActive(ctx context.Context, actorID, userID int64, active bool) error {
	if !active && actorID == userID {
		return fmt.Errorf("%w: cannot deactivate your own account", models.ErrForbidden)
	}

	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return s.mapRepoError("set active", userID, err)
	}

	eventType := "account_deactivated"
	if active {
		eventType = "account_activated"
	}
	s.logger.Info("account status changed",
		slog.Int64("user_id", userID),
		slog.Int64("actor_id", actorID),
		slog.Bool("active", active))
	s.auditLogger.LogAccountAction(eventType, actorID, userID, nil)
	return nil
}

// ListAuditEvents returns the persisted security events of a user, newest
// first. limit is clamped to [1, 200] and defaults to 50.
func (s *AdminService) ListAuditEvents(ctx context.Context, userID int64, limit int) ([]*models.AuditLog, error) {
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return nil, s.mapRepoError("load user", userID, err)
	}

	if s.trail == nil {
		return []*models.AuditLog{}, nil
	}

	switch {
	case limit <= 0:
		limit = defaultAuditLimit
	case limit > maxAuditLimit:
		limit = maxAuditLimit
	}

	events, err := s.trail.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, s.mapRepoError("list audit events", userID, err)
	}
	return events, nil
}

func (s *AdminService) mapRepoError(op string, userID int64, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrNotFound
	}
	s.logger.Error("admin "+op+" failed", slog.Int64("user_id", userID), slog.Any("error", err))
	return models.ErrInternalServer
}
