package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/carebase/internal/auth"
	"github.com/BradenHooton/carebase/internal/models"
	"github.com/BradenHooton/carebase/internal/repositories"
	pkgauth "github.com/BradenHooton/carebase/pkg/auth"
	pkglogger "github.com/BradenHooton/carebase/pkg/logger"
)

// TwoFactorUserRepository is the account store used by TwoFactorService
type TwoFactorUserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	EnableTwoFactor(ctx context.Context, id int64, secret, pinHash string) error
	DisableTwoFactor(ctx context.Context, id int64) error
}

// TwoFactorEnrollment is returned once, when 2FA is enabled
type TwoFactorEnrollment struct {
	Secret string `json:"secret"`
	QRCode string `json:"qr_code"` // PNG data URL, or the raw otpauth:// URI
	URI    string `json:"otpauth_uri"`
}

// TwoFactorThrottle bounds failed verifications per user within a sliding window
type TwoFactorThrottle struct {
	MaxAttempts int
	Window      time.Duration
}

// TwoFactorService manages PIN-gated TOTP enrollment and verification
type TwoFactorService struct {
	users       TwoFactorUserRepository
	attempts    repositories.TwoFactorAttemptRepository
	totp        *auth.TOTPManager
	throttle    TwoFactorThrottle
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewTwoFactorService(
	users TwoFactorUserRepository,
	attempts repositories.TwoFactorAttemptRepository,
	totp *auth.TOTPManager,
	throttle TwoFactorThrottle,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *TwoFactorService {
	return &TwoFactorService{
		users:       users,
		attempts:    attempts,
		totp:        totp,
		throttle:    throttle,
		logger:      logger,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Enable generates a fresh secret, stores it with the PIN hash and returns
// the provisioning payload. A QR rendering failure degrades to the raw URI.
func (s *TwoFactorService) Enable(ctx context.Context, userID int64, pin string) (*TwoFactorEnrollment, error) {
	if err := pkgauth.ValidatePin(pin); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.TwoFactorEnabled {
		return nil, fmt.Errorf("%w: two-factor authentication is already enabled", models.ErrConflict)
	}

	key, err := s.totp.GenerateKey(user.Login)
	if err != nil {
		s.logger.Error("failed to generate TOTP secret", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	pinHash, err := pkgauth.HashPin(pin)
	if err != nil {
		s.logger.Error("failed to hash 2FA pin", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.users.EnableTwoFactor(ctx, userID, key.Secret, pinHash); err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			s.logger.Info("2FA enable lost a race with another enrolment", slog.Int64("user_id", userID))
			return nil, fmt.Errorf("%w: two-factor authentication is already enabled", models.ErrConflict)
		case errors.Is(err, models.ErrNotFound):
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to enable 2FA", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	payload, err := s.totp.ProvisioningPayload(key.URI)
	if err != nil {
		s.logger.Warn("QR rendering failed, returning provisioning URI", slog.Int64("user_id", userID), slog.Any("error", err))
	}

	s.logger.Info("2FA enabled", slog.Int64("user_id", userID))
	s.auditLogger.LogTwoFactorEvent(pkglogger.AuditEvent{
		EventType: "2fa_enabled",
		UserID:    userID,
		Success:   true,
	})

	return &TwoFactorEnrollment{Secret: key.Secret, QRCode: payload, URI: key.URI}, nil
}

// Disable clears the secret and PIN after checking the PIN
func (s *TwoFactorService) Disable(ctx context.Context, userID int64, pin string) error {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return err
	}

	if !user.TwoFactorEnabled || user.TwoFactorPinHash == nil {
		return models.ErrTwoFactorNotEnabled
	}

	if err := pkgauth.ComparePin(*user.TwoFactorPinHash, pin); err != nil {
		s.logger.Info("2FA disable rejected: invalid pin", slog.Int64("user_id", userID))
		s.auditLogger.LogTwoFactorEvent(pkglogger.AuditEvent{
			EventType:     "2fa_disable_failed",
			UserID:        userID,
			FailureReason: "invalid_pin",
		})
		return models.ErrInvalidPin
	}

	if err := s.users.DisableTwoFactor(ctx, userID); err != nil {
		s.logger.Error("failed to disable 2FA", slog.Int64("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("2FA disabled", slog.Int64("user_id", userID))
	s.auditLogger.LogTwoFactorEvent(pkglogger.AuditEvent{
		EventType: "2fa_disabled",
		UserID:    userID,
		Success:   true,
	})
	return nil
}

// Verify checks a 6-digit code against the stored secret, accepting the
// adjacent time step on either side. It never touches the password lockout.
func (s *TwoFactorService) Verify(ctx context.Context, userID int64, code, ipAddress string) (bool, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return false, err
	}

	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return false, models.ErrTwoFactorNotEnabled
	}

	if !pkgauth.IsDigits(code, auth.TOTPCodeLength) {
		return false, fmt.Errorf("%w: code must be exactly %d digits", models.ErrValidation, auth.TOTPCodeLength)
	}

	if err := s.checkThrottle(ctx, userID); err != nil {
		return false, err
	}

	valid, err := s.totp.Validate(*user.TwoFactorSecret, code)
	if err != nil {
		s.logger.Error("failed to validate TOTP code", slog.Int64("user_id", userID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	s.recordAttempt(ctx, userID, ipAddress, valid)

	event := pkglogger.AuditEvent{
		EventType: "2fa_verify",
		UserID:    userID,
		IPAddress: ipAddress,
		Success:   valid,
	}
	if !valid {
		event.FailureReason = models.FailureReasonInvalidCode
	}
	s.auditLogger.LogTwoFactorEvent(event)

	return valid, nil
}

// Status reports whether 2FA is enabled for the user
func (s *TwoFactorService) Status(ctx context.Context, userID int64) (bool, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.TwoFactorEnabled, nil
}

func (s *TwoFactorService) checkThrottle(ctx context.Context, userID int64) error {
	if s.attempts == nil || s.throttle.MaxAttempts <= 0 {
		return nil
	}

	since := s.now().Add(-s.throttle.Window)
	failed, err := s.attempts.GetFailedAttemptCount(ctx, userID, since)
	if err != nil {
		s.logger.Error("failed to count 2FA attempts", slog.Int64("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if failed >= s.throttle.MaxAttempts {
		s.logger.Warn("2FA verification throttled",
			slog.Int64("user_id", userID),
			slog.Int("failed_attempts", failed))
		return models.ErrTwoFactorRateLimited
	}
	return nil
}

func (s *TwoFactorService) recordAttempt(ctx context.Context, userID int64, ipAddress string, success bool) {
	if s.attempts == nil {
		return
	}

	attempt := &models.TwoFactorAttempt{
		UserID:    userID,
		IPAddress: ipAddress,
		Success:   success,
	}
	if !success {
		reason := models.FailureReasonInvalidCode
		attempt.FailureReason = &reason
	}

	if err := s.attempts.RecordAttempt(ctx, attempt); err != nil {
		s.logger.Warn("failed to record 2FA attempt", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func (s *TwoFactorService) loadUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load user", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}
