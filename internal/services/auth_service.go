package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/carebase/internal/auth"
	"github.com/BradenHooton/carebase/internal/models"
	pkgauth "github.com/BradenHooton/carebase/pkg/auth"
	pkglogger "github.com/BradenHooton/carebase/pkg/logger"
)

// UserRepository is the account store used by the login flow
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByLoginOrEmail(ctx context.Context, login, email string) (*models.User, error)
	RecordFailedLogin(ctx context.Context, id int64, maxAttempts int) (*models.FailedLoginResult, error)
	RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error
}

// LoginAttemptRecorder persists the login audit trail
type LoginAttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error
}

// AuthService handles authentication business logic
type AuthService struct {
	repo              UserRepository
	attempts          LoginAttemptRecorder
	notifier          LockoutNotifier
	authn             *auth.Authenticator
	timing            *auth.TimingDelay
	maxFailedAttempts int
	logger            *slog.Logger
	auditLogger       *pkglogger.AuditLogger
	now               func() time.Time
}

// AuthServiceOption configures optional AuthService collaborators
type AuthServiceOption func(*AuthService)

// WithLoginAttempts records every login in the audit trail
func WithLoginAttempts(attempts LoginAttemptRecorder) AuthServiceOption {
	return func(s *AuthService) { s.attempts = attempts }
}

// WithLockoutNotifier is told when an account transitions to locked
func WithLockoutNotifier(notifier LockoutNotifier) AuthServiceOption {
	return func(s *AuthService) { s.notifier = notifier }
}

// WithTimingDelay pads failed logins
func WithTimingDelay(timing *auth.TimingDelay) AuthServiceOption {
	return func(s *AuthService) { s.timing = timing }
}

// WithMaxFailedAttempts overrides models.MaxFailedLoginAttempts
func WithMaxFailedAttempts(n int) AuthServiceOption {
	return func(s *AuthService) {
		if n > 0 {
			s.maxFailedAttempts = n
		}
	}
}

// WithServiceClock overrides the time source used for last-login stamps
func WithServiceClock(now func() time.Time) AuthServiceOption {
	return func(s *AuthService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAuthService creates a new AuthService
func NewAuthService(repo UserRepository, authn *auth.Authenticator, logger *slog.Logger, auditLogger *pkglogger.AuditLogger, opts ...AuthServiceOption) *AuthService {
	s := &AuthService{
		repo:              repo,
		authn:             authn,
		maxFailedAttempts: models.MaxFailedLoginAttempts,
		logger:            logger,
		auditLogger:       auditLogger,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserResponse is the account payload returned by login and verify.
// Role and profile names are resolved by the repository join.
type UserResponse struct {
	ID               int64   `json:"id"`
	Email            string  `json:"email"`
	Login            string  `json:"login"`
	RoleID           *int64  `json:"role_id"`
	RoleName         string  `json:"role"`
	ProfileID        *int64  `json:"profile_id"`
	ProfileName      string  `json:"profile"`
	TwoFactorEnabled bool    `json:"two_factor_enabled"`
	LastLoginAt      *string `json:"last_login_at,omitempty"`
}

// LoginInput carries the credentials and request metadata for one login
type LoginInput struct {
	Login     string
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// LoginResult is a successful login
type LoginResult struct {
	User      *UserResponse
	Token     string
	ExpiresIn int64
}

// VerifyResult is a successfully verified session
type VerifyResult struct {
	User                *UserResponse
	TokenExpiresIn      int64
	InactivityExpiresIn int64
}

// Login authenticates by login or email and issues a session token.
// Failures are padded by the timing delay so they take about as long
// whether or not the identifier exists.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	start := time.Now()
	result, err := s.login(ctx, in)
	s.timing.WaitFrom(start, err == nil)
	return result, err
}

func (s *AuthService) login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Login = strings.TrimSpace(in.Login)
	in.Email = strings.TrimSpace(in.Email)
	identifier := in.Login
	if identifier == "" {
		identifier = in.Email
	}

	if identifier == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: login or email and password are required", models.ErrValidation)
	}

	user, err := s.repo.GetByLoginOrEmail(ctx, in.Login, in.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials")
			s.rejectLogin(ctx, in, identifier, nil, models.FailureReasonUnknownIdentifier)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to look up user for login", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if user.IsLocked {
		s.logger.Info("login blocked: account locked", slog.Int64("user_id", user.ID))
		s.rejectLogin(ctx, in, identifier, user, models.FailureReasonLocked)
		return nil, models.ErrAccountLocked
	}

	if !user.IsActive {
		s.logger.Info("login blocked: account disabled", slog.Int64("user_id", user.ID))
		s.rejectLogin(ctx, in, identifier, user, models.FailureReasonDisabled)
		return nil, models.ErrAccountDisabled
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, in.Password); err != nil {
		return nil, s.handleBadPassword(ctx, in, identifier, user)
	}

	now := s.now().UTC()
	if err := s.repo.RecordSuccessfulLogin(ctx, user.ID, now); err != nil {
		if errors.Is(err, models.ErrAccountLocked) {
			s.logger.Info("login blocked: account locked concurrently", slog.Int64("user_id", user.ID))
			s.rejectLogin(ctx, in, identifier, user, models.FailureReasonLocked)
			return nil, models.ErrAccountLocked
		}
		s.logger.Error("failed to record successful login", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	user.FailedLoginAttempts = 0
	user.LastLoginAt = &now

	token, err := s.authn.Codec().Issue(user.Subject())
	if err != nil {
		s.logger.Error("failed to issue session token", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.Int64("user_id", user.ID))
	s.recordAttempt(ctx, in, identifier, &user.ID, true, "")
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:  "login_success",
		UserID:     user.ID,
		Identifier: identifier,
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
		Success:    true,
	})

	return &LoginResult{
		User:      userModelToResponse(user),
		Token:     token,
		ExpiresIn: int64(s.authn.Codec().AbsoluteTTL() / time.Second),
	}, nil
}

// handleBadPassword bumps the failure counter atomically and reports the
// transition to locked exactly once.
func (s *AuthService) handleBadPassword(ctx context.Context, in LoginInput, identifier string, user *models.User) error {
	result, err := s.repo.RecordFailedLogin(ctx, user.ID, s.maxFailedAttempts)
	if err != nil {
		s.logger.Error("failed to record failed login", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("login failed: invalid credentials",
		slog.Int64("user_id", user.ID),
		slog.Int("failed_attempts", result.Attempts))
	s.rejectLogin(ctx, in, identifier, user, models.FailureReasonBadPassword)

	if result.JustLocked {
		s.logger.Warn("account locked after repeated failed logins",
			slog.Int64("user_id", user.ID),
			slog.Int("failed_attempts", result.Attempts))
		s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "account_locked",
			UserID:        user.ID,
			Identifier:    identifier,
			IPAddress:     in.IPAddress,
			FailureReason: models.FailureReasonLocked,
		})
		s.notifyLocked(ctx, user)
	}

	return models.ErrInvalidCredentials
}

func (s *AuthService) notifyLocked(ctx context.Context, user *models.User) {
	if s.notifier == nil {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.notifier.NotifyAccountLocked(notifyCtx, user); err != nil {
		s.logger.Warn("lockout notification failed", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
}

func (s *AuthService) rejectLogin(ctx context.Context, in LoginInput, identifier string, user *models.User, reason string) {
	var userID *int64
	var id int64
	if user != nil {
		id = user.ID
		userID = &id
	}

	s.recordAttempt(ctx, in, identifier, userID, false, reason)
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		UserID:        id,
		Identifier:    identifier,
		IPAddress:     in.IPAddress,
		UserAgent:     in.UserAgent,
		FailureReason: reason,
	})
}

func (s *AuthService) recordAttempt(ctx context.Context, in LoginInput, identifier string, userID *int64, success bool, reason string) {
	if s.attempts == nil {
		return
	}

	attempt := &models.LoginAttempt{
		Identifier: identifier,
		UserID:     userID,
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
		Success:    success,
	}
	if reason != "" {
		attempt.FailureReason = &reason
	}

	if err := s.attempts.RecordAttempt(ctx, attempt); err != nil {
		s.logger.Warn("failed to record login attempt", slog.Any("error", err))
	}
}

// Verify authenticates the Authorization header and reports the live
// account with both remaining session windows.
func (s *AuthService) Verify(ctx context.Context, rawHeader string) (*VerifyResult, error) {
	claims, user, err := s.authenticate(ctx, rawHeader)
	if err != nil {
		return nil, err
	}

	expiresIn, inactivityExpiresIn := s.authn.Codec().Remaining(claims)

	return &VerifyResult{
		User:                userModelToResponse(user),
		TokenExpiresIn:      expiresIn,
		InactivityExpiresIn: inactivityExpiresIn,
	}, nil
}

// RefreshActivity re-signs the session with last_activity = now. The
// absolute expiry is unchanged.
func (s *AuthService) RefreshActivity(ctx context.Context, rawHeader string) (string, error) {
	claims, _, err := s.authenticate(ctx, rawHeader)
	if err != nil {
		return "", err
	}

	token, err := auth.BearerToken(rawHeader)
	if err != nil {
		return "", err
	}

	refreshed, err := s.authn.Codec().Refresh(token)
	if err != nil {
		if models.IsTokenError(err) {
			return "", err
		}
		s.logger.Error("failed to refresh session token", slog.Int64("user_id", claims.UserID), slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	s.logger.Debug("session activity refreshed", slog.Int64("user_id", claims.UserID))
	return refreshed, nil
}

// Logout records the end of a session. Tokens are not stored server side,
// so there is nothing to revoke and Logout never fails.
func (s *AuthService) Logout(ctx context.Context, rawHeader, ipAddress string) {
	claims, err := s.authn.Authenticate(rawHeader)
	if err != nil {
		s.logger.Debug("logout without a valid session")
		return
	}

	s.auditLogger.LogSessionEvent(pkglogger.AuditEvent{
		EventType: "logout",
		UserID:    claims.UserID,
		TokenID:   claims.ID,
		IPAddress: ipAddress,
		Success:   true,
	})
}

// authenticate decodes the header and resolves the live account. The
// token's cached identity is never trusted for account state.
func (s *AuthService) authenticate(ctx context.Context, rawHeader string) (*models.SessionClaims, *models.User, error) {
	claims, err := s.authn.Authenticate(rawHeader)
	if err != nil {
		return nil, nil, err
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("session subject no longer exists", slog.Int64("user_id", claims.UserID))
			return nil, nil, fmt.Errorf("%w: unknown subject", models.ErrMalformedToken)
		}
		s.logger.Error("failed to load session user", slog.Int64("user_id", claims.UserID), slog.Any("error", err))
		return nil, nil, models.ErrInternalServer
	}

	if err := validateAccountState(user); err != nil {
		s.logger.Info("session rejected due to account state", slog.Int64("user_id", user.ID), slog.Any("error", err))
		return nil, nil, err
	}

	return claims, user, nil
}

// validateAccountState rejects locked and deactivated accounts
func validateAccountState(user *models.User) error {
	if user.IsLocked {
		return models.ErrAccountLocked
	}
	if !user.IsActive {
		return models.ErrAccountDisabled
	}
	return nil
}

func userModelToResponse(user *models.User) *UserResponse {
	resp := &UserResponse{
		ID:               user.ID,
		Email:            user.Email,
		Login:            user.Login,
		RoleID:           user.RoleID,
		RoleName:         user.RoleName,
		ProfileID:        user.ProfileID,
		ProfileName:      user.ProfileName,
		TwoFactorEnabled: user.TwoFactorEnabled,
	}
	if user.LastLoginAt != nil {
		ts := user.LastLoginAt.UTC().Format(time.RFC3339)
		resp.LastLoginAt = &ts
	}
	return resp
}
