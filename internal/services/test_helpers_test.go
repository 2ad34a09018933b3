package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/carebase/internal/auth"
	"github.com/BradenHooton/carebase/internal/models"
	pkglogger "github.com/BradenHooton/carebase/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret-32-characters-long!!"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedClock is a settable time source shared by codec and services
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock() *fixedClock {
	return &fixedClock{t: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestAuthenticator(clock *fixedClock) *auth.Authenticator {
	return auth.NewAuthenticator(auth.NewTokenCodec(testJWTSecret, 24*time.Hour, 15*time.Minute, auth.WithClock(clock.Now)))
}

// hashForTest uses the minimum bcrypt cost to keep tests fast
func hashForTest(t *testing.T, secret string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// NewTestUser returns an active, unlocked account
func NewTestUser(t *testing.T, id int64, login, password string) *models.User {
	roleID, profileID := int64(2), int64(3)
	return &models.User{
		ID:           id,
		Email:        login + "@hopital.fr",
		Login:        login,
		PasswordHash: hashForTest(t, password),
		IsActive:     true,
		RoleID:       &roleID,
		RoleName:     "medecin",
		ProfileID:    &profileID,
		ProfileName:  "Cardiologie",
	}
}

// memoryUserStore mirrors the repository's single-statement semantics
// behind a mutex.
type memoryUserStore struct {
	mu    sync.Mutex
	users map[int64]*models.User
}

func newMemoryUserStore(users ...*models.User) *memoryUserStore {
	s := &memoryUserStore{users: map[int64]*models.User{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryUserStore) snapshot(id int64) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *memoryUserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memoryUserStore) GetByLoginOrEmail(ctx context.Context, login, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if (login != "" && u.Login == login) || (email != "" && u.Email == email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (s *memoryUserStore) RecordFailedLogin(ctx context.Context, id int64, maxAttempts int) (*models.FailedLoginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	u.FailedLoginAttempts++
	u.IsLocked = u.IsLocked || u.FailedLoginAttempts >= maxAttempts
	return &models.FailedLoginResult{
		Attempts:   u.FailedLoginAttempts,
		Locked:     u.IsLocked,
		JustLocked: u.IsLocked && u.FailedLoginAttempts == maxAttempts,
	}, nil
}

func (s *memoryUserStore) RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || u.IsLocked {
		return models.ErrAccountLocked
	}
	u.FailedLoginAttempts = 0
	u.LastLoginAt = &at
	return nil
}

func (s *memoryUserStore) EnableTwoFactor(ctx context.Context, id int64, secret, pinHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	if u.TwoFactorEnabled {
		return models.ErrConflict
	}
	u.TwoFactorEnabled = true
	u.TwoFactorSecret = &secret
	u.TwoFactorPinHash = &pinHash
	return nil
}

func (s *memoryUserStore) DisableTwoFactor(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.TwoFactorEnabled = false
	u.TwoFactorSecret = nil
	u.TwoFactorPinHash = nil
	return nil
}

func (s *memoryUserStore) Unlock(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.IsLocked = false
	u.FailedLoginAttempts = 0
	return nil
}

func (s *memoryUserStore) SetActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.IsActive = active
	return nil
}

// MockUserRepository implements UserRepository with overridable funcs
type MockUserRepository struct {
	GetByIDFunc               func(ctx context.Context, id int64) (*models.User, error)
	GetByLoginOrEmailFunc     func(ctx context.Context, login, email string) (*models.User, error)
	RecordFailedLoginFunc     func(ctx context.Context, id int64, maxAttempts int) (*models.FailedLoginResult, error)
	RecordSuccessfulLoginFunc func(ctx context.Context, id int64, at time.Time) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByLoginOrEmail(ctx context.Context, login, email string) (*models.User, error) {
	if m.GetByLoginOrEmailFunc != nil {
		return m.GetByLoginOrEmailFunc(ctx, login, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) RecordFailedLogin(ctx context.Context, id int64, maxAttempts int) (*models.FailedLoginResult, error) {
	if m.RecordFailedLoginFunc != nil {
		return m.RecordFailedLoginFunc(ctx, id, maxAttempts)
	}
	return &models.FailedLoginResult{Attempts: 1}, nil
}

func (m *MockUserRepository) RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error {
	if m.RecordSuccessfulLoginFunc != nil {
		return m.RecordSuccessfulLoginFunc(ctx, id, at)
	}
	return nil
}

// MockLoginAttemptRecorder captures recorded attempts
type MockLoginAttemptRecorder struct {
	mu       sync.Mutex
	Attempts []models.LoginAttempt
	Err      error
}

func (m *MockLoginAttemptRecorder) RecordAttempt(ctx context.Context, attempt *models.LoginAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts = append(m.Attempts, *attempt)
	return m.Err
}

// MockTwoFactorAttemptRepository implements repositories.TwoFactorAttemptRepository
type MockTwoFactorAttemptRepository struct {
	RecordAttemptFunc         func(ctx context.Context, attempt *models.TwoFactorAttempt) error
	GetFailedAttemptCountFunc func(ctx context.Context, userID int64, since time.Time) (int, error)
	DeleteExpiredAttemptsFunc func(ctx context.Context, threshold time.Time) (int64, error)
}

func (m *MockTwoFactorAttemptRepository) RecordAttempt(ctx context.Context, attempt *models.TwoFactorAttempt) error {
	if m.RecordAttemptFunc != nil {
		return m.RecordAttemptFunc(ctx, attempt)
	}
	return nil
}

func (m *MockTwoFactorAttemptRepository) GetFailedAttemptCount(ctx context.Context, userID int64, since time.Time) (int, error) {
	if m.GetFailedAttemptCountFunc != nil {
		return m.GetFailedAttemptCountFunc(ctx, userID, since)
	}
	return 0, nil
}

func (m *MockTwoFactorAttemptRepository) DeleteExpiredAttempts(ctx context.Context, threshold time.Time) (int64, error) {
	if m.DeleteExpiredAttemptsFunc != nil {
		return m.DeleteExpiredAttemptsFunc(ctx, threshold)
	}
	return 0, nil
}

// MockLockoutNotifier counts notifications
type MockLockoutNotifier struct {
	mu    sync.Mutex
	Users []int64
	Err   error
}

func (m *MockLockoutNotifier) NotifyAccountLocked(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Users = append(m.Users, user.ID)
	return m.Err
}

func (m *MockLockoutNotifier) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Users)
}

// MockSESClient implements SESClient
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{}, nil
}

func newTestAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(discardLogger())
}
