package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/carebase/internal/auth"
	"github.com/BradenHooton/carebase/internal/models"
	"github.com/BradenHooton/carebase/internal/services"
	pkghttp "github.com/BradenHooton/carebase/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithUserContext attaches a live user as AuthMiddleware would
func WithUserContext(req *http.Request, id int64, role string) *http.Request {
	user := &models.User{ID: id, Login: "user", RoleName: role, IsActive: true}
	claims := &models.SessionClaims{UserID: id, RoleName: role}
	return req.WithContext(auth.WithSession(req.Context(), claims, user))
}

// WithChiRouteContext sets the {id} URL parameter
func WithChiRouteContext(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.False(t, resp.Success)
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc           func(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	VerifyFunc          func(ctx context.Context, rawHeader string) (*services.VerifyResult, error)
	RefreshActivityFunc func(ctx context.Context, rawHeader string) (string, error)
	LogoutFunc          func(ctx context.Context, rawHeader, ipAddress string)
}

func (m *MockAuthService) Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, in)
	}
	return nil, models.ErrInvalidCredentials
}

func (m *MockAuthService) Verify(ctx context.Context, rawHeader string) (*services.VerifyResult, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, rawHeader)
	}
	return nil, models.ErrMissingToken
}

func (m *MockAuthService) RefreshActivity(ctx context.Context, rawHeader string) (string, error) {
	if m.RefreshActivityFunc != nil {
		return m.RefreshActivityFunc(ctx, rawHeader)
	}
	return "", models.ErrMissingToken
}

func (m *MockAuthService) Logout(ctx context.Context, rawHeader, ipAddress string) {
	if m.LogoutFunc != nil {
		m.LogoutFunc(ctx, rawHeader, ipAddress)
	}
}

// MockTwoFactorService implements TwoFactorServiceInterface for testing
type MockTwoFactorService struct {
	EnableFunc  func(ctx context.Context, userID int64, pin string) (*services.TwoFactorEnrollment, error)
	DisableFunc func(ctx context.Context, userID int64, pin string) error
	VerifyFunc  func(ctx context.Context, userID int64, code, ipAddress string) (bool, error)
	StatusFunc  func(ctx context.Context, userID int64) (bool, error)
}

func (m *MockTwoFactorService) Enable(ctx context.Context, userID int64, pin string) (*services.TwoFactorEnrollment, error) {
	if m.EnableFunc != nil {
		return m.EnableFunc(ctx, userID, pin)
	}
	return nil, models.ErrInternalServer
}

func (m *MockTwoFactorService) Disable(ctx context.Context, userID int64, pin string) error {
	if m.DisableFunc != nil {
		return m.DisableFunc(ctx, userID, pin)
	}
	return nil
}

func (m *MockTwoFactorService) Verify(ctx context.Context, userID int64, code, ipAddress string) (bool, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, userID, code, ipAddress)
	}
	return false, nil
}

func (m *MockTwoFactorService) Status(ctx context.Context, userID int64) (bool, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, userID)
	}
	return false, nil
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	UnlockAccountFunc    func(ctx context.Context, actorID, userID int64) error
	SetAccountActiveFunc func(ctx context.Context, actorID, userID int64, active bool) error
	ListAuditEventsFunc  func(ctx context.Context, userID int64, limit int) ([]*models.AuditLog, error)
}

func (m *MockAdminService) UnlockAccount(ctx context.Context, actorID, userID int64) error {
	if m.UnlockAccountFunc != nil {
		return m.UnlockAccountFunc(ctx, actorID, userID)
	}
	return nil
}

func (m *MockAdminService) SetAccountActive(ctx context.Context, actorID, userID int64, active bool) error {
	if m.SetAccountActiveFunc != nil {
		return m.SetAccountActiveFunc(ctx, actorID, userID, active)
	}
	return nil
}

func (m *MockAdminService) ListAuditEvents(ctx context.Context, userID int64, limit int) ([]*models.AuditLog, error) {
	if m.ListAuditEventsFunc != nil {
		return m.ListAuditEventsFunc(ctx, userID, limit)
	}
	return []*models.AuditLog{}, nil
}
