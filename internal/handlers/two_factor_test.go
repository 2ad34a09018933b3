package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/carebase/internal/models"
	"github.com/BradenHooton/carebase/internal/services"
	"github.com/stretchr/testify/assert"
)

func newTwoFactorRequest(t *testing.T, path, id string, body interface{}, callerID int64, role string) *http.Request {
	req := NewTestRequest(t, http.MethodPost, path, body)
	req = WithChiRouteContext(req, id)
	return WithUserContext(req, callerID, role)
}

func TestTwoFactorEnable_Success(t *testing.T) {
	mockSvc := &MockTwoFactorService{
		EnableFunc: func(ctx context.Context, userID int64, pin string) (*services.TwoFactorEnrollment, error) {
			assert.Equal(t, int64(7), userID)
			assert.Equal(t, "123456", pin)
			return &services.TwoFactorEnrollment{
				Secret: "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP",
				QRCode: "data:image/png;base64,AAAA",
				URI:    "otpauth://totp/Carebase:jdupont",
			}, nil
		},
	}

	handler := NewTwoFactorHandler(mockSvc, "admin", nil)
	w := httptest.NewRecorder()
	handler.Enable(w, newTwoFactorRequest(t, "/users/7/2fa/enable", "7", EnableTwoFactorRequest{Pin: "123456"}, 7, "medecin"))

	var resp EnableTwoFactorResponse
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Success)
	assert.Len(t, resp.Secret, 32)
	assert.Equal(t, "data:image/png;base64,AAAA", resp.QRCode)
}

func TestTwoFactorEnable_InvalidPin(t *testing.T) {
	for _, pin := range []string{"", "12345", "1234567", "12a456"} {
		t.Run(pin, func(t *testing.T) {
			called := false
			mockSvc := &MockTwoFactorService{
				EnableFunc: func(ctx context.Context, userID int64, pin string) (*services.TwoFactorEnrollment, error) {
					called = true
					return nil, nil
				},
			}

			handler := NewTwoFactorHandler(mockSvc, "admin", nil)
			w := httptest.NewRecorder()
			handler.Enable(w, newTwoFactorRequest(t, "/users/7/2fa/enable", "7", EnableTwoFactorRequest{Pin: pin}, 7, "medecin"))

			AssertErrorResponse(t, w, http.StatusBadRequest, "validation_error")
			assert.False(t, called)
		})
	}
}

func TestTwoFactorEnable_AlreadyEnabled(t *testing.T) {
	mockSvc := &MockTwoFactorService{
		EnableFunc: func(ctx context.Context, userID int64, pin string) (*services.TwoFactorEnrollment, error) {
			return nil, models.ErrConflict
		},
	}

	handler := NewTwoFactorHandler(mockSvc, "admin", nil)
	w := httptest.NewRecorder()
	handler.Enable(w, newTwoFactorRequest(t, "/users/7/2fa/enable", "7", EnableTwoFactorRequest{Pin: "123456"}, 7, "medecin"))

	AssertErrorResponse(t, w, http.StatusConflict, "conflict")
}

func TestTwoFactor_Ownership(t *testing.T) {
	tests := []struct {
		name       string
		callerID   int64
		role       string
		wantStatus int
	}{
		{"self", 7, "medecin", http.StatusOK},
		{"admin on other account", 1, "admin", http.StatusOK},
		{"other non-admin", 8, "medecin", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := &MockTwoFactorService{
				StatusFunc: func(ctx context.Context, userID int64) (bool, error) {
					assert.Equal(t, int64(7), userID)
					return true, nil
				},
			}

			handler := NewTwoFactorHandler(mockSvc, "admin", nil)
			req := httptest.NewRequest(http.MethodGet, "/users/7/2fa/status", nil)
			req = WithUserContext(WithChiRouteContext(req, "7"), tt.callerID, tt.role)

			w := httptest.NewRecorder()
			handler.Status(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestTwoFactor_InvalidUserID(t *testing.T) {
	handler := NewTwoFactorHandler(&MockTwoFactorService{}, "admin", nil)

	for _, id := range []string{"abc", "0", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/users/x/2fa/status", nil)
		req = WithUserContext(WithChiRouteContext(req, id), 7, "medecin")

		w := httptest.NewRecorder()
		handler.Status(w, req)

		AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	}
}

func TestTwoFactor_Unauthenticated(t *testing.T) {
	handler := NewTwoFactorHandler(&MockTwoFactorService{}, "admin", nil)
	req := WithChiRouteContext(httptest.NewRequest(http.MethodGet, "/users/7/2fa/status", nil), "7")

	w := httptest.NewRecorder()
	handler.Status(w, req)

	AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized")
}

func TestTwoFactorDisable(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"wrong pin", models.ErrInvalidPin, http.StatusUnauthorized, "invalid_pin"},
		{"not enabled", models.ErrTwoFactorNotEnabled, http.StatusBadRequest, "two_factor_not_enabled"},
		{"unknown user", models.ErrNotFound, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := &MockTwoFactorService{
				DisableFunc: func(ctx context.Context, userID int64, pin string) error {
					return tt.err
				},
			}

			handler := NewTwoFactorHandler(mockSvc, "admin", nil)
			w := httptest.NewRecorder()
			handler.Disable(w, newTwoFactorRequest(t, "/users/7/2fa/disable", "7", DisableTwoFactorRequest{Pin: "12"}, 7, "medecin"))

			AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode)
		})
	}

	t.Run("success", func(t *testing.T) {
		handler := NewTwoFactorHandler(&MockTwoFactorService{}, "admin", nil)
		w := httptest.NewRecorder()
		handler.Disable(w, newTwoFactorRequest(t, "/users/7/2fa/disable", "7", DisableTwoFactorRequest{Pin: "123456"}, 7, "medecin"))

		var resp MessageResponse
		AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.True(t, resp.Success)
	})
}

func TestTwoFactorVerify(t *testing.T) {
	t.Run("valid code", func(t *testing.T) {
		mockSvc := &MockTwoFactorService{
			VerifyFunc: func(ctx context.Context, userID int64, code, ipAddress string) (bool, error) {
				assert.Equal(t, "492039", code)
				return true, nil
			},
		}

		handler := NewTwoFactorHandler(mockSvc, "admin", nil)
		w := httptest.NewRecorder()
		handler.Verify(w, newTwoFactorRequest(t, "/users/7/2fa/verify", "7", VerifyTwoFactorRequest{Code: "492039"}, 7, "medecin"))

		var resp VerifyTwoFactorResponse
		AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.True(t, resp.Valid)
	})

	t.Run("wrong code", func(t *testing.T) {
		mockSvc := &MockTwoFactorService{
			VerifyFunc: func(ctx context.Context, userID int64, code, ipAddress string) (bool, error) {
				return false, nil
			},
		}

		handler := NewTwoFactorHandler(mockSvc, "admin", nil)
		w := httptest.NewRecorder()
		handler.Verify(w, newTwoFactorRequest(t, "/users/7/2fa/verify", "7", VerifyTwoFactorRequest{Code: "000000"}, 7, "medecin"))

		AssertErrorResponse(t, w, http.StatusUnauthorized, "invalid_code")
	})

	t.Run("throttled", func(t *testing.T) {
		mockSvc := &MockTwoFactorService{
			VerifyFunc: func(ctx context.Context, userID int64, code, ipAddress string) (bool, error) {
				return false, models.ErrTwoFactorRateLimited
			},
		}

		handler := NewTwoFactorHandler(mockSvc, "admin", nil)
		w := httptest.NewRecorder()
		handler.Verify(w, newTwoFactorRequest(t, "/users/7/2fa/verify", "7", VerifyTwoFactorRequest{Code: "000000"}, 7, "medecin"))

		AssertErrorResponse(t, w, http.StatusTooManyRequests, "rate_limit_exceeded")
	})
}
