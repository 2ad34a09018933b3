package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/BradenHooton/carebase/internal/services"
	pkghttp "github.com/BradenHooton/carebase/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Verify(ctx context.Context, rawHeader string) (*services.VerifyResult, error)
	RefreshActivity(ctx context.Context, rawHeader string) (string, error)
	Logout(ctx context.Context, rawHeader, ipAddress string)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	result, err := h.service.Login(r.Context(), services.LoginInput{
		Login:     req.Login,
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.Header.Get("User-Agent"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		Message:   "Login successful",
		User:      result.User,
		Token:     result.Token,
		ExpiresIn: result.ExpiresIn,
	})
}

// Verify handles GET /auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Verify(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, VerifyResponse{
		Success:             true,
		User:                result.User,
		TokenExpiresIn:      result.TokenExpiresIn,
		InactivityExpiresIn: result.InactivityExpiresIn,
	})
}

// RefreshActivity handles POST /auth/refresh-activity
func (h *AuthHandler) RefreshActivity(w http.ResponseWriter, r *http.Request) {
	token, err := h.service.RefreshActivity(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, RefreshActivityResponse{Success: true, Token: token})
}

// Logout handles POST /auth/logout. Sessions live only in the client, so
// this always succeeds; the client discards its token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context(), r.Header.Get("Authorization"), pkghttp.ExtractClientIP(r, h.ipConfig))

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Logged out"})
}
