package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/BradenHooton/carebase/internal/auth"
	"github.com/BradenHooton/carebase/internal/models"
	"github.com/BradenHooton/carebase/internal/services"
	pkghttp "github.com/BradenHooton/carebase/pkg/http"
	"github.com/go-chi/chi/v5"
)

// TwoFactorServiceInterface defines the 2FA business logic contract
type TwoFactorServiceInterface interface {
	Enable(ctx context.Context, userID int64, pin string) (*services.TwoFactorEnrollment, error)
	Disable(ctx context.Context, userID int64, pin string) error
	Verify(ctx context.Context, userID int64, code, ipAddress string) (bool, error)
	Status(ctx context.Context, userID int64) (bool, error)
}

// TwoFactorHandler serves /users/{id}/2fa/*. Callers may only act on
// their own account unless they hold the admin role.
type TwoFactorHandler struct {
	service   TwoFactorServiceInterface
	adminRole string
	ipConfig  *pkghttp.IPConfig
}

func NewTwoFactorHandler(service TwoFactorServiceInterface, adminRole string, ipConfig *pkghttp.IPConfig) *TwoFactorHandler {
	return &TwoFactorHandler{
		service:   service,
		adminRole: adminRole,
		ipConfig:  ipConfig,
	}
}

// Enable handles POST /users/{id}/2fa/enable
func (h *TwoFactorHandler) Enable(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	var req EnableTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	enrollment, err := h.service.Enable(r.Context(), userID, req.Pin)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, EnableTwoFactorResponse{
		Success: true,
		Secret:  enrollment.Secret,
		QRCode:  enrollment.QRCode,
		URI:     enrollment.URI,
	})
}

// Disable handles POST /users/{id}/2fa/disable
func (h *TwoFactorHandler) Disable(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	var req DisableTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	if err := h.service.Disable(r.Context(), userID, req.Pin); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Two-factor authentication disabled"})
}

// Verify handles POST /users/{id}/2fa/verify
func (h *TwoFactorHandler) Verify(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	var req VerifyTwoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return
	}

	valid, err := h.service.Verify(r.Context(), userID, req.Code, pkghttp.ExtractClientIP(r, h.ipConfig))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !valid {
		writeServiceError(w, models.ErrInvalidCode)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, VerifyTwoFactorResponse{Success: true, Valid: true})
}

// Status handles GET /users/{id}/2fa/status
func (h *TwoFactorHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.targetUser(w, r)
	if !ok {
		return
	}

	enabled, err := h.service.Status(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, TwoFactorStatusResponse{Success: true, TwoFactorEnabled: enabled})
}

// targetUser parses {id} and enforces ownership. It writes the error
// response itself and reports whether the handler should continue.
func (h *TwoFactorHandler) targetUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, err := parseUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid user id")
		return 0, false
	}

	caller := auth.GetUserFromContext(r)
	if caller == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return 0, false
	}

	if caller.ID != userID && caller.RoleName != h.adminRole {
		pkghttp.WriteForbidden(w, "You can only manage your own two-factor settings")
		return 0, false
	}

	return userID, true
}

func parseUserID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, strconv.ErrRange
	}
	return id, nil
}
