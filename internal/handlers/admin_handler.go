package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/BradenHooton/carebase/internal/auth"
	"github.com/BradenHooton/carebase/internal/models"
	pkghttp "github.com/BradenHooton/carebase/pkg/http"
)

// AdminServiceInterface defines the account administration contract
type AdminServiceInterface interface {
	UnlockAccount(ctx context.Context, actorID, userID int64) error
	SetAccountActive(ctx context.Context, actorID, userID int64, active bool) error
	ListAuditEvents(ctx context.Context, userID int64, limit int) ([]*models.AuditLog, error)
}

// AdminHandler handles /admin/users/{id}/* requests. Routes are expected
// to sit behind AuthMiddleware and RequireRole.
type AdminHandler struct {
	service AdminServiceInterface
}

func NewAdminHandler(service AdminServiceInterface) *AdminHandler {
	return &AdminHandler{service: service}
}

// Unlock handles POST /admin/users/{id}/unlock
func (h *AdminHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	actorID, userID, ok := h.parseTarget(w, r)
	if !ok {
		return
	}

	if err := h.service.UnlockAccount(r.Context(), actorID, userID); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Account unlocked"})
}

// Activate handles POST /admin/users/{id}/activate
func (h *AdminHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// Deactivate handles POST /admin/users/{id}/deactivate
func (h *AdminHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// AuditTrail handles GET /admin/users/{id}/audit?limit=N
func (h *AdminHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	_, userID, ok := h.parseTarget(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			pkghttp.WriteBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	events, err := h.service.ListAuditEvents(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, AuditTrailResponse{Success: true, Events: events})
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	actorID, userID, ok := h.parseTarget(w, r)
	if !ok {
		return
	}

	if err := h.service.SetAccountActive(r.Context(), actorID, userID, active); err != nil {
		writeServiceError(w, err)
		return
	}

	message := "Account deactivated"
	if active {
		message = "Account activated"
	}
	pkghttp.WriteJSON(w, http.StatusOK, MessageResponse{Success: true, Message: message})
}

func (h *AdminHandler) parseTarget(w http.ResponseWriter, r *http.Request) (actorID, userID int64, ok bool) {
	actor := auth.GetUserFromContext(r)
	if actor == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return 0, 0, false
	}

	userID, err := parseUserID(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid user id")
		return 0, 0, false
	}

	return actor.ID, userID, true
}
