package handlers

import (
	"errors"
	"net/http"

	"github.com/BradenHooton/carebase/internal/auth"
	"github.com/BradenHooton/carebase/internal/models"
	pkghttp "github.com/BradenHooton/carebase/pkg/http"
)

// writeServiceError maps the domain error taxonomy onto HTTP responses.
// Anything unrecognised becomes a generic 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		pkghttp.WriteValidationError(w, err.Error())
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials")
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteError(w, http.StatusForbidden, "account_locked", "Account is locked")
	case errors.Is(err, models.ErrAccountDisabled):
		pkghttp.WriteError(w, http.StatusForbidden, "account_disabled", "Account is disabled")
	case models.IsTokenError(err):
		code, message := auth.TokenErrorResponse(err)
		pkghttp.WriteError(w, http.StatusUnauthorized, code, message)
	case errors.Is(err, models.ErrTwoFactorNotEnabled):
		pkghttp.WriteError(w, http.StatusBadRequest, "two_factor_not_enabled", "Two-factor authentication is not enabled")
	case errors.Is(err, models.ErrInvalidPin):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_pin", "Invalid PIN")
	case errors.Is(err, models.ErrInvalidCode):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_code", "Invalid code")
	case errors.Is(err, models.ErrTwoFactorRateLimited):
		pkghttp.WriteTooManyRequests(w, "Too many verification attempts. Please try again later.")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "User not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, err.Error())
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
