package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/carebase/internal/models"
	pkghttp "github.com/BradenHooton/carebase/pkg/http"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// SessionContextKey stores the decoded *models.SessionClaims
	SessionContextKey contextKey = "session"
	// UserContextKey stores the live *models.User loaded for the request
	UserContextKey contextKey = "user"
)

// UserRepository is the account lookup the middleware needs
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// AuthMiddleware authenticates the bearer token, then loads the live user
// so that locks and deactivations take effect before the token expires.
func AuthMiddleware(authn *Authenticator, users UserRepository, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authn.Authenticate(r.Header.Get("Authorization"))
			if err != nil {
				code, message := TokenErrorResponse(err)
				pkghttp.WriteError(w, http.StatusUnauthorized, code, message)
				return
			}

			user, err := users.GetByID(r.Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, models.ErrNotFound) {
					pkghttp.WriteUnauthorized(w, "Authentication failed")
					return
				}
				logger.Error("failed to load session user",
					slog.Int64("user_id", claims.UserID),
					slog.Any("error", err))
				pkghttp.WriteInternalError(w, "Internal server error")
				return
			}

			if user.IsLocked {
				pkghttp.WriteError(w, http.StatusForbidden, "account_locked", "Account is locked")
				return
			}
			if !user.IsActive {
				pkghttp.WriteError(w, http.StatusForbidden, "account_disabled", "Account is disabled")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), claims, user)))
		})
	}
}

// RequireRole enforces the live role name of the authenticated user.
// Must be mounted after AuthMiddleware.
func RequireRole(role string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r)
			if user == nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			if user.RoleName != role {
				pkghttp.WriteForbidden(w, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetSessionFromContext extracts session claims from request context
func GetSessionFromContext(r *http.Request) *models.SessionClaims {
	claims, ok := r.Context().Value(SessionContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}

// GetUserFromContext extracts the live user from request context
func GetUserFromContext(r *http.Request) *models.User {
	user, ok := r.Context().Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// WithSession returns ctx carrying claims and the live user
func WithSession(ctx context.Context, claims *models.SessionClaims, user *models.User) context.Context {
	ctx = context.WithValue(ctx, SessionContextKey, claims)
	return context.WithValue(ctx, UserContextKey, user)
}
