package routes

import (
	"log/slog"

	"github.com/BradenHooton/carebase/internal/auth"
	"github.com/BradenHooton/carebase/internal/handlers"
	"github.com/BradenHooton/carebase/internal/middleware"
	pkghttp "github.com/BradenHooton/carebase/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth      *handlers.AuthHandler
	TwoFactor *handlers.TwoFactorHandler
	Admin     *handlers.AdminHandler
}

// Options carries the route-level policy knobs
type Options struct {
	AdminRole      string
	LoginRateLimit middleware.RateLimitConfig
	// IPConfig lists the proxies allowed to name the client in forwarding headers
	IPConfig *pkghttp.IPConfig
}

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	h Handlers,
	authn *auth.Authenticator,
	users auth.UserRepository,
	logger *slog.Logger,
	opts Options,
) {
	if opts.LoginRateLimit.RequestsPerMinute <= 0 {
		opts.LoginRateLimit = middleware.DefaultLoginRateLimit()
	}
	opts.LoginRateLimit.IPConfig = opts.IPConfig

	// Public routes. Verify and refresh read the Authorization header
	// themselves so every token failure maps to its own error code.
	router.With(middleware.RateLimitByIP(opts.LoginRateLimit)).Post("/auth/login", h.Auth.Login)
	router.Get("/auth/verify", h.Auth.Verify)
	router.Post("/auth/refresh-activity", h.Auth.RefreshActivity)
	router.Post("/auth/logout", h.Auth.Logout)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(authn, users, logger))

		r.Route("/users/{id}/2fa", func(r chi.Router) {
			r.Get("/status", h.TwoFactor.Status)
			r.Post("/enable", h.TwoFactor.Enable)
			r.Post("/disable", h.TwoFactor.Disable)
			r.Post("/verify", h.TwoFactor.Verify)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(opts.AdminRole))
			r.Post("/admin/users/{id}/unlock", h.Admin.Unlock)
			r.Post("/admin/users/{id}/activate", h.Admin.Activate)
			r.Post("/admin/users/{id}/deactivate", h.Admin.Deactivate)
			r.Get("/admin/users/{id}/audit", h.Admin.AuditTrail)
		})
	})
}
