package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/carebase/internal/auth"
	"github.com/BradenHooton/carebase/internal/background"
	"github.com/BradenHooton/carebase/internal/config"
	"github.com/BradenHooton/carebase/internal/database"
	"github.com/BradenHooton/carebase/internal/handlers"
	middlewareCustom "github.com/BradenHooton/carebase/internal/middleware"
	"github.com/BradenHooton/carebase/internal/models"
	"github.com/BradenHooton/carebase/internal/repositories"
	"github.com/BradenHooton/carebase/internal/routes"
	"github.com/BradenHooton/carebase/internal/services"
	"github.com/BradenHooton/carebase/migrations"
	pkgauth "github.com/BradenHooton/carebase/pkg/auth"
	pkghttp "github.com/BradenHooton/carebase/pkg/http"
	pkglogger "github.com/BradenHooton/carebase/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/skip2/go-qrcode"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		err := db.Migrate(migrateCtx, migrations.FS)
		cancel()
		if err != nil {
			logger.Error("failed to apply migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)
	twoFactorAttemptRepo := repositories.NewTwoFactorAttemptRepository(db.Pool)
	auditLogRepo := repositories.NewAuditLogRepository(db)

	// Session tokens
	codec := auth.NewTokenCodec(cfg.Auth.JWTSecret, cfg.Auth.TokenAbsoluteTTL, cfg.Auth.TokenInactivityTTL)
	authn := auth.NewAuthenticator(codec)

	totpManager := auth.NewTOTPManager(cfg.TwoFactor.Issuer,
		auth.WithQRRenderer(auth.PNGQRRenderer{Size: cfg.TwoFactor.QRCodeSize, Level: qrcode.Medium}))

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Auth.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Auth.TimingDelayOnSuccess,
	})

	auditLogger := pkglogger.NewAuditLogger(logger).WithSink(auditLogRepo, models.PersistedAuditEvents...)

	var notifier services.LockoutNotifier = services.NewLogLockoutNotifier(logger)
	if cfg.Email.Enabled {
		sesCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		sesNotifier, err := services.NewSESLockoutNotifier(sesCtx, cfg.Email.AWSRegion, cfg.Email.FromAddress, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize email notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	}

	// Initialize services
	authService := services.NewAuthService(userRepo, authn, logger, auditLogger,
		services.WithLoginAttempts(loginAttemptRepo),
		services.WithLockoutNotifier(notifier),
		services.WithTimingDelay(timingDelay),
		services.WithMaxFailedAttempts(cfg.Auth.MaxFailedLoginAttempts),
	)
	twoFactorService := services.NewTwoFactorService(userRepo, twoFactorAttemptRepo, totpManager,
		services.TwoFactorThrottle{MaxAttempts: cfg.TwoFactor.MaxAttempts, Window: cfg.TwoFactor.AttemptWindow},
		logger, auditLogger)
	adminService := services.NewAdminService(userRepo, logger, auditLogger, services.WithAuditTrail(auditLogRepo))

	// Trusted proxies for client IP extraction
	ipConfig, invalidCIDRs := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	for _, cidr := range invalidCIDRs {
		logger.Warn("ignoring invalid trusted proxy", slog.String("cidr", cidr))
	}

	// Initialize handlers
	h := routes.Handlers{
		Auth:      handlers.NewAuthHandler(authService, ipConfig),
		TwoFactor: handlers.NewTwoFactorHandler(twoFactorService, cfg.Auth.AdminRoleName, ipConfig),
		Admin:     handlers.NewAdminHandler(adminService),
	}

	// Bootstrap first admin user if configured
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminUser(ctx, userRepo, cfg, logger); err != nil {
		logger.Error("failed to ensure admin user", slog.Any("error", err))
	}
	cancel()

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.CORSConfig{AllowedOrigins: cfg.Server.AllowedOrigins}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, h, authn, userRepo, logger, routes.Options{
		AdminRole:      cfg.Auth.AdminRoleName,
		LoginRateLimit: middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Auth.LoginRateLimitPerMinute},
		IPConfig:       ipConfig,
	})

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
			return
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start cleanup task
	cleanupManager := background.NewCleanupManager(logger, cfg.TwoFactor.CleanupInterval,
		background.CleanupTask{
			Name:      "login_attempts",
			Retention: cfg.Auth.LoginAttemptRetention,
			Prune:     loginAttemptRepo.DeleteAttemptsBefore,
		},
		background.CleanupTask{
			Name:      "two_factor_attempts",
			Retention: cfg.TwoFactor.AttemptRetention,
			Prune:     twoFactorAttemptRepo.DeleteExpiredAttempts,
		},
		background.CleanupTask{
			Name:      "audit_logs",
			Retention: cfg.Auth.AuditLogRetention,
			Prune:     auditLogRepo.DeleteBefore,
		},
	)

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// ensureAdminUser creates the first administrator when no account holds the
// admin role and ADMIN_LOGIN, ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminUser(ctx context.Context, userRepo *repositories.UserRepository, cfg *config.Config, logger *slog.Logger) error {
	b := cfg.Bootstrap
	if b.AdminLogin == "" || b.AdminEmail == "" || b.AdminPassword == "" {
		logger.Info("admin bootstrap not configured, skipping admin user creation")
		return nil
	}

	count, err := userRepo.CountByRole(ctx, cfg.Auth.AdminRoleName)
	if err != nil {
		return fmt.Errorf("failed to check if admin exists: %w", err)
	}
	if count > 0 {
		logger.Info("admin user already exists")
		return nil
	}

	if err := pkgauth.ValidatePassword(b.AdminPassword); err != nil {
		return fmt.Errorf("admin password rejected: %w", err)
	}

	hashedPassword, err := pkgauth.HashPassword(b.AdminPassword)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	roleID, err := userRepo.EnsureRole(ctx, cfg.Auth.AdminRoleName)
	if err != nil {
		return err
	}

	admin, err := userRepo.Create(ctx, &models.User{
		Email:        b.AdminEmail,
		Login:        b.AdminLogin,
		PasswordHash: hashedPassword,
		IsActive:     true,
		RoleID:       &roleID,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			logger.Warn("admin bootstrap skipped, login or email already taken")
			return nil
		}
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	logger.Info("admin user created successfully", slog.Int64("user_id", admin.ID))
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
