package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Auth      AuthConfig
	TwoFactor TwoFactorConfig
	Email     EmailConfig
	Bootstrap BootstrapConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	AutoMigrate       bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
	TrustedProxies []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
}

type AuthConfig struct {
	JWTSecret               string
	TokenAbsoluteTTL        time.Duration
	TokenInactivityTTL      time.Duration
	MaxFailedLoginAttempts  int
	AdminRoleName           string
	LoginRateLimitPerMinute int
	TimingDelayBaseMs       int
	TimingDelayRandomMs     int
	TimingDelayOnSuccess    bool
	LoginAttemptRetention   time.Duration
	AuditLogRetention       time.Duration
}

type TwoFactorConfig struct {
	Issuer           string
	MaxAttempts      int
	AttemptWindow    time.Duration
	AttemptRetention time.Duration
	CleanupInterval  time.Duration
	QRCodeSize       int
}

type EmailConfig struct {
	Enabled     bool
	AWSRegion   string
	FromAddress string
}

// BootstrapConfig describes the administrator created on first start
type BootstrapConfig struct {
	AdminLogin    string
	AdminEmail    string
	AdminPassword string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "carebase"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			AutoMigrate:       getEnvAsBool("DB_AUTO_MIGRATE", false),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
			TrustedProxies: getEnvAsList("TRUSTED_PROXIES"),
			ReadTimeout:    getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:    getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:               jwtSecret,
			TokenAbsoluteTTL:        getEnvAsDuration("TOKEN_ABSOLUTE_TTL", 24*time.Hour),
			TokenInactivityTTL:      getEnvAsDuration("TOKEN_INACTIVITY_TTL", 15*time.Minute),
			MaxFailedLoginAttempts:  getEnvAsInt("MAX_FAILED_LOGIN_ATTEMPTS", 5),
			AdminRoleName:           getEnv("ADMIN_ROLE_NAME", "admin"),
			LoginRateLimitPerMinute: getEnvAsInt("LOGIN_RATE_LIMIT_PER_MINUTE", 20),
			TimingDelayBaseMs:       getEnvAsInt("TIMING_DELAY_BASE_MS", 300),
			TimingDelayRandomMs:     getEnvAsInt("TIMING_DELAY_RANDOM_MS", 100),
			TimingDelayOnSuccess:    getEnvAsBool("TIMING_DELAY_ON_SUCCESS", false),
			LoginAttemptRetention:   getEnvAsDuration("LOGIN_ATTEMPT_RETENTION", 90*24*time.Hour),
			AuditLogRetention:       getEnvAsDuration("AUDIT_LOG_RETENTION", 365*24*time.Hour),
		},
		TwoFactor: TwoFactorConfig{
			Issuer:           getEnv("TOTP_ISSUER", "Carebase"),
			MaxAttempts:      getEnvAsInt("TWO_FACTOR_MAX_ATTEMPTS", 5),
			AttemptWindow:    getEnvAsDuration("TWO_FACTOR_ATTEMPT_WINDOW", 15*time.Minute),
			AttemptRetention: getEnvAsDuration("TWO_FACTOR_ATTEMPT_RETENTION", 30*24*time.Hour),
			CleanupInterval:  getEnvAsDuration("TWO_FACTOR_CLEANUP_INTERVAL", 1*time.Hour),
			QRCodeSize:       getEnvAsInt("QR_CODE_SIZE", 200),
		},
		Email: EmailConfig{
			Enabled:     getEnvAsBool("EMAIL_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "eu-west-3"),
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		},
		Bootstrap: BootstrapConfig{
			AdminLogin:    getEnv("ADMIN_LOGIN", ""),
			AdminEmail:    getEnv("ADMIN_EMAIL", ""),
			AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.TokenAbsoluteTTL <= 0 || c.Auth.TokenInactivityTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.Auth.TokenInactivityTTL >= c.Auth.TokenAbsoluteTTL {
		return fmt.Errorf("TOKEN_INACTIVITY_TTL (%s) must be shorter than TOKEN_ABSOLUTE_TTL (%s)",
			c.Auth.TokenInactivityTTL, c.Auth.TokenAbsoluteTTL)
	}
	if c.Auth.MaxFailedLoginAttempts < 1 {
		return fmt.Errorf("MAX_FAILED_LOGIN_ATTEMPTS must be at least 1")
	}
	if c.TwoFactor.MaxAttempts < 1 {
		return fmt.Errorf("TWO_FACTOR_MAX_ATTEMPTS must be at least 1")
	}
	durations := []struct {
		key   string
		value time.Duration
	}{
		{"TWO_FACTOR_ATTEMPT_WINDOW", c.TwoFactor.AttemptWindow},
		{"TWO_FACTOR_CLEANUP_INTERVAL", c.TwoFactor.CleanupInterval},
		{"TWO_FACTOR_ATTEMPT_RETENTION", c.TwoFactor.AttemptRetention},
		{"LOGIN_ATTEMPT_RETENTION", c.Auth.LoginAttemptRetention},
		{"AUDIT_LOG_RETENTION", c.Auth.AuditLogRetention},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive (got %s)", d.key, d.value)
		}
	}
	if c.Email.Enabled && c.Email.FromAddress == "" {
		return fmt.Errorf("EMAIL_FROM_ADDRESS is required when EMAIL_ENABLED=true")
	}
	return nil
}

// validateJWTSecret enforces minimum security standards for the signing secret
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak || strings.Repeat(weak, len(secret)/len(weak)) == secretLower {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

func getEnvAsList(key string) []string {
	value := getEnv(key, "")
	if value == "" {
		return []string{}
	}
	items := strings.Split(value, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseAllowedOrigins(env string) []string {
	if env == "production" {
		return getEnvAsList("ALLOWED_ORIGINS")
	}

	// Development: allow localhost variants
	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://localhost:8080",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:8080",
	}
}
