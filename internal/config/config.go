package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string
	BaseURL  string

	Store     string
	DBDSN     string
	JWTSecret string

	LogLevel string

	RateLimitRPM int

	InviteTTLHours int

	PushURL       string
	PushTimeoutMS int

	ExpirySchedule string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("CS_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("CS_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("CS_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("CS_HTTP_ADDR", ":8080")

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("CS_BASE_URL")), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("CS_BASE_URL is required")
	}

	cfg.Store = getEnvOrDefault("CS_STORE", StorePostgres)
	switch cfg.Store {
	case StorePostgres:
		cfg.DBDSN = strings.TrimSpace(os.Getenv("CS_DB_DSN"))
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("CS_DB_DSN is required when CS_STORE=postgres")
		}
	case StoreMemory:
		if cfg.Env == "prod" {
			return nil, fmt.Errorf("CS_STORE=memory is not allowed in prod")
		}
	default:
		return nil, fmt.Errorf("CS_STORE must be one of: postgres, memory (got: %s)", cfg.Store)
	}

	cfg.JWTSecret = os.Getenv("CS_JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("CS_JWT_SECRET is required")
	}
	if cfg.Env == "prod" && len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("CS_JWT_SECRET must be at least 32 characters (currently %d)", len(cfg.JWTSecret))
	}

	cfg.LogLevel = getEnvOrDefault("CS_LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("CS_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	var err error
	cfg.RateLimitRPM, err = getEnvIntOrDefault("CS_RATE_LIMIT_RPM", 120)
	if err != nil {
		return nil, err
	}
	if cfg.RateLimitRPM <= 0 {
		return nil, fmt.Errorf("CS_RATE_LIMIT_RPM must be positive (got: %d)", cfg.RateLimitRPM)
	}

	cfg.InviteTTLHours, err = getEnvIntOrDefault("CS_INVITE_TTL_HOURS", 7*24)
	if err != nil {
		return nil, err
	}
	if cfg.InviteTTLHours <= 0 {
		return nil, fmt.Errorf("CS_INVITE_TTL_HOURS must be positive (got: %d)", cfg.InviteTTLHours)
	}

	cfg.PushURL = strings.TrimSpace(os.Getenv("CS_PUSH_URL"))

	cfg.PushTimeoutMS, err = getEnvIntOrDefault("CS_PUSH_TIMEOUT_MS", 2000)
	if err != nil {
		return nil, err
	}
	if cfg.PushTimeoutMS <= 0 || cfg.PushTimeoutMS > 30000 {
		return nil, fmt.Errorf("CS_PUSH_TIMEOUT_MS must be between 1 and 30000 (got: %d)", cfg.PushTimeoutMS)
	}

	cfg.ExpirySchedule = getEnvOrDefault("CS_EXPIRY_SCHEDULE", "*/15 * * * *")
	if _, err := cron.ParseStandard(cfg.ExpirySchedule); err != nil {
		return nil, fmt.Errorf("CS_EXPIRY_SCHEDULE is not a valid cron expression: %w", err)
	}

	return cfg, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// InviteTTL returns the invitation lifetime.
func (c *Config) InviteTTL() time.Duration {
	return time.Duration(c.InviteTTLHours) * time.Hour
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	return map[string]string{
		"CS_ENV":              c.Env,
		"CS_HTTP_ADDR":        c.HTTPAddr,
		"CS_BASE_URL":         c.BaseURL,
		"CS_STORE":            c.Store,
		"CS_DB_DSN":           redactDSN(c.DBDSN),
		"CS_JWT_SECRET":       "[REDACTED]",
		"CS_LOG_LEVEL":        c.LogLevel,
		"CS_RATE_LIMIT_RPM":   fmt.Sprintf("%d", c.RateLimitRPM),
		"CS_INVITE_TTL_HOURS": fmt.Sprintf("%d", c.InviteTTLHours),
		"CS_PUSH_URL":         c.PushURL,
		"CS_PUSH_TIMEOUT_MS":  fmt.Sprintf("%d", c.PushTimeoutMS),
		"CS_EXPIRY_SCHEDULE":  c.ExpirySchedule,
	}
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}
