package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds validated environment configuration for the authentication
// authority service.
type Config struct {
	// Authority policy
	TokenLifetime      time.Duration
	PreAuthLifetime    time.Duration
	ExpiryPollInterval time.Duration
	ReservedRooms      []string
	URLTemplate        string

	// Required variables
	Port string

	// Optional variables with defaults
	GoEnv    string
	LogLevel string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	IDPDomain   string
	IDPAudience string

	RateLimitIssueURL string

	OTELCollectorAddr string
}

// ValidateEnv validates all required environment variables and returns a Config object.
// Returns an error if any required variable is missing or invalid.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	cfg.TokenLifetime = getEnvDurationMs("AUTH_TOKEN_LIFETIME_MS", 60_000)
	cfg.PreAuthLifetime = getEnvDurationMs("AUTH_PRE_AUTH_LIFETIME_MS", 30_000)
	cfg.ExpiryPollInterval = getEnvDurationMs("AUTH_EXPIRY_POLL_INTERVAL_MS", 10_000)

	if reserved := os.Getenv("AUTH_RESERVED_ROOMS"); reserved != "" {
		cfg.ReservedRooms = strings.Split(reserved, ",")
	}

	cfg.URLTemplate = os.Getenv("AUTH_URL_TEMPLATE")
	if cfg.URLTemplate == "" {
		errors = append(errors, "AUTH_URL_TEMPLATE is required")
	} else if strings.Count(cfg.URLTemplate, "%s") != 1 {
		errors = append(errors, fmt.Sprintf("AUTH_URL_TEMPLATE must contain exactly one %%s slot (got '%s')", cfg.URLTemplate))
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errors = append(errors, "PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errors = append(errors, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.IDPDomain = os.Getenv("IDP_DOMAIN")
	cfg.IDPAudience = os.Getenv("IDP_AUDIENCE")

	cfg.RateLimitIssueURL = getEnvOrDefault("RATE_LIMIT_ISSUE_URL", "10-M")

	cfg.OTELCollectorAddr = os.Getenv("OTEL_COLLECTOR_ADDR")

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)

	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port".
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}

	if parts[0] == "" {
		return false
	}

	return true
}

// logValidatedConfig logs the validated configuration with secrets redacted.
func logValidatedConfig(cfg *Config) {
	slog.Info("✅ Environment configuration validated successfully")
	slog.Info("Configuration",
		"port", cfg.Port,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"token_lifetime", cfg.TokenLifetime,
		"pre_auth_lifetime", cfg.PreAuthLifetime,
		"expiry_poll_interval", cfg.ExpiryPollInterval,
		"reserved_rooms", cfg.ReservedRooms,
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"idp_domain", cfg.IDPDomain,
		"rate_limit_issue_url", cfg.RateLimitIssueURL,
		"otel_collector_addr", redactSecret(cfg.OTELCollectorAddr),
	)
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvDurationMs reads an environment variable as a millisecond count and
// returns it as a time.Duration, falling back to defaultMs if unset or invalid.
func getEnvDurationMs(key string, defaultMs int64) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return time.Duration(defaultMs) * time.Millisecond
	}

	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		slog.Warn("invalid duration env var, using default", "key", key, "value", value)
		return time.Duration(defaultMs) * time.Millisecond
	}

	return time.Duration(ms) * time.Millisecond
}

// redactSecret redacts a secret by showing only the first 8 characters.
func redactSecret(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
