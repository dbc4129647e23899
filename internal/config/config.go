// Package config holds the runtime settings of the awards daemon.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ulule/limiter/v3"
)

const (
	StoreBackendGorm = "gorm"
	StoreBackendPgx  = "pgx"

	LockBackendMemory = "memory"
	LockBackendRedis  = "redis"

	defaultDatabaseURL         = "awards.db"
	defaultGRPCListenAddr      = ":7000"
	defaultAllowedOrigin       = "http://localhost:8000"
	defaultSessionIssuer       = "tauth"
	defaultSessionCookie       = "app_session"
	defaultAdminRole           = "admin"
	defaultCompletionRateLimit = "120-M"
	defaultRedisLockTTL        = 30 * time.Second
	defaultRequestTimeout      = 3 * time.Second
	defaultLogLevel            = "info"
)

// Config aggregates runtime settings for the awards daemon.
type Config struct {
	DatabaseURL         string
	StoreBackend        string
	GRPCListenAddr      string
	HTTPListenAddr      string
	CatalogPath         string
	LockBackend         string
	RedisAddr           string
	RedisLockTTL        time.Duration
	SessionSigningKey   string
	SessionIssuer       string
	SessionCookieName   string
	AdminRole           string
	AllowedOrigins      []string
	CompletionRateLimit string
	RequestTimeout      time.Duration
	LogLevel            string
}

// Validate applies defaults and rejects inconsistent combinations.
func (cfg *Config) Validate() error {
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.StoreBackend = strings.ToLower(defaultIfEmpty(cfg.StoreBackend, StoreBackendGorm))
	cfg.GRPCListenAddr = defaultIfEmpty(cfg.GRPCListenAddr, defaultGRPCListenAddr)
	cfg.LockBackend = strings.ToLower(defaultIfEmpty(cfg.LockBackend, LockBackendMemory))
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	cfg.AdminRole = defaultIfEmpty(cfg.AdminRole, defaultAdminRole)
	cfg.CompletionRateLimit = defaultIfEmpty(cfg.CompletionRateLimit, defaultCompletionRateLimit)
	cfg.LogLevel = strings.ToLower(defaultIfEmpty(cfg.LogLevel, defaultLogLevel))
	if cfg.RedisLockTTL <= 0 {
		cfg.RedisLockTTL = defaultRedisLockTTL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}

	switch cfg.StoreBackend {
	case StoreBackendGorm:
	case StoreBackendPgx:
		if !IsPostgresURL(cfg.DatabaseURL) {
			return fmt.Errorf("store backend %s requires a postgres database url", StoreBackendPgx)
		}
	default:
		return fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
	switch cfg.LockBackend {
	case LockBackendMemory:
	case LockBackendRedis:
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return fmt.Errorf("redis addr is required for lock backend %s", LockBackendRedis)
		}
	default:
		return fmt.Errorf("unsupported lock backend %q", cfg.LockBackend)
	}
	if _, err := limiter.NewRateFromFormatted(cfg.CompletionRateLimit); err != nil {
		return fmt.Errorf("completion rate limit: %w", err)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", cfg.LogLevel)
	}
	if strings.TrimSpace(cfg.HTTPListenAddr) != "" {
		if len(cfg.SessionSigningKey) == 0 {
			return fmt.Errorf("jwt signing key is required when the http api is enabled")
		}
	}
	return nil
}

// HTTPEnabled reports whether the HTTP API should be started.
func (cfg Config) HTTPEnabled() bool {
	return strings.TrimSpace(cfg.HTTPListenAddr) != ""
}

// IsPostgresURL reports whether dsn addresses a PostgreSQL server.
func IsPostgresURL(dsn string) bool {
	normalized := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(normalized, "postgres://") || strings.HasPrefix(normalized, "postgresql://")
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
