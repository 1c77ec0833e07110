// Package config validates and loads process configuration from the
// environment, following the teacher's ValidateEnv pattern
// (internal/v1/config/config.go): collect every error before failing,
// default optional values, and log the resolved configuration with
// secrets redacted.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Akuma-real/ActiveNow/internal/v1/logging"
	"github.com/Akuma-real/ActiveNow/internal/v1/originpolicy"
)

// Config holds validated, defaulted environment configuration for the
// gateway process (spec §6).
type Config struct {
	Port string

	// PresenceTTL is how long a room member may go without a heartbeat
	// before it's considered gone.
	PresenceTTL time.Duration

	// PingInterval is how often the server sends a protocol ping; zero
	// disables pings entirely.
	PingInterval time.Duration

	AllowedOrigins []string

	// RedisURL selects the metastore backend: empty means in-memory,
	// non-empty means the external Redis hash backend.
	RedisURL string

	DevelopmentMode bool

	RateLimitWsIP     string
	RateLimitUpdateIP string

	OtelCollectorAddr string
}

// Load reads and validates the process environment, returning every
// validation failure at once rather than failing fast on the first one.
func Load(getenv func(string) string) (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.Port = getenvOrDefault(getenv, "PORT", "8080")
	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got %q)", cfg.Port))
	}

	ttlSeconds := getenvOrDefault(getenv, "PRESENCE_TTL", "30")
	ttl, err := strconv.Atoi(ttlSeconds)
	if err != nil || ttl < 1 {
		errs = append(errs, fmt.Sprintf("PRESENCE_TTL must be a positive integer number of seconds (got %q)", ttlSeconds))
	} else {
		cfg.PresenceTTL = time.Duration(ttl) * time.Second
	}

	pingSeconds := getenvOrDefault(getenv, "PING_INTERVAL", "0")
	ping, err := strconv.Atoi(pingSeconds)
	if err != nil || ping < 0 {
		errs = append(errs, fmt.Sprintf("PING_INTERVAL must be a non-negative integer number of seconds (got %q)", pingSeconds))
	} else {
		cfg.PingInterval = time.Duration(ping) * time.Second
	}

	cfg.AllowedOrigins = originpolicy.ParseOriginsEnv(getenv("ALLOWED_ORIGINS"))
	cfg.RedisURL = getenv("REDIS_URL")
	cfg.DevelopmentMode = getenv("GO_ENV") != "production"
	cfg.OtelCollectorAddr = getenv("OTEL_COLLECTOR_ADDR")

	cfg.RateLimitWsIP = getenvOrDefault(getenv, "RATE_LIMIT_WS_IP", "20-M")
	cfg.RateLimitUpdateIP = getenvOrDefault(getenv, "RATE_LIMIT_PRESENCE_UPDATE_IP", "60-M")

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logResolved(cfg)
	return cfg, nil
}

func getenvOrDefault(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func logResolved(cfg *Config) {
	logging.Info(nil, "environment configuration validated",
		zap.String("port", cfg.Port),
		zap.Duration("presence_ttl", cfg.PresenceTTL),
		zap.Duration("ping_interval", cfg.PingInterval),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.String("redis_url", redactURL(cfg.RedisURL)),
		zap.Bool("development_mode", cfg.DevelopmentMode),
	)
}

// redactURL hides userinfo/credentials embedded in a connection string
// while still showing enough to confirm the right host is configured.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	if idx := strings.Index(raw, "@"); idx != -1 {
		if schemeIdx := strings.Index(raw, "://"); schemeIdx != -1 && schemeIdx < idx {
			return raw[:schemeIdx+3] + "***@" + raw[idx+1:]
		}
	}
	return raw
}
