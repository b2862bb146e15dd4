// config.go

// Environment variable loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MGallo-Code/styx/internal/enqueue"
)

// Config holds all env configuration vars for the styx gate.
type Config struct {
	// Queueing service credentials. Both required.
	CustomerID string
	SecretKey  string

	// IntegrationConfigPath points at the integration JSON document. Required.
	IntegrationConfigPath string

	// OriginURL is the upstream admitted requests are proxied to. Required, http(s).
	OriginURL *url.URL

	Port     string
	LogLevel slog.Level

	// Optional backends. Empty RedisURL disables the shared integration cache;
	// empty DatabaseURL disables the decision audit.
	RedisURL    string
	DatabaseURL string

	// IntegrationCacheTTL bounds how long a cached integration document is served.
	// Default 5m.
	IntegrationCacheTTL time.Duration

	// Enqueue tokens on queue redirects. Off by default.
	// Validity defaults to 240s; values below 30s fall back to the default.
	EnqueueTokenEnabled    bool
	EnqueueTokenValidity   time.Duration
	EnqueueTokenKeyEnabled bool

	// RequestBodyEnabled captures up to RequestBodyLimit bytes for body triggers.
	// Off by default; limit defaults to 64KiB.
	RequestBodyEnabled bool
	RequestBodyLimit   int64

	// TrustedProxyHeaders derives the client IP from X-Forwarded-For/X-Real-IP.
	// Default true; set TRUSTED_PROXY_HEADERS=false when exposed directly.
	TrustedProxyHeaders bool

	// RequestTimeout caps each proxied request. Default 30s.
	RequestTimeout time.Duration
}

// LoadConfig reads environment variables and returns a validated Config.
// Returns an error if required variables (CUSTOMER_ID, SECRET_KEY,
// INTEGRATION_CONFIG_PATH, ORIGIN_URL) are missing or invalid.
func LoadConfig() (*Config, error) {
	// Create config obj
	cfg := &Config{}

	cfg.CustomerID = os.Getenv("CUSTOMER_ID")
	if cfg.CustomerID == "" {
		return nil, fmt.Errorf("CUSTOMER_ID is required")
	}

	cfg.SecretKey = os.Getenv("SECRET_KEY")
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("SECRET_KEY is required")
	}

	cfg.IntegrationConfigPath = os.Getenv("INTEGRATION_CONFIG_PATH")
	if cfg.IntegrationConfigPath == "" {
		return nil, fmt.Errorf("INTEGRATION_CONFIG_PATH is required")
	}

	// Origin must be absolute so the reverse proxy knows where to dial.
	rawOrigin := os.Getenv("ORIGIN_URL")
	if rawOrigin == "" {
		return nil, fmt.Errorf("ORIGIN_URL is required")
	}
	origin, err := url.Parse(rawOrigin)
	if err != nil || (origin.Scheme != "http" && origin.Scheme != "https") || origin.Host == "" {
		return nil, fmt.Errorf("ORIGIN_URL must be an absolute http(s) URL")
	}
	cfg.OriginURL = origin

	// Attempt to get port num, default to 7866
	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		cfg.Port = "7866"
	}

	// Parse log level, default to info
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.IntegrationCacheTTL = envDuration("INTEGRATION_CACHE_TTL", 5*time.Minute)

	// Only explicit "true" enables.
	cfg.EnqueueTokenEnabled = os.Getenv("ENQUEUE_TOKEN_ENABLED") == "true"
	cfg.EnqueueTokenKeyEnabled = os.Getenv("ENQUEUE_TOKEN_KEY_ENABLED") == "true"
	cfg.EnqueueTokenValidity = envDuration("ENQUEUE_TOKEN_VALIDITY", enqueue.DefaultValidity)
	if cfg.EnqueueTokenValidity < enqueue.MinValidity {
		slog.Warn("enqueue token validity below minimum, using default",
			"value", cfg.EnqueueTokenValidity, "min", enqueue.MinValidity, "default", enqueue.DefaultValidity)
		cfg.EnqueueTokenValidity = enqueue.DefaultValidity
	}

	cfg.RequestBodyEnabled = os.Getenv("REQUEST_BODY_ENABLED") == "true"
	cfg.RequestBodyLimit = int64(envInt("REQUEST_BODY_LIMIT", 64*1024))

	// Default true -- only explicit "false" disables.
	cfg.TrustedProxyHeaders = os.Getenv("TRUSTED_PROXY_HEADERS") != "false"

	cfg.RequestTimeout = envDuration("REQUEST_TIMEOUT", 30*time.Second)

	return cfg, nil
}

// BodyLimit returns the number of body bytes to capture, 0 when disabled.
func (c *Config) BodyLimit() int64 {
	if !c.RequestBodyEnabled {
		return 0
	}
	return c.RequestBodyLimit
}

// EnqueueSettings returns the enqueue token settings.
func (c *Config) EnqueueSettings() enqueue.Settings {
	return enqueue.Settings{
		Enabled:    c.EnqueueTokenEnabled,
		Validity:   c.EnqueueTokenValidity,
		KeyEnabled: c.EnqueueTokenKeyEnabled,
	}
}

// envInt reads an env var as int, returning def if missing or unparseable.
func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

// envDuration reads an env var as time.Duration, returning def if missing or unparseable.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("invalid env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
