// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Auth modes.
const (
	AuthModeJWT    = "jwt"
	AuthModeRemote = "remote"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// AuthMode selects how bearer tokens are verified: jwt or remote.
	AuthMode    string `koanf:"auth_mode"`
	JWTSecret   string `koanf:"jwt_secret"`
	JWTAudience string `koanf:"jwt_audience"`
	JWTIssuer   string `koanf:"jwt_issuer"`

	// ProviderURL is the identity provider base URL used in remote mode.
	ProviderURL       string `koanf:"provider_url"`
	ProviderAPIKey    string `koanf:"provider_api_key"`
	ProviderTimeoutMS int    `koanf:"provider_timeout_ms"`

	// StoreDriver selects the data store gateway: memory or postgres.
	StoreDriver         string `koanf:"store_driver"`
	DatabaseDSN         string `koanf:"database_dsn"`
	DBMaxOpenConns      int    `koanf:"db_max_open_conns"`
	DBMaxIdleConns      int    `koanf:"db_max_idle_conns"`
	DBSlowQueryMS       int    `koanf:"db_slow_query_ms"`
	DBEnsureUniqueIndex bool   `koanf:"db_ensure_unique_index"`

	// SeedFile optionally preloads the memory store from YAML.
	SeedFile string `koanf:"seed_file"`

	// RedisAddr enables the quiz cache when set.
	RedisAddr           string `koanf:"redis_addr"`
	RedisPassword       string `koanf:"redis_password"`
	RedisDB             int    `koanf:"redis_db"`
	QuizCacheTTLSeconds int    `koanf:"quiz_cache_ttl_seconds"`

	// AMQPURL enables domain event publishing when set.
	AMQPURL        string `koanf:"amqp_url"`
	AMQPExchange   string `koanf:"amqp_exchange"`
	EventQueueSize int    `koanf:"event_queue_size"`
	EventWorkers   int    `koanf:"event_workers"`

	// RateLimitRPS limits requests per client IP; 0 disables limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`
	// RateLimitTrustProxy keys clients on X-Forwarded-For. Enable only behind
	// a proxy that overwrites the header.
	RateLimitTrustProxy bool `koanf:"rate_limit_trust_proxy"`

	// CertificatePrefix is prepended to certificate codes.
	CertificatePrefix string `koanf:"certificate_prefix"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":8080",
		AuthMode:            AuthModeJWT,
		JWTAudience:         "authenticated",
		ProviderTimeoutMS:   5000,
		StoreDriver:         StoreMemory,
		DBMaxOpenConns:      20,
		DBMaxIdleConns:      5,
		DBSlowQueryMS:       200,
		QuizCacheTTLSeconds: 300,
		AMQPExchange:        "coursecore.events",
		EventQueueSize:      1024,
		EventWorkers:        2,
		RateLimitRPS:        0,
		RateLimitBurst:      20,
		CertificatePrefix:   "SOFTAI",
	}
}

// ProviderTimeout returns the identity provider timeout.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutMS) * time.Millisecond
}

// SlowQueryThreshold returns the duration above which queries are logged.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.DBSlowQueryMS) * time.Millisecond
}

// QuizCacheTTL returns the quiz cache entry lifetime.
func (c *Config) QuizCacheTTL() time.Duration {
	return time.Duration(c.QuizCacheTTLSeconds) * time.Second
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !slices.Contains([]string{"text", "json"}, c.LogFormat):
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	case c.AuthMode == AuthModeJWT && c.JWTSecret == "":
		return fmt.Errorf("%w: jwt_secret is required when auth_mode is jwt", ErrInvalidConfig)
	case c.AuthMode == AuthModeRemote && c.ProviderURL == "":
		return fmt.Errorf("%w: provider_url is required when auth_mode is remote", ErrInvalidConfig)
	case c.AuthMode != AuthModeJWT && c.AuthMode != AuthModeRemote:
		return fmt.Errorf("%w: auth_mode %q", ErrInvalidConfig, c.AuthMode)
	case c.StoreDriver == StorePostgres && c.DatabaseDSN == "":
		return fmt.Errorf("%w: database_dsn is required when store_driver is postgres", ErrInvalidConfig)
	case c.StoreDriver != StoreMemory && c.StoreDriver != StorePostgres:
		return fmt.Errorf("%w: store_driver %q", ErrInvalidConfig, c.StoreDriver)
	case c.SeedFile != "" && c.StoreDriver != StoreMemory:
		return fmt.Errorf("%w: seed_file only applies to the memory store", ErrInvalidConfig)
	case c.RateLimitRPS < 0:
		return fmt.Errorf("%w: rate_limit_rps must not be negative", ErrInvalidConfig)
	case c.EventQueueSize < 1 || c.EventWorkers < 1:
		return fmt.Errorf("%w: event_queue_size and event_workers must be positive", ErrInvalidConfig)
	}
	return nil
}
