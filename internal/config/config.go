// Package config loads galynx's runtime configuration from environment
// variables, collecting every invalid value into a single joined error
// instead of failing on the first one.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Backend identifies which storage.Store implementation to construct.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendMongo  Backend = "mongo"
)

// Config holds application configuration populated from environment variables.
type Config struct {
	// Core
	Port      int
	ServerEnv string // "development" or "production"

	// JWT
	JWTSecret        string
	AccessTTLMinutes int64
	RefreshTTLDays   int64

	// First-run bootstrap owner
	BootstrapEmail    string
	BootstrapPassword string

	// Persistence
	PersistenceBackend Backend
	MongoURI           string

	// Redis (rate limiting, realtime pub/sub bridge)
	RedisURL string

	// S3-compatible object storage (attachment presigner)
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3ForcePathStyle  bool

	// Argon2 password hashing
	Argon2Memory      uint32
	Argon2Iterations  uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32

	// Rate limiting (4.7 classes)
	RateLimitAuthCount          int
	RateLimitAuthWindowSeconds  int
	RateLimitWSConnectCount     int
	RateLimitWSConnectWindowSec int
	RateLimitWSCommandCount     int
	RateLimitWSCommandWindowSec int

	CORSAllowOrigins string
}

// Load reads configuration from environment variables, applying the
// defaults named in the external-interfaces spec.
func Load() (*Config, error) {
	p := &parser{}

	cfg := &Config{
		Port:      p.int("PORT", 3000),
		ServerEnv: envStr("SERVER_ENV", "production"),

		JWTSecret:        envStr("JWT_SECRET", ""),
		AccessTTLMinutes: p.int64("ACCESS_TTL_MINUTES", 15),
		RefreshTTLDays:   p.int64("REFRESH_TTL_DAYS", 30),

		BootstrapEmail:    envStr("BOOTSTRAP_EMAIL", ""),
		BootstrapPassword: envStr("BOOTSTRAP_PASSWORD", ""),

		PersistenceBackend: Backend(envStr("PERSISTENCE_BACKEND", string(BackendMemory))),
		MongoURI:           envStr("MONGO_URI", ""),

		RedisURL: envStr("REDIS_URL", ""),

		S3Bucket:          envStr("S3_BUCKET", ""),
		S3Region:          envStr("S3_REGION", "us-east-1"),
		S3Endpoint:        envStr("S3_ENDPOINT", ""),
		S3AccessKeyID:     envStr("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: envStr("S3_SECRET_ACCESS_KEY", ""),
		S3ForcePathStyle:  p.bool("S3_FORCE_PATH_STYLE", true),

		Argon2Memory:      p.uint32("ARGON2_MEMORY", 65536),
		Argon2Iterations:  p.uint32("ARGON2_ITERATIONS", 3),
		Argon2Parallelism: p.uint8("ARGON2_PARALLELISM", 2),
		Argon2SaltLength:  p.uint32("ARGON2_SALT_LENGTH", 16),
		Argon2KeyLength:   p.uint32("ARGON2_KEY_LENGTH", 32),

		RateLimitAuthCount:          p.int("RATE_LIMIT_AUTH_COUNT", 30),
		RateLimitAuthWindowSeconds:  p.int("RATE_LIMIT_AUTH_WINDOW_SECONDS", 60),
		RateLimitWSConnectCount:     p.int("RATE_LIMIT_WS_CONNECT_COUNT", 12),
		RateLimitWSConnectWindowSec: p.int("RATE_LIMIT_WS_CONNECT_WINDOW_SECONDS", 60),
		RateLimitWSCommandCount:     p.int("RATE_LIMIT_WS_COMMAND_COUNT", 600),
		RateLimitWSCommandWindowSec: p.int("RATE_LIMIT_WS_COMMAND_WINDOW_SECONDS", 60),

		CORSAllowOrigins: envStr("CORS_ALLOW_ORIGINS", "*"),
	}

	if parseErr := errors.Join(p.errs...); parseErr != nil {
		return nil, parseErr
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDevelopment returns true when running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.ServerEnv == "development"
}

// AccessTTL returns the access-token lifetime as a time.Duration.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

// RefreshTTL returns the refresh-token lifetime as a time.Duration.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// S3Configured reports whether an S3 bucket is configured. When true, the
// bucket and region are recorded on committed attachments; upload and
// download URLs are synthesized locally either way.
func (c *Config) S3Configured() bool {
	return c.S3Bucket != ""
}

func (c *Config) validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("JWT_SECRET is required"))
	} else if len(c.JWTSecret) < 32 {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least 32 characters"))
	}

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535"))
	}

	if c.AccessTTLMinutes < 1 {
		errs = append(errs, fmt.Errorf("ACCESS_TTL_MINUTES must be at least 1"))
	}
	if c.RefreshTTLDays < 1 {
		errs = append(errs, fmt.Errorf("REFRESH_TTL_DAYS must be at least 1"))
	}

	switch c.PersistenceBackend {
	case BackendMemory:
	case BackendMongo:
		if c.MongoURI == "" {
			errs = append(errs, fmt.Errorf("MONGO_URI is required when PERSISTENCE_BACKEND=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("PERSISTENCE_BACKEND must be one of memory, mongo (got %q)", c.PersistenceBackend))
	}

	if c.Argon2Memory == 0 {
		errs = append(errs, fmt.Errorf("ARGON2_MEMORY must be greater than 0"))
	}
	if c.Argon2Iterations == 0 {
		errs = append(errs, fmt.Errorf("ARGON2_ITERATIONS must be greater than 0"))
	}
	if c.Argon2Parallelism == 0 {
		errs = append(errs, fmt.Errorf("ARGON2_PARALLELISM must be greater than 0"))
	}

	if c.RateLimitAuthCount < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_AUTH_COUNT must be at least 1"))
	}
	if c.RateLimitAuthWindowSeconds < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_AUTH_WINDOW_SECONDS must be at least 1"))
	}
	if c.RateLimitWSConnectCount < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WS_CONNECT_COUNT must be at least 1"))
	}
	if c.RateLimitWSConnectWindowSec < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WS_CONNECT_WINDOW_SECONDS must be at least 1"))
	}
	if c.RateLimitWSCommandCount < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WS_COMMAND_COUNT must be at least 1"))
	}
	if c.RateLimitWSCommandWindowSec < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WS_COMMAND_WINDOW_SECONDS must be at least 1"))
	}

	return errors.Join(errs...)
}

// parser collects parse errors so Load can report all invalid values at once.
type parser struct {
	errs []error
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected integer)", key, v))
		return fallback
	}
	return n
}

func (p *parser) int64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected integer)", key, v))
		return fallback
	}
	return n
}

func (p *parser) bool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected boolean)", key, v))
		return fallback
	}
	return b
}

func (p *parser) uint32(key string, fallback uint32) uint32 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected unsigned 32-bit integer)", key, v))
		return fallback
	}
	return uint32(n)
}

func (p *parser) uint8(key string, fallback uint8) uint8 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid value for %s: %q (expected unsigned 8-bit integer)", key, v))
		return fallback
	}
	return uint8(n)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
