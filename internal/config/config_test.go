package config

import (
	"strings"
	"testing"
	"time"
)

// TestLoadDefaults is not t.Parallel because it mutates process-wide environment variables.
func TestLoadDefaults(t *testing.T) {
	keys := []string{
		"PORT", "SERVER_ENV",
		"JWT_SECRET", "ACCESS_TTL_MINUTES", "REFRESH_TTL_DAYS",
		"BOOTSTRAP_EMAIL", "BOOTSTRAP_PASSWORD",
		"PERSISTENCE_BACKEND", "MONGO_URI", "REDIS_URL",
		"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_FORCE_PATH_STYLE",
		"ARGON2_MEMORY", "ARGON2_ITERATIONS", "ARGON2_PARALLELISM", "ARGON2_SALT_LENGTH", "ARGON2_KEY_LENGTH",
		"RATE_LIMIT_AUTH_COUNT", "RATE_LIMIT_AUTH_WINDOW_SECONDS",
		"RATE_LIMIT_WS_CONNECT_COUNT", "RATE_LIMIT_WS_CONNECT_WINDOW_SECONDS",
		"RATE_LIMIT_WS_COMMAND_COUNT", "RATE_LIMIT_WS_COMMAND_WINDOW_SECONDS",
		"CORS_ALLOW_ORIGINS",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}

	t.Setenv("JWT_SECRET", "test-secret-for-defaults-minimum-32")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.ServerEnv != "production" {
		t.Errorf("ServerEnv = %q, want %q", cfg.ServerEnv, "production")
	}
	if cfg.AccessTTLMinutes != 15 {
		t.Errorf("AccessTTLMinutes = %d, want 15", cfg.AccessTTLMinutes)
	}
	if cfg.RefreshTTLDays != 30 {
		t.Errorf("RefreshTTLDays = %d, want 30", cfg.RefreshTTLDays)
	}
	if cfg.AccessTTL() != 15*time.Minute {
		t.Errorf("AccessTTL() = %v, want 15m", cfg.AccessTTL())
	}
	if cfg.RefreshTTL() != 30*24*time.Hour {
		t.Errorf("RefreshTTL() = %v, want 720h", cfg.RefreshTTL())
	}

	if cfg.PersistenceBackend != BackendMemory {
		t.Errorf("PersistenceBackend = %q, want %q", cfg.PersistenceBackend, BackendMemory)
	}
	if cfg.S3Region != "us-east-1" {
		t.Errorf("S3Region = %q, want %q", cfg.S3Region, "us-east-1")
	}
	if !cfg.S3ForcePathStyle {
		t.Error("S3ForcePathStyle = false, want true")
	}
	if cfg.S3Configured() {
		t.Error("S3Configured() = true, want false with no S3_BUCKET set")
	}

	if cfg.Argon2Memory != 65536 {
		t.Errorf("Argon2Memory = %d, want 65536", cfg.Argon2Memory)
	}
	if cfg.Argon2Iterations != 3 {
		t.Errorf("Argon2Iterations = %d, want 3", cfg.Argon2Iterations)
	}
	if cfg.Argon2Parallelism != 2 {
		t.Errorf("Argon2Parallelism = %d, want 2", cfg.Argon2Parallelism)
	}

	if cfg.RateLimitAuthCount != 30 {
		t.Errorf("RateLimitAuthCount = %d, want 30", cfg.RateLimitAuthCount)
	}
	if cfg.RateLimitAuthWindowSeconds != 60 {
		t.Errorf("RateLimitAuthWindowSeconds = %d, want 60", cfg.RateLimitAuthWindowSeconds)
	}
	if cfg.RateLimitWSConnectCount != 12 {
		t.Errorf("RateLimitWSConnectCount = %d, want 12", cfg.RateLimitWSConnectCount)
	}
	if cfg.RateLimitWSCommandCount != 600 {
		t.Errorf("RateLimitWSCommandCount = %d, want 600", cfg.RateLimitWSCommandCount)
	}

	if cfg.CORSAllowOrigins != "*" {
		t.Errorf("CORSAllowOrigins = %q, want %q", cfg.CORSAllowOrigins, "*")
	}
}

func TestLoadValidationRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want validation error for missing JWT_SECRET")
	}
	if !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Errorf("error %q does not mention JWT_SECRET", err.Error())
	}
}

func TestLoadValidationJWTSecretTooShort(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want validation error for short JWT_SECRET")
	}
	if !strings.Contains(err.Error(), "JWT_SECRET must be at least 32 characters") {
		t.Errorf("error %q does not mention minimum length", err.Error())
	}
}

func TestLoadMongoBackendRequiresURI(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-for-defaults-minimum-32")
	t.Setenv("PERSISTENCE_BACKEND", "mongo")
	t.Setenv("MONGO_URI", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want validation error for missing MONGO_URI")
	}
	if !strings.Contains(err.Error(), "MONGO_URI") {
		t.Errorf("error %q does not mention MONGO_URI", err.Error())
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-for-defaults-minimum-32")
	t.Setenv("PERSISTENCE_BACKEND", "dynamodb")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want validation error for unknown backend")
	}
	if !strings.Contains(err.Error(), "PERSISTENCE_BACKEND") {
		t.Errorf("error %q does not mention PERSISTENCE_BACKEND", err.Error())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SERVER_ENV", "development")
	t.Setenv("JWT_SECRET", "test-secret-key-that-is-32-chars!")
	t.Setenv("ACCESS_TTL_MINUTES", "30")
	t.Setenv("REFRESH_TTL_DAYS", "7")
	t.Setenv("BOOTSTRAP_EMAIL", "owner@galynx.local")
	t.Setenv("ARGON2_MEMORY", "131072")
	t.Setenv("S3_BUCKET", "galynx-uploads")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.ServerEnv != "development" {
		t.Errorf("ServerEnv = %q, want %q", cfg.ServerEnv, "development")
	}
	if !cfg.IsDevelopment() {
		t.Error("IsDevelopment() = false, want true")
	}
	if cfg.AccessTTLMinutes != 30 {
		t.Errorf("AccessTTLMinutes = %d, want 30", cfg.AccessTTLMinutes)
	}
	if cfg.RefreshTTLDays != 7 {
		t.Errorf("RefreshTTLDays = %d, want 7", cfg.RefreshTTLDays)
	}
	if cfg.BootstrapEmail != "owner@galynx.local" {
		t.Errorf("BootstrapEmail = %q, want %q", cfg.BootstrapEmail, "owner@galynx.local")
	}
	if cfg.Argon2Memory != 131072 {
		t.Errorf("Argon2Memory = %d, want 131072", cfg.Argon2Memory)
	}
	if !cfg.S3Configured() {
		t.Error("S3Configured() = false, want true with S3_BUCKET set")
	}
}

func TestLoadInvalidInt(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-for-defaults-minimum-32")
	t.Setenv("PORT", "not-a-number")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "PORT") {
		t.Errorf("error %q does not mention PORT", err.Error())
	}
	if !strings.Contains(err.Error(), "not-a-number") {
		t.Errorf("error %q does not include the invalid value", err.Error())
	}
}

func TestLoadInvalidBool(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-for-defaults-minimum-32")
	t.Setenv("S3_FORCE_PATH_STYLE", "maybe")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "S3_FORCE_PATH_STYLE") {
		t.Errorf("error %q does not mention S3_FORCE_PATH_STYLE", err.Error())
	}
}

func TestLoadMultipleErrors(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-for-defaults-minimum-32")
	t.Setenv("PORT", "abc")
	t.Setenv("ACCESS_TTL_MINUTES", "xyz")
	t.Setenv("S3_FORCE_PATH_STYLE", "nope")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() returned nil error, want multiple parse errors")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "PORT") {
		t.Errorf("error missing PORT, got: %s", errStr)
	}
	if !strings.Contains(errStr, "ACCESS_TTL_MINUTES") {
		t.Errorf("error missing ACCESS_TTL_MINUTES, got: %s", errStr)
	}
	if !strings.Contains(errStr, "S3_FORCE_PATH_STYLE") {
		t.Errorf("error missing S3_FORCE_PATH_STYLE, got: %s", errStr)
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		env  string
		want bool
	}{
		{"development", true},
		{"production", false},
		{"", false},
		{"staging", false},
	}
	for _, tt := range tests {
		cfg := &Config{ServerEnv: tt.env}
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment() with env=%q = %v, want %v", tt.env, got, tt.want)
		}
	}
}
