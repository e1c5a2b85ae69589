package bootstrap

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/config"
	"github.com/galynx/galynx/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:         "test-secret-at-least-32-characters-long",
		AccessTTLMinutes:  15,
		RefreshTTLDays:    30,
		BootstrapEmail:    "owner@galynx.local",
		BootstrapPassword: "ChangeMe123!",
		Argon2Memory:      16 * 1024,
		Argon2Iterations:  1,
		Argon2Parallelism: 1,
		Argon2SaltLength:  16,
		Argon2KeyLength:   32,
	}
}

func TestEnsureSeedIsIdempotent(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	cfg := testConfig()
	authSvc := auth.NewService(store, cfg, zerolog.Nop())

	seed1, err := EnsureSeed(context.Background(), store, authSvc, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("EnsureSeed() first call error = %v", err)
	}

	for i := 0; i < 3; i++ {
		seed2, err := EnsureSeed(context.Background(), store, authSvc, cfg, zerolog.Nop())
		if err != nil {
			t.Fatalf("EnsureSeed() repeat call error = %v", err)
		}
		if seed2.OwnerUserID != seed1.OwnerUserID || seed2.WorkspaceID != seed1.WorkspaceID {
			t.Fatalf("EnsureSeed() call %d returned %+v, want %+v", i, seed2, seed1)
		}
	}
}

func TestEnsureSeedAllowsBootstrapLogin(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	cfg := testConfig()
	authSvc := auth.NewService(store, cfg, zerolog.Nop())

	if _, err := EnsureSeed(context.Background(), store, authSvc, cfg, zerolog.Nop()); err != nil {
		t.Fatalf("EnsureSeed() error = %v", err)
	}

	pair, err := authSvc.Login(context.Background(), cfg.BootstrapEmail, cfg.BootstrapPassword)
	if err != nil {
		t.Fatalf("Login() with bootstrap credentials error = %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatal("Login() returned empty access token")
	}
}

func TestEnsureSeedMissingCredentials(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	cfg := testConfig()
	cfg.BootstrapEmail = ""
	authSvc := auth.NewService(store, cfg, zerolog.Nop())

	if _, err := EnsureSeed(context.Background(), store, authSvc, cfg, zerolog.Nop()); err == nil {
		t.Fatal("EnsureSeed() with missing credentials should error")
	}
}
