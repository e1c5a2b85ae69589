package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/config"
	"github.com/galynx/galynx/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:         "test-secret-at-least-32-characters-long",
		AccessTTLMinutes:  15,
		RefreshTTLDays:    30,
		Argon2Memory:      16 * 1024,
		Argon2Iterations:  1,
		Argon2Parallelism: 1,
		Argon2SaltLength:  16,
		Argon2KeyLength:   32,
	}
}

func seedUser(t *testing.T, store storage.Store, svc *Service, email, password string, role storage.Role) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	hash, err := svc.HashPasswordDefault(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	userID := uuid.New()
	if err := store.PutAuthUser(ctx, storage.AuthUser{ID: userID, Email: email, PasswordHash: hash}); err != nil {
		t.Fatalf("put auth user: %v", err)
	}

	wsID := uuid.New()
	if err := store.CreateWorkspace(ctx, storage.Workspace{ID: wsID, Name: "ws", CreatedBy: userID, CreatedAt: storage.NowMillis()}); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	if err := store.PutMembership(ctx, storage.Membership{WorkspaceID: wsID, UserID: userID, Role: role}); err != nil {
		t.Fatalf("put membership: %v", err)
	}
	return userID, wsID
}

func TestLoginSuccess(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	svc := NewService(store, testConfig(), zerolog.Nop())
	seedUser(t, store, svc, "owner@galynx.local", "ChangeMe123!", storage.RoleOwner)

	pair, err := svc.Login(context.Background(), "owner@galynx.local", "ChangeMe123!")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("Login() returned empty tokens")
	}
	if pair.RefreshExpiresAt <= pair.AccessExpiresAt {
		t.Errorf("refresh_expires_at (%d) should be after access_expires_at (%d)", pair.RefreshExpiresAt, pair.AccessExpiresAt)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	svc := NewService(store, testConfig(), zerolog.Nop())
	seedUser(t, store, svc, "owner@galynx.local", "ChangeMe123!", storage.RoleOwner)

	_, err := svc.Login(context.Background(), "owner@galynx.local", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginUnknownUserUndifferentiated(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	svc := NewService(store, testConfig(), zerolog.Nop())

	_, err := svc.Login(context.Background(), "nobody@galynx.local", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestRefreshRotationAndReuseDetection(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	svc := NewService(store, testConfig(), zerolog.Nop())
	seedUser(t, store, svc, "owner@galynx.local", "ChangeMe123!", storage.RoleOwner)

	pair1, err := svc.Login(context.Background(), "owner@galynx.local", "ChangeMe123!")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	pair2, err := svc.Refresh(context.Background(), pair1.RefreshToken)
	if err != nil {
		t.Fatalf("first Refresh() error = %v", err)
	}

	// Reusing the first (now-rotated) token must fail.
	_, err = svc.Refresh(context.Background(), pair1.RefreshToken)
	if !errors.Is(err, ErrRefreshTokenReused) {
		t.Fatalf("reused Refresh() error = %v, want ErrRefreshTokenReused", err)
	}

	// The cascade must revoke the descendant too.
	_, err = svc.Refresh(context.Background(), pair2.RefreshToken)
	if !errors.Is(err, ErrRefreshTokenReused) {
		t.Fatalf("Refresh() of cascade-revoked descendant error = %v, want ErrRefreshTokenReused", err)
	}
}

func TestLogoutThenRefreshFails(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	svc := NewService(store, testConfig(), zerolog.Nop())
	seedUser(t, store, svc, "owner@galynx.local", "ChangeMe123!", storage.RoleOwner)

	pair, err := svc.Login(context.Background(), "owner@galynx.local", "ChangeMe123!")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := svc.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	// Idempotent.
	if err := svc.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("second Logout() error = %v", err)
	}

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	if !errors.Is(err, ErrRefreshTokenReused) {
		t.Fatalf("Refresh() after logout error = %v, want ErrRefreshTokenReused", err)
	}
}

func TestAuthorizeReReadsLiveMembership(t *testing.T) {
	t.Parallel()
	store := storage.NewMemory()
	svc := NewService(store, testConfig(), zerolog.Nop())
	userID, wsID := seedUser(t, store, svc, "member@galynx.local", "ChangeMe123!", storage.RoleMember)

	pair, err := svc.Login(context.Background(), "member@galynx.local", "ChangeMe123!")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	// Promote the member to admin directly in storage; the token still
	// carries the stale "member" claim.
	if err := store.PutMembership(context.Background(), storage.Membership{WorkspaceID: wsID, UserID: userID, Role: storage.RoleAdmin}); err != nil {
		t.Fatalf("put membership: %v", err)
	}

	authCtx, err := svc.Authorize(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if authCtx.Role != storage.RoleAdmin {
		t.Errorf("Authorize() role = %q, want live role %q (token role was stale)", authCtx.Role, storage.RoleAdmin)
	}
}
