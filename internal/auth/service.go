// Package auth implements password verification, JWT access tokens, and
// refresh-token rotation with reuse detection.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/config"
	"github.com/galynx/galynx/internal/storage"
)

// TokenPair is the bearer+refresh pair returned by Login and Refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  int64
	RefreshExpiresAt int64
}

// Context is the access-context resolved from a validated access token and a
// freshly re-read membership row: {user_id, workspace_id, role}.
type Context struct {
	UserID      uuid.UUID
	WorkspaceID uuid.UUID
	Role        storage.Role
}

// Service implements login, refresh rotation, logout, and edge authorization.
type Service struct {
	store storage.Store
	cfg   *config.Config
	log   zerolog.Logger
}

// NewService constructs an AuthService bound to store and cfg.
func NewService(store storage.Store, cfg *config.Config, logger zerolog.Logger) *Service {
	return &Service{
		store: store,
		cfg:   cfg,
		log:   logger.With().Str("component", "auth").Logger(),
	}
}

// Login verifies email+password and issues a fresh token pair. Unknown users
// and bad passwords both surface as ErrInvalidCredentials so the client can
// never distinguish one from the other.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetAuthUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, fmt.Errorf("look up user by email: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return TokenPair{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return TokenPair{}, ErrInvalidCredentials
	}

	// Lazy hash rotation: rehash with current parameters if the stored hash
	// was generated with older settings.
	params := s.hashParams()
	needsRehash, rehashErr := NeedsRehash(user.PasswordHash, params)
	if rehashErr != nil {
		s.log.Warn().Err(rehashErr).Stringer("user_id", user.ID).Msg("password hash decode failed during rehash check")
	}
	if needsRehash {
		if newHash, hashErr := HashPassword(password, params); hashErr == nil {
			user.PasswordHash = newHash
			if updateErr := s.store.PutAuthUser(ctx, user); updateErr != nil {
				s.log.Warn().Err(updateErr).Stringer("user_id", user.ID).Msg("failed to rotate password hash")
			} else {
				s.log.Debug().Stringer("user_id", user.ID).Msg("password hash rotated to current parameters")
			}
		}
	}

	membership, err := s.store.FindAnyMembership(ctx, user.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return TokenPair{}, ErrNoMembership
		}
		return TokenPair{}, fmt.Errorf("look up membership: %w", err)
	}

	return s.issueTokenPair(ctx, user.ID, user.Email, membership.WorkspaceID, membership.Role)
}

// Refresh rotates a presented refresh token. A second presentation of an
// already-spent token fails with ErrRefreshTokenReused and cascades
// revocation to whatever token it was rotated into.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	hash := HashRefreshToken(refreshToken)
	now := storage.NowMillis()

	sess, err := s.store.GetRefreshSession(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, fmt.Errorf("look up refresh session: %w", err)
	}

	if sess.ExpiresAt <= now {
		return TokenPair{}, ErrInvalidToken
	}

	if sess.RevokedAt != nil {
		if sess.ReplacedByHash != nil {
			s.cascadeRevoke(ctx, *sess.ReplacedByHash, now)
		}
		return TokenPair{}, ErrRefreshTokenReused
	}

	newToken, newHash, err := NewRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}

	reused := false
	err = s.store.UpdateRefreshSession(ctx, hash, func(rs *storage.RefreshSession) error {
		if rs.RevokedAt != nil {
			reused = true
			return nil
		}
		rs.RevokedAt = &now
		rs.ReplacedByHash = &newHash
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return TokenPair{}, ErrInvalidToken
		}
		return TokenPair{}, fmt.Errorf("rotate refresh session: %w", err)
	}
	if reused {
		// Lost the race with a concurrent rotation of the same token.
		return TokenPair{}, ErrRefreshTokenReused
	}

	user, err := s.store.GetAuthUserByID(ctx, sess.UserID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("look up refreshed user: %w", err)
	}
	membership, err := s.store.FindAnyMembership(ctx, user.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return TokenPair{}, ErrNoMembership
		}
		return TokenPair{}, fmt.Errorf("look up membership: %w", err)
	}

	expiresAt := now + s.cfg.RefreshTTL().Milliseconds()
	if err := s.store.PutRefreshSession(ctx, storage.RefreshSession{
		TokenHash: newHash,
		UserID:    user.ID,
		ExpiresAt: expiresAt,
	}); err != nil {
		return TokenPair{}, fmt.Errorf("persist rotated refresh session: %w", err)
	}

	access, err := NewAccessToken(user.ID, user.Email, membership.WorkspaceID, string(membership.Role), s.cfg.JWTSecret, s.cfg.AccessTTL())
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     newToken,
		AccessExpiresAt:  now + s.cfg.AccessTTL().Milliseconds(),
		RefreshExpiresAt: expiresAt,
	}, nil
}

// cascadeRevoke best-effort marks the descendant of a reused token revoked.
// It tolerates the descendant having already been further rotated or revoked
// by a racing caller.
func (s *Service) cascadeRevoke(ctx context.Context, descendantHash string, now int64) {
	err := s.store.UpdateRefreshSession(ctx, descendantHash, func(rs *storage.RefreshSession) error {
		if rs.RevokedAt == nil {
			rs.RevokedAt = &now
		}
		return nil
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn().Err(err).Msg("cascade-revoke descendant refresh session")
	}
}

// Logout revokes a refresh session. Idempotent: revoking an already-revoked
// or nonexistent session is not an error.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	hash := HashRefreshToken(refreshToken)
	now := storage.NowMillis()
	err := s.store.UpdateRefreshSession(ctx, hash, func(sess *storage.RefreshSession) error {
		if sess.RevokedAt == nil {
			sess.RevokedAt = &now
		}
		return nil
	})
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// Authorize validates a bearer access token and resolves a fresh Context by
// re-reading the live membership role for (workspace_id, user_id). The
// token's own role claim is advisory and never trusted directly.
func (s *Service) Authorize(ctx context.Context, accessToken string) (Context, error) {
	claims, err := ValidateAccessToken(accessToken, s.cfg.JWTSecret)
	if err != nil {
		return Context{}, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Context{}, ErrInvalidToken
	}
	workspaceID, err := uuid.Parse(claims.WorkspaceID)
	if err != nil {
		return Context{}, ErrInvalidToken
	}

	membership, err := s.store.GetMembership(ctx, workspaceID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Context{}, ErrInvalidToken
		}
		return Context{}, fmt.Errorf("re-read membership: %w", err)
	}

	return Context{UserID: userID, WorkspaceID: workspaceID, Role: membership.Role}, nil
}

func (s *Service) issueTokenPair(ctx context.Context, userID uuid.UUID, email string, workspaceID uuid.UUID, role storage.Role) (TokenPair, error) {
	now := storage.NowMillis()

	access, err := NewAccessToken(userID, email, workspaceID, string(role), s.cfg.JWTSecret, s.cfg.AccessTTL())
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken, refreshHash, err := NewRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}

	expiresAt := now + s.cfg.RefreshTTL().Milliseconds()
	if err := s.store.PutRefreshSession(ctx, storage.RefreshSession{
		TokenHash: refreshHash,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}); err != nil {
		return TokenPair{}, fmt.Errorf("persist refresh session: %w", err)
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now + s.cfg.AccessTTL().Milliseconds(),
		RefreshExpiresAt: expiresAt,
	}, nil
}

// hashParams assembles the configured argon2id cost parameters.
func (s *Service) hashParams() HashParams {
	return HashParams{
		Memory:      s.cfg.Argon2Memory,
		Iterations:  s.cfg.Argon2Iterations,
		Parallelism: s.cfg.Argon2Parallelism,
		SaltLength:  s.cfg.Argon2SaltLength,
		KeyLength:   s.cfg.Argon2KeyLength,
	}
}

// HashPasswordDefault hashes a password using the service's configured
// argon2id parameters.
func (s *Service) HashPasswordDefault(password string) (string, error) {
	return HashPassword(password, s.hashParams())
}
