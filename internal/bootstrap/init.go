// Package bootstrap seeds the first owner account and its primary workspace
// on first touch. Subsequent startups observe the seed and no-op.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/config"
	"github.com/galynx/galynx/internal/storage"
)

// PrimaryWorkspaceName is the name given to the workspace created for the
// bootstrap owner.
const PrimaryWorkspaceName = "Primary"

// DefaultChannelName is the public channel seeded into the primary workspace
// so a fresh deployment has somewhere to post.
const DefaultChannelName = "general"

// Seed identifies the owner user and workspace produced by EnsureSeed.
type Seed struct {
	OwnerUserID uuid.UUID
	WorkspaceID uuid.UUID
}

// EnsureSeed ensures cfg.BootstrapEmail/BootstrapPassword resolve to an owner
// user with a membership in a primary workspace, creating both on first
// touch. Subsequent calls observe the existing seed and no-op, always
// returning the same ids regardless of how many times they're invoked.
func EnsureSeed(ctx context.Context, store storage.Store, authSvc *auth.Service, cfg *config.Config, logger zerolog.Logger) (Seed, error) {
	log := logger.With().Str("component", "bootstrap").Logger()

	if cfg.BootstrapEmail == "" || cfg.BootstrapPassword == "" {
		return Seed{}, fmt.Errorf("BOOTSTRAP_EMAIL and BOOTSTRAP_PASSWORD must be set to seed the owner account")
	}
	email := strings.ToLower(strings.TrimSpace(cfg.BootstrapEmail))

	existing, err := store.GetAuthUserByEmail(ctx, email)
	switch {
	case err == nil:
		membership, mErr := store.FindAnyMembership(ctx, existing.ID)
		if mErr == nil {
			log.Debug().Str("email", email).Msg("bootstrap seed already present, no-op")
			if err := ensureDefaultChannel(ctx, store, membership.WorkspaceID, existing.ID, log); err != nil {
				return Seed{}, err
			}
			return Seed{OwnerUserID: existing.ID, WorkspaceID: membership.WorkspaceID}, nil
		}
		if !errors.Is(mErr, storage.ErrNotFound) {
			return Seed{}, fmt.Errorf("look up existing bootstrap membership: %w", mErr)
		}
		// User exists but has no membership yet (e.g. a previous seed attempt
		// died between user creation and membership creation): finish it.
		return createPrimaryWorkspace(ctx, store, existing.ID, log)

	case errors.Is(err, storage.ErrNotFound):
		// fall through to full creation below

	default:
		return Seed{}, fmt.Errorf("look up bootstrap user: %w", err)
	}

	hash, err := authSvc.HashPasswordDefault(cfg.BootstrapPassword)
	if err != nil {
		return Seed{}, fmt.Errorf("hash bootstrap password: %w", err)
	}

	ownerID := uuid.New()
	if err := store.PutAuthUser(ctx, storage.AuthUser{
		ID:           ownerID,
		Email:        email,
		Name:         "Owner",
		PasswordHash: hash,
	}); err != nil {
		return Seed{}, fmt.Errorf("create bootstrap owner user: %w", err)
	}

	log.Info().Str("email", email).Stringer("user_id", ownerID).Msg("seeded bootstrap owner user")
	return createPrimaryWorkspace(ctx, store, ownerID, log)
}

func createPrimaryWorkspace(ctx context.Context, store storage.Store, ownerID uuid.UUID, log zerolog.Logger) (Seed, error) {
	wsID := uuid.New()
	if err := store.CreateWorkspace(ctx, storage.Workspace{
		ID:        wsID,
		Name:      PrimaryWorkspaceName,
		CreatedBy: ownerID,
		CreatedAt: storage.NowMillis(),
	}); err != nil {
		return Seed{}, fmt.Errorf("create primary workspace: %w", err)
	}

	if err := store.PutMembership(ctx, storage.Membership{
		WorkspaceID: wsID,
		UserID:      ownerID,
		Role:        storage.RoleOwner,
	}); err != nil {
		return Seed{}, fmt.Errorf("create owner membership: %w", err)
	}

	if err := ensureDefaultChannel(ctx, store, wsID, ownerID, log); err != nil {
		return Seed{}, err
	}

	log.Info().Stringer("workspace_id", wsID).Stringer("user_id", ownerID).Msg("seeded primary workspace")
	return Seed{OwnerUserID: ownerID, WorkspaceID: wsID}, nil
}

// ensureDefaultChannel creates the public default channel once: a workspace
// that already has any channel is left alone.
func ensureDefaultChannel(ctx context.Context, store storage.Store, workspaceID, ownerID uuid.UUID, log zerolog.Logger) error {
	channels, err := store.ListChannelsByWorkspace(ctx, workspaceID)
	if err != nil {
		return fmt.Errorf("list bootstrap channels: %w", err)
	}
	if len(channels) > 0 {
		return nil
	}

	ch := storage.Channel{
		ID:          uuid.Must(uuid.NewV7()),
		WorkspaceID: workspaceID,
		Name:        DefaultChannelName,
		IsPrivate:   false,
		CreatedBy:   ownerID,
		CreatedAt:   storage.NowMillis(),
	}
	if err := store.InsertChannel(ctx, ch); err != nil {
		return fmt.Errorf("seed default channel: %w", err)
	}
	log.Info().Stringer("workspace_id", workspaceID).Str("channel", ch.Name).Msg("seeded default channel")
	return nil
}
