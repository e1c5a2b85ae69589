// Package channelsvc implements channel creation, the private-channel access
// policy, message CRUD, cursor pagination, and thread semantics. It is the
// service both the HTTP edge and the WebSocket command dispatcher delegate
// channel- and message-scoped operations to.
package channelsvc

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/galynx/galynx/internal/storage"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Service implements channel and message operations against a Store.
type Service struct {
	store  storage.Store
	policy *bluemonday.Policy
}

// NewService constructs a Service. Message bodies are run through
// bluemonday's UGC policy before being persisted, so stored markdown is free
// of active HTML even though clients render it as markdown, not raw HTML.
func NewService(store storage.Store) *Service {
	return &Service{
		store:  store,
		policy: bluemonday.UGCPolicy(),
	}
}

// CreateChannel creates a channel in workspaceID. name is trimmed and
// lowercased; it must be non-empty and must not collide, case-insensitively,
// with any existing channel in the workspace. Private channels automatically
// add the creator as a channel member.
func (s *Service) CreateChannel(ctx context.Context, workspaceID, createdBy uuid.UUID, name string, isPrivate bool) (storage.Channel, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return storage.Channel{}, ErrInvalidName
	}

	exists, err := s.store.ChannelNameExists(ctx, workspaceID, name)
	if err != nil {
		return storage.Channel{}, err
	}
	if exists {
		return storage.Channel{}, ErrNameTaken
	}

	ch := storage.Channel{
		ID:          uuid.Must(uuid.NewV7()),
		WorkspaceID: workspaceID,
		Name:        name,
		IsPrivate:   isPrivate,
		CreatedBy:   createdBy,
		CreatedAt:   storage.NowMillis(),
	}
	if err := s.store.InsertChannel(ctx, ch); err != nil {
		return storage.Channel{}, err
	}

	if isPrivate {
		if err := s.store.AddChannelMember(ctx, ch.ID, createdBy); err != nil {
			return storage.Channel{}, err
		}
	}

	return ch, nil
}

// GetChannel resolves a channel and enforces the access policy: the channel
// must belong to workspaceID (otherwise ErrNotFound, never ErrUnauthorized,
// so a caller poking around another workspace's ids learns nothing), and if
// it is private, callerID must be a channel member unless role is owner or
// admin.
func (s *Service) GetChannel(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, channelID uuid.UUID) (storage.Channel, error) {
	ch, err := s.store.GetChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Channel{}, ErrNotFound
		}
		return storage.Channel{}, err
	}
	if ch.WorkspaceID != workspaceID {
		return storage.Channel{}, ErrNotFound
	}

	if ch.IsPrivate && role != storage.RoleOwner && role != storage.RoleAdmin {
		member, err := s.store.IsChannelMember(ctx, channelID, callerID)
		if err != nil {
			return storage.Channel{}, err
		}
		if !member {
			return storage.Channel{}, ErrUnauthorized
		}
	}

	return ch, nil
}

// ListChannels returns every channel in workspaceID, oldest first (ties
// broken by id). Private channels appear in the listing for all workspace
// members; the access policy only gates their contents.
func (s *Service) ListChannels(ctx context.Context, workspaceID uuid.UUID) ([]storage.Channel, error) {
	all, err := s.store.ListChannelsByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt != all[j].CreatedAt {
			return all[i].CreatedAt < all[j].CreatedAt
		}
		return bytes.Compare(all[i].ID[:], all[j].ID[:]) < 0
	})
	return all, nil
}

// AddChannelMember adds userID to channelID's membership set, after
// resolving access via GetChannel so the caller cannot add members to a
// channel it cannot itself see. The target user must already belong to the
// workspace.
func (s *Service) AddChannelMember(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, channelID, userID uuid.UUID) error {
	if _, err := s.GetChannel(ctx, workspaceID, callerID, role, channelID); err != nil {
		return err
	}
	if _, err := s.store.GetMembership(ctx, workspaceID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotInWorkspace
		}
		return err
	}
	return s.store.AddChannelMember(ctx, channelID, userID)
}

// ListChannelMembers returns channelID's membership set sorted by user id,
// after resolving access via GetChannel.
func (s *Service) ListChannelMembers(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, channelID uuid.UUID) ([]uuid.UUID, error) {
	if _, err := s.GetChannel(ctx, workspaceID, callerID, role, channelID); err != nil {
		return nil, err
	}
	members, err := s.store.ListChannelMembers(ctx, channelID)
	if err != nil {
		return nil, err
	}
	sort.Slice(members, func(i, j int) bool { return bytes.Compare(members[i][:], members[j][:]) < 0 })
	return members, nil
}

// RemoveChannelMember removes userID from channelID's membership set.
func (s *Service) RemoveChannelMember(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, channelID, userID uuid.UUID) error {
	if _, err := s.GetChannel(ctx, workspaceID, callerID, role, channelID); err != nil {
		return err
	}
	return s.store.RemoveChannelMember(ctx, channelID, userID)
}

// DeleteChannel removes channelID and cascades to its membership rows and
// messages. The cascade is not atomic: each step is independently
// idempotent, so a retry after a partial failure converges.
func (s *Service) DeleteChannel(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, channelID uuid.UUID) error {
	if _, err := s.GetChannel(ctx, workspaceID, callerID, role, channelID); err != nil {
		return err
	}

	if err := s.store.RemoveMessagesForChannel(ctx, channelID); err != nil {
		return err
	}

	members, err := s.store.ListChannelMembers(ctx, channelID)
	if err != nil {
		return err
	}
	for _, userID := range members {
		if err := s.store.RemoveChannelMember(ctx, channelID, userID); err != nil {
			return err
		}
	}

	return s.store.RemoveChannel(ctx, channelID)
}

// clampLimit constrains a requested page size to [1, MaxLimit], defaulting
// to DefaultLimit when zero or negative.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// sanitizeBody trims whitespace, rejects empty bodies, and runs the result
// through the UGC sanitization policy.
func (s *Service) sanitizeBody(bodyMD string) (string, error) {
	trimmed := strings.TrimSpace(bodyMD)
	if trimmed == "" || utf8.RuneCountInString(trimmed) == 0 {
		return "", ErrEmptyBody
	}
	return s.policy.Sanitize(trimmed), nil
}
