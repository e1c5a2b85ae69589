// Package reactionsvc implements emoji reactions on messages: normalization,
// add/remove as set operations, and the aggregate view returned after each
// mutation.
package reactionsvc

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/galynx/galynx/internal/channelsvc"
	"github.com/galynx/galynx/internal/storage"
)

// ErrInvalidEmoji is returned when emoji is empty or exceeds 32 characters
// after trimming.
var ErrInvalidEmoji = errors.New("emoji must be 1-32 characters")

// Op names which mutation produced an Aggregate.
type Op string

const (
	OpAdded   Op = "added"
	OpRemoved Op = "removed"
)

// Aggregate is the post-mutation state of one (message, emoji) reaction set.
type Aggregate struct {
	MessageID   uuid.UUID
	ChannelID   uuid.UUID
	WorkspaceID uuid.UUID
	Emoji       string
	Count       int
	UserIDs     []uuid.UUID
	Op          Op
}

// Service implements reaction add/remove against a Store, delegating message
// resolution (workspace isolation, channel access, soft-delete) to a
// channelsvc.Service.
type Service struct {
	store   storage.Store
	channel *channelsvc.Service
}

// NewService constructs a Service.
func NewService(store storage.Store, channel *channelsvc.Service) *Service {
	return &Service{store: store, channel: channel}
}

func normalizeEmoji(emoji string) (string, error) {
	trimmed := strings.TrimSpace(emoji)
	n := utf8.RuneCountInString(trimmed)
	if n == 0 || n > 32 {
		return "", ErrInvalidEmoji
	}
	return trimmed, nil
}

// Add inserts callerID into the reaction set for (messageID, emoji) and
// returns the resulting aggregate. Adding an already-present reaction is a
// no-op that still returns the current aggregate.
func (s *Service) Add(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, messageID uuid.UUID, emoji string) (Aggregate, error) {
	return s.mutate(ctx, workspaceID, callerID, role, messageID, emoji, OpAdded, s.store.AddReaction)
}

// Remove deletes callerID from the reaction set for (messageID, emoji) and
// returns the resulting aggregate. Removing a reaction that was never set is
// a no-op that returns the current aggregate and does not error.
func (s *Service) Remove(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, messageID uuid.UUID, emoji string) (Aggregate, error) {
	return s.mutate(ctx, workspaceID, callerID, role, messageID, emoji, OpRemoved, s.store.RemoveReaction)
}

func (s *Service) mutate(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, messageID uuid.UUID, emoji string, op Op, do func(context.Context, uuid.UUID, string, uuid.UUID) error) (Aggregate, error) {
	emoji, err := normalizeEmoji(emoji)
	if err != nil {
		return Aggregate{}, err
	}

	msg, err := s.channel.GetMessage(ctx, workspaceID, callerID, role, messageID)
	if err != nil {
		return Aggregate{}, err
	}

	if err := do(ctx, messageID, emoji, callerID); err != nil {
		return Aggregate{}, err
	}

	userIDs, err := s.store.ListReactionUsers(ctx, messageID, emoji)
	if err != nil {
		return Aggregate{}, err
	}
	userIDs = dedupSorted(userIDs)

	return Aggregate{
		MessageID:   messageID,
		ChannelID:   msg.ChannelID,
		WorkspaceID: workspaceID,
		Emoji:       emoji,
		Count:       len(userIDs),
		UserIDs:     userIDs,
		Op:          op,
	}, nil
}

func dedupSorted(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
