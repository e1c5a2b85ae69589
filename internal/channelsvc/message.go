package channelsvc

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/galynx/galynx/internal/storage"
)

// Page is one cursor-paginated slice of messages.
type Page struct {
	Items      []storage.Message
	NextCursor *string
}

// PostMessage creates a message (or, if threadRootID is non-nil, a thread
// reply) in channelID after resolving access via GetChannel. Body is trimmed
// and sanitized; empty bodies are rejected. Replying to a message that is
// itself a reply is rejected (flat threads only).
func (s *Service) PostMessage(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, channelID uuid.UUID, bodyMD string, threadRootID *uuid.UUID) (storage.Message, error) {
	ch, err := s.GetChannel(ctx, workspaceID, callerID, role, channelID)
	if err != nil {
		return storage.Message{}, err
	}

	body, err := s.sanitizeBody(bodyMD)
	if err != nil {
		return storage.Message{}, err
	}

	if threadRootID != nil {
		root, err := s.store.GetMessage(ctx, *threadRootID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return storage.Message{}, ErrNotFound
			}
			return storage.Message{}, err
		}
		if root.ChannelID != ch.ID || root.DeletedAt != nil {
			return storage.Message{}, ErrNotFound
		}
		if root.ThreadRootID != nil {
			return storage.Message{}, ErrReplyOfReply
		}
	}

	msg := storage.Message{
		ID:           uuid.Must(uuid.NewV7()),
		WorkspaceID:  workspaceID,
		ChannelID:    ch.ID,
		SenderID:     callerID,
		BodyMD:       body,
		ThreadRootID: threadRootID,
		CreatedAt:    storage.NowMillis(),
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return storage.Message{}, err
	}
	return msg, nil
}

// GetMessage resolves a non-deleted message and enforces channel access.
// Soft-deleted messages are reported as ErrNotFound to ordinary readers.
func (s *Service) GetMessage(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, messageID uuid.UUID) (storage.Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Message{}, ErrNotFound
		}
		return storage.Message{}, err
	}
	if msg.WorkspaceID != workspaceID || msg.DeletedAt != nil {
		return storage.Message{}, ErrNotFound
	}
	if _, err := s.GetChannel(ctx, workspaceID, callerID, role, msg.ChannelID); err != nil {
		return storage.Message{}, err
	}
	return msg, nil
}

// EditMessage updates a message's body. Only the original sender may edit.
func (s *Service) EditMessage(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, messageID uuid.UUID, bodyMD string) (storage.Message, error) {
	msg, err := s.GetMessage(ctx, workspaceID, callerID, role, messageID)
	if err != nil {
		return storage.Message{}, err
	}
	if msg.SenderID != callerID {
		return storage.Message{}, ErrNotSender
	}

	body, err := s.sanitizeBody(bodyMD)
	if err != nil {
		return storage.Message{}, err
	}

	now := storage.NowMillis()
	msg.BodyMD = body
	msg.EditedAt = &now
	if err := s.store.UpdateMessage(ctx, msg); err != nil {
		return storage.Message{}, err
	}
	return msg, nil
}

// DeleteMessage soft-deletes a message. The sender may always delete their
// own message; owner/admin may delete any message in the workspace.
func (s *Service) DeleteMessage(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, messageID uuid.UUID) error {
	msg, err := s.GetMessage(ctx, workspaceID, callerID, role, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != callerID && role != storage.RoleOwner && role != storage.RoleAdmin {
		return ErrNotSender
	}

	now := storage.NowMillis()
	msg.DeletedAt = &now
	return s.store.UpdateMessage(ctx, msg)
}

// ListMessages returns a cursor-paginated page of the channel's messages,
// thread replies included (when threadRootID is nil), or only the replies of
// threadRootID, newest first. limit is
// clamped to [1, MaxLimit] and defaults to DefaultLimit when <= 0. cursorRaw,
// if non-empty, is decoded and excludes its own anchor from the page.
func (s *Service) ListMessages(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, channelID uuid.UUID, threadRootID *uuid.UUID, cursorRaw string, limit int) (Page, error) {
	if _, err := s.GetChannel(ctx, workspaceID, callerID, role, channelID); err != nil {
		return Page{}, err
	}

	var cursor *storage.Cursor
	if cursorRaw != "" {
		c, err := storage.DecodeCursor(cursorRaw)
		if err != nil {
			return Page{}, err
		}
		cursor = &c
	}

	limit = clampLimit(limit)
	items, err := s.store.ListMessages(ctx, channelID, threadRootID, cursor, limit+1)
	if err != nil {
		return Page{}, err
	}

	page := Page{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1]
		next := storage.EncodeCursor(storage.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		page.NextCursor = &next
	}
	return page, nil
}

// ThreadSummary describes the state of a thread anchored at a root message.
type ThreadSummary struct {
	Root         storage.Message
	ReplyCount   int
	LastReplyAt  *int64
	Participants []uuid.UUID
}

// ThreadSummary resolves access via GetMessage on the root and computes the
// reply count, last reply timestamp, and participant id list (root sender
// first, then each reply's sender in first-seen order) over the root's
// non-deleted replies.
func (s *Service) ThreadSummary(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, rootID uuid.UUID) (ThreadSummary, error) {
	root, err := s.GetMessage(ctx, workspaceID, callerID, role, rootID)
	if err != nil {
		return ThreadSummary{}, err
	}
	if root.ThreadRootID != nil {
		return ThreadSummary{}, ErrNotFound
	}

	replies, err := s.store.ListThreadReplies(ctx, rootID)
	if err != nil {
		return ThreadSummary{}, err
	}

	sort.Slice(replies, func(i, j int) bool { return replies[i].CreatedAt < replies[j].CreatedAt })

	summary := ThreadSummary{Root: root, ReplyCount: len(replies)}
	seen := map[uuid.UUID]bool{root.SenderID: true}
	summary.Participants = append(summary.Participants, root.SenderID)

	for _, r := range replies {
		if !seen[r.SenderID] {
			seen[r.SenderID] = true
			summary.Participants = append(summary.Participants, r.SenderID)
		}
		last := r.CreatedAt
		if summary.LastReplyAt == nil || last > *summary.LastReplyAt {
			summary.LastReplyAt = &last
		}
	}

	return summary, nil
}

// ListThreadReplies returns a cursor-paginated page of rootID's replies.
// This is a thin wrapper over ListMessages with threadRootID set.
func (s *Service) ListThreadReplies(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, rootID uuid.UUID, cursorRaw string, limit int) (Page, error) {
	root, err := s.GetMessage(ctx, workspaceID, callerID, role, rootID)
	if err != nil {
		return Page{}, err
	}
	if root.ThreadRootID != nil {
		return Page{}, ErrNotFound
	}
	return s.ListMessages(ctx, workspaceID, callerID, role, root.ChannelID, &rootID, cursorRaw, limit)
}
