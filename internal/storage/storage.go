package storage

import (
	"context"

	"github.com/google/uuid"
)

// Cursor describes a page boundary over the (created_at DESC, id DESC) total
// order used for every time-ordered listing (messages, audit entries).
type Cursor struct {
	CreatedAt int64
	ID        uuid.UUID
}

// Store is the capability abstraction every domain service depends on. It is
// implemented by the in-memory backend (always present, authoritative) and by
// a document-store-mirrored backend that write-throughs to a remote database
// and prefers remote reads with an in-memory fallback. Cross-entity writes are
// NOT atomic across calls; callers that must coordinate several writes (e.g.
// channel deletion cascades) tolerate partial failure and retry.
type Store interface {
	// Workspaces

	CreateWorkspace(ctx context.Context, ws Workspace) error
	GetWorkspace(ctx context.Context, id uuid.UUID) (Workspace, error)

	// Auth users

	PutAuthUser(ctx context.Context, u AuthUser) error
	GetAuthUserByID(ctx context.Context, id uuid.UUID) (AuthUser, error)
	GetAuthUserByEmail(ctx context.Context, email string) (AuthUser, error)

	// Memberships

	PutMembership(ctx context.Context, m Membership) error
	GetMembership(ctx context.Context, workspaceID, userID uuid.UUID) (Membership, error)
	FindAnyMembership(ctx context.Context, userID uuid.UUID) (Membership, error)
	ListWorkspaceMemberships(ctx context.Context, workspaceID uuid.UUID) ([]Membership, error)
	ListUserMemberships(ctx context.Context, userID uuid.UUID) ([]Membership, error)

	// Refresh sessions

	PutRefreshSession(ctx context.Context, s RefreshSession) error
	GetRefreshSession(ctx context.Context, tokenHash string) (RefreshSession, error)
	// UpdateRefreshSession atomically loads the session at tokenHash, applies
	// mutate, and persists the result. mutate may return ErrNotFound itself to
	// abort without writing. The whole read-modify-write is linearized per
	// tokenHash.
	UpdateRefreshSession(ctx context.Context, tokenHash string, mutate func(*RefreshSession) error) error

	// Channels

	InsertChannel(ctx context.Context, ch Channel) error
	GetChannel(ctx context.Context, id uuid.UUID) (Channel, error)
	UpdateChannel(ctx context.Context, ch Channel) error
	ListChannelsByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]Channel, error)
	ChannelNameExists(ctx context.Context, workspaceID uuid.UUID, lowerName string) (bool, error)
	RemoveChannel(ctx context.Context, id uuid.UUID) error

	// Channel membership (private-channel ACL)

	AddChannelMember(ctx context.Context, channelID, userID uuid.UUID) error
	RemoveChannelMember(ctx context.Context, channelID, userID uuid.UUID) error
	ListChannelMembers(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error)
	IsChannelMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error)

	// Messages

	InsertMessage(ctx context.Context, m Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (Message, error)
	UpdateMessage(ctx context.Context, m Message) error
	// ListMessages returns up to limit non-deleted messages matching channelID
	// (when threadRootID is non-nil, restricted to replies of that root; when
	// nil, every message in the channel, thread replies included), ordered
	// (created_at DESC, id DESC), strictly before cursor.
	ListMessages(ctx context.Context, channelID uuid.UUID, threadRootID *uuid.UUID, cursor *Cursor, limit int) ([]Message, error)
	// ListThreadReplies returns ALL non-deleted replies of rootID regardless
	// of limit, for thread-summary computation.
	ListThreadReplies(ctx context.Context, rootID uuid.UUID) ([]Message, error)
	RemoveMessagesForChannel(ctx context.Context, channelID uuid.UUID) error

	// Reactions

	AddReaction(ctx context.Context, messageID uuid.UUID, emoji string, userID uuid.UUID) error
	RemoveReaction(ctx context.Context, messageID uuid.UUID, emoji string, userID uuid.UUID) error
	ListReactionUsers(ctx context.Context, messageID uuid.UUID, emoji string) ([]uuid.UUID, error)

	// Audit

	AppendAudit(ctx context.Context, e AuditEntry) error
	ListAudit(ctx context.Context, workspaceID uuid.UUID, cursor *Cursor, limit int) ([]AuditEntry, error)

	// Attachments

	PutPendingUpload(ctx context.Context, u PendingUpload) error
	// TakePendingUpload atomically fetches and deletes the pending upload so
	// it cannot be committed twice.
	TakePendingUpload(ctx context.Context, uploadID uuid.UUID) (PendingUpload, error)
	PutAttachment(ctx context.Context, a Attachment) error
	GetAttachment(ctx context.Context, id uuid.UUID) (Attachment, error)

	// WebSocket command dedup

	// DedupMark records that key has been applied, optionally remembering the
	// resulting message ID for commands that must replay it (SEND_MESSAGE). It
	// reports false if key was already recorded (a no-op in that case).
	DedupMark(ctx context.Context, key string, messageID *uuid.UUID) (recorded bool, err error)
	// DedupLookup reports whether key was already recorded and, if it carries
	// a message ID, returns it.
	DedupLookup(ctx context.Context, key string) (found bool, messageID *uuid.UUID, err error)
}
