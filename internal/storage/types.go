// Package storage defines the persistence contract shared by every domain
// service and the two backends that implement it.
package storage

import (
	"time"

	"github.com/google/uuid"
)

// Role is a membership's coarse permission level within a workspace.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Workspace is the top-level multi-tenant boundary.
type Workspace struct {
	ID        uuid.UUID
	Name      string
	CreatedBy uuid.UUID
	CreatedAt int64 // unix millis
}

// AuthUser is a registered account, scoped across workspaces by Membership.
type AuthUser struct {
	ID           uuid.UUID
	Email        string // lowercased, unique
	Name         string
	PasswordHash string
}

// Membership binds a user to a workspace with a role.
type Membership struct {
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	Role        Role
}

// RefreshSession is one link in a refresh-token rotation chain.
type RefreshSession struct {
	TokenHash      string // sha256 hex of the refresh token
	UserID         uuid.UUID
	ExpiresAt      int64
	RevokedAt      *int64
	ReplacedByHash *string
}

// Channel is a named conversation inside a workspace.
type Channel struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Name        string // lowercased
	IsPrivate   bool
	CreatedBy   uuid.UUID
	CreatedAt   int64
}

// Message is a post in a channel, optionally a thread reply.
type Message struct {
	ID           uuid.UUID // time-ordered (v7)
	WorkspaceID  uuid.UUID
	ChannelID    uuid.UUID
	SenderID     uuid.UUID
	BodyMD       string
	ThreadRootID *uuid.UUID
	CreatedAt    int64
	EditedAt     *int64
	DeletedAt    *int64
}

// AuditEntry is an append-only audit log row.
type AuditEntry struct {
	ID          uuid.UUID // time-ordered (v7)
	WorkspaceID uuid.UUID
	ActorID     *uuid.UUID
	Action      string
	TargetType  string
	TargetID    *uuid.UUID
	Metadata    []byte // JSON
	CreatedAt   int64
}

// PendingUpload is a single-use presigned-upload placeholder awaiting commit.
type PendingUpload struct {
	UploadID    uuid.UUID
	WorkspaceID uuid.UUID
	ChannelID   uuid.UUID
	UploaderID  uuid.UUID
	Filename    string
	ContentType string
	SizeBytes   int64
	StorageKey  string
	ExpiresAt   int64
	CreatedAt   int64
}

// Attachment is an immutable, committed file record.
type Attachment struct {
	ID          uuid.UUID // time-ordered (v7)
	WorkspaceID uuid.UUID
	ChannelID   uuid.UUID
	MessageID   *uuid.UUID
	UploaderID  uuid.UUID
	Filename    string
	ContentType string
	SizeBytes   int64
	Bucket      string
	Key         string
	Region      string
	Width       *int // probed for image content types only
	Height      *int
	CreatedAt   int64
}

// NowMillis returns the current time as unix milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
