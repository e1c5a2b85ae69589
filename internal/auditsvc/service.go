// Package auditsvc implements the append-only audit log every mutating edge
// handler writes to, and its owner/admin-only paginated listing.
package auditsvc

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/galynx/galynx/internal/storage"
)

// ErrUnauthorized is returned by List when the caller's role is not owner or
// admin.
var ErrUnauthorized = errors.New("owner or admin role required to list audit entries")

// Service writes and lists audit entries.
type Service struct {
	store storage.Store
}

// NewService constructs a Service.
func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// Write appends an audit entry. actorID may be nil for an entry with no
// acting user; bootstrap seeding writes no entries, and the HTTP and WS
// callers always pass the acting user. metadata is marshaled to JSON; a marshal failure
// falls back to an empty object rather than aborting the write, since audit
// logging must never block the mutation it describes.
func (s *Service) Write(ctx context.Context, workspaceID uuid.UUID, actorID *uuid.UUID, action, targetType string, targetID *uuid.UUID, metadata any) error {
	raw, err := json.Marshal(metadata)
	if err != nil {
		raw = []byte("{}")
	}

	entry := storage.AuditEntry{
		ID:          uuid.Must(uuid.NewV7()),
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Metadata:    raw,
		CreatedAt:   storage.NowMillis(),
	}
	return s.store.AppendAudit(ctx, entry)
}

// Page is one cursor-paginated slice of audit entries.
type Page struct {
	Items      []storage.AuditEntry
	NextCursor *string
}

// List returns a cursor-paginated page of workspaceID's audit entries,
// newest first. Only owner/admin callers may list; anyone else gets
// ErrUnauthorized.
func (s *Service) List(ctx context.Context, workspaceID uuid.UUID, role storage.Role, cursorRaw string, limit int) (Page, error) {
	if role != storage.RoleOwner && role != storage.RoleAdmin {
		return Page{}, ErrUnauthorized
	}

	var cursor *storage.Cursor
	if cursorRaw != "" {
		c, err := storage.DecodeCursor(cursorRaw)
		if err != nil {
			return Page{}, err
		}
		cursor = &c
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}

	items, err := s.store.ListAudit(ctx, workspaceID, cursor, limit+1)
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
