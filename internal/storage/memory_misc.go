package storage

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

func (m *Memory) AddReaction(_ context.Context, messageID uuid.UUID, emoji string, userID uuid.UUID) error {
	m.reactionsMu.Lock()
	defer m.reactionsMu.Unlock()
	key := reactionKey{messageID, emoji}
	set, ok := m.reactions[key]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		m.reactions[key] = set
	}
	set[userID] = struct{}{}
	return nil
}

func (m *Memory) RemoveReaction(_ context.Context, messageID uuid.UUID, emoji string, userID uuid.UUID) error {
	m.reactionsMu.Lock()
	defer m.reactionsMu.Unlock()
	delete(m.reactions[reactionKey{messageID, emoji}], userID)
	return nil
}

func (m *Memory) ListReactionUsers(_ context.Context, messageID uuid.UUID, emoji string) ([]uuid.UUID, error) {
	m.reactionsMu.RLock()
	defer m.reactionsMu.RUnlock()
	set := m.reactions[reactionKey{messageID, emoji}]
	out := make([]uuid.UUID, 0, len(set))
	for uid := range set {
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (m *Memory) AppendAudit(_ context.Context, e AuditEntry) error {
	m.auditMu.Lock()
	defer m.auditMu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

func (m *Memory) ListAudit(_ context.Context, workspaceID uuid.UUID, cursor *Cursor, limit int) ([]AuditEntry, error) {
	m.auditMu.RLock()
	candidates := make([]AuditEntry, 0)
	for _, e := range m.audit {
		if e.WorkspaceID != workspaceID {
			continue
		}
		if cursor != nil && !cursor.Before(e.CreatedAt, e.ID) {
			continue
		}
		candidates = append(candidates, e)
	}
	m.auditMu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return lessDesc(candidates[i].CreatedAt, candidates[i].ID, candidates[j].CreatedAt, candidates[j].ID)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (m *Memory) PutPendingUpload(_ context.Context, u PendingUpload) error {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	m.pending[u.UploadID] = u
	return nil
}

// TakePendingUpload is single-consumer: the fetch and delete happen under one
// lock so a racing second commit of the same upload_id always observes
// ErrNotFound.
func (m *Memory) TakePendingUpload(_ context.Context, uploadID uuid.UUID) (PendingUpload, error) {
	m.pendingMu.Lock()
	defer m.pendingMu.Unlock()
	u, ok := m.pending[uploadID]
	if !ok {
		return PendingUpload{}, ErrNotFound
	}
	delete(m.pending, uploadID)
	return u, nil
}

func (m *Memory) PutAttachment(_ context.Context, a Attachment) error {
	m.attachmentsMu.Lock()
	defer m.attachmentsMu.Unlock()
	m.attachments[a.ID] = a
	return nil
}

func (m *Memory) GetAttachment(_ context.Context, id uuid.UUID) (Attachment, error) {
	m.attachmentsMu.RLock()
	defer m.attachmentsMu.RUnlock()
	a, ok := m.attachments[id]
	if !ok {
		return Attachment{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) DedupMark(_ context.Context, key string, messageID *uuid.UUID) (bool, error) {
	m.dedupMu.Lock()
	defer m.dedupMu.Unlock()
	if _, ok := m.dedup[key]; ok {
		return false, nil
	}
	m.dedup[key] = messageID
	return true, nil
}

func (m *Memory) DedupLookup(_ context.Context, key string) (bool, *uuid.UUID, error) {
	m.dedupMu.Lock()
	defer m.dedupMu.Unlock()
	id, ok := m.dedup[key]
	if !ok {
		return false, nil, nil
	}
	return true, id, nil
}
