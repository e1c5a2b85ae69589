package storage

import (
	"context"
	"sort"

	"github.com/google/uuid"
)

func (m *Memory) InsertMessage(_ context.Context, msg Message) error {
	m.messagesMu.Lock()
	defer m.messagesMu.Unlock()
	m.messages[msg.ID] = msg
	return nil
}

func (m *Memory) GetMessage(_ context.Context, id uuid.UUID) (Message, error) {
	m.messagesMu.RLock()
	defer m.messagesMu.RUnlock()
	msg, ok := m.messages[id]
	if !ok {
		return Message{}, ErrNotFound
	}
	return msg, nil
}

func (m *Memory) UpdateMessage(_ context.Context, msg Message) error {
	m.messagesMu.Lock()
	defer m.messagesMu.Unlock()
	if _, ok := m.messages[msg.ID]; !ok {
		return ErrNotFound
	}
	m.messages[msg.ID] = msg
	return nil
}

func (m *Memory) ListMessages(_ context.Context, channelID uuid.UUID, threadRootID *uuid.UUID, cursor *Cursor, limit int) ([]Message, error) {
	m.messagesMu.RLock()
	candidates := make([]Message, 0)
	for _, msg := range m.messages {
		if msg.ChannelID != channelID || msg.DeletedAt != nil {
			continue
		}
		if threadRootID != nil && (msg.ThreadRootID == nil || *msg.ThreadRootID != *threadRootID) {
			continue
		}
		if cursor != nil && !cursor.Before(msg.CreatedAt, msg.ID) {
			continue
		}
		candidates = append(candidates, msg)
	}
	m.messagesMu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return lessDesc(candidates[i].CreatedAt, candidates[i].ID, candidates[j].CreatedAt, candidates[j].ID)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func (m *Memory) ListThreadReplies(_ context.Context, rootID uuid.UUID) ([]Message, error) {
	m.messagesMu.RLock()
	defer m.messagesMu.RUnlock()
	out := make([]Message, 0)
	for _, msg := range m.messages {
		if msg.ThreadRootID != nil && *msg.ThreadRootID == rootID && msg.DeletedAt == nil {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}
