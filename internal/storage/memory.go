package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is the canonical, always-present backend. Every container is
// guarded by its own RWMutex; no operation acquires two locks at once.
type Memory struct {
	workspacesMu sync.RWMutex
	workspaces   map[uuid.UUID]Workspace

	usersMu    sync.RWMutex
	usersByID  map[uuid.UUID]AuthUser
	usersByEml map[string]uuid.UUID

	membershipsMu sync.RWMutex
	memberships   map[membershipKey]Membership

	refreshMu sync.Mutex // linearizes the whole read-modify-write per call
	refresh   map[string]RefreshSession

	channelsMu sync.RWMutex
	channels   map[uuid.UUID]Channel

	channelMembersMu sync.RWMutex
	channelMembers   map[uuid.UUID]map[uuid.UUID]struct{}

	messagesMu sync.RWMutex
	messages   map[uuid.UUID]Message

	reactionsMu sync.RWMutex
	reactions   map[reactionKey]map[uuid.UUID]struct{}

	auditMu sync.RWMutex
	audit   []AuditEntry

	pendingMu sync.Mutex
	pending   map[uuid.UUID]PendingUpload

	attachmentsMu sync.RWMutex
	attachments   map[uuid.UUID]Attachment

	dedupMu sync.Mutex
	dedup   map[string]*uuid.UUID
}

type membershipKey struct {
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
}

type reactionKey struct {
	MessageID uuid.UUID
	Emoji     string
}

// NewMemory returns an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		workspaces:     make(map[uuid.UUID]Workspace),
		usersByID:      make(map[uuid.UUID]AuthUser),
		usersByEml:     make(map[string]uuid.UUID),
		memberships:    make(map[membershipKey]Membership),
		refresh:        make(map[string]RefreshSession),
		channels:       make(map[uuid.UUID]Channel),
		channelMembers: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		messages:       make(map[uuid.UUID]Message),
		reactions:      make(map[reactionKey]map[uuid.UUID]struct{}),
		pending:        make(map[uuid.UUID]PendingUpload),
		attachments:    make(map[uuid.UUID]Attachment),
		dedup:          make(map[string]*uuid.UUID),
	}
}

func (m *Memory) CreateWorkspace(_ context.Context, ws Workspace) error {
	m.workspacesMu.Lock()
	defer m.workspacesMu.Unlock()
	m.workspaces[ws.ID] = ws
	return nil
}

func (m *Memory) GetWorkspace(_ context.Context, id uuid.UUID) (Workspace, error) {
	m.workspacesMu.RLock()
	defer m.workspacesMu.RUnlock()
	ws, ok := m.workspaces[id]
	if !ok {
		return Workspace{}, ErrNotFound
	}
	return ws, nil
}

func (m *Memory) PutAuthUser(_ context.Context, u AuthUser) error {
	m.usersMu.Lock()
	defer m.usersMu.Unlock()
	m.usersByID[u.ID] = u
	m.usersByEml[u.Email] = u.ID
	return nil
}

func (m *Memory) GetAuthUserByID(_ context.Context, id uuid.UUID) (AuthUser, error) {
	m.usersMu.RLock()
	defer m.usersMu.RUnlock()
	u, ok := m.usersByID[id]
	if !ok {
		return AuthUser{}, ErrNotFound
	}
	return u, nil
}

func (m *Memory) GetAuthUserByEmail(_ context.Context, email string) (AuthUser, error) {
	m.usersMu.RLock()
	defer m.usersMu.RUnlock()
	id, ok := m.usersByEml[email]
	if !ok {
		return AuthUser{}, ErrNotFound
	}
	return m.usersByID[id], nil
}

func (m *Memory) PutMembership(_ context.Context, mem Membership) error {
	m.membershipsMu.Lock()
	defer m.membershipsMu.Unlock()
	m.memberships[membershipKey{mem.WorkspaceID, mem.UserID}] = mem
	return nil
}

func (m *Memory) GetMembership(_ context.Context, workspaceID, userID uuid.UUID) (Membership, error) {
	m.membershipsMu.RLock()
	defer m.membershipsMu.RUnlock()
	mem, ok := m.memberships[membershipKey{workspaceID, userID}]
	if !ok {
		return Membership{}, ErrNotFound
	}
	return mem, nil
}

// FindAnyMembership returns an unspecified membership for userID if one
// exists. Callers must not rely on which one is chosen when a user belongs to
// several workspaces.
func (m *Memory) FindAnyMembership(_ context.Context, userID uuid.UUID) (Membership, error) {
	m.membershipsMu.RLock()
	defer m.membershipsMu.RUnlock()
	for k, mem := range m.memberships {
		if k.UserID == userID {
			return mem, nil
		}
	}
	return Membership{}, ErrNotFound
}

func (m *Memory) ListWorkspaceMemberships(_ context.Context, workspaceID uuid.UUID) ([]Membership, error) {
	m.membershipsMu.RLock()
	defer m.membershipsMu.RUnlock()
	out := make([]Membership, 0)
	for k, mem := range m.memberships {
		if k.WorkspaceID == workspaceID {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (m *Memory) ListUserMemberships(_ context.Context, userID uuid.UUID) ([]Membership, error) {
	m.membershipsMu.RLock()
	defer m.membershipsMu.RUnlock()
	out := make([]Membership, 0)
	for k, mem := range m.memberships {
		if k.UserID == userID {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (m *Memory) PutRefreshSession(_ context.Context, s RefreshSession) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	m.refresh[s.TokenHash] = s
	return nil
}

func (m *Memory) GetRefreshSession(_ context.Context, tokenHash string) (RefreshSession, error) {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	s, ok := m.refresh[tokenHash]
	if !ok {
		return RefreshSession{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) UpdateRefreshSession(_ context.Context, tokenHash string, mutate func(*RefreshSession) error) error {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	s, ok := m.refresh[tokenHash]
	if !ok {
		return ErrNotFound
	}
	if err := mutate(&s); err != nil {
		return err
	}
	m.refresh[tokenHash] = s
	return nil
}

func (m *Memory) InsertChannel(_ context.Context, ch Channel) error {
	m.channelsMu.Lock()
	defer m.channelsMu.Unlock()
	m.channels[ch.ID] = ch
	return nil
}

func (m *Memory) GetChannel(_ context.Context, id uuid.UUID) (Channel, error) {
	m.channelsMu.RLock()
	defer m.channelsMu.RUnlock()
	ch, ok := m.channels[id]
	if !ok {
		return Channel{}, ErrNotFound
	}
	return ch, nil
}

func (m *Memory) UpdateChannel(_ context.Context, ch Channel) error {
	m.channelsMu.Lock()
	defer m.channelsMu.Unlock()
	if _, ok := m.channels[ch.ID]; !ok {
		return ErrNotFound
	}
	m.channels[ch.ID] = ch
	return nil
}

func (m *Memory) ListChannelsByWorkspace(_ context.Context, workspaceID uuid.UUID) ([]Channel, error) {
	m.channelsMu.RLock()
	defer m.channelsMu.RUnlock()
	out := make([]Channel, 0)
	for _, ch := range m.channels {
		if ch.WorkspaceID == workspaceID {
			out = append(out, ch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}

func (m *Memory) ChannelNameExists(_ context.Context, workspaceID uuid.UUID, lowerName string) (bool, error) {
	m.channelsMu.RLock()
	defer m.channelsMu.RUnlock()
	for _, ch := range m.channels {
		if ch.WorkspaceID == workspaceID && ch.Name == lowerName {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) RemoveChannel(_ context.Context, id uuid.UUID) error {
	m.channelsMu.Lock()
	defer m.channelsMu.Unlock()
	delete(m.channels, id)
	return nil
}

func (m *Memory) AddChannelMember(_ context.Context, channelID, userID uuid.UUID) error {
	m.channelMembersMu.Lock()
	defer m.channelMembersMu.Unlock()
	set, ok := m.channelMembers[channelID]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		m.channelMembers[channelID] = set
	}
	set[userID] = struct{}{}
	return nil
}

func (m *Memory) RemoveChannelMember(_ context.Context, channelID, userID uuid.UUID) error {
	m.channelMembersMu.Lock()
	defer m.channelMembersMu.Unlock()
	delete(m.channelMembers[channelID], userID)
	return nil
}

func (m *Memory) ListChannelMembers(_ context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	m.channelMembersMu.RLock()
	defer m.channelMembersMu.RUnlock()
	out := make([]uuid.UUID, 0, len(m.channelMembers[channelID]))
	for uid := range m.channelMembers[channelID] {
		out = append(out, uid)
	}
	return out, nil
}

func (m *Memory) IsChannelMember(_ context.Context, channelID, userID uuid.UUID) (bool, error) {
	m.channelMembersMu.RLock()
	defer m.channelMembersMu.RUnlock()
	_, ok := m.channelMembers[channelID][userID]
	return ok, nil
}

func (m *Memory) RemoveMessagesForChannel(_ context.Context, channelID uuid.UUID) error {
	m.messagesMu.Lock()
	defer m.messagesMu.Unlock()
	for id, msg := range m.messages {
		if msg.ChannelID == channelID {
			delete(m.messages, id)
		}
	}
	return nil
}
