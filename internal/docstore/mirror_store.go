package docstore

import (
	"context"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/galynx/galynx/internal/storage"
)

func idHex(id uuid.UUID) string {
	b := id
	return hex.EncodeToString(b[:])
}

// --- Workspaces ---

func (s *Mirror) CreateWorkspace(ctx context.Context, ws storage.Workspace) error {
	if err := s.local.CreateWorkspace(ctx, ws); err != nil {
		return err
	}
	s.upsertDoc(ctx, "workspaces", "id", ws.ID.String(), nil, nil, ws)
	return nil
}

func (s *Mirror) GetWorkspace(ctx context.Context, id uuid.UUID) (storage.Workspace, error) {
	if s.remote != nil {
		var ws storage.Workspace
		err := fetchDoc(ctx, s.remote, "SELECT data FROM workspaces WHERE id = $1", []any{id.String()}, &ws)
		if err == nil {
			return ws, nil
		}
		s.log.Warn().Err(err).Msg("remote GetWorkspace failed, falling back to memory")
	}
	return s.local.GetWorkspace(ctx, id)
}

// --- Auth users ---

func (s *Mirror) PutAuthUser(ctx context.Context, u storage.AuthUser) error {
	if err := s.local.PutAuthUser(ctx, u); err != nil {
		return err
	}
	s.upsertDoc(ctx, "auth_users", "id", u.ID.String(), []string{"email"}, []any{u.Email}, u)
	return nil
}

func (s *Mirror) GetAuthUserByID(ctx context.Context, id uuid.UUID) (storage.AuthUser, error) {
	if s.remote != nil {
		var u storage.AuthUser
		err := fetchDoc(ctx, s.remote, "SELECT data FROM auth_users WHERE id = $1", []any{id.String()}, &u)
		if err == nil {
			return u, nil
		}
		s.log.Warn().Err(err).Msg("remote GetAuthUserByID failed, falling back to memory")
	}
	return s.local.GetAuthUserByID(ctx, id)
}

func (s *Mirror) GetAuthUserByEmail(ctx context.Context, email string) (storage.AuthUser, error) {
	if s.remote != nil {
		var u storage.AuthUser
		err := fetchDoc(ctx, s.remote, "SELECT data FROM auth_users WHERE email = $1", []any{email}, &u)
		if err == nil {
			return u, nil
		}
		s.log.Warn().Err(err).Msg("remote GetAuthUserByEmail failed, falling back to memory")
	}
	return s.local.GetAuthUserByEmail(ctx, email)
}

// --- Memberships ---

func (s *Mirror) PutMembership(ctx context.Context, m storage.Membership) error {
	if err := s.local.PutMembership(ctx, m); err != nil {
		return err
	}
	s.upsertMembership(ctx, m)
	return nil
}

// upsertMembership has a composite key so it cannot use the single-id
// upsertDoc helper.
func (s *Mirror) upsertMembership(ctx context.Context, m storage.Membership) {
	data, err := json.Marshal(m)
	if err != nil {
		s.log.Warn().Err(err).Msg("marshal membership for mirror write")
		return
	}
	tx, err := s.remote.Begin(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("begin membership mirror write")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if _, err := tx.Exec(ctx, "DELETE FROM memberships WHERE workspace_id = $1 AND user_id = $2", m.WorkspaceID.String(), m.UserID.String()); err != nil {
		s.log.Warn().Err(err).Msg("membership mirror delete failed")
		return
	}
	if _, err := tx.Exec(ctx, "INSERT INTO memberships (workspace_id, user_id, data) VALUES ($1, $2, $3)", m.WorkspaceID.String(), m.UserID.String(), data); err != nil {
		s.log.Warn().Err(err).Msg("membership mirror insert failed")
		return
	}
	if err := tx.Commit(ctx); err != nil {
		s.log.Warn().Err(err).Msg("commit membership mirror write")
	}
}

func (s *Mirror) GetMembership(ctx context.Context, workspaceID, userID uuid.UUID) (storage.Membership, error) {
	if s.remote != nil {
		var m storage.Membership
		err := fetchDoc(ctx, s.remote, "SELECT data FROM memberships WHERE workspace_id = $1 AND user_id = $2", []any{workspaceID.String(), userID.String()}, &m)
		if err == nil {
			return m, nil
		}
		s.log.Warn().Err(err).Msg("remote GetMembership failed, falling back to memory")
	}
	return s.local.GetMembership(ctx, workspaceID, userID)
}

func (s *Mirror) FindAnyMembership(ctx context.Context, userID uuid.UUID) (storage.Membership, error) {
	if s.remote != nil {
		var m storage.Membership
		err := fetchDoc(ctx, s.remote, "SELECT data FROM memberships WHERE user_id = $1 LIMIT 1", []any{userID.String()}, &m)
		if err == nil {
			return m, nil
		}
		s.log.Warn().Err(err).Msg("remote FindAnyMembership failed, falling back to memory")
	}
	return s.local.FindAnyMembership(ctx, userID)
}

func (s *Mirror) ListWorkspaceMemberships(ctx context.Context, workspaceID uuid.UUID) ([]storage.Membership, error) {
	if s.remote != nil {
		ms, err := s.listMembershipsRemote(ctx, "SELECT data FROM memberships WHERE workspace_id = $1", workspaceID.String())
		if err == nil {
			return ms, nil
		}
		s.log.Warn().Err(err).Msg("remote ListWorkspaceMemberships failed, falling back to memory")
	}
	return s.local.ListWorkspaceMemberships(ctx, workspaceID)
}

func (s *Mirror) ListUserMemberships(ctx context.Context, userID uuid.UUID) ([]storage.Membership, error) {
	if s.remote != nil {
		ms, err := s.listMembershipsRemote(ctx, "SELECT data FROM memberships WHERE user_id = $1", userID.String())
		if err == nil {
			return ms, nil
		}
		s.log.Warn().Err(err).Msg("remote ListUserMemberships failed, falling back to memory")
	}
	return s.local.ListUserMemberships(ctx, userID)
}

func (s *Mirror) listMembershipsRemote(ctx context.Context, query string, arg any) ([]storage.Membership, error) {
	rows, err := s.remote.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Membership
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var m storage.Membership
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- Refresh sessions ---

func (s *Mirror) PutRefreshSession(ctx context.Context, rs storage.RefreshSession) error {
	if err := s.local.PutRefreshSession(ctx, rs); err != nil {
		return err
	}
	s.upsertDoc(ctx, "refresh_sessions", "token_hash", rs.TokenHash, nil, nil, rs)
	return nil
}

func (s *Mirror) GetRefreshSession(ctx context.Context, tokenHash string) (storage.RefreshSession, error) {
	if s.remote != nil {
		var rs storage.RefreshSession
		err := fetchDoc(ctx, s.remote, "SELECT data FROM refresh_sessions WHERE token_hash = $1", []any{tokenHash}, &rs)
		if err == nil {
			return rs, nil
		}
		s.log.Warn().Err(err).Msg("remote GetRefreshSession failed, falling back to memory")
	}
	return s.local.GetRefreshSession(ctx, tokenHash)
}

// UpdateRefreshSession linearizes on the in-memory backend (it alone owns the
// per-token-hash mutex); the mirror write is best-effort afterwards, keyed by
// re-reading the mutated row from memory.
func (s *Mirror) UpdateRefreshSession(ctx context.Context, tokenHash string, mutate func(*storage.RefreshSession) error) error {
	if err := s.local.UpdateRefreshSession(ctx, tokenHash, mutate); err != nil {
		return err
	}
	rs, err := s.local.GetRefreshSession(ctx, tokenHash)
	if err == nil {
		s.upsertDoc(ctx, "refresh_sessions", "token_hash", rs.TokenHash, nil, nil, rs)
	}
	return nil
}

// --- Channels ---

func (s *Mirror) InsertChannel(ctx context.Context, ch storage.Channel) error {
	if err := s.local.InsertChannel(ctx, ch); err != nil {
		return err
	}
	s.upsertDoc(ctx, "channels", "id", ch.ID.String(), []string{"workspace_id", "name"}, []any{ch.WorkspaceID.String(), ch.Name}, ch)
	return nil
}

func (s *Mirror) GetChannel(ctx context.Context, id uuid.UUID) (storage.Channel, error) {
	if s.remote != nil {
		var ch storage.Channel
		err := fetchDoc(ctx, s.remote, "SELECT data FROM channels WHERE id = $1", []any{id.String()}, &ch)
		if err == nil {
			return ch, nil
		}
		s.log.Warn().Err(err).Msg("remote GetChannel failed, falling back to memory")
	}
	return s.local.GetChannel(ctx, id)
}

func (s *Mirror) UpdateChannel(ctx context.Context, ch storage.Channel) error {
	if err := s.local.UpdateChannel(ctx, ch); err != nil {
		return err
	}
	s.upsertDoc(ctx, "channels", "id", ch.ID.String(), []string{"workspace_id", "name"}, []any{ch.WorkspaceID.String(), ch.Name}, ch)
	return nil
}

func (s *Mirror) ListChannelsByWorkspace(ctx context.Context, workspaceID uuid.UUID) ([]storage.Channel, error) {
	if s.remote != nil {
		chs, err := s.listChannelsRemote(ctx, workspaceID)
		if err == nil {
			return chs, nil
		}
		s.log.Warn().Err(err).Msg("remote ListChannelsByWorkspace failed, falling back to memory")
	}
	return s.local.ListChannelsByWorkspace(ctx, workspaceID)
}

func (s *Mirror) listChannelsRemote(ctx context.Context, workspaceID uuid.UUID) ([]storage.Channel, error) {
	rows, err := s.remote.Query(ctx, "SELECT data FROM channels WHERE workspace_id = $1", workspaceID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Channel
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var ch storage.Channel
		if err := json.Unmarshal(raw, &ch); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (s *Mirror) ChannelNameExists(ctx context.Context, workspaceID uuid.UUID, lowerName string) (bool, error) {
	if s.remote != nil {
		var exists bool
		err := s.remote.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM channels WHERE workspace_id = $1 AND name = $2)", workspaceID.String(), lowerName).Scan(&exists)
		if err == nil {
			return exists, nil
		}
		s.log.Warn().Err(err).Msg("remote ChannelNameExists failed, falling back to memory")
	}
	return s.local.ChannelNameExists(ctx, workspaceID, lowerName)
}

func (s *Mirror) RemoveChannel(ctx context.Context, id uuid.UUID) error {
	if err := s.local.RemoveChannel(ctx, id); err != nil {
		return err
	}
	if s.remote != nil {
		if _, err := s.remote.Exec(ctx, "DELETE FROM channels WHERE id = $1", id.String()); err != nil {
			s.log.Warn().Err(err).Msg("mirror RemoveChannel failed")
		}
		if _, err := s.remote.Exec(ctx, "DELETE FROM channel_members WHERE channel_id = $1", id.String()); err != nil {
			s.log.Warn().Err(err).Msg("mirror RemoveChannel members failed")
		}
	}
	return nil
}

// --- Channel membership ---

func (s *Mirror) AddChannelMember(ctx context.Context, channelID, userID uuid.UUID) error {
	if err := s.local.AddChannelMember(ctx, channelID, userID); err != nil {
		return err
	}
	if s.remote != nil {
		_, err := s.remote.Exec(ctx, "INSERT INTO channel_members (channel_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", channelID.String(), userID.String())
		if err != nil {
			s.log.Warn().Err(err).Msg("mirror AddChannelMember failed")
		}
	}
	return nil
}

func (s *Mirror) RemoveChannelMember(ctx context.Context, channelID, userID uuid.UUID) error {
	if err := s.local.RemoveChannelMember(ctx, channelID, userID); err != nil {
		return err
	}
	if s.remote != nil {
		_, err := s.remote.Exec(ctx, "DELETE FROM channel_members WHERE channel_id = $1 AND user_id = $2", channelID.String(), userID.String())
		if err != nil {
			s.log.Warn().Err(err).Msg("mirror RemoveChannelMember failed")
		}
	}
	return nil
}

func (s *Mirror) ListChannelMembers(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	if s.remote != nil {
		ids, err := s.listChannelMembersRemote(ctx, channelID)
		if err == nil {
			return ids, nil
		}
		s.log.Warn().Err(err).Msg("remote ListChannelMembers failed, falling back to memory")
	}
	return s.local.ListChannelMembers(ctx, channelID)
}

func (s *Mirror) listChannelMembersRemote(ctx context.Context, channelID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.remote.Query(ctx, "SELECT user_id FROM channel_members WHERE channel_id = $1", channelID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Mirror) IsChannelMember(ctx context.Context, channelID, userID uuid.UUID) (bool, error) {
	if s.remote != nil {
		var exists bool
		err := s.remote.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM channel_members WHERE channel_id = $1 AND user_id = $2)", channelID.String(), userID.String()).Scan(&exists)
		if err == nil {
			return exists, nil
		}
		s.log.Warn().Err(err).Msg("remote IsChannelMember failed, falling back to memory")
	}
	return s.local.IsChannelMember(ctx, channelID, userID)
}

// --- Messages ---

func (s *Mirror) InsertMessage(ctx context.Context, m storage.Message) error {
	if err := s.local.InsertMessage(ctx, m); err != nil {
		return err
	}
	s.upsertMessage(ctx, m)
	return nil
}

func (s *Mirror) UpdateMessage(ctx context.Context, m storage.Message) error {
	if err := s.local.UpdateMessage(ctx, m); err != nil {
		return err
	}
	s.upsertMessage(ctx, m)
	return nil
}

func (s *Mirror) upsertMessage(ctx context.Context, m storage.Message) {
	var threadRoot any
	if m.ThreadRootID != nil {
		threadRoot = m.ThreadRootID.String()
	}
	cols := []string{"id_hex", "channel_id", "thread_root_id", "created_at", "deleted"}
	vals := []any{idHex(m.ID), m.ChannelID.String(), threadRoot, m.CreatedAt, m.DeletedAt != nil}
	s.upsertDoc(ctx, "messages", "id", m.ID.String(), cols, vals, m)
}

func (s *Mirror) GetMessage(ctx context.Context, id uuid.UUID) (storage.Message, error) {
	if s.remote != nil {
		var m storage.Message
		err := fetchDoc(ctx, s.remote, "SELECT data FROM messages WHERE id = $1", []any{id.String()}, &m)
		if err == nil {
			return m, nil
		}
		s.log.Warn().Err(err).Msg("remote GetMessage failed, falling back to memory")
	}
	return s.local.GetMessage(ctx, id)
}

func (s *Mirror) ListMessages(ctx context.Context, channelID uuid.UUID, threadRootID *uuid.UUID, cursor *storage.Cursor, limit int) ([]storage.Message, error) {
	if s.remote != nil {
		msgs, err := s.listMessagesRemote(ctx, channelID, threadRootID, cursor, limit)
		if err == nil {
			return msgs, nil
		}
		s.log.Warn().Err(err).Msg("remote ListMessages failed, falling back to memory")
	}
	return s.local.ListMessages(ctx, channelID, threadRootID, cursor, limit)
}

func (s *Mirror) listMessagesRemote(ctx context.Context, channelID uuid.UUID, threadRootID *uuid.UUID, cursor *storage.Cursor, limit int) ([]storage.Message, error) {
	query := "SELECT data FROM messages WHERE channel_id = $1 AND deleted = false"
	args := []any{channelID.String()}

	if threadRootID != nil {
		query += " AND thread_root_id = $2"
		args = append(args, threadRootID.String())
	}

	if cursor != nil {
		query += " AND (created_at, id_hex) < ($" + itoa(len(args)+1) + ", $" + itoa(len(args)+2) + ")"
		args = append(args, cursor.CreatedAt, idHex(cursor.ID))
	}

	query += " ORDER BY created_at DESC, id_hex DESC LIMIT $" + itoa(len(args)+1)
	args = append(args, limit)

	rows, err := s.remote.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Message
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var m storage.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Mirror) ListThreadReplies(ctx context.Context, rootID uuid.UUID) ([]storage.Message, error) {
	if s.remote != nil {
		replies, err := s.listThreadRepliesRemote(ctx, rootID)
		if err == nil {
			return replies, nil
		}
		s.log.Warn().Err(err).Msg("remote ListThreadReplies failed, falling back to memory")
	}
	return s.local.ListThreadReplies(ctx, rootID)
}

func (s *Mirror) listThreadRepliesRemote(ctx context.Context, rootID uuid.UUID) ([]storage.Message, error) {
	rows, err := s.remote.Query(ctx, "SELECT data FROM messages WHERE thread_root_id = $1 AND deleted = false ORDER BY created_at ASC, id_hex ASC", rootID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Message
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var m storage.Message
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Mirror) RemoveMessagesForChannel(ctx context.Context, channelID uuid.UUID) error {
	if err := s.local.RemoveMessagesForChannel(ctx, channelID); err != nil {
		return err
	}
	if s.remote != nil {
		if _, err := s.remote.Exec(ctx, "DELETE FROM messages WHERE channel_id = $1", channelID.String()); err != nil {
			s.log.Warn().Err(err).Msg("mirror RemoveMessagesForChannel failed")
		}
	}
	return nil
}

// --- Reactions ---

func (s *Mirror) AddReaction(ctx context.Context, messageID uuid.UUID, emoji string, userID uuid.UUID) error {
	if err := s.local.AddReaction(ctx, messageID, emoji, userID); err != nil {
		return err
	}
	if s.remote != nil {
		_, err := s.remote.Exec(ctx, "INSERT INTO reactions (message_id, emoji, user_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING", messageID.String(), emoji, userID.String())
		if err != nil {
			s.log.Warn().Err(err).Msg("mirror AddReaction failed")
		}
	}
	return nil
}

func (s *Mirror) RemoveReaction(ctx context.Context, messageID uuid.UUID, emoji string, userID uuid.UUID) error {
	if err := s.local.RemoveReaction(ctx, messageID, emoji, userID); err != nil {
		return err
	}
	if s.remote != nil {
		_, err := s.remote.Exec(ctx, "DELETE FROM reactions WHERE message_id = $1 AND emoji = $2 AND user_id = $3", messageID.String(), emoji, userID.String())
		if err != nil {
			s.log.Warn().Err(err).Msg("mirror RemoveReaction failed")
		}
	}
	return nil
}

func (s *Mirror) ListReactionUsers(ctx context.Context, messageID uuid.UUID, emoji string) ([]uuid.UUID, error) {
	if s.remote != nil {
		ids, err := s.listReactionUsersRemote(ctx, messageID, emoji)
		if err == nil {
			return ids, nil
		}
		s.log.Warn().Err(err).Msg("remote ListReactionUsers failed, falling back to memory")
	}
	return s.local.ListReactionUsers(ctx, messageID, emoji)
}

func (s *Mirror) listReactionUsersRemote(ctx context.Context, messageID uuid.UUID, emoji string) ([]uuid.UUID, error) {
	rows, err := s.remote.Query(ctx, "SELECT user_id FROM reactions WHERE message_id = $1 AND emoji = $2 ORDER BY user_id ASC", messageID.String(), emoji)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- Audit ---

func (s *Mirror) AppendAudit(ctx context.Context, e storage.AuditEntry) error {
	if err := s.local.AppendAudit(ctx, e); err != nil {
		return err
	}
	cols := []string{"id_hex", "workspace_id", "created_at"}
	vals := []any{idHex(e.ID), e.WorkspaceID.String(), e.CreatedAt}
	s.upsertDoc(ctx, "audit_entries", "id", e.ID.String(), cols, vals, e)
	return nil
}

func (s *Mirror) ListAudit(ctx context.Context, workspaceID uuid.UUID, cursor *storage.Cursor, limit int) ([]storage.AuditEntry, error) {
	if s.remote != nil {
		entries, err := s.listAuditRemote(ctx, workspaceID, cursor, limit)
		if err == nil {
			return entries, nil
		}
		s.log.Warn().Err(err).Msg("remote ListAudit failed, falling back to memory")
	}
	return s.local.ListAudit(ctx, workspaceID, cursor, limit)
}

func (s *Mirror) listAuditRemote(ctx context.Context, workspaceID uuid.UUID, cursor *storage.Cursor, limit int) ([]storage.AuditEntry, error) {
	query := "SELECT data FROM audit_entries WHERE workspace_id = $1"
	args := []any{workspaceID.String()}

	if cursor != nil {
		query += " AND (created_at, id_hex) < ($2, $3)"
		args = append(args, cursor.CreatedAt, idHex(cursor.ID))
	}

	query += " ORDER BY created_at DESC, id_hex DESC LIMIT $" + itoa(len(args)+1)
	args = append(args, limit)

	rows, err := s.remote.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.AuditEntry
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var e storage.AuditEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Attachments ---

func (s *Mirror) PutPendingUpload(ctx context.Context, u storage.PendingUpload) error {
	if err := s.local.PutPendingUpload(ctx, u); err != nil {
		return err
	}
	s.upsertDoc(ctx, "pending_uploads", "upload_id", u.UploadID.String(), nil, nil, u)
	return nil
}

func (s *Mirror) TakePendingUpload(ctx context.Context, uploadID uuid.UUID) (storage.PendingUpload, error) {
	u, err := s.local.TakePendingUpload(ctx, uploadID)
	if err != nil {
		return storage.PendingUpload{}, err
	}
	if s.remote != nil {
		if _, err := s.remote.Exec(ctx, "DELETE FROM pending_uploads WHERE upload_id = $1", uploadID.String()); err != nil {
			s.log.Warn().Err(err).Msg("mirror TakePendingUpload cleanup failed")
		}
	}
	return u, nil
}

func (s *Mirror) PutAttachment(ctx context.Context, a storage.Attachment) error {
	if err := s.local.PutAttachment(ctx, a); err != nil {
		return err
	}
	s.upsertDoc(ctx, "attachments", "id", a.ID.String(), nil, nil, a)
	return nil
}

func (s *Mirror) GetAttachment(ctx context.Context, id uuid.UUID) (storage.Attachment, error) {
	if s.remote != nil {
		var a storage.Attachment
		err := fetchDoc(ctx, s.remote, "SELECT data FROM attachments WHERE id = $1", []any{id.String()}, &a)
		if err == nil {
			return a, nil
		}
		s.log.Warn().Err(err).Msg("remote GetAttachment failed, falling back to memory")
	}
	return s.local.GetAttachment(ctx, id)
}

// --- WS command dedup ---

func (s *Mirror) DedupMark(ctx context.Context, key string, messageID *uuid.UUID) (bool, error) {
	recorded, err := s.local.DedupMark(ctx, key, messageID)
	if err != nil || !recorded {
		return recorded, err
	}
	if s.remote != nil {
		var midStr any
		if messageID != nil {
			midStr = messageID.String()
		}
		_, err := s.remote.Exec(ctx, "INSERT INTO ws_dedup (key, message_id) VALUES ($1, $2) ON CONFLICT DO NOTHING", key, midStr)
		if err != nil {
			s.log.Warn().Err(err).Msg("mirror DedupMark failed")
		}
	}
	return recorded, nil
}

func (s *Mirror) DedupLookup(ctx context.Context, key string) (bool, *uuid.UUID, error) {
	return s.local.DedupLookup(ctx, key)
}
