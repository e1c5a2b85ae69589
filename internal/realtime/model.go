package realtime

import (
	"github.com/google/uuid"

	"github.com/galynx/galynx/internal/channelsvc"
	"github.com/galynx/galynx/internal/reactionsvc"
	"github.com/galynx/galynx/internal/storage"
)

// Wire models shared by broadcast event payloads and the HTTP edge. These
// play the role the external protocol module's model types play for the
// original gateway: one JSON shape per entity, used on every surface.

// MessageModel is the wire form of a message.
type MessageModel struct {
	ID           string  `json:"id"`
	WorkspaceID  string  `json:"workspace_id"`
	ChannelID    string  `json:"channel_id"`
	SenderID     string  `json:"sender_id"`
	BodyMD       string  `json:"body_md"`
	ThreadRootID *string `json:"thread_root_id,omitempty"`
	CreatedAt    int64   `json:"created_at"`
	EditedAt     *int64  `json:"edited_at,omitempty"`
}

// ToMessageModel converts a storage message to its wire form.
func ToMessageModel(m storage.Message) MessageModel {
	out := MessageModel{
		ID:          m.ID.String(),
		WorkspaceID: m.WorkspaceID.String(),
		ChannelID:   m.ChannelID.String(),
		SenderID:    m.SenderID.String(),
		BodyMD:      m.BodyMD,
		CreatedAt:   m.CreatedAt,
		EditedAt:    m.EditedAt,
	}
	if m.ThreadRootID != nil {
		s := m.ThreadRootID.String()
		out.ThreadRootID = &s
	}
	return out
}

// ChannelModel is the wire form of a channel.
type ChannelModel struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	IsPrivate   bool   `json:"is_private"`
	CreatedBy   string `json:"created_by"`
	CreatedAt   int64  `json:"created_at"`
}

// ToChannelModel converts a storage channel to its wire form.
func ToChannelModel(ch storage.Channel) ChannelModel {
	return ChannelModel{
		ID:          ch.ID.String(),
		WorkspaceID: ch.WorkspaceID.String(),
		Name:        ch.Name,
		IsPrivate:   ch.IsPrivate,
		CreatedBy:   ch.CreatedBy.String(),
		CreatedAt:   ch.CreatedAt,
	}
}

// ReactionModel is the wire form of a post-mutation reaction aggregate.
type ReactionModel struct {
	MessageID   string   `json:"message_id"`
	ChannelID   string   `json:"channel_id"`
	WorkspaceID string   `json:"workspace_id"`
	Emoji       string   `json:"emoji"`
	Count       int      `json:"count"`
	UserIDs     []string `json:"user_ids"`
	Op          string   `json:"op"`
}

// ToReactionModel converts a reaction aggregate to its wire form.
func ToReactionModel(a reactionsvc.Aggregate) ReactionModel {
	return ReactionModel{
		MessageID:   a.MessageID.String(),
		ChannelID:   a.ChannelID.String(),
		WorkspaceID: a.WorkspaceID.String(),
		Emoji:       a.Emoji,
		Count:       a.Count,
		UserIDs:     uuidStrings(a.UserIDs),
		Op:          string(a.Op),
	}
}

// PageModel is the wire form of a cursor-paginated message page.
type PageModel struct {
	Items      []MessageModel `json:"items"`
	NextCursor *string        `json:"next_cursor"`
}

// ToPageModel converts a channelsvc page to its wire form.
func ToPageModel(p channelsvc.Page) PageModel {
	items := make([]MessageModel, 0, len(p.Items))
	for _, m := range p.Items {
		items = append(items, ToMessageModel(m))
	}
	return PageModel{Items: items, NextCursor: p.NextCursor}
}

// ThreadSummaryModel is the wire form of a thread summary.
type ThreadSummaryModel struct {
	RootMessage  MessageModel `json:"root_message"`
	ReplyCount   int          `json:"reply_count"`
	LastReplyAt  *int64       `json:"last_reply_at"`
	Participants []string     `json:"participants"`
}

// ToThreadSummaryModel converts a thread summary to its wire form.
func ToThreadSummaryModel(s channelsvc.ThreadSummary) ThreadSummaryModel {
	return ThreadSummaryModel{
		RootMessage:  ToMessageModel(s.Root),
		ReplyCount:   s.ReplyCount,
		LastReplyAt:  s.LastReplyAt,
		Participants: uuidStrings(s.Participants),
	}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
