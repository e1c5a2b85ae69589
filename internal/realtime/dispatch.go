package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/channelsvc"
	"github.com/galynx/galynx/internal/httputil"
	"github.com/galynx/galynx/internal/reactionsvc"
	"github.com/galynx/galynx/internal/storage"
)

// maxClientMsgIDLen bounds the client-supplied idempotency id.
const maxClientMsgIDLen = 128

// Command names accepted on the inbound WebSocket frame.
const (
	CmdSendMessage    = "SEND_MESSAGE"
	CmdEditMessage    = "EDIT_MESSAGE"
	CmdDeleteMessage  = "DELETE_MESSAGE"
	CmdAddReaction    = "ADD_REACTION"
	CmdRemoveReaction = "REMOVE_REACTION"
	CmdFetchMore      = "FETCH_MORE"
	CmdFetchThread    = "FETCH_THREAD"
)

// CommandFrame is the inbound WebSocket frame shape.
type CommandFrame struct {
	Command     string          `json:"command"`
	Payload     json.RawMessage `json:"payload"`
	ClientMsgID *string         `json:"client_msg_id,omitempty"`
}

// CommandError carries the HTTP status-code mapping a command failure is
// reported with inside a non-fatal ERROR event.
type CommandError struct {
	Status  int
	Code    httputil.Code
	Message string
}

func (e *CommandError) Error() string { return e.Message }

func badRequest(msg string) *CommandError {
	return &CommandError{Status: fiber.StatusBadRequest, Code: httputil.CodeBadRequest, Message: msg}
}

// TranslateError maps a service error onto the error taxonomy. Used by both
// the WebSocket dispatcher (ERROR events) and, indirectly, as the reference
// mapping the HTTP adapter mirrors.
func TranslateError(err error) *CommandError {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	switch {
	case errors.Is(err, channelsvc.ErrNotFound):
		return &CommandError{Status: fiber.StatusNotFound, Code: httputil.CodeNotFound, Message: "not found"}
	case errors.Is(err, channelsvc.ErrUnauthorized), errors.Is(err, channelsvc.ErrNotSender):
		return &CommandError{Status: fiber.StatusUnauthorized, Code: httputil.CodeUnauthorized, Message: err.Error()}
	case errors.Is(err, channelsvc.ErrInvalidName),
		errors.Is(err, channelsvc.ErrNameTaken),
		errors.Is(err, channelsvc.ErrEmptyBody),
		errors.Is(err, channelsvc.ErrReplyOfReply),
		errors.Is(err, reactionsvc.ErrInvalidEmoji),
		errors.Is(err, storage.ErrBadCursor):
		return &CommandError{Status: fiber.StatusBadRequest, Code: httputil.CodeBadRequest, Message: err.Error()}
	default:
		return &CommandError{Status: fiber.StatusInternalServerError, Code: httputil.CodeInternalError, Message: "internal error"}
	}
}

// AuditWriter is the slice of the audit service the dispatcher needs.
type AuditWriter interface {
	Write(ctx context.Context, workspaceID uuid.UUID, actorID *uuid.UUID, action, targetType string, targetID *uuid.UUID, metadata any) error
}

// Dispatcher executes inbound WebSocket commands against the domain
// services, emits the resulting workspace events through the hub, and
// produces the ACK result payload for the issuing connection.
type Dispatcher struct {
	store     storage.Store
	channels  *channelsvc.Service
	reactions *reactionsvc.Service
	audit     AuditWriter
	hub       *Hub
	log       zerolog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store storage.Store, channels *channelsvc.Service, reactions *reactionsvc.Service, audit AuditWriter, hub *Hub, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		channels:  channels,
		reactions: reactions,
		audit:     audit,
		hub:       hub,
		log:       logger.With().Str("component", "realtime.dispatch").Logger(),
	}
}

// Dispatch runs one command frame for the authenticated caller and returns
// the ACK result value (the session wraps it as {command, result}). Side
// effects (persistence, audit, broadcast) happen inside; a returned error
// produces a non-fatal ERROR event instead of an ACK.
func (d *Dispatcher) Dispatch(ctx context.Context, actx auth.Context, frame CommandFrame) (any, error) {
	clientMsgID, err := normalizeClientMsgID(frame.ClientMsgID)
	if err != nil {
		return nil, err
	}

	switch frame.Command {
	case CmdSendMessage:
		return d.sendMessage(ctx, actx, frame.Payload, clientMsgID)
	case CmdEditMessage:
		return d.editMessage(ctx, actx, frame.Payload, clientMsgID)
	case CmdDeleteMessage:
		return d.deleteMessage(ctx, actx, frame.Payload, clientMsgID)
	case CmdAddReaction:
		return d.mutateReaction(ctx, actx, frame.Payload, clientMsgID, CmdAddReaction)
	case CmdRemoveReaction:
		return d.mutateReaction(ctx, actx, frame.Payload, clientMsgID, CmdRemoveReaction)
	case CmdFetchMore:
		return d.fetchMore(ctx, actx, frame.Payload)
	case CmdFetchThread:
		return d.fetchThread(ctx, actx, frame.Payload)
	default:
		return nil, badRequest(fmt.Sprintf("unknown command %q", frame.Command))
	}
}

// normalizeClientMsgID validates the optional idempotency id: when present it
// must be non-empty after trimming and at most 128 characters.
func normalizeClientMsgID(raw *string) (string, error) {
	if raw == nil {
		return "", nil
	}
	id := strings.TrimSpace(*raw)
	if id == "" || len(id) > maxClientMsgIDLen {
		return "", badRequest("client_msg_id must be non-empty and at most 128 characters")
	}
	return id, nil
}

// sendDedupKey fingerprints a SEND_MESSAGE for replay detection.
func sendDedupKey(actx auth.Context, channelID uuid.UUID, clientMsgID string) string {
	return strings.Join([]string{actx.WorkspaceID.String(), actx.UserID.String(), channelID.String(), clientMsgID}, "|")
}

// commandDedupKey fingerprints any other idempotent command.
func commandDedupKey(actx auth.Context, command, target, clientMsgID string) string {
	return strings.Join([]string{actx.WorkspaceID.String(), actx.UserID.String(), command, target, clientMsgID}, "|")
}

func (d *Dispatcher) sendMessage(ctx context.Context, actx auth.Context, payload json.RawMessage, clientMsgID string) (any, error) {
	var req struct {
		ChannelID string `json:"channel_id"`
		BodyMD    string `json:"body_md"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, badRequest("invalid SEND_MESSAGE payload")
	}
	channelID, err := uuid.Parse(req.ChannelID)
	if err != nil {
		return nil, badRequest("invalid channel_id")
	}

	if clientMsgID != "" {
		key := sendDedupKey(actx, channelID, clientMsgID)
		found, originalID, err := d.store.DedupLookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if found && originalID != nil {
			// Replay: hand back the original message id without re-applying,
			// as long as that message is still visible.
			if _, err := d.channels.GetMessage(ctx, actx.WorkspaceID, actx.UserID, actx.Role, *originalID); err == nil {
				return map[string]any{"message_id": originalID.String(), "deduped": true}, nil
			}
		}
	}

	msg, err := d.channels.PostMessage(ctx, actx.WorkspaceID, actx.UserID, actx.Role, channelID, req.BodyMD, nil)
	if err != nil {
		return nil, err
	}

	if clientMsgID != "" {
		key := sendDedupKey(actx, channelID, clientMsgID)
		if _, err := d.store.DedupMark(ctx, key, &msg.ID); err != nil {
			d.log.Warn().Err(err).Msg("record SEND_MESSAGE dedup key")
		}
	}

	d.hub.Emit(actx.WorkspaceID, NewEvent(EventMessageCreated, actx.WorkspaceID, &msg.ChannelID, optional(clientMsgID), ToMessageModel(msg)))
	d.writeAudit(ctx, actx, "MESSAGE_CREATED_WS", "message", msg.ID, map[string]any{
		"channel_id":    msg.ChannelID.String(),
		"client_msg_id": optional(clientMsgID),
	})

	return map[string]any{"message_id": msg.ID.String()}, nil
}

// dedupGate applies the presence-only dedup protocol shared by edit, delete,
// and reaction commands. It reports deduped=true when the command was already
// applied, in which case the caller sends the ACK but skips side effects.
func (d *Dispatcher) dedupGate(ctx context.Context, actx auth.Context, command, target, clientMsgID string) (deduped bool, err error) {
	if clientMsgID == "" {
		return false, nil
	}
	key := commandDedupKey(actx, command, target, clientMsgID)
	recorded, err := d.store.DedupMark(ctx, key, nil)
	if err != nil {
		return false, err
	}
	return !recorded, nil
}

func (d *Dispatcher) editMessage(ctx context.Context, actx auth.Context, payload json.RawMessage, clientMsgID string) (any, error) {
	var req struct {
		MessageID string `json:"message_id"`
		BodyMD    string `json:"body_md"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, badRequest("invalid EDIT_MESSAGE payload")
	}
	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		return nil, badRequest("invalid message_id")
	}

	deduped, err := d.dedupGate(ctx, actx, CmdEditMessage, messageID.String(), clientMsgID)
	if err != nil {
		return nil, err
	}
	if deduped {
		return map[string]any{"message_id": messageID.String(), "deduped": true}, nil
	}

	msg, err := d.channels.EditMessage(ctx, actx.WorkspaceID, actx.UserID, actx.Role, messageID, req.BodyMD)
	if err != nil {
		return nil, err
	}

	d.hub.Emit(actx.WorkspaceID, NewEvent(EventMessageUpdated, actx.WorkspaceID, &msg.ChannelID, optional(clientMsgID), ToMessageModel(msg)))
	d.writeAudit(ctx, actx, "MESSAGE_UPDATED_WS", "message", msg.ID, map[string]any{
		"channel_id":    msg.ChannelID.String(),
		"client_msg_id": optional(clientMsgID),
	})

	return map[string]any{"message_id": msg.ID.String()}, nil
}

func (d *Dispatcher) deleteMessage(ctx context.Context, actx auth.Context, payload json.RawMessage, clientMsgID string) (any, error) {
	var req struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, badRequest("invalid DELETE_MESSAGE payload")
	}
	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		return nil, badRequest("invalid message_id")
	}

	deduped, err := d.dedupGate(ctx, actx, CmdDeleteMessage, messageID.String(), clientMsgID)
	if err != nil {
		return nil, err
	}
	if deduped {
		return map[string]any{"message_id": messageID.String(), "deduped": true}, nil
	}

	// Resolve the channel before the delete tombstones the message.
	msg, err := d.channels.GetMessage(ctx, actx.WorkspaceID, actx.UserID, actx.Role, messageID)
	if err != nil {
		return nil, err
	}
	if err := d.channels.DeleteMessage(ctx, actx.WorkspaceID, actx.UserID, actx.Role, messageID); err != nil {
		return nil, err
	}

	d.hub.Emit(actx.WorkspaceID, NewEvent(EventMessageDeleted, actx.WorkspaceID, &msg.ChannelID, optional(clientMsgID), map[string]string{
		"message_id": messageID.String(),
	}))
	d.writeAudit(ctx, actx, "MESSAGE_DELETED_WS", "message", messageID, map[string]any{
		"channel_id":    msg.ChannelID.String(),
		"client_msg_id": optional(clientMsgID),
	})

	return map[string]any{"message_id": messageID.String()}, nil
}

func (d *Dispatcher) mutateReaction(ctx context.Context, actx auth.Context, payload json.RawMessage, clientMsgID, command string) (any, error) {
	var req struct {
		MessageID string `json:"message_id"`
		Emoji     string `json:"emoji"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, badRequest("invalid reaction payload")
	}
	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		return nil, badRequest("invalid message_id")
	}

	target := messageID.String() + ":" + req.Emoji
	deduped, err := d.dedupGate(ctx, actx, command, target, clientMsgID)
	if err != nil {
		return nil, err
	}
	if deduped {
		return map[string]any{"ok": true, "deduped": true}, nil
	}

	mutate := d.reactions.Add
	if command == CmdRemoveReaction {
		mutate = d.reactions.Remove
	}
	agg, err := mutate(ctx, actx.WorkspaceID, actx.UserID, actx.Role, messageID, req.Emoji)
	if err != nil {
		return nil, err
	}

	d.hub.Emit(actx.WorkspaceID, NewEvent(EventReactionUpdated, actx.WorkspaceID, &agg.ChannelID, optional(clientMsgID), ToReactionModel(agg)))
	action := "REACTION_ADDED_WS"
	if command == CmdRemoveReaction {
		action = "REACTION_REMOVED_WS"
	}
	d.writeAudit(ctx, actx, action, "message", messageID, map[string]any{
		"emoji":         agg.Emoji,
		"client_msg_id": optional(clientMsgID),
	})

	return map[string]any{"ok": true}, nil
}

func (d *Dispatcher) fetchMore(ctx context.Context, actx auth.Context, payload json.RawMessage) (any, error) {
	var req struct {
		ChannelID string `json:"channel_id"`
		Cursor    string `json:"cursor"`
		Limit     int    `json:"limit"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, badRequest("invalid FETCH_MORE payload")
	}
	channelID, err := uuid.Parse(req.ChannelID)
	if err != nil {
		return nil, badRequest("invalid channel_id")
	}

	page, err := d.channels.ListMessages(ctx, actx.WorkspaceID, actx.UserID, actx.Role, channelID, nil, req.Cursor, req.Limit)
	if err != nil {
		return nil, err
	}
	return ToPageModel(page), nil
}

func (d *Dispatcher) fetchThread(ctx context.Context, actx auth.Context, payload json.RawMessage) (any, error) {
	var req struct {
		RootID string `json:"root_id"`
		Cursor string `json:"cursor"`
		Limit  int    `json:"limit"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, badRequest("invalid FETCH_THREAD payload")
	}
	rootID, err := uuid.Parse(req.RootID)
	if err != nil {
		return nil, badRequest("invalid root_id")
	}

	summary, err := d.channels.ThreadSummary(ctx, actx.WorkspaceID, actx.UserID, actx.Role, rootID)
	if err != nil {
		return nil, err
	}
	replies, err := d.channels.ListThreadReplies(ctx, actx.WorkspaceID, actx.UserID, actx.Role, rootID, req.Cursor, req.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"summary": ToThreadSummaryModel(summary),
		"replies": ToPageModel(replies),
	}, nil
}

// writeAudit appends an audit entry for a dispatched mutation. Audit writes
// never fail the command they describe.
func (d *Dispatcher) writeAudit(ctx context.Context, actx auth.Context, action, targetType string, targetID uuid.UUID, metadata any) {
	actor := actx.UserID
	if err := d.audit.Write(ctx, actx.WorkspaceID, &actor, action, targetType, &targetID, metadata); err != nil {
		d.log.Warn().Err(err).Str("action", action).Msg("append audit entry")
	}
}

// optional returns a pointer to s, or nil when s is empty, for the
// correlation_id field.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
