package api

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/auditsvc"
	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/channelsvc"
	"github.com/galynx/galynx/internal/httputil"
	"github.com/galynx/galynx/internal/realtime"
)

// MessageHandler serves message and thread routes.
type MessageHandler struct {
	channels *channelsvc.Service
	audit    *auditsvc.Service
	hub      *realtime.Hub
	log      zerolog.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(channels *channelsvc.Service, audit *auditsvc.Service, hub *realtime.Hub, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{channels: channels, audit: audit, hub: hub, log: logger.With().Str("handler", "message").Logger()}
}

// ListMessages handles GET /api/v1/channels/:channelID/messages.
func (h *MessageHandler) ListMessages(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	channelID, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid channel id")
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	page, err := h.channels.ListMessages(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, channelID, nil, c.Query("cursor"), limit)
	if err != nil {
		return failErr(c, err)
	}
	return httputil.Success(c, realtime.ToPageModel(page))
}

// CreateMessage handles POST /api/v1/channels/:channelID/messages.
func (h *MessageHandler) CreateMessage(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	channelID, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid channel id")
	}

	var body struct {
		BodyMD string `json:"body_md"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}

	msg, err := h.channels.PostMessage(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, channelID, body.BodyMD, nil)
	if err != nil {
		return failErr(c, err)
	}

	h.writeAudit(c, actx, "MESSAGE_CREATED", "message", msg.ID, map[string]string{"channel_id": channelID.String()})
	h.hub.Emit(actx.WorkspaceID, realtime.NewEvent(realtime.EventMessageCreated, actx.WorkspaceID, &msg.ChannelID, nil, realtime.ToMessageModel(msg)))

	return httputil.SuccessStatus(c, fiber.StatusCreated, realtime.ToMessageModel(msg))
}

// EditMessage handles PATCH /api/v1/messages/:messageID.
func (h *MessageHandler) EditMessage(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	messageID, err := uuid.Parse(c.Params("messageID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid message id")
	}

	var body struct {
		BodyMD string `json:"body_md"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}

	msg, err := h.channels.EditMessage(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, messageID, body.BodyMD)
	if err != nil {
		return failErr(c, err)
	}

	h.writeAudit(c, actx, "MESSAGE_UPDATED", "message", msg.ID, nil)
	h.hub.Emit(actx.WorkspaceID, realtime.NewEvent(realtime.EventMessageUpdated, actx.WorkspaceID, &msg.ChannelID, nil, realtime.ToMessageModel(msg)))

	return httputil.Success(c, realtime.ToMessageModel(msg))
}

// DeleteMessage handles DELETE /api/v1/messages/:messageID.
func (h *MessageHandler) DeleteMessage(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	messageID, err := uuid.Parse(c.Params("messageID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid message id")
	}

	// Resolve the channel before the delete tombstones the message.
	msg, err := h.channels.GetMessage(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, messageID)
	if err != nil {
		return failErr(c, err)
	}
	if err := h.channels.DeleteMessage(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, messageID); err != nil {
		return failErr(c, err)
	}

	h.writeAudit(c, actx, "MESSAGE_DELETED", "message", messageID, nil)
	h.hub.Emit(actx.WorkspaceID, realtime.NewEvent(realtime.EventMessageDeleted, actx.WorkspaceID, &msg.ChannelID, nil, map[string]string{
		"message_id": messageID.String(),
		"channel_id": msg.ChannelID.String(),
	}))

	return c.SendStatus(fiber.StatusNoContent)
}

// GetThread handles GET /api/v1/threads/:rootID.
func (h *MessageHandler) GetThread(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	rootID, err := uuid.Parse(c.Params("rootID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid thread root id")
	}

	summary, err := h.channels.ThreadSummary(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, rootID)
	if err != nil {
		return failErr(c, err)
	}
	return httputil.Success(c, realtime.ToThreadSummaryModel(summary))
}

// ListReplies handles GET /api/v1/threads/:rootID/replies.
func (h *MessageHandler) ListReplies(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	rootID, err := uuid.Parse(c.Params("rootID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid thread root id")
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	page, err := h.channels.ListThreadReplies(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, rootID, c.Query("cursor"), limit)
	if err != nil {
		return failErr(c, err)
	}
	return httputil.Success(c, realtime.ToPageModel(page))
}

// CreateReply handles POST /api/v1/threads/:rootID/replies.
func (h *MessageHandler) CreateReply(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	rootID, err := uuid.Parse(c.Params("rootID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid thread root id")
	}

	var body struct {
		BodyMD string `json:"body_md"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}

	// Replies inherit the channel of their root. A missing root, or a root
	// that is itself a reply, is rejected here as not found.
	root, err := h.channels.GetMessage(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, rootID)
	if err != nil {
		return failErr(c, err)
	}
	if root.ThreadRootID != nil {
		return failErr(c, channelsvc.ErrNotFound)
	}

	msg, err := h.channels.PostMessage(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, root.ChannelID, body.BodyMD, &rootID)
	if err != nil {
		return failErr(c, err)
	}

	h.writeAudit(c, actx, "THREAD_REPLY_CREATED", "message", msg.ID, map[string]string{
		"root_id":    rootID.String(),
		"channel_id": msg.ChannelID.String(),
	})

	if summary, err := h.channels.ThreadSummary(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, rootID); err == nil {
		h.hub.Emit(actx.WorkspaceID, realtime.NewEvent(realtime.EventThreadUpdated, actx.WorkspaceID, &msg.ChannelID, nil, realtime.ToThreadSummaryModel(summary)))
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, realtime.ToMessageModel(msg))
}

func (h *MessageHandler) writeAudit(c fiber.Ctx, actx auth.Context, action, targetType string, targetID uuid.UUID, metadata any) {
	actor := actx.UserID
	if err := h.audit.Write(c.Context(), actx.WorkspaceID, &actor, action, targetType, &targetID, metadata); err != nil {
		h.log.Warn().Err(err).Str("action", action).Msg("append audit entry")
	}
}
