package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/auditsvc"
	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/channelsvc"
	"github.com/galynx/galynx/internal/httputil"
	"github.com/galynx/galynx/internal/realtime"
)

// ChannelHandler serves channel CRUD and private-channel membership routes.
type ChannelHandler struct {
	channels *channelsvc.Service
	audit    *auditsvc.Service
	hub      *realtime.Hub
	log      zerolog.Logger
}

// NewChannelHandler creates a new channel handler.
func NewChannelHandler(channels *channelsvc.Service, audit *auditsvc.Service, hub *realtime.Hub, logger zerolog.Logger) *ChannelHandler {
	return &ChannelHandler{channels: channels, audit: audit, hub: hub, log: logger.With().Str("handler", "channel").Logger()}
}

// ListChannels handles GET /api/v1/channels.
func (h *ChannelHandler) ListChannels(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	channels, err := h.channels.ListChannels(c.Context(), actx.WorkspaceID)
	if err != nil {
		return failErr(c, err)
	}

	out := make([]realtime.ChannelModel, 0, len(channels))
	for _, ch := range channels {
		out = append(out, realtime.ToChannelModel(ch))
	}
	return httputil.Success(c, out)
}

// CreateChannel handles POST /api/v1/channels.
func (h *ChannelHandler) CreateChannel(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	var body struct {
		Name      string `json:"name"`
		IsPrivate bool   `json:"is_private"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}

	ch, err := h.channels.CreateChannel(c.Context(), actx.WorkspaceID, actx.UserID, body.Name, body.IsPrivate)
	if err != nil {
		return failErr(c, err)
	}

	h.writeAudit(c, actx, "CHANNEL_CREATED", "channel", ch.ID, map[string]any{"name": ch.Name, "is_private": ch.IsPrivate})
	h.hub.Emit(actx.WorkspaceID, realtime.NewEvent(realtime.EventChannelCreated, actx.WorkspaceID, &ch.ID, nil, realtime.ToChannelModel(ch)))

	return httputil.SuccessStatus(c, fiber.StatusCreated, realtime.ToChannelModel(ch))
}

// DeleteChannel handles DELETE /api/v1/channels/:channelID.
func (h *ChannelHandler) DeleteChannel(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	channelID, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid channel id")
	}

	if err := h.channels.DeleteChannel(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, channelID); err != nil {
		return failErr(c, err)
	}

	h.writeAudit(c, actx, "CHANNEL_DELETED", "channel", channelID, nil)
	h.hub.Emit(actx.WorkspaceID, realtime.NewEvent(realtime.EventChannelDeleted, actx.WorkspaceID, &channelID, nil, map[string]string{
		"channel_id": channelID.String(),
	}))

	return c.SendStatus(fiber.StatusNoContent)
}

// ChannelMemberModel is one row of the channel membership listing.
type ChannelMemberModel struct {
	UserID string `json:"user_id"`
}

// ListMembers handles GET /api/v1/channels/:channelID/members.
func (h *ChannelHandler) ListMembers(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	channelID, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid channel id")
	}

	members, err := h.channels.ListChannelMembers(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, channelID)
	if err != nil {
		return failErr(c, err)
	}

	out := make([]ChannelMemberModel, 0, len(members))
	for _, id := range members {
		out = append(out, ChannelMemberModel{UserID: id.String()})
	}
	return httputil.Success(c, out)
}

// AddMember handles POST /api/v1/channels/:channelID/members.
func (h *ChannelHandler) AddMember(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	channelID, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid channel id")
	}

	var body struct {
		UserID string `json:"user_id"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}
	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid user_id")
	}

	if err := h.channels.AddChannelMember(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, channelID, userID); err != nil {
		return failErr(c, err)
	}

	h.writeAudit(c, actx, "CHANNEL_MEMBER_ADDED", "channel", channelID, map[string]string{"user_id": userID.String()})
	return c.SendStatus(fiber.StatusNoContent)
}

// RemoveMember handles DELETE /api/v1/channels/:channelID/members/:userID.
func (h *ChannelHandler) RemoveMember(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	channelID, err := uuid.Parse(c.Params("channelID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid channel id")
	}
	userID, err := uuid.Parse(c.Params("userID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid user id")
	}

	if err := h.channels.RemoveChannelMember(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, channelID, userID); err != nil {
		return failErr(c, err)
	}

	h.writeAudit(c, actx, "CHANNEL_MEMBER_REMOVED", "channel", channelID, map[string]string{"user_id": userID.String()})
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChannelHandler) writeAudit(c fiber.Ctx, actx auth.Context, action, targetType string, targetID uuid.UUID, metadata any) {
	actor := actx.UserID
	if err := h.audit.Write(c.Context(), actx.WorkspaceID, &actor, action, targetType, &targetID, metadata); err != nil {
		h.log.Warn().Err(err).Str("action", action).Msg("append audit entry")
	}
}
