package api

import (
	"context"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/auditsvc"
	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/ratelimit"
	"github.com/galynx/galynx/internal/realtime"
)

// WSHandler serves the WebSocket upgrade endpoint.
type WSHandler struct {
	hub        *realtime.Hub
	dispatcher *realtime.Dispatcher
	limiter    *ratelimit.Limiter
	audit      *auditsvc.Service
	log        zerolog.Logger
}

// NewWSHandler creates a new WebSocket handler.
func NewWSHandler(hub *realtime.Hub, dispatcher *realtime.Dispatcher, limiter *ratelimit.Limiter, audit *auditsvc.Service, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:        hub,
		dispatcher: dispatcher,
		limiter:    limiter,
		audit:      audit,
		log:        logger.With().Str("handler", "ws").Logger(),
	}
}

// Upgrade handles GET /api/v1/ws. Auth has already run via middleware; the
// upgrade is additionally gated by the ws-connect rate limit keyed on
// (ip, user).
func (h *WSHandler) Upgrade(c fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	actx := auth.FromCtx(c)

	if err := h.limiter.Check(c.Context(), ratelimit.ClassWSConnect, ratelimit.WSConnectKey(clientIP(c), actx.UserID.String())); err != nil {
		return failErr(c, err)
	}
	return websocket.New(func(conn *websocket.Conn) {
		// The Fiber ctx is recycled once the connection is hijacked; the
		// session runs against a background context for its lifetime.
		session := realtime.NewSession(conn.Conn, actx, h.hub, h.dispatcher, h.limiter, h.audit, h.log)
		session.Run(context.Background())
	})(c)
}
