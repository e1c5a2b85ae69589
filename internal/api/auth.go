package api

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/auditsvc"
	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/httputil"
	"github.com/galynx/galynx/internal/ratelimit"
	"github.com/galynx/galynx/internal/storage"
)

// AuthHandler serves login, refresh-rotation, logout, and identity routes.
type AuthHandler struct {
	svc     *auth.Service
	store   storage.Store
	limiter *ratelimit.Limiter
	audit   *auditsvc.Service
	log     zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(svc *auth.Service, store storage.Store, limiter *ratelimit.Limiter, audit *auditsvc.Service, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, store: store, limiter: limiter, audit: audit, log: logger.With().Str("handler", "auth").Logger()}
}

// TokenResponse is the body returned by login and refresh.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	AccessExpiresAt  int64  `json:"access_expires_at"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

func tokenResponse(pair auth.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(c fiber.Ctx) error {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}
	if body.Email == "" || body.Password == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "email and password are required")
	}

	if err := h.limiter.Check(c.Context(), ratelimit.ClassAuth, ratelimit.AuthKey(clientIP(c), body.Email)); err != nil {
		return failErr(c, err)
	}

	pair, err := h.svc.Login(c.Context(), body.Email, body.Password)
	if err != nil {
		return failErr(c, err)
	}

	if actx, err := h.svc.Authorize(c.Context(), pair.AccessToken); err == nil {
		actor := actx.UserID
		h.writeAudit(c, actx.WorkspaceID, &actor, "AUTH_LOGIN", "user", &actor, map[string]string{
			"email": strings.ToLower(strings.TrimSpace(body.Email)),
		})
	}

	return httputil.Success(c, tokenResponse(pair))
}

// Refresh handles POST /api/v1/auth/refresh.
func (h *AuthHandler) Refresh(c fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}
	if body.RefreshToken == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "refresh_token is required")
	}

	if err := h.limiter.Check(c.Context(), ratelimit.ClassAuth, ratelimit.AuthKey(clientIP(c), "")); err != nil {
		return failErr(c, err)
	}

	pair, err := h.svc.Refresh(c.Context(), body.RefreshToken)
	if err != nil {
		return failErr(c, err)
	}

	if actx, err := h.svc.Authorize(c.Context(), pair.AccessToken); err == nil {
		actor := actx.UserID
		h.writeAudit(c, actx.WorkspaceID, &actor, "AUTH_REFRESH", "session", nil, map[string]string{
			"reason": "token_rotation",
		})
	}

	return httputil.Success(c, tokenResponse(pair))
}

// Logout handles POST /api/v1/auth/logout. It requires both a valid access
// token (via middleware) and the refresh token to revoke in the body.
func (h *AuthHandler) Logout(c fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}
	if body.RefreshToken == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "refresh_token is required")
	}

	if err := h.svc.Logout(c.Context(), body.RefreshToken); err != nil {
		return failErr(c, err)
	}

	actx := auth.FromCtx(c)
	actor := actx.UserID
	h.writeAudit(c, actx.WorkspaceID, &actor, "AUTH_LOGOUT", "session", nil, nil)

	return c.SendStatus(fiber.StatusNoContent)
}

// MeResponse is the identity payload for GET /api/v1/me.
type MeResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
}

// Me handles GET /api/v1/me.
func (h *AuthHandler) Me(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	user, err := h.store.GetAuthUserByID(c.Context(), actx.UserID)
	if err != nil {
		return failErr(c, err)
	}

	return httputil.Success(c, MeResponse{
		UserID:      user.ID.String(),
		Email:       user.Email,
		Name:        user.Name,
		WorkspaceID: actx.WorkspaceID.String(),
		Role:        string(actx.Role),
	})
}

func (h *AuthHandler) writeAudit(c fiber.Ctx, workspaceID uuid.UUID, actorID *uuid.UUID, action, targetType string, targetID *uuid.UUID, metadata any) {
	if err := h.audit.Write(c.Context(), workspaceID, actorID, action, targetType, targetID, metadata); err != nil {
		h.log.Warn().Err(err).Str("action", action).Msg("append audit entry")
	}
}
