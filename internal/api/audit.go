package api

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/auditsvc"
	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/httputil"
	"github.com/galynx/galynx/internal/storage"
)

// AuditHandler serves the owner/admin-only audit listing.
type AuditHandler struct {
	audit *auditsvc.Service
	log   zerolog.Logger
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(audit *auditsvc.Service, logger zerolog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, log: logger.With().Str("handler", "audit").Logger()}
}

// AuditEntryModel is the wire form of an audit entry.
type AuditEntryModel struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	ActorID     *string         `json:"actor_id,omitempty"`
	Action      string          `json:"action"`
	TargetType  string          `json:"target_type"`
	TargetID    *string         `json:"target_id,omitempty"`
	Metadata    json.RawMessage `json:"metadata"`
	CreatedAt   int64           `json:"created_at"`
}

func toAuditEntryModel(e storage.AuditEntry) AuditEntryModel {
	out := AuditEntryModel{
		ID:          e.ID.String(),
		WorkspaceID: e.WorkspaceID.String(),
		Action:      e.Action,
		TargetType:  e.TargetType,
		Metadata:    e.Metadata,
		CreatedAt:   e.CreatedAt,
	}
	if e.ActorID != nil {
		s := e.ActorID.String()
		out.ActorID = &s
	}
	if e.TargetID != nil {
		s := e.TargetID.String()
		out.TargetID = &s
	}
	if len(out.Metadata) == 0 {
		out.Metadata = json.RawMessage("{}")
	}
	return out
}

// List handles GET /api/v1/audit.
func (h *AuditHandler) List(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	limit, _ := strconv.Atoi(c.Query("limit"))
	page, err := h.audit.List(c.Context(), actx.WorkspaceID, actx.Role, c.Query("cursor"), limit)
	if err != nil {
		return failErr(c, err)
	}

	items := make([]AuditEntryModel, 0, len(page.Items))
	for _, e := range page.Items {
		items = append(items, toAuditEntryModel(e))
	}
	return httputil.Success(c, fiber.Map{
		"items":       items,
		"next_cursor": page.NextCursor,
	})
}
