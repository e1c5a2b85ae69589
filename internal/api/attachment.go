package api

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/attachmentsvc"
	"github.com/galynx/galynx/internal/auditsvc"
	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/httputil"
	"github.com/galynx/galynx/internal/storage"
)

// AttachmentHandler serves the presign/commit/download attachment routes.
type AttachmentHandler struct {
	attachments *attachmentsvc.Service
	audit       *auditsvc.Service
	log         zerolog.Logger
}

// NewAttachmentHandler creates a new attachment handler.
func NewAttachmentHandler(attachments *attachmentsvc.Service, audit *auditsvc.Service, logger zerolog.Logger) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, audit: audit, log: logger.With().Str("handler", "attachment").Logger()}
}

// PresignResponse is the body returned by Presign.
type PresignResponse struct {
	UploadID  string `json:"upload_id"`
	UploadURL string `json:"upload_url"`
	Bucket    string `json:"bucket"`
	Key       string `json:"key"`
	ExpiresAt int64  `json:"expires_at"`
}

// AttachmentModel is the wire form of a committed attachment.
type AttachmentModel struct {
	ID            string  `json:"id"`
	WorkspaceID   string  `json:"workspace_id"`
	ChannelID     string  `json:"channel_id"`
	MessageID     *string `json:"message_id,omitempty"`
	UploaderID    string  `json:"uploader_id"`
	Filename      string  `json:"filename"`
	ContentType   string  `json:"content_type"`
	SizeBytes     int64   `json:"size_bytes"`
	StorageBucket string  `json:"storage_bucket"`
	StorageKey    string  `json:"storage_key"`
	StorageRegion string  `json:"storage_region"`
	Width         *int    `json:"width,omitempty"`
	Height        *int    `json:"height,omitempty"`
	CreatedAt     int64   `json:"created_at"`
}

func toAttachmentModel(a storage.Attachment) AttachmentModel {
	out := AttachmentModel{
		ID:            a.ID.String(),
		WorkspaceID:   a.WorkspaceID.String(),
		ChannelID:     a.ChannelID.String(),
		UploaderID:    a.UploaderID.String(),
		Filename:      a.Filename,
		ContentType:   a.ContentType,
		SizeBytes:     a.SizeBytes,
		StorageBucket: a.Bucket,
		StorageKey:    a.Key,
		StorageRegion: a.Region,
		Width:         a.Width,
		Height:        a.Height,
		CreatedAt:     a.CreatedAt,
	}
	if a.MessageID != nil {
		s := a.MessageID.String()
		out.MessageID = &s
	}
	return out
}

// Presign handles POST /api/v1/attachments/presign.
func (h *AttachmentHandler) Presign(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	var body struct {
		ChannelID   string `json:"channel_id"`
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
		SizeBytes   int64  `json:"size_bytes"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}
	channelID, err := uuid.Parse(body.ChannelID)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid channel_id")
	}

	res, err := h.attachments.Presign(c.Context(), actx.WorkspaceID, actx.UserID, actx.Role, channelID, body.Filename, body.ContentType, body.SizeBytes)
	if err != nil {
		return failErr(c, err)
	}

	h.writeAudit(c, actx, "ATTACHMENT_PRESIGN", "upload", res.UploadID, map[string]string{"filename": body.Filename, "key": res.Key})

	return httputil.Success(c, PresignResponse{
		UploadID:  res.UploadID.String(),
		UploadURL: res.UploadURL,
		Bucket:    res.Bucket,
		Key:       res.Key,
		ExpiresAt: res.ExpiresAt,
	})
}

// Commit handles POST /api/v1/attachments/commit.
func (h *AttachmentHandler) Commit(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	var body struct {
		UploadID  string  `json:"upload_id"`
		MessageID *string `json:"message_id"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}
	uploadID, err := uuid.Parse(body.UploadID)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid upload_id")
	}
	var messageID *uuid.UUID
	if body.MessageID != nil {
		id, err := uuid.Parse(*body.MessageID)
		if err != nil {
			return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid message_id")
		}
		messageID = &id
	}

	att, err := h.attachments.Commit(c.Context(), actx.WorkspaceID, actx.UserID, uploadID, messageID, nil)
	if err != nil {
		return failErr(c, err)
	}

	h.writeAudit(c, actx, "ATTACHMENT_COMMIT", "attachment", att.ID, map[string]string{"key": att.Key})

	return httputil.Success(c, toAttachmentModel(att))
}

// Get handles GET /api/v1/attachments/:attachmentID, returning the metadata
// plus a time-limited download URL.
func (h *AttachmentHandler) Get(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	attachmentID, err := uuid.Parse(c.Params("attachmentID"))
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid attachment id")
	}

	att, url, expiresAt, err := h.attachments.Get(c.Context(), actx.WorkspaceID, attachmentID)
	if err != nil {
		return failErr(c, err)
	}

	return httputil.Success(c, fiber.Map{
		"attachment":   toAttachmentModel(att),
		"download_url": url,
		"expires_at":   expiresAt,
	})
}

func (h *AttachmentHandler) writeAudit(c fiber.Ctx, actx auth.Context, action, targetType string, targetID uuid.UUID, metadata any) {
	actor := actx.UserID
	if err := h.audit.Write(c.Context(), actx.WorkspaceID, &actor, action, targetType, &targetID, metadata); err != nil {
		h.log.Warn().Err(err).Str("action", action).Msg("append audit entry")
	}
}
