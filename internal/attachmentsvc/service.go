// Package attachmentsvc implements the two-phase presigned-upload lifecycle:
// presign a storage key and upload URL, then commit the upload into an
// immutable Attachment record once the client has finished the transfer.
package attachmentsvc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/galynx/galynx/internal/channelsvc"
	"github.com/galynx/galynx/internal/presign"
	"github.com/galynx/galynx/internal/storage"
)

const (
	maxSizeBytes = 100 * 1024 * 1024 // 100 MiB
	uploadTTL    = 900 * time.Second
	downloadTTL  = 600 * time.Second
)

// imageContentTypes mirrors the reduced-scope dimension-probing set: formats
// the standard library's image package can decode without extra modules.
var imageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// Service implements presign/commit/download for attachments.
type Service struct {
	store     storage.Store
	channel   *channelsvc.Service
	presigner presign.Presigner
}

// NewService constructs a Service. presigner is never nil: callers pass
// presign.NewLocal(baseURL) when no object-storage presigner is configured.
func NewService(store storage.Store, channel *channelsvc.Service, presigner presign.Presigner) *Service {
	return &Service{store: store, channel: channel, presigner: presigner}
}

// PresignResult is returned by Presign.
type PresignResult struct {
	UploadID  uuid.UUID
	UploadURL string
	Bucket    string
	Key       string
	ExpiresAt int64
}

// Presign validates the requested upload and returns an upload URL plus a
// fresh upload_id that must be passed to Commit once the transfer finishes.
func (s *Service) Presign(ctx context.Context, workspaceID, callerID uuid.UUID, role storage.Role, channelID uuid.UUID, filename, contentType string, sizeBytes int64) (PresignResult, error) {
	if _, err := s.channel.GetChannel(ctx, workspaceID, callerID, role, channelID); err != nil {
		return PresignResult{}, translateChannelErr(err)
	}

	filename = strings.TrimSpace(filename)
	if filename == "" {
		return PresignResult{}, ErrInvalidFilename
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return PresignResult{}, ErrInvalidType
	}
	if sizeBytes <= 0 || sizeBytes > maxSizeBytes {
		return PresignResult{}, ErrInvalidSize
	}

	uploadID := uuid.Must(uuid.NewV7())
	key := storageKey(workspaceID, channelID, uploadID, filename)

	url, err := s.presigner.PresignUpload(key, contentType, uploadTTL)
	if err != nil {
		return PresignResult{}, fmt.Errorf("presign upload: %w", err)
	}

	now := storage.NowMillis()
	expiresAt := now + uploadTTL.Milliseconds()

	pending := storage.PendingUpload{
		UploadID:    uploadID,
		WorkspaceID: workspaceID,
		ChannelID:   channelID,
		UploaderID:  callerID,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		StorageKey:  key,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
	}
	if err := s.store.PutPendingUpload(ctx, pending); err != nil {
		return PresignResult{}, err
	}

	bucket, _ := s.presigner.Location()
	return PresignResult{UploadID: uploadID, UploadURL: url, Bucket: bucket, Key: key, ExpiresAt: expiresAt}, nil
}

// Commit finalizes a previously presigned upload, taking it (single
// consumer) from the pending set and creating an immutable Attachment.
// messageID, when non-nil, back-references the message the attachment was
// posted with. body, when non-nil, is the uploaded bytes; when the content
// type is one of the formats this service can decode, its dimensions are
// probed best-effort and recorded. A nil body (the common case once the
// client uploads directly to object storage) simply skips dimension probing.
func (s *Service) Commit(ctx context.Context, workspaceID, callerID, uploadID uuid.UUID, messageID *uuid.UUID, body []byte) (storage.Attachment, error) {
	pending, err := s.store.TakePendingUpload(ctx, uploadID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Attachment{}, ErrNotFound
		}
		return storage.Attachment{}, err
	}

	if pending.WorkspaceID != workspaceID {
		return storage.Attachment{}, ErrNotFound
	}
	if pending.UploaderID != callerID {
		return storage.Attachment{}, ErrWrongUploader
	}
	if storage.NowMillis() > pending.ExpiresAt {
		return storage.Attachment{}, ErrUploadExpired
	}

	var width, height *int
	if len(body) > 0 && imageContentTypes[pending.ContentType] {
		if w, h, ok := probeDimensions(body); ok {
			width, height = &w, &h
		}
	}

	bucket, region := s.presigner.Location()
	att := storage.Attachment{
		ID:          uuid.Must(uuid.NewV7()),
		WorkspaceID: pending.WorkspaceID,
		ChannelID:   pending.ChannelID,
		MessageID:   messageID,
		UploaderID:  pending.UploaderID,
		Filename:    pending.Filename,
		ContentType: pending.ContentType,
		SizeBytes:   pending.SizeBytes,
		Bucket:      bucket,
		Key:         pending.StorageKey,
		Region:      region,
		Width:       width,
		Height:      height,
		CreatedAt:   pending.CreatedAt,
	}
	if err := s.store.PutAttachment(ctx, att); err != nil {
		return storage.Attachment{}, err
	}
	return att, nil
}

// Get resolves a workspace-isolated Attachment along with a time-limited GET
// URL for its object and the URL's expiry.
func (s *Service) Get(ctx context.Context, workspaceID uuid.UUID, attachmentID uuid.UUID) (storage.Attachment, string, int64, error) {
	att, err := s.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Attachment{}, "", 0, ErrNotFound
		}
		return storage.Attachment{}, "", 0, err
	}
	if att.WorkspaceID != workspaceID {
		return storage.Attachment{}, "", 0, ErrNotFound
	}
	url, err := s.presigner.PresignDownload(att.Key, downloadTTL)
	if err != nil {
		return storage.Attachment{}, "", 0, fmt.Errorf("presign download: %w", err)
	}
	return att, url, storage.NowMillis() + downloadTTL.Milliseconds(), nil
}

// Download resolves a workspace-isolated Attachment and returns a time-
// limited GET URL.
func (s *Service) Download(ctx context.Context, workspaceID uuid.UUID, attachmentID uuid.UUID) (string, error) {
	_, url, _, err := s.Get(ctx, workspaceID, attachmentID)
	return url, err
}

// probeDimensions decodes raw as an image and returns its bounds. It is
// best-effort: callers treat a false ok as "skip, don't fail the commit."
func probeDimensions(raw []byte) (width, height int, ok bool) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return 0, 0, false
	}
	bounds := imaging.Clone(img).Bounds()
	return bounds.Dx(), bounds.Dy(), true
}

// storageKey builds the path-like storage key for an upload, sanitizing the
// filename so it cannot escape its prefix or inject path separators.
func storageKey(workspaceID, channelID, uploadID uuid.UUID, filename string) string {
	return fmt.Sprintf("workspace/%s/channel/%s/uploads/%s-%s", workspaceID, channelID, uploadID, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func translateChannelErr(err error) error {
	if errors.Is(err, channelsvc.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
