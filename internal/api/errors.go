package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/galynx/galynx/internal/attachmentsvc"
	"github.com/galynx/galynx/internal/auditsvc"
	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/channelsvc"
	"github.com/galynx/galynx/internal/httputil"
	"github.com/galynx/galynx/internal/ratelimit"
	"github.com/galynx/galynx/internal/reactionsvc"
	"github.com/galynx/galynx/internal/storage"
)

// errInvalidID marks a malformed id path parameter; errWorkspaceMismatch a
// path workspace that is not the caller's token workspace.
var (
	errInvalidID         = errors.New("invalid id")
	errWorkspaceMismatch = errors.New("token workspace does not match requested workspace")
)

// failErr maps a service error onto the HTTP error taxonomy and writes the
// JSON error body. Credential failures all collapse to the same 401 so the
// client can never distinguish a wrong password from a missing account.
func failErr(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrRefreshTokenReused),
		errors.Is(err, auth.ErrNoMembership):
		return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, "invalid or expired token")

	case errors.Is(err, channelsvc.ErrUnauthorized),
		errors.Is(err, channelsvc.ErrNotSender),
		errors.Is(err, auditsvc.ErrUnauthorized),
		errors.Is(err, errWorkspaceMismatch),
		errors.Is(err, attachmentsvc.ErrWrongUploader):
		return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, err.Error())

	case errors.Is(err, channelsvc.ErrNotFound),
		errors.Is(err, attachmentsvc.ErrNotFound),
		errors.Is(err, storage.ErrNotFound):
		return httputil.Fail(c, fiber.StatusNotFound, httputil.CodeNotFound, "not found")

	case errors.Is(err, channelsvc.ErrInvalidName),
		errors.Is(err, channelsvc.ErrNameTaken),
		errors.Is(err, channelsvc.ErrEmptyBody),
		errors.Is(err, channelsvc.ErrReplyOfReply),
		errors.Is(err, channelsvc.ErrNotInWorkspace),
		errors.Is(err, reactionsvc.ErrInvalidEmoji),
		errors.Is(err, attachmentsvc.ErrInvalidFilename),
		errors.Is(err, attachmentsvc.ErrInvalidType),
		errors.Is(err, attachmentsvc.ErrInvalidSize),
		errors.Is(err, attachmentsvc.ErrUploadExpired),
		errors.Is(err, errInvalidID),
		errors.Is(err, storage.ErrBadCursor):
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, err.Error())

	case errors.Is(err, ratelimit.ErrTooManyRequests):
		return httputil.Fail(c, fiber.StatusTooManyRequests, httputil.CodeTooManyRequests, "rate limit exceeded")

	default:
		return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "an internal error occurred")
	}
}

// clientIP derives the caller's address from proxy headers, falling back to
// "unknown" for direct connections with no forwarding metadata.
func clientIP(c fiber.Ctx) string {
	return ratelimit.ClientIP(c.Get("X-Forwarded-For"), c.Get("X-Real-IP"), c.Get("Forwarded"))
}
