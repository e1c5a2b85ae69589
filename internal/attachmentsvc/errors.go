package attachmentsvc

import "errors"

// Sentinel errors for the attachmentsvc package.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidFilename = errors.New("filename must not be empty")
	ErrInvalidType     = errors.New("content_type must not be empty")
	ErrInvalidSize     = errors.New("size_bytes must be between 1 and 100 MiB")
	ErrUploadExpired   = errors.New("pending upload has expired")
	ErrWrongUploader   = errors.New("upload was not presigned for this user")
)
