package storage

import "errors"

// Sentinel errors returned by Store implementations. Services translate these
// into the taxonomy described in the error-handling design; storage itself
// stays backend-agnostic.
var (
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrConflict      = errors.New("concurrent modification conflict")
	ErrBadCursor     = errors.New("malformed cursor")
)
