package auth

import "errors"

// Sentinel errors for the auth package. Handlers at the API edge map every
// one of these to 401 Unauthorized without differentiating further, per the
// "single undifferentiated error" requirement for credential failures.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrRefreshTokenReused = errors.New("refresh token reuse detected")
	ErrNoMembership       = errors.New("user has no workspace membership")
)
