package httputil

// Code is a stable machine-readable error identifier returned alongside every
// non-2xx JSON response.
type Code string

const (
	CodeUnauthorized    Code = "unauthorized"
	CodeBadRequest      Code = "bad_request"
	CodeTooManyRequests Code = "too_many_requests"
	CodeNotFound        Code = "not_found"
	CodeInternalError   Code = "internal_error"
)
