package auth

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"github.com/galynx/galynx/internal/httputil"
)

const localsContextKey = "authContext"

// RequireAuth returns Fiber middleware that extracts and validates a bearer
// access token, re-reads live membership, and stores the resulting Context
// under c.Locals(localsContextKey) for handlers to retrieve with FromCtx.
func RequireAuth(svc *Service) fiber.Handler {
	return func(c fiber.Ctx) error {
		header := c.Get("Authorization")
		const prefix = "Bearer "
		if header == "" || len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, "missing or malformed authorization header")
		}

		authCtx, err := svc.Authorize(c.Context(), header[len(prefix):])
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, "invalid or expired token")
			}
			return httputil.Fail(c, fiber.StatusInternalServerError, httputil.CodeInternalError, "failed to authorize request")
		}

		c.Locals(localsContextKey, authCtx)
		return c.Next()
	}
}

// FromCtx retrieves the Context stored by RequireAuth. It panics if called
// from a route not protected by RequireAuth; it indicates a programmer error.
func FromCtx(c fiber.Ctx) Context {
	return c.Locals(localsContextKey).(Context)
}

// RequireAdminOrOwner returns middleware that, after RequireAuth has run,
// rejects callers whose resolved role is not owner or admin.
func RequireAdminOrOwner() fiber.Handler {
	return func(c fiber.Ctx) error {
		authCtx := FromCtx(c)
		if authCtx.Role != "owner" && authCtx.Role != "admin" {
			return httputil.Fail(c, fiber.StatusUnauthorized, httputil.CodeUnauthorized, "owner or admin role required")
		}
		return c.Next()
	}
}
