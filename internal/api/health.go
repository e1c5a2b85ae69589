// Package api wires the HTTP and WebSocket edge: thin adapters mapping
// requests onto the domain services, emitting audit entries and realtime
// events on every mutation.
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/galynx/galynx/internal/httputil"
)

// HealthHandler serves the liveness and readiness endpoints. DocStore and
// Redis are both optional: a memory-only deployment has neither configured
// and is always ready.
type HealthHandler struct {
	DocStore *pgxpool.Pool
	Redis    *redis.Client
}

// Health answers GET /health unconditionally: the process is alive.
func (h *HealthHandler) Health(c fiber.Ctx) error {
	return httputil.Success(c, fiber.Map{"status": "ok"})
}

// Ready answers GET /ready: it additionally pings any configured backing
// stores so orchestrators can gate traffic on real dependency health.
func (h *HealthHandler) Ready(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	status := "ready"
	code := fiber.StatusOK

	if h.DocStore != nil {
		if err := h.DocStore.Ping(ctx); err != nil {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
	}

	return c.Status(code).JSON(fiber.Map{"status": status})
}
