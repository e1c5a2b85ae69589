package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/galynx/galynx/internal/api"
	"github.com/galynx/galynx/internal/attachmentsvc"
	"github.com/galynx/galynx/internal/auditsvc"
	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/bootstrap"
	"github.com/galynx/galynx/internal/channelsvc"
	"github.com/galynx/galynx/internal/config"
	"github.com/galynx/galynx/internal/docstore"
	"github.com/galynx/galynx/internal/httputil"
	"github.com/galynx/galynx/internal/presign"
	"github.com/galynx/galynx/internal/ratelimit"
	"github.com/galynx/galynx/internal/reactionsvc"
	"github.com/galynx/galynx/internal/realtime"
	"github.com/galynx/galynx/internal/storage"
)

// Build metadata injected via ldflags at compile time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.IsDevelopment() {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			With().Timestamp().Logger()
	}

	log.Info().
		Str("version", version).
		Str("commit", commit).
		Str("env", cfg.ServerEnv).
		Str("backend", string(cfg.PersistenceBackend)).
		Msg("Starting galynx")

	if cfg.CORSAllowOrigins == "*" {
		log.Warn().Msg("CORS_ALLOW_ORIGINS is set to a wildcard. Set an explicit origin when in production.")
	}

	ctx := context.Background()

	// Storage: the in-memory backend is always authoritative; the document-
	// store backend mirrors writes and prefers remote reads.
	var store storage.Store
	var pool *pgxpool.Pool
	switch cfg.PersistenceBackend {
	case config.BackendMongo:
		pool, err = docstore.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return fmt.Errorf("connect document store: %w", err)
		}
		defer pool.Close()
		if err := docstore.Migrate(cfg.MongoURI, log.Logger); err != nil {
			return fmt.Errorf("migrate document store: %w", err)
		}
		store = docstore.New(pool, log.Logger)
		log.Info().Msg("Document store connected")
	default:
		store = storage.NewMemory()
	}

	// Redis backs the rate limiter and the cross-instance realtime bridge.
	// Both degrade to in-process behaviour without it. WS command dedup is
	// kept in the store, not in Redis.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
		log.Info().Msg("Redis connected")
	}

	// Background workers share one cancellable context.
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()

	// Realtime hub, with the cross-instance bridge only when Redis is up.
	bus := realtime.NewBus(log.Logger)
	var bridge *realtime.Bridge
	if rdb != nil {
		bridge = realtime.NewBridge(rdb, bus, log.Logger)
		go bridge.Run(workerCtx)
	}
	hub := realtime.NewHub(bus, bridge, log.Logger)

	limiter := ratelimit.New(rdb, ratelimit.Config{
		AuthWindow:      time.Duration(cfg.RateLimitAuthWindowSeconds) * time.Second,
		AuthMax:         cfg.RateLimitAuthCount,
		WSConnectWindow: time.Duration(cfg.RateLimitWSConnectWindowSec) * time.Second,
		WSConnectMax:    cfg.RateLimitWSConnectCount,
		WSCommandWindow: time.Duration(cfg.RateLimitWSCommandWindowSec) * time.Second,
		WSCommandMax:    cfg.RateLimitWSCommandCount,
	})

	// Domain services.
	authSvc := auth.NewService(store, cfg, log.Logger)
	channelSvc := channelsvc.NewService(store)
	reactionSvc := reactionsvc.NewService(store, channelSvc)
	auditSvc := auditsvc.NewService(store)

	presigner := presign.NewLocal("https://storage.galynx.local")
	if cfg.S3Configured() {
		// The object-storage SDK is an external collaborator; committed
		// attachments still record the configured bucket/region so a real
		// presigner can be swapped in behind the same interface.
		presigner = presigner.WithLocation(cfg.S3Bucket, cfg.S3Region)
	}
	attachmentSvc := attachmentsvc.NewService(store, channelSvc, presigner)

	seed, err := bootstrap.EnsureSeed(ctx, store, authSvc, cfg, log.Logger)
	if err != nil {
		return fmt.Errorf("ensure bootstrap seed: %w", err)
	}
	log.Info().Stringer("workspace_id", seed.WorkspaceID).Msg("Bootstrap seed ready")

	dispatcher := realtime.NewDispatcher(store, channelSvc, reactionSvc, auditSvc, hub, log.Logger)

	app := fiber.New(fiber.Config{
		AppName: "galynx",
		// ErrorHandler catches errors returned by handlers that are not
		// already mapped to structured API responses (e.g. Fiber's built-in
		// 404/405).
		ErrorHandler: func(c fiber.Ctx, err error) error {
			status := fiber.StatusInternalServerError
			message := "an internal error occurred"
			code := httputil.CodeInternalError
			if e, ok := errors.AsType[*fiber.Error](err); ok {
				status = e.Code
				message = e.Message
				code = statusToCode(e.Code)
			} else {
				log.Error().Err(err).
					Str("method", c.Method()).
					Str("path", c.Path()).
					Msg("Unhandled error")
			}
			return c.Status(status).JSON(httputil.ErrorResponse{Error: code, Message: message})
		},
	})

	app.Use(requestid.New())
	app.Use(httputil.RequestLogger(log.Logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  strings.Split(cfg.CORSAllowOrigins, ","),
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"X-Request-ID"},
	}))

	api.Register(app, api.Handlers{
		Health:     &api.HealthHandler{DocStore: pool, Redis: rdb},
		Auth:       api.NewAuthHandler(authSvc, store, limiter, auditSvc, log.Logger),
		User:       api.NewUserHandler(authSvc, store, auditSvc, log.Logger),
		Workspace:  api.NewWorkspaceHandler(authSvc, store, auditSvc, log.Logger),
		Channel:    api.NewChannelHandler(channelSvc, auditSvc, hub, log.Logger),
		Message:    api.NewMessageHandler(channelSvc, auditSvc, hub, log.Logger),
		Attachment: api.NewAttachmentHandler(attachmentSvc, auditSvc, log.Logger),
		Audit:      api.NewAuditHandler(auditSvc, log.Logger),
		WS:         api.NewWSHandler(hub, dispatcher, limiter, auditSvc, log.Logger),
	}, authSvc)

	// Graceful shutdown: stop the workers, then drain the HTTP server.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		log.Info().Msg("Shutting down")
		workerCancel()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info().Str("addr", addr).Msg("Listening")
	if err := app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// statusToCode maps a bare HTTP status onto the stable error-code taxonomy.
func statusToCode(status int) httputil.Code {
	switch {
	case status == fiber.StatusTooManyRequests:
		return httputil.CodeTooManyRequests
	case status == fiber.StatusNotFound:
		return httputil.CodeNotFound
	case status == fiber.StatusUnauthorized || status == fiber.StatusForbidden:
		return httputil.CodeUnauthorized
	case status >= 400 && status < 500:
		return httputil.CodeBadRequest
	default:
		return httputil.CodeInternalError
	}
}
