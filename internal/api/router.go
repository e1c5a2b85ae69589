package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/galynx/galynx/internal/auth"
)

// Handlers groups the route handlers the router wires up.
type Handlers struct {
	Health     *HealthHandler
	Auth       *AuthHandler
	User       *UserHandler
	Workspace  *WorkspaceHandler
	Channel    *ChannelHandler
	Message    *MessageHandler
	Attachment *AttachmentHandler
	Audit      *AuditHandler
	WS         *WSHandler
}

// Register mounts every route under /api/v1. authSvc backs the bearer-token
// middleware; role checks sit per-route so workspace members can read public
// surfaces while channel administration stays owner/admin-only.
func Register(app *fiber.App, h Handlers, authSvc *auth.Service) {
	requireAuth := auth.RequireAuth(authSvc)
	requireAdmin := auth.RequireAdminOrOwner()

	v1 := app.Group("/api/v1")

	v1.Get("/health", h.Health.Health)
	v1.Get("/ready", h.Health.Ready)

	authGroup := v1.Group("/auth")
	authGroup.Post("/login", h.Auth.Login)
	authGroup.Post("/refresh", h.Auth.Refresh)
	authGroup.Post("/logout", requireAuth, h.Auth.Logout)

	v1.Get("/me", requireAuth, h.Auth.Me)

	users := v1.Group("/users", requireAuth, requireAdmin)
	users.Get("/", h.User.ListUsers)
	users.Post("/", h.User.CreateUser)

	workspaces := v1.Group("/workspaces", requireAuth)
	workspaces.Get("/", h.Workspace.ListWorkspaces)
	workspaces.Post("/", h.Workspace.CreateWorkspace)
	workspaces.Get("/:workspaceID/members", requireAdmin, h.Workspace.ListMembers)
	workspaces.Post("/:workspaceID/members", requireAdmin, h.Workspace.OnboardMember)

	channels := v1.Group("/channels", requireAuth)
	channels.Get("/", h.Channel.ListChannels)
	channels.Post("/", requireAdmin, h.Channel.CreateChannel)
	channels.Delete("/:channelID", requireAdmin, h.Channel.DeleteChannel)
	channels.Get("/:channelID/members", requireAdmin, h.Channel.ListMembers)
	channels.Post("/:channelID/members", requireAdmin, h.Channel.AddMember)
	channels.Delete("/:channelID/members/:userID", requireAdmin, h.Channel.RemoveMember)
	channels.Get("/:channelID/messages", h.Message.ListMessages)
	channels.Post("/:channelID/messages", h.Message.CreateMessage)

	messages := v1.Group("/messages", requireAuth)
	messages.Patch("/:messageID", h.Message.EditMessage)
	messages.Delete("/:messageID", h.Message.DeleteMessage)

	threads := v1.Group("/threads", requireAuth)
	threads.Get("/:rootID", h.Message.GetThread)
	threads.Get("/:rootID/replies", h.Message.ListReplies)
	threads.Post("/:rootID/replies", h.Message.CreateReply)

	attachments := v1.Group("/attachments", requireAuth)
	attachments.Post("/presign", h.Attachment.Presign)
	attachments.Post("/commit", h.Attachment.Commit)
	attachments.Get("/:attachmentID", h.Attachment.Get)

	v1.Get("/audit", requireAuth, h.Audit.List)

	v1.Get("/ws", requireAuth, h.WS.Upgrade)
}
