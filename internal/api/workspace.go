package api

import (
	"errors"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/galynx/galynx/internal/auditsvc"
	"github.com/galynx/galynx/internal/auth"
	"github.com/galynx/galynx/internal/httputil"
	"github.com/galynx/galynx/internal/storage"
)

// WorkspaceHandler serves workspace listing/creation and workspace-level
// member onboarding.
type WorkspaceHandler struct {
	svc   *auth.Service
	store storage.Store
	audit *auditsvc.Service
	log   zerolog.Logger
}

// NewWorkspaceHandler creates a new workspace handler.
func NewWorkspaceHandler(svc *auth.Service, store storage.Store, audit *auditsvc.Service, logger zerolog.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{svc: svc, store: store, audit: audit, log: logger.With().Str("handler", "workspace").Logger()}
}

// WorkspaceModel is the wire form of a workspace as seen by one member.
type WorkspaceModel struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	CreatedBy string `json:"created_by"`
	CreatedAt int64  `json:"created_at"`
}

// WorkspaceMemberModel is one row of the workspace membership listing.
type WorkspaceMemberModel struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// ListWorkspaces handles GET /api/v1/workspaces: every workspace the caller
// belongs to, with the caller's role in each.
func (h *WorkspaceHandler) ListWorkspaces(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	memberships, err := h.store.ListUserMemberships(c.Context(), actx.UserID)
	if err != nil {
		return failErr(c, err)
	}

	out := make([]WorkspaceModel, 0, len(memberships))
	for _, m := range memberships {
		ws, err := h.store.GetWorkspace(c.Context(), m.WorkspaceID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return failErr(c, err)
		}
		out = append(out, WorkspaceModel{
			ID:        ws.ID.String(),
			Name:      ws.Name,
			Role:      string(m.Role),
			CreatedBy: ws.CreatedBy.String(),
			CreatedAt: ws.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return httputil.Success(c, out)
}

// CreateWorkspace handles POST /api/v1/workspaces: creates a workspace with
// the caller as its owner.
func (h *WorkspaceHandler) CreateWorkspace(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	var body struct {
		Name string `json:"name"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "workspace name is required")
	}

	ws := storage.Workspace{
		ID:        uuid.New(),
		Name:      name,
		CreatedBy: actx.UserID,
		CreatedAt: storage.NowMillis(),
	}
	if err := h.store.CreateWorkspace(c.Context(), ws); err != nil {
		return failErr(c, err)
	}
	if err := h.store.PutMembership(c.Context(), storage.Membership{
		WorkspaceID: ws.ID,
		UserID:      actx.UserID,
		Role:        storage.RoleOwner,
	}); err != nil {
		return failErr(c, err)
	}

	actor := actx.UserID
	if err := h.audit.Write(c.Context(), ws.ID, &actor, "WORKSPACE_CREATED", "workspace", &ws.ID, map[string]string{
		"name": name,
	}); err != nil {
		h.log.Warn().Err(err).Msg("append WORKSPACE_CREATED audit entry")
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, WorkspaceModel{
		ID:        ws.ID.String(),
		Name:      name,
		Role:      string(storage.RoleOwner),
		CreatedBy: actx.UserID.String(),
		CreatedAt: ws.CreatedAt,
	})
}

// ListMembers handles GET /api/v1/workspaces/:workspaceID/members.
func (h *WorkspaceHandler) ListMembers(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	workspaceID, err := h.resolveWorkspace(c, actx)
	if err != nil {
		return failErr(c, err)
	}

	memberships, err := h.store.ListWorkspaceMemberships(c.Context(), workspaceID)
	if err != nil {
		return failErr(c, err)
	}

	out := make([]WorkspaceMemberModel, 0, len(memberships))
	for _, m := range memberships {
		user, err := h.store.GetAuthUserByID(c.Context(), m.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return failErr(c, err)
		}
		out = append(out, WorkspaceMemberModel{
			UserID: user.ID.String(),
			Email:  user.Email,
			Name:   user.Name,
			Role:   string(m.Role),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Email != out[j].Email {
			return out[i].Email < out[j].Email
		}
		return out[i].UserID < out[j].UserID
	})
	return httputil.Success(c, out)
}

// OnboardMember handles POST /api/v1/workspaces/:workspaceID/members: grants
// a membership to an existing account by email, or creates the account when
// name and password are supplied. Owner roles cannot be granted here.
func (h *WorkspaceHandler) OnboardMember(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	workspaceID, err := h.resolveWorkspace(c, actx)
	if err != nil {
		return failErr(c, err)
	}

	var body struct {
		Email    string  `json:"email"`
		Name     *string `json:"name"`
		Password *string `json:"password"`
		Role     string  `json:"role"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}

	role, err := parseRole(body.Role)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "role must be one of admin, member")
	}
	if role == storage.RoleOwner {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "cannot onboard owner users via api")
	}
	email := strings.ToLower(strings.TrimSpace(body.Email))
	if email == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "email is required")
	}

	user, err := h.store.GetAuthUserByEmail(c.Context(), email)
	switch {
	case err == nil:
		// Existing account: just grant the membership below.
	case errors.Is(err, storage.ErrNotFound):
		name := ""
		if body.Name != nil {
			name = strings.TrimSpace(*body.Name)
		}
		password := ""
		if body.Password != nil {
			password = strings.TrimSpace(*body.Password)
		}
		if name == "" || password == "" {
			return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "name and password are required for new users")
		}
		if utf8.RuneCountInString(password) < minPasswordLength {
			return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "password must have at least 8 characters")
		}

		hash, hashErr := h.svc.HashPasswordDefault(password)
		if hashErr != nil {
			return failErr(c, hashErr)
		}
		user = storage.AuthUser{
			ID:           uuid.New(),
			Email:        email,
			Name:         name,
			PasswordHash: hash,
		}
		if err := h.store.PutAuthUser(c.Context(), user); err != nil {
			return failErr(c, err)
		}
	default:
		return failErr(c, err)
	}

	if err := h.store.PutMembership(c.Context(), storage.Membership{
		WorkspaceID: workspaceID,
		UserID:      user.ID,
		Role:        role,
	}); err != nil {
		return failErr(c, err)
	}

	actor := actx.UserID
	if err := h.audit.Write(c.Context(), workspaceID, &actor, "WORKSPACE_MEMBER_ONBOARDED", "user", &user.ID, map[string]string{
		"email": email,
		"role":  string(role),
	}); err != nil {
		h.log.Warn().Err(err).Msg("append WORKSPACE_MEMBER_ONBOARDED audit entry")
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, WorkspaceMemberModel{
		UserID: user.ID.String(),
		Email:  user.Email,
		Name:   user.Name,
		Role:   string(role),
	})
}

// resolveWorkspace parses the path workspace id and checks it is the
// caller's token workspace and exists. Member administration is scoped to
// the workspace the caller authenticated against.
func (h *WorkspaceHandler) resolveWorkspace(c fiber.Ctx, actx auth.Context) (uuid.UUID, error) {
	workspaceID, err := uuid.Parse(c.Params("workspaceID"))
	if err != nil {
		return uuid.Nil, errInvalidID
	}
	if workspaceID != actx.WorkspaceID {
		return uuid.Nil, errWorkspaceMismatch
	}
	if _, err := h.store.GetWorkspace(c.Context(), workspaceID); err != nil {
		return uuid.Nil, err
	}
	return workspaceID, nil
}
