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

// minPasswordLength is the minimum accepted password length for users
// created through the API.
const minPasswordLength = 8

// UserHandler serves workspace user administration routes.
type UserHandler struct {
	svc   *auth.Service
	store storage.Store
	audit *auditsvc.Service
	log   zerolog.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc *auth.Service, store storage.Store, audit *auditsvc.Service, logger zerolog.Logger) *UserHandler {
	return &UserHandler{svc: svc, store: store, audit: audit, log: logger.With().Str("handler", "user").Logger()}
}

// UserModel is the wire form of a workspace user.
type UserModel struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	WorkspaceID string `json:"workspace_id"`
	Role        string `json:"role"`
}

// ListUsers handles GET /api/v1/users: every user with a membership in the
// caller's workspace, sorted by email.
func (h *UserHandler) ListUsers(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	memberships, err := h.store.ListWorkspaceMemberships(c.Context(), actx.WorkspaceID)
	if err != nil {
		return failErr(c, err)
	}

	out := make([]UserModel, 0, len(memberships))
	for _, m := range memberships {
		user, err := h.store.GetAuthUserByID(c.Context(), m.UserID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return failErr(c, err)
		}
		out = append(out, UserModel{
			ID:          user.ID.String(),
			Email:       user.Email,
			Name:        user.Name,
			WorkspaceID: actx.WorkspaceID.String(),
			Role:        string(m.Role),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Email != out[j].Email {
			return out[i].Email < out[j].Email
		}
		return out[i].ID < out[j].ID
	})
	return httputil.Success(c, out)
}

// CreateUser handles POST /api/v1/users: creates an account and a membership
// in the caller's workspace. Owner users cannot be created through the API.
func (h *UserHandler) CreateUser(c fiber.Ctx) error {
	actx := auth.FromCtx(c)

	var body struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "invalid request body")
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	name := strings.TrimSpace(body.Name)
	password := strings.TrimSpace(body.Password)

	if email == "" || name == "" || password == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "email, name and password are required")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "password must have at least 8 characters")
	}
	role, err := parseRole(body.Role)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "role must be one of admin, member")
	}
	if role == storage.RoleOwner {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "cannot create owner users via api")
	}

	if _, err := h.store.GetAuthUserByEmail(c.Context(), email); err == nil {
		return httputil.Fail(c, fiber.StatusBadRequest, httputil.CodeBadRequest, "email already exists")
	} else if !errors.Is(err, storage.ErrNotFound) {
		return failErr(c, err)
	}

	hash, err := h.svc.HashPasswordDefault(password)
	if err != nil {
		return failErr(c, err)
	}

	user := storage.AuthUser{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := h.store.PutAuthUser(c.Context(), user); err != nil {
		return failErr(c, err)
	}
	if err := h.store.PutMembership(c.Context(), storage.Membership{
		WorkspaceID: actx.WorkspaceID,
		UserID:      user.ID,
		Role:        role,
	}); err != nil {
		return failErr(c, err)
	}

	actor := actx.UserID
	if err := h.audit.Write(c.Context(), actx.WorkspaceID, &actor, "USER_CREATED", "user", &user.ID, map[string]string{
		"email": email,
		"role":  string(role),
	}); err != nil {
		h.log.Warn().Err(err).Msg("append USER_CREATED audit entry")
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, UserModel{
		ID:          user.ID.String(),
		Email:       email,
		Name:        name,
		WorkspaceID: actx.WorkspaceID.String(),
		Role:        string(role),
	})
}

// parseRole maps a wire role string onto a storage role.
func parseRole(raw string) (storage.Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "owner":
		return storage.RoleOwner, nil
	case "admin":
		return storage.RoleAdmin, nil
	case "member":
		return storage.RoleMember, nil
	default:
		return "", errors.New("invalid role")
	}
}
