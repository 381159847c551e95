package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hackdash/apiserver/internal/services"
	"github.com/hackdash/apiserver/internal/store"
	"github.com/hackdash/apiserver/types"
	"go.uber.org/zap"
)

// UserHandler provides admin user-management endpoints.
type UserHandler struct {
	userService *services.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// UserRouter registers user-management routes. All routes require at least
// the admin role.
func UserRouter(r chi.Router, handler *UserHandler, gate *AccessGate) {
	r.Use(gate.RequireAuth, gate.RequireRole(types.RoleAdmin))

	r.Get("/", handler.ListUsers)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", handler.GetUser)
		r.Patch("/", handler.UpdateUser)
		r.Delete("/", handler.DeactivateUser)
		r.Post("/password", handler.ResetPassword)
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, total, err := h.userService.List(r.Context(), offset, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	writeJSON(w, http.StatusOK, UserListResponse{
		Items: users,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUser changes role, name, or active flag. A role change does not
// touch issued tokens: outstanding tokens keep the role they were issued
// with until expiry.
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.userService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	if req.Role != nil {
		if !req.Role.Valid() {
			writeError(w, http.StatusBadRequest, "invalid role")
			return
		}
		// Only a super admin may grant or revoke admin roles.
		actor, err := userFromContext(r.Context())
		if err != nil || (!actor.Role.AtLeast(types.RoleSuperAdmin) && *req.Role != user.Role) {
			writeError(w, http.StatusForbidden, "super admin access required to change roles")
			return
		}
		user.Role = *req.Role
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}

	updated, err := h.userService.Update(r.Context(), user)
	if err != nil {
		h.logger.Error("failed to update user", zap.Int("user_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeactivateUser soft-deletes the account. Records referenced by hackathon
// participant or leader entries stay resolvable.
func (h *UserHandler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to deactivate user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetPassword sets a new password for an arbitrary account (admin
// operation; self-service reset flows are not part of this server).
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	if err := h.userService.SetPassword(r.Context(), id, req.Password); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to reset password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseUserID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil || id < 1 {
		return 0, errors.New("invalid user id")
	}
	return id, nil
}

type UserListResponse struct {
	Items []types.User `json:"items"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
	Total int          `json:"total"`
}

type UpdateUserRequest struct {
	Role     *types.Role `json:"role"`
	Name     *string     `json:"name"`
	IsActive *bool       `json:"is_active"`
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}
