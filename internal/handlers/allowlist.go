package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hackdash/apiserver/internal/services"
	"github.com/hackdash/apiserver/types"
	"go.uber.org/zap"
)

// AllowlistHandler provides admin management of the email allow-list.
type AllowlistHandler struct {
	allowlistService *services.AllowlistService
	logger           *zap.Logger
}

func NewAllowlistHandler(allowlistService *services.AllowlistService, logger *zap.Logger) *AllowlistHandler {
	return &AllowlistHandler{
		allowlistService: allowlistService,
		logger:           logger,
	}
}

// AllowlistRouter registers allow-list routes. All routes require at least
// the admin role.
func AllowlistRouter(r chi.Router, handler *AllowlistHandler, gate *AccessGate) {
	r.Use(gate.RequireAuth, gate.RequireRole(types.RoleAdmin))

	r.Get("/", handler.ListEntries)
	r.Put("/{email}", handler.SetStatus)
}

func (h *AllowlistHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.allowlistService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list allowlist")
		return
	}
	if entries == nil {
		entries = []types.AllowlistEntry{}
	}
	writeJSON(w, http.StatusOK, AllowlistResponse{Items: entries})
}

// SetStatus records the gate decision for an email. Setting a status the
// entry already carries is a no-op success, so the operation is idempotent.
func (h *AllowlistHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	email := services.NormalizeEmail(chi.URLParam(r, "email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	var req SetAllowlistStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if !req.Status.Valid() {
		writeError(w, http.StatusBadRequest, "status must be allowed or blocked")
		return
	}

	actor, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	entry, err := h.allowlistService.SetStatus(r.Context(), email, req.Status, actor.Email)
	if err != nil {
		h.logger.Error("failed to set allowlist status",
			zap.String("email", email),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update allowlist")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type AllowlistResponse struct {
	Items []types.AllowlistEntry `json:"items"`
}

type SetAllowlistStatusRequest struct {
	Status types.AllowlistStatus `json:"status"`
}
