package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/hackdash/apiserver/internal/auth"
	"github.com/hackdash/apiserver/internal/services"
	"github.com/hackdash/apiserver/internal/store"
	"github.com/hackdash/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler provides registration, login, and identity endpoints.
// Registration and login consult the allow-list for plain user accounts;
// admin roles are provisioned out-of-band and bypass it.
type AuthHandler struct {
	userService      *services.UserService
	allowlistService *services.AllowlistService
	tokens           *auth.TokenService
	logger           *zap.Logger
}

func NewAuthHandler(
	userService *services.UserService,
	allowlistService *services.AllowlistService,
	tokens *auth.TokenService,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		userService:      userService,
		allowlistService: allowlistService,
		tokens:           tokens,
		logger:           logger,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler, gate *AccessGate) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(gate.RequireAuth).Get("/me", handler.Me)
}

// Register creates a new plain-user account and returns a session token.
// The email must carry an explicit allowed entry on the allow-list.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = services.NormalizeEmail(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Name == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}

	if err := h.allowlistService.Authorize(r.Context(), req.Email, types.RoleUser); err != nil {
		writeAuthError(w, err)
		return
	}

	if _, err := h.userService.GetByEmail(r.Context(), req.Email); err == nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to check user")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user, err := h.userService.Create(r.Context(), types.User{
		Email:        req.Email,
		Name:         req.Name,
		Role:         types.RoleUser,
		PasswordHash: string(hashed),
		IsActive:     true,
	})
	if err != nil {
		h.logger.Error("failed to create user", zap.String("email", req.Email), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login verifies credentials and returns a session token. The token
// snapshots the role at issuance; a later role change needs a new login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Email = services.NormalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.userService.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !user.IsActive {
		writeAuthError(w, auth.ErrAccountInactive)
		return
	}

	if err := h.allowlistService.Authorize(r.Context(), user.Email, user.Role); err != nil {
		writeAuthError(w, err)
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := userFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}
