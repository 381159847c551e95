package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/hackdash/apiserver/internal/auth"
	"github.com/hackdash/apiserver/types"
)

type contextKey string

const contextUserKey contextKey = "user"

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

func userFromContext(ctx context.Context) (types.User, error) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok || user.ID < 1 {
		return types.User{}, errors.New("missing authenticated user")
	}
	return user, nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeAuthError maps the authentication/authorization taxonomy onto HTTP
// statuses with distinct messages per error kind. Anything outside the
// taxonomy is a server error.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrTokenMissing):
		writeError(w, http.StatusUnauthorized, "authentication token missing")
	case errors.Is(err, auth.ErrTokenMalformed):
		writeError(w, http.StatusUnauthorized, "authentication token malformed")
	case errors.Is(err, auth.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "authentication token expired")
	case errors.Is(err, auth.ErrAccountInactive):
		writeError(w, http.StatusUnauthorized, "account is inactive")
	case errors.Is(err, auth.ErrInsufficientRole):
		writeError(w, http.StatusForbidden, "insufficient role")
	case errors.Is(err, auth.ErrEmailNotAllowed):
		writeError(w, http.StatusForbidden, "email is not allow-listed, ask an admin for access")
	case errors.Is(err, auth.ErrEmailBlocked):
		writeError(w, http.StatusForbidden, "email is blocked")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxLimit {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}
	return page, limit, (page - 1) * limit, nil
}

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)
