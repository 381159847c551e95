package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hackdash/apiserver/internal/auth"
	"github.com/hackdash/apiserver/internal/services"
	"github.com/hackdash/apiserver/internal/store"
	"github.com/hackdash/apiserver/types"
	"go.uber.org/zap"
)

// AccessGate authenticates requests and enforces the role hierarchy.
// Per request it moves Unauthenticated -> Authenticated -> Authorized or
// rejects with 401/403.
type AccessGate struct {
	tokens      *auth.TokenService
	userService *services.UserService
	logger      *zap.Logger
}

func NewAccessGate(tokens *auth.TokenService, userService *services.UserService, logger *zap.Logger) *AccessGate {
	return &AccessGate{
		tokens:      tokens,
		userService: userService,
		logger:      logger,
	}
}

// RequireAuth verifies the bearer token and re-resolves the account from
// storage, so a deactivation after issuance rejects the request even
// though the token still verifies. The resolved user is injected into the
// request context.
func (g *AccessGate) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeAuthError(w, auth.ErrTokenMissing)
			return
		}

		claims, err := g.tokens.Verify(tokenString)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		user, err := g.userService.GetByID(r.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeAuthError(w, auth.ErrAccountInactive)
				return
			}
			g.logger.Error("failed to resolve authenticated user",
				zap.Int("user_id", claims.UserID),
				zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
			return
		}
		if !user.IsActive {
			writeAuthError(w, auth.ErrAccountInactive)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// RequireRole rejects accounts ranking below min in the role hierarchy.
// Must run after RequireAuth.
func (g *AccessGate) RequireRole(min types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := userFromContext(r.Context())
			if err != nil {
				writeAuthError(w, auth.ErrTokenMissing)
				return
			}
			if !user.Role.AtLeast(min) {
				writeAuthError(w, auth.ErrInsufficientRole)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
