package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// Middleware rejects requests over budget with 429 before they reach
// authentication. The client key is the remote IP (chi's RealIP middleware
// runs first, so RemoteAddr reflects X-Forwarded-For when trusted). A
// counter store failure fails open: limiting is protection, not a
// correctness gate.
func Middleware(limiter *Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, rule, err := limiter.Allow(r.Context(), clientKey(r), r.URL.Path)
			if err != nil {
				logger.Warn("rate limit store unavailable, failing open",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				// Advisory only; the server enforces nothing beyond the window.
				w.Header().Set("Retry-After", strconv.Itoa(int(rule.Window.Seconds())))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
