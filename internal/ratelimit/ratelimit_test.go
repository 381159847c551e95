package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseRules(t *testing.T) {
	rules, err := ParseRules("/auth=10:60, /=120:60")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, Rule{Prefix: "/auth", MaxRequests: 10, Window: time.Minute}, rules[0])
	assert.Equal(t, Rule{Prefix: "/", MaxRequests: 120, Window: time.Minute}, rules[1])

	rules, err = ParseRules("")
	require.NoError(t, err)
	assert.Empty(t, rules)

	for _, raw := range []string{
		"auth=10:60",  // no leading slash
		"/auth=10",    // no window
		"/auth=0:60",  // zero budget
		"/auth=10:0",  // zero window
		"/auth=ten:60",
	} {
		_, err := ParseRules(raw)
		assert.Errorf(t, err, "ParseRules(%q)", raw)
	}
}

func TestMatchLongestPrefixWins(t *testing.T) {
	limiter := New([]Rule{
		{Prefix: "/", MaxRequests: 120, Window: time.Minute},
		{Prefix: "/auth", MaxRequests: 10, Window: time.Minute},
		{Prefix: "/auth/login", MaxRequests: 3, Window: time.Minute},
	}, NewMemoryStore())

	tests := []struct {
		path string
		want string
	}{
		{"/auth/login", "/auth/login"},
		{"/auth/login/extra", "/auth/login"},
		{"/auth/register", "/auth"},
		{"/auth", "/auth"},
		{"/authx", "/"}, // prefix match is segment-aware
		{"/hackathons/1", "/"},
	}
	for _, tt := range tests {
		rule, ok := limiter.Match(tt.path)
		require.True(t, ok, tt.path)
		assert.Equal(t, tt.want, rule.Prefix, tt.path)
	}
}

func TestAllowUnmatchedPathIsUnlimited(t *testing.T) {
	limiter := New([]Rule{{Prefix: "/auth", MaxRequests: 1, Window: time.Minute}}, NewMemoryStore())

	for i := 0; i < 50; i++ {
		allowed, _, err := limiter.Allow(context.Background(), "1.2.3.4", "/healthz")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestMemoryStoreSlidingWindow(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return current }

	limiter := New([]Rule{{Prefix: "/auth", MaxRequests: 5, Window: time.Minute}}, store)

	allow := func() bool {
		allowed, _, err := limiter.Allow(context.Background(), "1.2.3.4", "/auth/login")
		require.NoError(t, err)
		return allowed
	}

	for i := 0; i < 5; i++ {
		assert.True(t, allow(), "request %d within budget", i+1)
	}
	assert.False(t, allow(), "sixth request in the window")

	// Rejected requests don't consume budget, so the window is still full.
	current = current.Add(30 * time.Second)
	assert.False(t, allow())

	// Once the first five requests age out, the budget frees up.
	current = current.Add(31 * time.Second)
	assert.True(t, allow())
}

func TestMemoryStorePerClientAndPerPrefix(t *testing.T) {
	store := NewMemoryStore()
	limiter := New([]Rule{
		{Prefix: "/auth", MaxRequests: 1, Window: time.Minute},
		{Prefix: "/", MaxRequests: 10, Window: time.Minute},
	}, store)

	allowed, _, err := limiter.Allow(context.Background(), "1.2.3.4", "/auth/login")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, _, _ = limiter.Allow(context.Background(), "1.2.3.4", "/auth/login")
	assert.False(t, allowed, "same client, same prefix")

	allowed, _, _ = limiter.Allow(context.Background(), "5.6.7.8", "/auth/login")
	assert.True(t, allowed, "different client has its own budget")

	allowed, _, _ = limiter.Allow(context.Background(), "1.2.3.4", "/hackathons")
	assert.True(t, allowed, "different prefix counts separately")
}

// Keys for clients that stop sending must not accumulate forever; the
// periodic sweep drops a key once its whole window has aged out.
func TestMemoryStoreDropsIdleKeys(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return current }

	for _, key := range []string{"1.1.1.1|/auth", "2.2.2.2|/auth", "3.3.3.3|/"} {
		ok, err := store.Allow(context.Background(), key, 5, time.Minute)
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.Len(t, store.buckets, 3)

	// Past every window and the sweep interval, the next request from any
	// client clears the idle keys.
	current = current.Add(2 * time.Minute)
	ok, err := store.Allow(context.Background(), "4.4.4.4|/auth", 5, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, store.buckets, 1)

	// A key still inside its window survives the sweep.
	current = current.Add(30 * time.Second)
	ok, err = store.Allow(context.Background(), "5.5.5.5|/auth", 5, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	current = current.Add(40 * time.Second)
	ok, err = store.Allow(context.Background(), "5.5.5.5|/auth", 5, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	if _, live := store.buckets["5.5.5.5|/auth"]; !live {
		t.Fatalf("expected active key to survive the sweep")
	}
}

func TestMemoryStoreConcurrentBurst(t *testing.T) {
	store := NewMemoryStore()

	const budget = 10
	const attempts = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.Allow(context.Background(), "burst", budget, time.Minute)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, budget, admitted)
}

func TestMiddleware(t *testing.T) {
	limiter := New([]Rule{{Prefix: "/auth", MaxRequests: 2, Window: time.Minute}}, NewMemoryStore())

	var served int
	handler := Middleware(limiter, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remoteAddr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = remoteAddr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("1.2.3.4:1111").Code)
	assert.Equal(t, http.StatusOK, do("1.2.3.4:2222").Code) // port is ignored

	rec := do("1.2.3.4:3333")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")

	// Another client is unaffected.
	assert.Equal(t, http.StatusOK, do("9.9.9.9:1111").Code)
	assert.Equal(t, 3, served)
}

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("store unavailable")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	limiter := New([]Rule{{Prefix: "/", MaxRequests: 1, Window: time.Minute}}, failingStore{})

	handler := Middleware(limiter, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/hackathons", nil)
		req.RemoteAddr = "1.2.3.4:1111"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
