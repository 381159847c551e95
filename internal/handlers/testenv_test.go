package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hackdash/apiserver/internal/auth"
	"github.com/hackdash/apiserver/internal/scheduler"
	"github.com/hackdash/apiserver/internal/services"
	"github.com/hackdash/apiserver/internal/store"
	"github.com/hackdash/apiserver/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// fakeUserRepo is an in-memory services.UserRepository.
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]types.User)}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]types.User, 0, len(f.users))
	for id := 1; id <= f.nextID; id++ {
		if user, ok := f.users[id]; ok {
			all = append(all, user)
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	user.UpdatedAt = time.Now()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Deactivate(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.IsActive = false
	f.users[id] = user
	return nil
}

// fakeAllowlistRepo is an in-memory services.AllowlistRepository.
type fakeAllowlistRepo struct {
	mu      sync.Mutex
	entries map[string]types.AllowlistEntry
}

func newFakeAllowlistRepo() *fakeAllowlistRepo {
	return &fakeAllowlistRepo{entries: make(map[string]types.AllowlistEntry)}
}

func (f *fakeAllowlistRepo) GetByEmail(_ context.Context, email string) (types.AllowlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[email]
	if !ok {
		return types.AllowlistEntry{}, store.ErrNotFound
	}
	return entry, nil
}

func (f *fakeAllowlistRepo) List(_ context.Context) ([]types.AllowlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]types.AllowlistEntry, 0, len(f.entries))
	for _, entry := range f.entries {
		entries = append(entries, entry)
	}
	return entries, nil
}

func (f *fakeAllowlistRepo) SetStatus(_ context.Context, email string, status types.AllowlistStatus, addedBy string) (types.AllowlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.entries[email]
	if !ok {
		entry = types.AllowlistEntry{Email: email, AddedBy: addedBy, AddedAt: time.Now()}
	}
	entry.Status = status
	entry.UpdatedAt = time.Now()
	f.entries[email] = entry
	return entry, nil
}

// fakeHackathonRepo is an in-memory services.HackathonRepository; the
// scheduler routes share it as their store.
type fakeHackathonRepo struct {
	mu         sync.Mutex
	nextID     int
	hackathons []types.Hackathon
}

func (f *fakeHackathonRepo) GetByID(_ context.Context, id int) (types.Hackathon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.hackathons {
		if h.ID == id {
			return h, nil
		}
	}
	return types.Hackathon{}, store.ErrNotFound
}

func (f *fakeHackathonRepo) List(context.Context) ([]types.Hackathon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Hackathon, len(f.hackathons))
	copy(out, f.hackathons)
	return out, nil
}

func (f *fakeHackathonRepo) ListSchedulable(ctx context.Context) ([]types.Hackathon, error) {
	all, _ := f.List(ctx)
	out := all[:0]
	for _, h := range all {
		if h.Status.Schedulable() {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeHackathonRepo) Create(_ context.Context, h types.Hackathon) (types.Hackathon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	h.ID = f.nextID
	h.CreatedAt = time.Now()
	h.UpdatedAt = h.CreatedAt
	f.hackathons = append(f.hackathons, h)
	return h, nil
}

func (f *fakeHackathonRepo) Update(_ context.Context, h types.Hackathon) (types.Hackathon, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.hackathons {
		if f.hackathons[i].ID == h.ID {
			h.UpdatedAt = time.Now()
			f.hackathons[i] = h
			return h, nil
		}
	}
	return types.Hackathon{}, store.ErrNotFound
}

func (f *fakeHackathonRepo) AdvanceStage(_ context.Context, id int, from, to types.Stage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.hackathons {
		if f.hackathons[i].ID == id && f.hackathons[i].CurrentStage == from {
			f.hackathons[i].CurrentStage = to
			return nil
		}
	}
	return store.ErrStageConflict
}

func (f *fakeHackathonRepo) SetDeckObjectKey(_ context.Context, id int, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.hackathons {
		if f.hackathons[i].ID == id {
			f.hackathons[i].DeckObjectKey = key
			return nil
		}
	}
	return store.ErrNotFound
}

type nopDispatcher struct{}

func (nopDispatcher) Dispatch(context.Context, []types.StageTransition) types.DispatchReport {
	return types.DispatchReport{}
}

type testEnv struct {
	router     chi.Router
	users      *fakeUserRepo
	allowlist  *fakeAllowlistRepo
	hackathons *fakeHackathonRepo
	tokens     *auth.TokenService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		users:      newFakeUserRepo(),
		allowlist:  newFakeAllowlistRepo(),
		hackathons: &fakeHackathonRepo{},
		tokens:     auth.NewTokenService("test-secret", time.Hour),
	}

	logger := zap.NewNop()
	userService := services.NewUserService(env.users)
	allowlistService := services.NewAllowlistService(env.allowlist)
	hackathonService := services.NewHackathonService(env.hackathons)
	gate := NewAccessGate(env.tokens, userService, logger)
	sched := scheduler.New(env.hackathons, nopDispatcher{}, time.Hour, logger)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		AuthRouter(r, NewAuthHandler(userService, allowlistService, env.tokens, logger), gate)
	})
	r.Route("/users", func(r chi.Router) {
		UserRouter(r, NewUserHandler(userService, logger), gate)
	})
	r.Route("/allowlist", func(r chi.Router) {
		AllowlistRouter(r, NewAllowlistHandler(allowlistService, logger), gate)
	})
	r.Route("/hackathons", func(r chi.Router) {
		// No deck store configured; upload/download answer 503.
		HackathonRouter(r, NewHackathonHandler(hackathonService, nil, logger), gate)
	})
	r.Route("/scheduler", func(r chi.Router) {
		SchedulerRouter(r, NewSchedulerHandler(sched), gate)
	})
	env.router = r
	return env
}

// seedUser creates an account directly in the repository, bypassing the
// registration flow and its allow-list check.
func (env *testEnv) seedUser(t *testing.T, email string, role types.Role, password string, active bool) types.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := env.users.Create(context.Background(), types.User{
		Email:        email,
		Name:         "Test " + email,
		Role:         role,
		PasswordHash: string(hashed),
		IsActive:     active,
	})
	require.NoError(t, err)
	return user
}

func (env *testEnv) tokenFor(t *testing.T, user types.User) string {
	t.Helper()
	token, err := env.tokens.Issue(user)
	require.NoError(t, err)
	return token
}

// do performs a request against the in-memory router. A non-empty token is
// sent as a bearer credential; a nil body sends no payload.
func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "127.0.0.1:9999"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}
