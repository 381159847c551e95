package services

import (
	"context"
	"testing"

	"github.com/hackdash/apiserver/internal/store"
	"github.com/hackdash/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memUserRepo struct {
	nextID int
	users  map[int]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int]types.User)}
}

func (m *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	return nil, len(m.users), nil
}

func (m *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = user
	return user, nil
}

func (m *memUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	if _, ok := m.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memUserRepo) Deactivate(_ context.Context, id int) error {
	user, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.IsActive = false
	m.users[id] = user
	return nil
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@example.com", NormalizeEmail("  A@Example.COM "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestEnsureBootstrap(t *testing.T) {
	repo := newMemUserRepo()
	svc := NewUserService(repo)
	ctx := context.Background()

	require.NoError(t, svc.EnsureBootstrap(ctx, "Root@Example.com", "Root", "rootpw"))
	require.Len(t, repo.users, 1)

	seeded, err := svc.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, types.RoleSuperAdmin, seeded.Role)
	assert.True(t, seeded.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(seeded.PasswordHash), []byte("rootpw")))

	// Repeat runs are no-ops, even with a different password.
	require.NoError(t, svc.EnsureBootstrap(ctx, "root@example.com", "Root", "changed"))
	assert.Len(t, repo.users, 1)
	again, err := svc.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, seeded.PasswordHash, again.PasswordHash)
}

func TestEnsureBootstrapDisabled(t *testing.T) {
	repo := newMemUserRepo()
	svc := NewUserService(repo)
	ctx := context.Background()

	require.NoError(t, svc.EnsureBootstrap(ctx, "", "Root", "rootpw"))
	require.NoError(t, svc.EnsureBootstrap(ctx, "root@example.com", "Root", ""))
	assert.Empty(t, repo.users)
}

func TestSetPassword(t *testing.T) {
	repo := newMemUserRepo()
	svc := NewUserService(repo)
	ctx := context.Background()

	user, err := svc.Create(ctx, types.User{Email: "u@example.com", Role: types.RoleUser, IsActive: true})
	require.NoError(t, err)

	require.NoError(t, svc.SetPassword(ctx, user.ID, "fresh"))
	stored, err := svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("fresh")))

	assert.ErrorIs(t, svc.SetPassword(ctx, 999, "fresh"), store.ErrNotFound)
}
