package handlers

import (
	"net/http"
	"testing"

	"github.com/hackdash/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowlistRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "user@example.com", types.RoleUser, "pw", true)

	rec := env.do(t, http.MethodGet, "/allowlist/", env.tokenFor(t, user), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPut, "/allowlist/someone@example.com", env.tokenFor(t, user),
		SetAllowlistStatusRequest{Status: types.AllowlistAllowed})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAllowlistSetAndList(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "admin@example.com", types.RoleAdmin, "pw", true)
	token := env.tokenFor(t, admin)

	rec := env.do(t, http.MethodGet, "/allowlist/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[AllowlistResponse](t, rec).Items)

	rec = env.do(t, http.MethodPut, "/allowlist/Member@Example.com", token,
		SetAllowlistStatusRequest{Status: types.AllowlistAllowed})
	require.Equal(t, http.StatusOK, rec.Code)

	entry := decodeBody[types.AllowlistEntry](t, rec)
	assert.Equal(t, "member@example.com", entry.Email)
	assert.Equal(t, types.AllowlistAllowed, entry.Status)
	assert.Equal(t, "admin@example.com", entry.AddedBy)

	rec = env.do(t, http.MethodGet, "/allowlist/", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeBody[AllowlistResponse](t, rec).Items
	require.Len(t, items, 1)
	assert.Equal(t, "member@example.com", items[0].Email)
}

func TestAllowlistSetStatusIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "admin@example.com", types.RoleAdmin, "pw", true)
	token := env.tokenFor(t, admin)

	body := SetAllowlistStatusRequest{Status: types.AllowlistBlocked}
	rec := env.do(t, http.MethodPut, "/allowlist/member@example.com", token, body)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeBody[types.AllowlistEntry](t, rec)

	rec = env.do(t, http.MethodPut, "/allowlist/member@example.com", token, body)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeBody[types.AllowlistEntry](t, rec)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.AddedBy, second.AddedBy)
	assert.Equal(t, first.AddedAt.Unix(), second.AddedAt.Unix())
}

func TestAllowlistRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "admin@example.com", types.RoleAdmin, "pw", true)

	rec := env.do(t, http.MethodPut, "/allowlist/member@example.com", env.tokenFor(t, admin),
		SetAllowlistStatusRequest{Status: "pending"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
