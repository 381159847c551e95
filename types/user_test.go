package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleHierarchy(t *testing.T) {
	ordered := []Role{RoleUser, RoleAdmin, RoleSuperAdmin}

	// Every role satisfies its own level and every level below it, and
	// fails every level above it.
	for i, lower := range ordered {
		for j, higher := range ordered {
			got := lower.AtLeast(higher)
			want := i >= j
			assert.Equalf(t, want, got, "%s.AtLeast(%s)", lower, higher)
		}
	}
}

func TestRoleUnknown(t *testing.T) {
	unknown := Role("owner")
	assert.False(t, unknown.Valid())
	assert.False(t, unknown.AtLeast(RoleUser))
	assert.Equal(t, 0, unknown.Rank())
}
