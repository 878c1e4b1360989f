package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	reads := []Operation{OpRead, OpList, OpSearch}
	writes := []Operation{OpCreate, OpUpdate, OpDelete, OpReindex}
	roles := []Role{RoleAnonymous, RoleMember, RoleAdmin}

	for _, role := range roles {
		for _, op := range reads {
			assert.NoError(t, Authorize(role, op), "%s should be able to %s", role, op)
		}
	}

	for _, op := range writes {
		assert.ErrorIs(t, Authorize(RoleAnonymous, op), ErrNotAuthorized)
		assert.ErrorIs(t, Authorize(RoleMember, op), ErrNotAuthorized)
		assert.NoError(t, Authorize(RoleAdmin, op))
	}
}

func TestAuthorizeUnknownOperation(t *testing.T) {
	assert.ErrorIs(t, Authorize(RoleAdmin, Operation("export")), ErrNotAuthorized)
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleMember, ParseRole("member"))
	assert.Equal(t, RoleAnonymous, ParseRole("anonymous"))
	assert.Equal(t, RoleAnonymous, ParseRole(""))
	assert.Equal(t, RoleAnonymous, ParseRole("superuser"))
}
