package auth

import (
	"testing"

	"github.com/claveora/OSIS-Integrated-Administration/osis/schema"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func userWithPermissions(perms ...schema.RolePermission) *schema.User {
	roleId := uuid.New()
	for i := range perms {
		perms[i].RoleId = roleId
	}
	return &schema.User{
		Id:     uuid.New(),
		RoleId: roleId,
		Role:   &schema.Role{Id: roleId, Name: "test", Permissions: perms},
	}
}

func TestCanPerformFailClosed(t *testing.T) {
	assert.False(t, CanPerform(nil, schema.ModuleUsers, ActionView), "nil user is denied")

	noRole := &schema.User{Id: uuid.New()}
	assert.False(t, CanPerform(noRole, schema.ModuleUsers, ActionView), "user without role is denied")

	emptyMatrix := userWithPermissions()
	for _, module := range schema.AllModules() {
		for _, action := range []Action{ActionView, ActionCreate, ActionEdit, ActionDelete} {
			assert.False(t, CanPerform(emptyMatrix, module, action), "missing row is denied")
		}
	}
}

func TestCanPerformMissingModuleRow(t *testing.T) {
	user := userWithPermissions(schema.RolePermission{
		Module: schema.ModuleUsers, CanView: true, CanCreate: true, CanEdit: true, CanDelete: true,
	})

	assert.True(t, CanPerform(user, schema.ModuleUsers, ActionView))
	assert.False(t, CanPerform(user, schema.ModuleMessages, ActionView), "other modules have no row and are denied")
}

func TestCanPerformActionsIndependent(t *testing.T) {
	user := userWithPermissions(schema.RolePermission{
		Module: schema.ModuleProkers, CanView: true, CanEdit: true,
	})

	assert.True(t, CanPerform(user, schema.ModuleProkers, ActionView))
	assert.False(t, CanPerform(user, schema.ModuleProkers, ActionCreate))
	assert.True(t, CanPerform(user, schema.ModuleProkers, ActionEdit))
	assert.False(t, CanPerform(user, schema.ModuleProkers, ActionDelete))
}

func TestCanPerformIgnoresAccountStatus(t *testing.T) {
	user := userWithPermissions(schema.RolePermission{
		Module: schema.ModuleDashboard, CanView: true,
	})
	user.Status = schema.StatusInactive

	assert.True(t, CanPerform(user, schema.ModuleDashboard, ActionView), "evaluation does not inspect account status")
}

func TestCanPerformUnknownAction(t *testing.T) {
	user := userWithPermissions(schema.RolePermission{
		Module: schema.ModuleSettings, CanView: true, CanCreate: true, CanEdit: true, CanDelete: true,
	})

	assert.False(t, CanPerform(user, schema.ModuleSettings, Action("administer")))
}

func TestParseAction(t *testing.T) {
	for _, name := range []string{"view", "create", "edit", "delete"} {
		action, err := ParseAction(name)
		assert.NoError(t, err)
		assert.Equal(t, Action(name), action)
	}

	_, err := ParseAction("View")
	assert.Error(t, err, "actions are case sensitive")
}

func TestParseModule(t *testing.T) {
	module, err := schema.ParseModule("Prokers")
	assert.NoError(t, err)
	assert.Equal(t, schema.ModuleProkers, module)

	_, err = schema.ParseModule("prokers")
	assert.Error(t, err)
}
