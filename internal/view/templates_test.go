package view

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propertyhub/propertyhub/internal/credential"
	"github.com/propertyhub/propertyhub/internal/rbac"
)

type switchable struct {
	identity *credential.Identity
}

func (s *switchable) Identity() (credential.Identity, bool) {
	if s.identity == nil {
		return credential.Identity{}, false
	}
	return *s.identity, true
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestGateFollowsIdentity(t *testing.T) {
	src := &switchable{}
	gate := NewGate(src)
	assert.False(t, gate.Can("users", "delete"))
	assert.False(t, gate.Authenticated())

	src.identity = &credential.Identity{Role: rbac.RoleAdmin}
	assert.True(t, gate.Can("users", "delete"))
	assert.True(t, gate.HasRole("admin"))
	assert.True(t, gate.HasAnyRole("tenant", "admin"))
	assert.Equal(t, []string{"update", "delete"}, gate.Actions("users", "update", "delete", "approve"))

	src.identity = &credential.Identity{Role: rbac.RoleTenant}
	assert.False(t, gate.Can("properties", "read"))
	assert.False(t, gate.CanAccess("properties"))
	assert.Empty(t, gate.Actions("users", "update", "delete"))

	src.identity = nil
	assert.False(t, gate.HasAnyRole("tenant"))
	assert.Empty(t, (*Gate)(nil).Role())
}

func TestResourcePageRendersActionsByRole(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	page := func(role rbac.Role) string {
		rec := httptest.NewRecorder()
		err := engine.Render(rec, "pages/resource.html", TemplateData{
			Title:       "Users",
			CurrentPath: "/admin/users",
			Identity:    &credential.Identity{Role: role},
			Gate:        NewGate(&switchable{identity: &credential.Identity{Role: role}}),
			Data: ResourcePage{
				Heading:  "Users",
				Resource: "users",
				Columns:  []string{"ID", "Username"},
				Rows:     []Row{{ID: "7", Cells: []string{"7", "jdoe"}}},
			},
		})
		require.NoError(t, err)
		return rec.Body.String()
	}

	assert.Contains(t, page(rbac.RoleAdmin), `action="/admin/users/7/delete"`)
	assert.NotContains(t, page(rbac.RoleLandlord), "/delete")
}
