package rbac_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/propertyhub/propertyhub/internal/rbac"
)

func names(items []rbac.NavItem) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Name)
	}
	return out
}

func TestFilterNavigationPreservesOrder(t *testing.T) {
	items := []rbac.NavItem{
		{Name: "Open"},
		{Name: "AdminOnly", Roles: []rbac.Role{rbac.RoleAdmin}},
		{Name: "Shared", Roles: []rbac.Role{rbac.RoleTenant, rbac.RoleAdmin}},
		{Name: "EmptyList", Roles: []rbac.Role{}},
		{Name: "TenantOnly", Roles: []rbac.Role{rbac.RoleTenant}},
	}

	require.Equal(t, []string{"Open", "Shared", "EmptyList", "TenantOnly"}, names(rbac.FilterNavigation(items, rbac.RoleTenant)))
	require.Equal(t, []string{"Open", "AdminOnly", "Shared", "EmptyList"}, names(rbac.FilterNavigation(items, rbac.RoleAdmin)))
	require.Equal(t, []string{"Open", "EmptyList"}, names(rbac.FilterNavigation(items, rbac.RoleLandlord)))
	require.Empty(t, rbac.FilterNavigation(nil, rbac.RoleAdmin))
}

func TestNavigationPerRole(t *testing.T) {
	require.Equal(t,
		[]string{"Dashboard", "Properties", "Leases", "Maintenance", "Invoices", "Expenses", "Users", "Reports"},
		names(rbac.Navigation(rbac.RoleAdmin)))
	require.Equal(t,
		[]string{"Dashboard", "Leases", "Maintenance", "Invoices"},
		names(rbac.Navigation(rbac.RoleTenant)))
	require.Equal(t,
		[]string{"Dashboard", "Maintenance"},
		names(rbac.Navigation(rbac.RoleMaintenanceTeam)))
	require.Empty(t, rbac.Navigation("ghost"))

	for _, item := range rbac.Navigation(rbac.RoleLandlord) {
		if item.Name == "Invoices" {
			require.Equal(t, "/accounting/invoices", item.Href)
			require.Equal(t, "Property invoices", item.Description)
		}
	}
	for _, item := range rbac.Navigation(rbac.RoleTenant) {
		if item.Name == "Maintenance" {
			require.Equal(t, "/tenant/maintenance", item.Href)
		}
	}
}
