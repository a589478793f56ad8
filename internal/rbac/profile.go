package rbac

// DashboardConfig toggles dashboard widgets and affordances for a role.
type DashboardConfig map[string]bool

// RoleProfile is the per-role configuration consulted by navigation, routing
// and upstream resource access.
type RoleProfile struct {
	Role      Role
	Home      string
	Routes    map[Resource]string
	Endpoints map[Resource]string
	Dashboard DashboardConfig
}

// DashboardPath is the safe landing page shared by every role.
const DashboardPath = "/dashboard"

var profiles = map[Role]RoleProfile{
	RoleAdmin: {
		Role: RoleAdmin,
		Home: DashboardPath,
		Routes: map[Resource]string{
			ResourceDashboard:   DashboardPath,
			ResourceProperties:  "/admin/properties",
			ResourceLeases:      "/admin/leases",
			ResourceUsers:       "/admin/users",
			ResourceMaintenance: "/admin/maintenances",
			ResourceInvoices:    "/admin/accounting/invoices",
			ResourceExpenses:    "/admin/accounting/expenses",
			ResourceReports:     "/admin/reports",
		},
		Endpoints: map[Resource]string{
			ResourceUsers:       "/admin/users",
			ResourceProperties:  "/admin/properties",
			ResourceLeases:      "/admin/leases",
			ResourceMaintenance: "/admin/maintenances",
			ResourceInvoices:    "/admin/accounting/invoices",
			ResourceExpenses:    "/admin/accounting/expenses",
			ResourceDashboard:   "/admin/dashboard/stats",
		},
		Dashboard: DashboardConfig{
			"showSystemStats":       true,
			"showAllProperties":     true,
			"showAllUsers":          true,
			"showFinancialOverview": true,
			"showSystemReports":     true,
			"allowUserManagement":   true,
			"allowSystemSettings":   true,
		},
	},
	RoleLandlord: {
		Role: RoleLandlord,
		Home: "/landlord/properties",
		Routes: map[Resource]string{
			ResourceDashboard:   DashboardPath,
			ResourceProperties:  "/landlord/properties",
			ResourceLeases:      "/landlord/leases",
			ResourceMaintenance: "/landlord/maintenance",
			ResourceInvoices:    "/accounting/invoices",
			ResourceExpenses:    "/accounting/expenses",
			ResourceTenants:     "/landlord/tenants",
		},
		Endpoints: map[Resource]string{
			ResourceProperties:  "/landlord/properties",
			ResourceLeases:      "/landlord/leases",
			ResourceMaintenance: "/landlord/maintenance",
			ResourceInvoices:    "/landlord/invoices",
			ResourceExpenses:    "/landlord/expenses",
		},
		Dashboard: DashboardConfig{
			"showPropertyStats":        true,
			"showTenantInfo":           true,
			"showFinancialTracking":    true,
			"showMaintenanceOverview":  true,
			"showPropertyReports":      true,
			"allowPropertyManagement":  true,
			"allowTenantCommunication": true,
		},
	},
	RoleTenant: {
		Role: RoleTenant,
		Home: "/tenant/leases",
		Routes: map[Resource]string{
			ResourceDashboard:   DashboardPath,
			ResourceProfile:     "/tenant/profile",
			ResourceLeases:      "/tenant/leases",
			ResourceMaintenance: "/tenant/maintenance",
			ResourceInvoices:    "/tenant/invoices",
			ResourcePayments:    "/tenant/payments",
		},
		Endpoints: map[Resource]string{
			ResourceLeases:      "/tenant/leases",
			ResourceMaintenance: "/tenant/maintenance",
			ResourceInvoices:    "/tenant/invoices",
		},
		Dashboard: DashboardConfig{
			"showPersonalInfo":           true,
			"showLeaseDetails":           true,
			"showMaintenanceRequests":    true,
			"showPaymentHistory":         true,
			"allowMaintenanceSubmission": true,
			"allowProfileUpdate":         true,
		},
	},
	RoleMaintenanceTeam: {
		Role: RoleMaintenanceTeam,
		Home: "/maintenanceTeam/maintenances",
		Routes: map[Resource]string{
			ResourceDashboard:   DashboardPath,
			ResourceMaintenance: "/maintenanceTeam/maintenances",
			ResourceReports:     "/maintenanceTeam/reports",
		},
		Endpoints: map[Resource]string{
			ResourceMaintenance: "/maintenanceTeam/maintenances",
		},
		Dashboard: DashboardConfig{
			"showMaintenanceQueue":   true,
			"showAssignedTasks":      true,
			"showCompletionStats":    true,
			"showMaintenanceReports": true,
			"allowMaintenanceUpdate": true,
			"allowTaskManagement":    true,
		},
	},
}

// Profile returns the configuration for role. Unknown roles get an empty
// profile whose maps are non-nil.
func Profile(role Role) RoleProfile {
	p, ok := profiles[role]
	if !ok {
		return RoleProfile{
			Role:      role,
			Home:      DashboardPath,
			Routes:    map[Resource]string{},
			Endpoints: map[Resource]string{},
			Dashboard: DashboardConfig{},
		}
	}
	return RoleProfile{
		Role:      p.Role,
		Home:      p.Home,
		Routes:    cloneStrings(p.Routes),
		Endpoints: cloneStrings(p.Endpoints),
		Dashboard: cloneFlags(p.Dashboard),
	}
}

// Route returns the UI path serving resource for role.
func Route(role Role, resource Resource) (string, bool) {
	path, ok := profiles[role].Routes[resource]
	return path, ok
}

// Endpoint returns the upstream collection endpoint for resource as seen by role.
func Endpoint(role Role, resource Resource) (string, bool) {
	path, ok := profiles[role].Endpoints[resource]
	return path, ok
}

func cloneStrings(in map[Resource]string) map[Resource]string {
	out := make(map[Resource]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneFlags(in DashboardConfig) DashboardConfig {
	out := make(DashboardConfig, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
