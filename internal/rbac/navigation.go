package rbac

// NavItem is a single sidebar entry.
type NavItem struct {
	Name        string   `json:"name"`
	Href        string   `json:"href"`
	Resource    Resource `json:"resource"`
	Roles       []Role   `json:"roles,omitempty"`
	Description string   `json:"description,omitempty"`
}

type navEntry struct {
	name         string
	resource     Resource
	roles        []Role
	descriptions map[Role]string
}

var sidebar = []navEntry{
	{name: "Dashboard", resource: ResourceDashboard, descriptions: map[Role]string{
		RoleAdmin: "Overview and analytics", RoleLandlord: "Overview and analytics",
		RoleTenant: "Overview and analytics", RoleMaintenanceTeam: "Overview and analytics",
	}},
	{name: "Properties", resource: ResourceProperties, roles: []Role{RoleAdmin, RoleLandlord}, descriptions: map[Role]string{
		RoleAdmin: "All properties management", RoleLandlord: "Your properties",
	}},
	{name: "Leases", resource: ResourceLeases, roles: []Role{RoleAdmin, RoleLandlord, RoleTenant}, descriptions: map[Role]string{
		RoleAdmin: "All lease agreements", RoleLandlord: "Your lease agreements", RoleTenant: "Your lease information",
	}},
	{name: "Maintenance", resource: ResourceMaintenance, descriptions: map[Role]string{
		RoleAdmin: "All maintenance requests", RoleLandlord: "Property maintenance",
		RoleTenant: "Submit & view requests", RoleMaintenanceTeam: "Assigned requests",
	}},
	{name: "Invoices", resource: ResourceInvoices, roles: []Role{RoleAdmin, RoleLandlord, RoleTenant}, descriptions: map[Role]string{
		RoleAdmin: "All invoices", RoleLandlord: "Property invoices", RoleTenant: "Your invoices",
	}},
	{name: "Expenses", resource: ResourceExpenses, roles: []Role{RoleAdmin, RoleLandlord}, descriptions: map[Role]string{
		RoleAdmin: "All expenses", RoleLandlord: "Property expenses",
	}},
	{name: "Users", resource: ResourceUsers, roles: []Role{RoleAdmin}, descriptions: map[Role]string{
		RoleAdmin: "User management",
	}},
	{name: "Reports", resource: ResourceReports, roles: []Role{RoleAdmin}, descriptions: map[Role]string{
		RoleAdmin: "System-wide reports",
	}},
}

// FilterNavigation keeps the items whose role list is empty or contains role,
// preserving their relative order.
func FilterNavigation(items []NavItem, role Role) []NavItem {
	out := make([]NavItem, 0, len(items))
	for _, item := range items {
		if len(item.Roles) > 0 && !HasAnyRole(role, item.Roles...) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Navigation builds the sidebar for role with role-specific links.
func Navigation(role Role) []NavItem {
	if !IsValidRole(role) {
		return []NavItem{}
	}
	items := make([]NavItem, 0, len(sidebar))
	for _, entry := range sidebar {
		href, ok := Route(role, entry.resource)
		if !ok {
			href = DashboardPath
		}
		roles := entry.roles
		if len(roles) == 0 {
			roles = Roles()
		}
		items = append(items, NavItem{
			Name:        entry.name,
			Href:        href,
			Resource:    entry.resource,
			Roles:       append([]Role(nil), roles...),
			Description: entry.descriptions[role],
		})
	}
	return FilterNavigation(items, role)
}
