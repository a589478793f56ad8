package rbac

import "fmt"

// table is the static role → resource → actions mapping. It is never mutated
// after package initialisation.
var table = map[Role]map[Resource][]Action{
	RoleAdmin: {
		ResourceUsers:       crud(),
		ResourceProperties:  crud(),
		ResourceLeases:      crud(),
		ResourceMaintenance: crud(),
		ResourceInvoices:    crud(),
		ResourceExpenses:    crud(),
		ResourceReports:     {ActionRead, ActionExport, ActionSystemWide},
		ResourceDashboard:   {ActionRead, ActionSystemWide},
		ResourceSettings:    {ActionRead, ActionUpdate},
		ResourceSystem:      {ActionRead, ActionUpdate, ActionManage},
	},
	RoleLandlord: {
		ResourceProperties:  {ActionRead, ActionUpdate},
		ResourceLeases:      {ActionCreate, ActionRead, ActionUpdate},
		ResourceMaintenance: {ActionRead, ActionUpdate},
		ResourceInvoices:    {ActionCreate, ActionRead, ActionUpdate},
		ResourceExpenses:    {ActionCreate, ActionRead, ActionUpdate},
		ResourceReports:     {ActionRead},
		ResourceDashboard:   {ActionRead, ActionLandlordView},
		ResourceTenants:     {ActionRead, ActionCommunicate},
		ResourceFinancial:   {ActionRead, ActionTrack},
	},
	RoleTenant: {
		ResourceProfile:     {ActionRead, ActionUpdate},
		ResourceLeases:      {ActionRead},
		ResourceMaintenance: {ActionCreate, ActionRead},
		ResourceInvoices:    {ActionRead},
		ResourceDashboard:   {ActionRead, ActionTenantView},
		ResourcePayments:    {ActionRead},
		ResourcePersonal:    {ActionRead, ActionUpdate},
	},
	RoleMaintenanceTeam: {
		ResourceMaintenance: {ActionRead, ActionUpdate},
		ResourceProperties:  {ActionRead},
		ResourceDashboard:   {ActionRead, ActionMaintenanceView},
		ResourceReports:     {ActionRead},
		ResourceTasks:       {ActionRead, ActionUpdate},
	},
}

// index mirrors table as sets for constant-time lookups.
var index = buildIndex(table)

func crud() []Action {
	return []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
}

func buildIndex(src map[Role]map[Resource][]Action) map[Role]map[Resource]map[Action]struct{} {
	out := make(map[Role]map[Resource]map[Action]struct{}, len(src))
	for role, resources := range src {
		byResource := make(map[Resource]map[Action]struct{}, len(resources))
		for resource, actions := range resources {
			if len(actions) == 0 {
				panic(fmt.Sprintf("rbac: empty action set for %s/%s", role, resource))
			}
			set := make(map[Action]struct{}, len(actions))
			for _, action := range actions {
				set[action] = struct{}{}
			}
			byResource[resource] = set
		}
		out[role] = byResource
	}
	return out
}

// Grants lists every permission held by role, ordered as declared per resource.
func Grants(role Role) map[Resource][]Action {
	resources, ok := table[role]
	if !ok {
		return map[Resource][]Action{}
	}
	out := make(map[Resource][]Action, len(resources))
	for resource, actions := range resources {
		out[resource] = append([]Action(nil), actions...)
	}
	return out
}
