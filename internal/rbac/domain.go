package rbac

// Role is the identity tag that scopes every permission decision.
type Role string

// Resource names a domain category subject to permission checks.
type Resource string

// Action names an operation checked against a resource.
type Action string

// Roles known to the dashboard.
const (
	RoleAdmin           Role = "admin"
	RoleLandlord        Role = "landlord"
	RoleTenant          Role = "tenant"
	RoleMaintenanceTeam Role = "maintenanceTeam"
)

// Resources referenced by the permission table.
const (
	ResourceUsers       Resource = "users"
	ResourceProperties  Resource = "properties"
	ResourceLeases      Resource = "leases"
	ResourceMaintenance Resource = "maintenance"
	ResourceInvoices    Resource = "invoices"
	ResourceExpenses    Resource = "expenses"
	ResourceReports     Resource = "reports"
	ResourceDashboard   Resource = "dashboard"
	ResourceSettings    Resource = "settings"
	ResourceSystem      Resource = "system"
	ResourceTenants     Resource = "tenants"
	ResourceFinancial   Resource = "financial"
	ResourceProfile     Resource = "profile"
	ResourcePayments    Resource = "payments"
	ResourcePersonal    Resource = "personal"
	ResourceTasks       Resource = "tasks"
)

// Actions referenced by the permission table.
const (
	ActionCreate          Action = "create"
	ActionRead            Action = "read"
	ActionUpdate          Action = "update"
	ActionDelete          Action = "delete"
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionExport          Action = "export"
	ActionCommunicate     Action = "communicate"
	ActionTrack           Action = "track"
	ActionManage          Action = "manage"
	ActionSystemWide      Action = "system-wide"
	ActionLandlordView    Action = "landlord-view"
	ActionTenantView      Action = "tenant-view"
	ActionMaintenanceView Action = "maintenance-view"
)

// Principal describes the authenticated actor as seen by the access guard.
type Principal interface {
	GetRole() Role
}

// Permission is a resource-action pair.
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}
