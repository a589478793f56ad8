package view

import "github.com/propertyhub/propertyhub/internal/shared"

// ResourcePage is the model of a role-scoped collection page.
type ResourcePage struct {
	Heading    string
	Resource   string
	Columns    []string
	Rows       []Row
	Pagination shared.Pagination
	Error      string
}

// Row is one record of a ResourcePage.
type Row struct {
	ID    string
	Cells []string
}

// LoginPage is the model of the sign-in form.
type LoginPage struct {
	Login  string
	Next   string
	Error  string
	Errors map[string]string
}

// RoleOption is a selectable role on the registration form.
type RoleOption struct {
	Value string
	Label string
}

// RegisterForm echoes submitted registration fields.
type RegisterForm struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Role      string
}

// RegisterPage is the model of the registration form.
type RegisterPage struct {
	Form   RegisterForm
	Roles  []RoleOption
	Error  string
	Errors map[string]string
}

// DashboardPage is the model of the dashboard.
type DashboardPage struct {
	Config     map[string]bool
	Stats      []byte
	StatsError string
}
