package auth

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/propertyhub/propertyhub/internal/rbac"
	"github.com/propertyhub/propertyhub/internal/session"
	"github.com/propertyhub/propertyhub/internal/view"
)

type loginForm struct {
	Login    string `validate:"required,max=254"`
	Password string `validate:"required"`
}

// request sends an email when the login looks like one, a username otherwise.
func (f loginForm) request() session.LoginRequest {
	if strings.Contains(f.Login, "@") {
		return session.LoginRequest{Email: f.Login, Password: f.Password}
	}
	return session.LoginRequest{Username: f.Login, Password: f.Password}
}

type registerForm struct {
	Username  string `validate:"required,min=3,max=50,alphanum"`
	Email     string `validate:"required,email"`
	Password  string `validate:"required,min=8,max=72"`
	FirstName string `validate:"max=100"`
	LastName  string `validate:"max=100"`
	Phone     string `validate:"omitempty,max=20"`
	Role      string `validate:"required,oneof=tenant landlord maintenanceTeam"`
}

func (f registerForm) request() session.RegisterRequest {
	return session.RegisterRequest{
		Username:  f.Username,
		Email:     f.Email,
		Password:  f.Password,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Phone:     f.Phone,
		Role:      rbac.Role(f.Role),
	}
}

func (f registerForm) echo() view.RegisterForm {
	return view.RegisterForm{
		Username:  f.Username,
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Phone:     f.Phone,
		Role:      f.Role,
	}
}

func roleOptions() []view.RoleOption {
	roles := rbac.RegistrationRoles()
	out := make([]view.RoleOption, 0, len(roles))
	for _, role := range roles {
		out = append(out, view.RoleOption{Value: string(role), Label: rbac.DisplayName(role)})
	}
	return out
}

func fieldMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return fmt.Sprintf("Must be at least %s characters.", err.Param())
	case "max":
		return fmt.Sprintf("Must be at most %s characters.", err.Param())
	case "alphanum":
		return "Use letters and digits only."
	case "oneof":
		return "Choose one of the listed roles."
	}
	return "Invalid value."
}
