package rbac

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotPermitted indicates that the role lacks the requested permission.
	ErrNotPermitted = errors.New("rbac: not permitted")
	// ErrUnknownRole indicates a role outside the fixed role set.
	ErrUnknownRole = errors.New("rbac: unknown role")
)

// HasPermission reports whether role may perform action on resource.
func HasPermission(role Role, resource Resource, action Action) bool {
	actions, ok := index[role][resource]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// CanAccess reports whether role holds any permission on feature.
func CanAccess(role Role, feature Resource) bool {
	return len(index[role][feature]) > 0
}

// AllowedActions returns the actions role may perform on resource. The result
// is never nil and may be modified by the caller.
func AllowedActions(role Role, resource Resource) []Action {
	actions := table[role][resource]
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// Authorize fails with ErrNotPermitted when role may not perform action on resource.
func Authorize(role Role, resource Resource, action Action) error {
	if HasPermission(role, resource, action) {
		return nil
	}
	return fmt.Errorf("%w: %s cannot %s %s", ErrNotPermitted, DisplayName(role), action, resource)
}

// Roles lists the fixed role set in display order.
func Roles() []Role {
	return []Role{RoleAdmin, RoleLandlord, RoleTenant, RoleMaintenanceTeam}
}

// RegistrationRoles lists the roles a user may pick when self-registering.
func RegistrationRoles() []Role {
	return []Role{RoleTenant, RoleLandlord, RoleMaintenanceTeam}
}

// IsValidRole reports whether role belongs to the fixed role set.
func IsValidRole(role Role) bool {
	for _, r := range Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// ParseRole converts raw into a known Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.TrimSpace(raw))
	if !IsValidRole(role) {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return role, nil
}

// DisplayName returns a human readable label for role.
func DisplayName(role Role) string {
	switch role {
	case RoleAdmin:
		return "Administrator"
	case RoleLandlord:
		return "Landlord"
	case RoleTenant:
		return "Tenant"
	case RoleMaintenanceTeam:
		return "Maintenance Team"
	default:
		return string(role)
	}
}

// HasAnyRole reports whether role is one of allowed.
func HasAnyRole(role Role, allowed ...Role) bool {
	for _, r := range allowed {
		if r == role {
			return true
		}
	}
	return false
}
