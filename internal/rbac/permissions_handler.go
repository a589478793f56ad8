package rbac

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/propertyhub/propertyhub/internal/platform/httpx"
)

// PermissionsHandler exposes the static permission matrix.
type PermissionsHandler struct {
	rbac Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(ResourceSystem, ActionRead))
		r.Get("/", h.listPermissions)
	})
}

// RoleMatrix lists the grants held by one role.
type RoleMatrix struct {
	Role        Role                  `json:"role"`
	DisplayName string                `json:"display_name"`
	Permissions map[Resource][]Action `json:"permissions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, Matrix())
}

// Matrix returns the permission table grouped by role in display order.
func Matrix() []RoleMatrix {
	out := make([]RoleMatrix, 0, len(table))
	for _, role := range Roles() {
		out = append(out, RoleMatrix{Role: role, DisplayName: DisplayName(role), Permissions: Grants(role)})
	}
	return out
}

// Resources lists the resources role holds permissions on, sorted by name.
func Resources(role Role) []Resource {
	grants := table[role]
	out := make([]Resource, 0, len(grants))
	for resource := range grants {
		out = append(out, resource)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
