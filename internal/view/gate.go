package view

import (
	"html/template"

	"github.com/propertyhub/propertyhub/internal/credential"
	"github.com/propertyhub/propertyhub/internal/rbac"
)

// IdentitySource exposes the live identity of a session.
type IdentitySource interface {
	Identity() (credential.Identity, bool)
}

// Gate answers presentational permission questions for one session. Every
// call reads the live identity, so output follows login and logout.
type Gate struct {
	source IdentitySource
}

// NewGate binds a gate to source. A nil source denies everything.
func NewGate(source IdentitySource) *Gate {
	return &Gate{source: source}
}

// Role returns the current role or "".
func (g *Gate) Role() rbac.Role {
	if g == nil || g.source == nil {
		return ""
	}
	identity, ok := g.source.Identity()
	if !ok {
		return ""
	}
	return identity.Role
}

// Authenticated reports whether a user is signed in.
func (g *Gate) Authenticated() bool {
	return g.Role() != ""
}

// HasRole reports whether the current role is role.
func (g *Gate) HasRole(role string) bool {
	current := g.Role()
	return current != "" && current == rbac.Role(role)
}

// HasAnyRole reports whether the current role is one of roles.
func (g *Gate) HasAnyRole(roles ...string) bool {
	current := g.Role()
	if current == "" {
		return false
	}
	for _, role := range roles {
		if current == rbac.Role(role) {
			return true
		}
	}
	return false
}

// Can reports whether the current role may perform action on resource.
func (g *Gate) Can(resource, action string) bool {
	return rbac.HasPermission(g.Role(), rbac.Resource(resource), rbac.Action(action))
}

// CanAccess reports whether the current role holds any grant on feature.
func (g *Gate) CanAccess(feature string) bool {
	return rbac.CanAccess(g.Role(), rbac.Resource(feature))
}

// Actions keeps the candidate actions the current role may perform on resource.
func (g *Gate) Actions(resource string, candidates ...string) []string {
	role := g.Role()
	out := make([]string, 0, len(candidates))
	for _, action := range candidates {
		if rbac.HasPermission(role, rbac.Resource(resource), rbac.Action(action)) {
			out = append(out, action)
		}
	}
	return out
}

// FuncMap exposes the gate to templates.
func (g *Gate) FuncMap() template.FuncMap {
	return template.FuncMap{
		"hasRole":    g.HasRole,
		"hasAnyRole": g.HasAnyRole,
		"roleIs":     g.HasRole,
		"can":        g.Can,
		"canAccess":  g.CanAccess,
		"actions":    g.Actions,
		"currentRole": func() string {
			return string(g.Role())
		},
		"roleName": func() string {
			return rbac.DisplayName(g.Role())
		},
	}
}
