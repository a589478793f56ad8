// Package credential decodes bearer credentials into identities.
package credential

import (
	"strings"
	"time"

	"github.com/propertyhub/propertyhub/internal/rbac"
)

// Identity is the in-memory view of the authenticated user.
type Identity struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      rbac.Role `json:"role"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GetRole implements rbac.Principal.
func (i Identity) GetRole() rbac.Role {
	return i.Role
}

// DisplayName joins the non-blank name parts, falling back to the username.
func DisplayName(firstName, lastName, username string) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{firstName, lastName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return username
	}
	return strings.Join(parts, " ")
}
