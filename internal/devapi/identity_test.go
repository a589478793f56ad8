package devapi_test

import (
	"github.com/propertyhub/propertyhub/internal/credential"
	"github.com/propertyhub/propertyhub/internal/rbac"
)

func identity(id int64, role rbac.Role) credential.Identity {
	return credential.Identity{ID: id, Username: string(role), Role: role}
}
