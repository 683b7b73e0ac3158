package rbac

import "fmt"

// Role is the access level stored on a user profile.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleTechnician Role = "technician"
	RoleSalesRep   Role = "sales_rep"
)

// AllRoles lists every defined role.
var AllRoles = []Role{RoleAdmin, RoleManager, RoleTechnician, RoleSalesRep}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTechnician, RoleSalesRep:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts s into a Role. Only the defined role names are accepted.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
