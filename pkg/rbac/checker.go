package rbac

// HasRole reports whether role is a defined role contained in required.
// There is no hierarchy: admin does not imply manager unless both are listed.
func HasRole(role Role, required ...Role) bool {
	if !role.Valid() {
		return false
	}
	for _, r := range required {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether role is admin.
func IsAdmin(role Role) bool {
	return HasRole(role, RoleAdmin)
}

// IsManager reports whether role is admin or manager.
func IsManager(role Role) bool {
	return HasRole(role, RoleAdmin, RoleManager)
}
