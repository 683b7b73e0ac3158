// Package rbac is the role authorization gate.
//
// Every user profile carries exactly one Role. Access is a flat set
// membership test: HasRole(role, required...) is true only when role is one
// of the four defined roles and is listed in required. There is no role
// hierarchy, so route sets name every role they admit:
//
//	gate := rbac.NewGate(accessor)
//	router.Handle("/api/compliance", gate.Require(rbac.RoleAdmin, rbac.RoleManager)(h))
//
// The same predicate drives the navigation menu returned by
// GET /api/navigation, which clients use to decide what to render. The menu
// is a convenience only; the route guards are what enforce access.
package rbac
