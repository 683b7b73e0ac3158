package rbac

// NavItem is one entry of the application menu.
type NavItem struct {
	Name  string `json:"name"`
	Href  string `json:"href"`
	Roles []Role `json:"roles"`
}

var (
	everyone   = []Role{RoleAdmin, RoleManager, RoleTechnician, RoleSalesRep}
	sales      = []Role{RoleAdmin, RoleManager, RoleSalesRep}
	field      = []Role{RoleAdmin, RoleManager, RoleTechnician}
	management = []Role{RoleAdmin, RoleManager}
	adminOnly  = []Role{RoleAdmin}
)

// Navigation is the full menu in display order.
var Navigation = []NavItem{
	{Name: "Dashboard", Href: "/dashboard", Roles: everyone},
	{Name: "CRM", Href: "/crm", Roles: sales},
	{Name: "Projects", Href: "/projects", Roles: field},
	{Name: "Design", Href: "/design", Roles: field},
	{Name: "Procurement", Href: "/procurement", Roles: management},
	{Name: "Compliance", Href: "/compliance", Roles: field},
	{Name: "Finance", Href: "/finance", Roles: management},
	{Name: "Reports", Href: "/reports", Roles: management},
	{Name: "Settings", Href: "/settings", Roles: adminOnly},
}

// VisibleItems returns the menu entries role may see. An unknown role sees nothing.
func VisibleItems(role Role) []NavItem {
	items := make([]NavItem, 0, len(Navigation))
	for _, item := range Navigation {
		if HasRole(role, item.Roles...) {
			items = append(items, item)
		}
	}
	return items
}
