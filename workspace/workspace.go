package workspace

import "sort"

// RoleType is the member's role inside a workspace
type RoleType string

const (
	RoleOwner  RoleType = "owner"  // Full control, including billing and member management
	RoleAdmin  RoleType = "admin"  // Manages catalog, orders, discounts and staff
	RoleStaff  RoleType = "staff"  // Day to day catalog and order handling
	RoleViewer RoleType = "viewer" // Read-only
)

// Permission names used by the admin console
const (
	PermCatalogRead    = "catalog:read"
	PermCatalogWrite   = "catalog:write"
	PermOrdersRead     = "orders:read"
	PermOrdersWrite    = "orders:write"
	PermDiscountsRead  = "discounts:read"
	PermDiscountsWrite = "discounts:write"
	PermCustomersRead  = "customers:read"
	PermCustomersWrite = "customers:write"
	PermMembersManage  = "members:manage"
	PermBillingManage  = "billing:manage"
)

var rolePermissions = map[RoleType][]string{
	RoleOwner: {
		PermCatalogRead, PermCatalogWrite, PermOrdersRead, PermOrdersWrite,
		PermDiscountsRead, PermDiscountsWrite, PermCustomersRead, PermCustomersWrite,
		PermMembersManage, PermBillingManage,
	},
	RoleAdmin: {
		PermCatalogRead, PermCatalogWrite, PermOrdersRead, PermOrdersWrite,
		PermDiscountsRead, PermDiscountsWrite, PermCustomersRead, PermCustomersWrite,
		PermMembersManage,
	},
	RoleStaff: {
		PermCatalogRead, PermCatalogWrite, PermOrdersRead, PermOrdersWrite,
		PermDiscountsRead, PermCustomersRead,
	},
	RoleViewer: {
		PermCatalogRead, PermOrdersRead, PermDiscountsRead, PermCustomersRead,
	},
}

// DefaultPermissions returns the permission set implied by a role. Unknown roles get none.
func DefaultPermissions(role RoleType) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// Context is the tenant a user is currently operating in.
type Context struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Type        string              `json:"type"`
	Status      string              `json:"status"`
	Role        RoleType            `json:"role"`
	Permissions map[string]struct{} `json:"-"`
	IsDefault   bool                `json:"is_default"`
}

// NewContext builds a Context, falling back to the role's default permissions when none are given.
func NewContext(id, name, wsType, status string, role RoleType, permissions []string, isDefault bool) Context {
	if len(permissions) == 0 {
		permissions = DefaultPermissions(role)
	}
	perms := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		perms[p] = struct{}{}
	}
	return Context{
		ID:          id,
		Name:        name,
		Type:        wsType,
		Status:      status,
		Role:        role,
		Permissions: perms,
		IsDefault:   isDefault,
	}
}

func (c Context) HasPermission(permission string) bool {
	_, ok := c.Permissions[permission]
	return ok
}

// PermissionList returns the permissions sorted by name
func (c Context) PermissionList() []string {
	list := make([]string, 0, len(c.Permissions))
	for p := range c.Permissions {
		list = append(list, p)
	}
	sort.Strings(list)
	return list
}

func (c Context) clone() Context {
	perms := make(map[string]struct{}, len(c.Permissions))
	for p := range c.Permissions {
		perms[p] = struct{}{}
	}
	c.Permissions = perms
	return c
}
