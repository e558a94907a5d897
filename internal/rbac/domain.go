package rbac

import (
	"context"
	"strings"
)

// Role tags a user with a permission set. The set of roles is open; roles without
// grants simply cannot do anything.
type Role string

const (
	RoleAdmin     Role = "Admin"
	RoleEmployee  Role = "Employee"
	RoleCustomer  Role = "Customer"
	RoleShopowner Role = "Shopowner"
	// RoleGuest is the implicit role of a principal without an assigned role.
	RoleGuest Role = "Guest"
	// RoleWildcard bypasses every check. Superusers carry it.
	RoleWildcard Role = "*"
)

// Action classifies an operation.
type Action string

const (
	ActionCreate Action = "Create"
	ActionRead   Action = "Read"
	ActionUpdate Action = "Update"
	ActionDelete Action = "Delete"
)

// Resource names a protected noun. The set is closed.
type Resource string

const (
	ResourceProduct  Resource = "Product"
	ResourceBrand    Resource = "Brand"
	ResourceRegion   Resource = "Region"
	ResourceOrder    Resource = "Order"
	ResourceUser     Resource = "User"
	ResourceAuditLog Resource = "AuditLog"
	ResourceCategory Resource = "Category"
	ResourceCoupon   Resource = "Coupon"
	ResourceTownship Resource = "Township"
)

var (
	actions   = []Action{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
	resources = []Resource{
		ResourceAuditLog, ResourceBrand, ResourceCategory, ResourceCoupon, ResourceOrder,
		ResourceProduct, ResourceRegion, ResourceTownship, ResourceUser,
	}
)

// Actions returns every known action.
func Actions() []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// Resources returns every known resource.
func Resources() []Resource {
	out := make([]Resource, len(resources))
	copy(out, resources)
	return out
}

func (a Action) Valid() bool {
	for _, known := range actions {
		if a == known {
			return true
		}
	}
	return false
}

func (r Resource) Valid() bool {
	for _, known := range resources {
		if r == known {
			return true
		}
	}
	return false
}

// ParseAction matches s case-insensitively against the known actions.
func ParseAction(s string) (Action, bool) {
	for _, a := range actions {
		if strings.EqualFold(string(a), strings.TrimSpace(s)) {
			return a, true
		}
	}
	return "", false
}

// ParseResource matches s case-insensitively against the known resources.
func ParseResource(s string) (Resource, bool) {
	for _, r := range resources {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, true
		}
	}
	return "", false
}

// Grant is an (action, resource) pair held by some role.
type Grant struct {
	Action   Action   `json:"action"`
	Resource Resource `json:"resource"`
}

// Permission is a (role, action, resource) grant triple.
type Permission struct {
	Role     Role     `json:"role"`
	Action   Action   `json:"action"`
	Resource Resource `json:"resource"`
}

func (p Permission) Grant() Grant {
	return Grant{Action: p.Action, Resource: p.Resource}
}

// Principal describes the authenticated actor.
type Principal struct {
	UserID    string `json:"userId"`
	Role      Role   `json:"role"`
	SuperUser bool   `json:"isSuperuser"`
	Blocked   bool   `json:"blocked"`
}

// EffectiveRole is the role used for permission checks.
func (p Principal) EffectiveRole() Role {
	if p.SuperUser {
		return RoleWildcard
	}
	if strings.TrimSpace(string(p.Role)) == "" {
		return RoleGuest
	}
	return p.Role
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
