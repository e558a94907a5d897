package rbac

var catalogResources = []Resource{ResourceProduct, ResourceBrand, ResourceRegion, ResourceCategory, ResourceTownship}

// Presets returns the built-in grants seeded for the stock roles.
func Presets() []Permission {
	var perms []Permission
	add := func(role Role, resources []Resource, acts ...Action) {
		for _, r := range resources {
			for _, a := range acts {
				perms = append(perms, Permission{Role: role, Action: a, Resource: r})
			}
		}
	}

	add(RoleCustomer, catalogResources, ActionRead)

	add(RoleShopowner, catalogResources, ActionRead)
	add(RoleShopowner, []Resource{ResourceProduct}, ActionCreate, ActionUpdate)
	add(RoleShopowner, []Resource{ResourceOrder}, ActionRead)

	add(RoleEmployee, resources, ActionRead)
	add(RoleEmployee, catalogResources, ActionCreate, ActionUpdate)

	add(RoleAdmin, resources, actions...)
	return perms
}
