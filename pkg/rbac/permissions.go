package rbac

import (
	"strings"

	"github.com/stratusretail/fixhub/models"
)

// Permissions use the "resource:action" format; either part may be the "*"
// wildcard. The matrix below is compiled in rather than stored per user so
// that role behavior is uniform across deployments.
var rolePermissions = map[string][]string{
	models.RoleAdmin: {"*"},

	models.RoleMaintManager: {
		"tickets:*", "assets:*", "ticket_categories:*",
		"inventory:*", "attendance:*", "payroll:*", "shifts:*",
		"users:read", "users:create", "users:update",
		"hierarchy:read", "dashboard:read", "reports:*", "schema:read",
		"records:*",
	},
	models.RoleDeputyMaintMgr: {
		"tickets:*", "assets:*", "ticket_categories:*",
		"inventory:*", "attendance:*", "shifts:*",
		"payroll:read", "users:read",
		"hierarchy:read", "dashboard:read", "reports:*", "schema:read",
		"records:*",
	},

	models.RoleBrandManager: {
		"tickets:read", "tickets:update", "assets:read",
		"inventory:read", "attendance:read", "payroll:read", "shifts:read",
		"users:read", "hierarchy:read", "dashboard:read", "reports:*",
		"records:*",
	},
	models.RoleSectorManager: {
		"tickets:read", "tickets:update", "assets:read",
		"inventory:read", "attendance:read", "payroll:read", "shifts:read",
		"users:read", "hierarchy:read", "dashboard:read", "reports:*",
		"records:*",
	},
	models.RoleAreaManager: {
		"tickets:read", "tickets:update", "assets:read",
		"inventory:read", "attendance:read", "payroll:read", "shifts:read",
		"users:read", "hierarchy:read", "dashboard:read", "reports:*",
		"records:*",
	},

	models.RoleBranchManager: {
		"tickets:create", "tickets:read", "tickets:rate",
		"tickets:close", "tickets:cancel",
		"assets:read", "inventory:read", "attendance:read", "shifts:read",
		"hierarchy:read", "dashboard:read", "reports:export",
		"records:*",
	},
	models.RoleTechnician: {
		"tickets:read", "tickets:start", "tickets:resolve",
		"assets:read", "inventory:read",
		"attendance:create", "attendance:read", "shifts:read",
		"records:*",
	},
}

// tableResources maps core table names onto the resource vocabulary of the
// role matrix, so the generic data surface enforces the same grants as the
// dedicated endpoints. Dynamic (operator-defined) tables fall under the
// shared "records" resource.
var tableResources = map[string]string{
	"tickets":                "tickets",
	"mission_logs":           "tickets",
	"assets":                 "assets",
	"ticket_categories":      "ticket_categories",
	"inventory_items":        "inventory",
	"inventory_transactions": "inventory",
	"technician_attendances": "attendance",
	"payroll_logs":           "payroll",
	"shifts":                 "shifts",
	"users":                  "users",
	"brands":                 "hierarchy",
	"sectors":                "hierarchy",
	"areas":                  "hierarchy",
	"branches":               "hierarchy",
}

// TableResource returns the permission resource governing a table.
func TableResource(table string) string {
	if resource, ok := tableResources[table]; ok {
		return resource
	}
	return "records"
}

// MatchesPermission reports whether a granted permission pattern satisfies
// a required one. Wildcards are only honored on the granted side.
func MatchesPermission(granted, required string) bool {
	if granted == required {
		return true
	}
	if granted == "*" || granted == "*:*" {
		return true
	}

	grantedParts := strings.Split(granted, ":")
	requiredParts := strings.Split(required, ":")
	if len(grantedParts) < 2 || len(requiredParts) < 2 {
		return false
	}

	resourceMatch := grantedParts[0] == "*" || grantedParts[0] == requiredParts[0]
	actionMatch := grantedParts[1] == "*" || grantedParts[1] == requiredParts[1]
	return resourceMatch && actionMatch
}

// HasPermission reports whether the role's grant set covers the required
// permission. Unknown roles have no permissions.
func HasPermission(role, required string) bool {
	for _, granted := range rolePermissions[role] {
		if MatchesPermission(granted, required) {
			return true
		}
	}
	return false
}

// PermissionsFor returns a copy of the role's grant patterns, used by the
// login response so clients can build their navigation.
func PermissionsFor(role string) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}
