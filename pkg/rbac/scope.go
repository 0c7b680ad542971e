package rbac

import (
	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/pkg/registry"
)

// ApplyScope narrows a query to the rows the user's hierarchy position
// allows. Global roles and tables without scope rules pass through
// unchanged. The user's most specific non-null hierarchy id decides the
// level; the registry descriptor supplies the join path to its column.
func ApplyScope(q *gorm.DB, user *models.User, table string) *gorm.DB {
	level, id := user.Scope()
	if level == models.ScopeNone {
		return q
	}

	desc := registry.Lookup(table)
	if desc == nil || desc.ScopeJoins == nil {
		return q
	}
	rule, ok := desc.ScopeJoins[level]
	if !ok {
		return q
	}

	if rule.Join != "" {
		q = q.Joins(rule.Join)
	}
	return q.Where(rule.Column+" = ?", id)
}

// CanSeeTable reports whether the user's scope level can be expressed for
// the table at all. Used by the export handler to refuse tables whose rows
// cannot be attributed to any hierarchy position for a scoped viewer.
func CanSeeTable(user *models.User, table string) bool {
	level, _ := user.Scope()
	if level == models.ScopeNone {
		return true
	}
	desc := registry.Lookup(table)
	if desc == nil || desc.ScopeJoins == nil {
		// No scoping info: dynamic and reference tables are visible to all
		// authenticated users.
		return true
	}
	_, ok := desc.ScopeJoins[level]
	return ok
}
