package middleware

import (
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/mux"

	"github.com/stratusretail/fixhub/pkg/rbac"
)

// ErrNoClaims is returned when a handler asks for the user on a request
// that never went through JWTMiddleware.
var ErrNoClaims = errors.New("no authenticated claims in request context")

// RequirePermission gates a handler behind one "resource:action" entry of
// the role matrix.
func RequirePermission(permission string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r)
		if claims == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if !rbac.HasPermission(claims.Role, permission) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// RequireTableAction gates a /data/{table} handler behind the permission
// of the resource that table maps to, e.g. DELETE on payroll_logs needs
// "payroll:delete".
func RequireTableAction(action string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := GetClaims(r)
		if claims == nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		resource := rbac.TableResource(mux.Vars(r)["table"])
		if !rbac.HasPermission(claims.Role, resource+":"+action) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r)
	}
}

// RequireRole restricts a handler to an explicit role list. Used for the
// few endpoints where permission strings are too coarse, e.g. user
// provisioning is admin plus maintenance manager only.
func RequireRole(roles []string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if slices.Contains(roles, GetRole(r)) {
			next(w, r)
			return
		}
		http.Error(w, "forbidden", http.StatusForbidden)
	}
}
