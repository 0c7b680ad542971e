package routes

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"github.com/stratusretail/fixhub/handlers"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/realtime"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(hub *realtime.Hub) http.Handler {
	r := mux.NewRouter()

	// =====================================================
	// Public Routes (no authentication)
	// =====================================================
	r.HandleFunc("/login", middleware.LoginRateLimit(handlers.Login)).Methods("POST")
	r.HandleFunc("/ws", hub.ServeWS(realtime.VerifyJWT([]byte(os.Getenv("JWT_SECRET"))))).Methods("GET")

	// =====================================================
	// Protected API Routes (require JWT authentication)
	// =====================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.JWTMiddleware)

	api.HandleFunc("/me", handlers.Me).Methods("GET")

	// User provisioning — privileged roles only, no self-registration.
	provisioners := []string{models.RoleAdmin, models.RoleMaintManager}
	api.HandleFunc("/users", middleware.RequireRole(provisioners, handlers.CreateUser)).Methods("POST")
	api.HandleFunc("/users", middleware.RequirePermission("users:read", handlers.ListUsers)).Methods("GET")
	api.HandleFunc("/users/{id}", middleware.RequireRole(provisioners, handlers.UpdateUser)).Methods("PUT")
	api.HandleFunc("/users/{id}", middleware.RequireRole([]string{models.RoleAdmin}, handlers.DeleteUser)).Methods("DELETE")

	// Organizational hierarchy.
	api.HandleFunc("/hierarchy/tree", middleware.RequirePermission("hierarchy:read", handlers.HierarchyTree)).Methods("GET")
	api.HandleFunc("/hierarchy/{level}", middleware.RequirePermission("hierarchy:read", handlers.ListHierarchyLevel)).Methods("GET")
	admin := []string{models.RoleAdmin, models.RoleMaintManager}
	api.HandleFunc("/hierarchy/{level}", middleware.RequireRole(admin, handlers.CreateHierarchyNode)).Methods("POST")
	api.HandleFunc("/hierarchy/{level}/{id}", middleware.RequireRole(admin, handlers.UpdateHierarchyNode)).Methods("PUT")
	api.HandleFunc("/hierarchy/{level}/{id}", middleware.RequireRole(admin, handlers.DeleteHierarchyNode)).Methods("DELETE")

	// Ticket lifecycle.
	api.HandleFunc("/tickets", middleware.RequirePermission("tickets:create", handlers.CreateTicket)).Methods("POST")
	api.HandleFunc("/tickets/{id}/assign", middleware.RequirePermission("tickets:update", handlers.AssignTicket)).Methods("POST")
	api.HandleFunc("/tickets/{id}/start", middleware.RequirePermission("tickets:start", handlers.StartTicket)).Methods("POST")
	api.HandleFunc("/tickets/{id}/resolve", middleware.RequirePermission("tickets:resolve", handlers.ResolveTicket)).Methods("POST")
	api.HandleFunc("/tickets/{id}/close", middleware.RequirePermission("tickets:close", handlers.CloseTicket)).Methods("POST")
	api.HandleFunc("/tickets/{id}/cancel", middleware.RequirePermission("tickets:cancel", handlers.CancelTicket)).Methods("POST")
	api.HandleFunc("/tickets/{id}/reopen", middleware.RequirePermission("tickets:update", handlers.ReopenTicket)).Methods("POST")
	api.HandleFunc("/tickets/{id}/rate", middleware.RequirePermission("tickets:rate", handlers.RateTicket)).Methods("POST")
	api.HandleFunc("/tickets/{id}/timeline", middleware.RequirePermission("tickets:read", handlers.TicketTimeline)).Methods("GET")

	// Inventory.
	api.HandleFunc("/inventory/low-stock", middleware.RequirePermission("inventory:read", handlers.LowStockItems)).Methods("GET")
	api.HandleFunc("/inventory/{id}/restock", middleware.RequirePermission("inventory:update", handlers.RestockItem)).Methods("POST")

	// Attendance and payroll.
	api.HandleFunc("/attendance/clock-in", middleware.RequirePermission("attendance:create", handlers.ClockIn)).Methods("POST")
	api.HandleFunc("/attendance/clock-out", middleware.RequirePermission("attendance:create", handlers.ClockOut)).Methods("POST")
	api.HandleFunc("/attendance/me", middleware.RequirePermission("attendance:read", handlers.MyAttendance)).Methods("GET")
	api.HandleFunc("/payroll/run", middleware.RequirePermission("payroll:update", handlers.RunPayroll)).Methods("POST")
	api.HandleFunc("/payroll/me", handlers.MyPayroll).Methods("GET")

	// Dashboard.
	api.HandleFunc("/dashboard", middleware.RequirePermission("dashboard:read", handlers.Dashboard)).Methods("GET")

	// Schema-driven table data. Every registered or dynamic table gets the
	// same list/count/metrics/CRUD/export surface, gated by the permission
	// of the resource the table maps to.
	api.HandleFunc("/data/{table}", middleware.RequireTableAction("read", handlers.ListTableData)).Methods("GET")
	api.HandleFunc("/data/{table}/all", middleware.RequireTableAction("read", handlers.FetchAllTableData)).Methods("GET")
	api.HandleFunc("/data/{table}/count", middleware.RequireTableAction("read", handlers.TableCount)).Methods("GET")
	api.HandleFunc("/data/{table}/metrics", middleware.RequireTableAction("read", handlers.TableMetrics)).Methods("GET")
	api.HandleFunc("/data/{table}/export", middleware.RequirePermission("reports:export", handlers.ExportTable)).Methods("GET")
	api.HandleFunc("/data/{table}/import", middleware.RequirePermission("reports:import", handlers.ImportTable)).Methods("POST")
	api.HandleFunc("/data/{table}", middleware.RequireTableAction("create", handlers.CreateRecord)).Methods("POST")
	api.HandleFunc("/data/{table}/{id}", middleware.RequireTableAction("update", handlers.UpdateRecord)).Methods("PUT")
	api.HandleFunc("/data/{table}/{id}", middleware.RequireTableAction("delete", handlers.DeleteRecord)).Methods("DELETE")

	// Offline queue.
	api.HandleFunc("/offline/queue", handlers.EnqueueOffline).Methods("POST")
	api.HandleFunc("/offline/queue", handlers.MyOfflineActions).Methods("GET")
	api.HandleFunc("/offline/{id}/requeue", middleware.RequireRole(admin, handlers.RequeueDeadLetter)).Methods("POST")

	// Schema builder (admin).
	api.HandleFunc("/schemas", middleware.RequirePermission("schema:read", handlers.ListSchemas)).Methods("GET")
	api.HandleFunc("/schemas/{table}", middleware.RequirePermission("schema:read", handlers.GetSchema)).Methods("GET")
	api.HandleFunc("/schemas", middleware.RequireRole([]string{models.RoleAdmin}, handlers.CreateSchema)).Methods("POST")
	api.HandleFunc("/schemas/{table}", middleware.RequireRole([]string{models.RoleAdmin}, handlers.UpdateSchema)).Methods("PUT")
	api.HandleFunc("/schemas/{table}", middleware.RequireRole([]string{models.RoleAdmin}, handlers.DeleteSchema)).Methods("DELETE")
	api.HandleFunc("/schemas/{table}/columns/{column}", middleware.RequireRole([]string{models.RoleAdmin}, handlers.DropSchemaColumn)).Methods("DELETE")

	return r
}
