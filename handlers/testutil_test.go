package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
)

// testEnv is one fully-seeded in-memory deployment: a single branch chain
// (brand -> sector -> area -> branch), one user per interesting role, and
// their bearer tokens.
type testEnv struct {
	db     *gorm.DB
	router *mux.Router

	brand, sector, area, branch uuid.UUID

	admin     models.User
	branchMgr models.User
	tech      models.User

	adminToken     string
	branchMgrToken string
	techToken      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Brand{}, &models.Sector{}, &models.Area{}, &models.Branch{},
		&models.User{}, &models.TicketCategory{}, &models.Asset{},
		&models.Ticket{}, &models.MissionLog{},
		&models.InventoryItem{}, &models.InventoryTransaction{},
		&models.Shift{}, &models.TechnicianAttendance{}, &models.PayrollLog{},
		&models.UISchema{}, &models.OfflineAction{},
	))

	// Handlers read the package-level connection.
	config.DB = db

	env := &testEnv{db: db, router: newTestRouter()}

	brand := models.Brand{Name: "Stratus Mart", Code: "SM"}
	require.NoError(t, db.Create(&brand).Error)
	sector := models.Sector{Name: "East", Code: "SM-E", BrandID: brand.ID}
	require.NoError(t, db.Create(&sector).Error)
	area := models.Area{Name: "Riverside", Code: "SM-E-R", SectorID: sector.ID}
	require.NoError(t, db.Create(&area).Error)
	branch := models.Branch{Name: "Riverside Central", Code: "SM-E-R-1", AreaID: area.ID}
	require.NoError(t, db.Create(&branch).Error)
	env.brand, env.sector, env.area, env.branch = brand.ID, sector.ID, area.ID, branch.ID

	env.admin = env.createUser(t, "Admin", "admin@fixhub.test", models.RoleAdmin, nil)
	env.branchMgr = env.createUser(t, "Branch Mgr", "bm@fixhub.test", models.RoleBranchManager, &branch.ID)
	env.tech = env.createUser(t, "Tech", "tech@fixhub.test", models.RoleTechnician, &branch.ID)

	env.adminToken = env.token(t, &env.admin)
	env.branchMgrToken = env.token(t, &env.branchMgr)
	env.techToken = env.token(t, &env.tech)
	return env
}

func (e *testEnv) createUser(t *testing.T, name, email, role string, branchID *uuid.UUID) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	u := models.User{
		Name:         name,
		Email:        email,
		Phone:        email, // unique enough for fixtures
		PasswordHash: string(hash),
		Role:         role,
		BranchID:     branchID,
		BaseDailyPay: 800,
		IsActive:     true,
	}
	require.NoError(t, e.db.Create(&u).Error)
	return u
}

func (e *testEnv) token(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := middleware.GenerateToken(u.ID.String(), u.Role, u.Name, u.Email)
	require.NoError(t, err)
	return token
}

// newTestRouter wires the handlers under test behind the JWT middleware the
// same way the real route table does.
func newTestRouter() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.JWTMiddleware)

	api.HandleFunc("/tickets", CreateTicket).Methods("POST")
	api.HandleFunc("/tickets/{id}/assign", AssignTicket).Methods("POST")
	api.HandleFunc("/tickets/{id}/start", StartTicket).Methods("POST")
	api.HandleFunc("/tickets/{id}/resolve", ResolveTicket).Methods("POST")
	api.HandleFunc("/tickets/{id}/close", CloseTicket).Methods("POST")
	api.HandleFunc("/tickets/{id}/cancel", CancelTicket).Methods("POST")
	api.HandleFunc("/tickets/{id}/reopen", ReopenTicket).Methods("POST")
	api.HandleFunc("/tickets/{id}/rate", RateTicket).Methods("POST")
	api.HandleFunc("/tickets/{id}/timeline", TicketTimeline).Methods("GET")

	api.HandleFunc("/inventory/{id}/restock", middleware.RequirePermission("inventory:update", RestockItem)).Methods("POST")

	api.HandleFunc("/attendance/clock-in", ClockIn).Methods("POST")
	api.HandleFunc("/attendance/clock-out", ClockOut).Methods("POST")

	api.HandleFunc("/payroll/run", RunPayroll).Methods("POST")
	api.HandleFunc("/payroll/me", MyPayroll).Methods("GET")

	api.HandleFunc("/schemas", CreateSchema).Methods("POST")
	api.HandleFunc("/schemas/{table}", UpdateSchema).Methods("PUT")
	api.HandleFunc("/schemas/{table}/columns/{column}", DropSchemaColumn).Methods("DELETE")

	api.HandleFunc("/data/{table}", middleware.RequireTableAction("read", ListTableData)).Methods("GET")
	api.HandleFunc("/data/{table}/all", middleware.RequireTableAction("read", FetchAllTableData)).Methods("GET")
	api.HandleFunc("/data/{table}/export", middleware.RequirePermission("reports:export", ExportTable)).Methods("GET")
	api.HandleFunc("/data/{table}/import", middleware.RequirePermission("reports:import", ImportTable)).Methods("POST")
	api.HandleFunc("/data/{table}", middleware.RequireTableAction("create", CreateRecord)).Methods("POST")
	api.HandleFunc("/data/{table}/{id}", middleware.RequireTableAction("update", UpdateRecord)).Methods("PUT")
	api.HandleFunc("/data/{table}/{id}", middleware.RequireTableAction("delete", DeleteRecord)).Methods("DELETE")

	api.HandleFunc("/offline/queue", EnqueueOffline).Methods("POST")
	api.HandleFunc("/offline/{id}/requeue", RequeueDeadLetter).Methods("POST")
	return r
}

// do runs one authenticated JSON request through the router.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func requireStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, "body: %s", rec.Body.String())
}
