package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
)

// areaManager provisions a manager scoped to the given area and returns
// their bearer token alongside the user row.
func (e *testEnv) areaManager(t *testing.T, areaID uuid.UUID) (models.User, string) {
	t.Helper()
	u := e.createUser(t, "Area Mgr", "am@fixhub.test", models.RoleAreaManager, nil)
	require.NoError(t, e.db.Model(&u).Update("area_id", areaID).Error)
	u.AreaID = &areaID
	return u, e.token(t, &u)
}

func TestScopedFetchKeepsBaseTableColumns(t *testing.T) {
	env := newTestEnv(t)
	ticketID := env.fileTicket(t)
	_, amToken := env.areaManager(t, env.area)

	// The scope joins pull hierarchy tables into the query; the returned
	// rows must still carry the ticket's own id and branch_id, not the
	// joined branch's.
	rec := env.do(t, "GET", "/api/v1/data/tickets/all", amToken, nil)
	requireStatus(t, rec, http.StatusOK)
	body := decode[listPage](t, rec)
	require.Len(t, body.Data, 1)
	assert.Equal(t, ticketID.String(), body.Data[0]["id"])
	assert.Equal(t, env.branch.String(), body.Data[0]["branch_id"])

	rec = env.do(t, "GET", "/api/v1/data/tickets", amToken, nil)
	requireStatus(t, rec, http.StatusOK)
	page := decode[listPage](t, rec)
	require.Len(t, page.Data, 1)
	assert.Equal(t, ticketID.String(), page.Data[0]["id"])
}

func TestDataRoutesEnforceRoleMatrix(t *testing.T) {
	env := newTestEnv(t)

	// Technicians and branch managers hold no payroll:read grant.
	rec := env.do(t, "GET", "/api/v1/data/payroll_logs", env.techToken, nil)
	requireStatus(t, rec, http.StatusForbidden)
	rec = env.do(t, "GET", "/api/v1/data/payroll_logs", env.branchMgrToken, nil)
	requireStatus(t, rec, http.StatusForbidden)

	// tickets:read they both have.
	rec = env.do(t, "GET", "/api/v1/data/tickets", env.techToken, nil)
	requireStatus(t, rec, http.StatusOK)
}

func TestDeleteRecordBlockedOutsideRoleAndScope(t *testing.T) {
	env := newTestEnv(t)

	// The role matrix grants users:delete to nobody below admin.
	rec := env.do(t, "DELETE", "/api/v1/data/users/"+env.admin.ID.String(), env.techToken, nil)
	requireStatus(t, rec, http.StatusForbidden)

	var admin models.User
	require.NoError(t, env.db.First(&admin, "id = ?", env.admin.ID).Error)
	assert.False(t, admin.IsDeleted)

	// The handler itself also refuses rows outside the caller's scope,
	// independent of the route gate.
	ticketID := env.fileTicket(t)
	otherArea := models.Area{Name: "Hillside", Code: "SM-E-H", SectorID: env.sector}
	require.NoError(t, env.db.Create(&otherArea).Error)
	_, amToken := env.areaManager(t, otherArea.ID)

	bare := mux.NewRouter()
	api := bare.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.JWTMiddleware)
	api.HandleFunc("/data/{table}/{id}", DeleteRecord).Methods("DELETE")

	req := httptest.NewRequest("DELETE", "/api/v1/data/tickets/"+ticketID.String(), nil)
	req.Header.Set("Authorization", "Bearer "+amToken)
	rr := httptest.NewRecorder()
	bare.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code, "body: %s", rr.Body.String())

	var ticket models.Ticket
	require.NoError(t, env.db.First(&ticket, "id = ?", ticketID).Error)
	assert.False(t, ticket.IsDeleted)
}

func TestOfflineReplayHonorsEnqueuerScope(t *testing.T) {
	env := newTestEnv(t)

	// Minimal form schema so ticket updates validate through the queue.
	schema := models.UISchema{
		TableName:   "tickets",
		DisplayName: "Tickets",
		FormFields:  models.FormFields{{Key: "title", Label: "Title", Type: "text"}},
	}
	require.NoError(t, env.db.Create(&schema).Error)

	inScope := env.fileTicket(t)

	otherArea := models.Area{Name: "Hillside", Code: "SM-E-H", SectorID: env.sector}
	require.NoError(t, env.db.Create(&otherArea).Error)
	otherBranch := models.Branch{Name: "Hillside North", Code: "SM-E-H-1", AreaID: otherArea.ID}
	require.NoError(t, env.db.Create(&otherBranch).Error)
	outOfScope := models.Ticket{
		Title:     "Other area fault",
		Status:    models.TicketOpen,
		Priority:  models.PriorityNormal,
		BranchID:  otherBranch.ID,
		CreatedBy: env.branchMgr.ID,
	}
	require.NoError(t, env.db.Create(&outOfScope).Error)

	_, amToken := env.areaManager(t, env.area)

	rec := env.do(t, "POST", "/api/v1/offline/queue", amToken, []map[string]interface{}{
		{
			"table_name": "tickets", "action": "update",
			"filter":  map[string]interface{}{"id": outOfScope.ID.String()},
			"payload": map[string]interface{}{"title": "hijacked"},
		},
		{
			"table_name": "tickets", "action": "update",
			"filter":  map[string]interface{}{"id": inScope.String()},
			"payload": map[string]interface{}{"title": "compressor replaced"},
		},
	})
	requireStatus(t, rec, http.StatusAccepted)

	applied, failed := FlushOfflineQueue(env.db)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, failed)

	var tampered, updated models.Ticket
	require.NoError(t, env.db.First(&tampered, "id = ?", outOfScope.ID).Error)
	assert.Equal(t, "Other area fault", tampered.Title)
	require.NoError(t, env.db.First(&updated, "id = ?", inScope).Error)
	assert.Equal(t, "compressor replaced", updated.Title)

	var action models.OfflineAction
	require.NoError(t, env.db.First(&action, "status = ?", models.OfflinePending).Error)
	assert.Contains(t, action.LastError, "scope")
}

func TestEnqueueRequiresWriteGrant(t *testing.T) {
	env := newTestEnv(t)

	// Technicians carry no tickets:delete; the batch is refused whole.
	rec := env.do(t, "POST", "/api/v1/offline/queue", env.techToken, []map[string]interface{}{
		{
			"table_name": "tickets", "action": "delete",
			"filter": map[string]interface{}{"id": uuid.NewString()},
		},
	})
	requireStatus(t, rec, http.StatusForbidden)

	var n int64
	require.NoError(t, env.db.Model(&models.OfflineAction{}).Count(&n).Error)
	assert.Zero(t, n)
}
