package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratusretail/fixhub/models"
)

func (e *testEnv) fileTicket(t *testing.T) uuid.UUID {
	t.Helper()
	rec := e.do(t, "POST", "/api/v1/tickets", e.branchMgrToken, map[string]interface{}{
		"title":     "Freezer down",
		"priority":  "urgent",
		"branch_id": e.branch,
	})
	requireStatus(t, rec, http.StatusCreated)
	ticket := decode[models.Ticket](t, rec)
	return ticket.ID
}

func (e *testEnv) clockInTech(t *testing.T) {
	t.Helper()
	rec := e.do(t, "POST", "/api/v1/attendance/clock-in", e.techToken,
		map[string]float64{"lat": 10, "lng": 20})
	requireStatus(t, rec, http.StatusCreated)
}

func (e *testEnv) stockPart(t *testing.T, name string, qty int, unitCost int64) uuid.UUID {
	t.Helper()
	item := models.InventoryItem{
		Name: name, SKU: name, BranchID: e.branch,
		Quantity: qty, UnitCost: decimal.NewFromInt(unitCost),
	}
	require.NoError(t, e.db.Create(&item).Error)
	return item.ID
}

func TestTicketLifecycleHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ticketID := env.fileTicket(t)
	partID := env.stockPart(t, "compressor-belt", 10, 40)
	env.clockInTech(t)

	rec := env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/assign", env.adminToken,
		map[string]interface{}{"assignee_id": env.tech.ID})
	requireStatus(t, rec, http.StatusOK)

	rec = env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/start", env.techToken,
		map[string]float64{"lat": 10, "lng": 20})
	requireStatus(t, rec, http.StatusOK)

	rec = env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/resolve", env.techToken,
		map[string]interface{}{
			"resolution_note": "replaced the belt",
			"labor_cost":      "120",
			"parts": []map[string]interface{}{
				{"item_id": partID, "quantity": 3},
			},
		})
	requireStatus(t, rec, http.StatusOK)

	var ticket models.Ticket
	require.NoError(t, env.db.First(&ticket, "id = ?", ticketID).Error)
	assert.Equal(t, models.TicketResolved, ticket.Status)
	assert.NotNil(t, ticket.ResolvedAt)
	assert.True(t, ticket.PartsCost.Equal(decimal.NewFromInt(120)), "parts cost = %s", ticket.PartsCost)
	assert.True(t, ticket.LaborCost.Equal(decimal.NewFromInt(120)))

	// Stock decremented and exactly one movement row written.
	var item models.InventoryItem
	require.NoError(t, env.db.First(&item, "id = ?", partID).Error)
	assert.Equal(t, 7, item.Quantity)
	var movements []models.InventoryTransaction
	require.NoError(t, env.db.Where("ticket_id = ?", ticketID).Find(&movements).Error)
	require.Len(t, movements, 1)
	assert.Equal(t, models.InventoryOut, movements[0].Direction)
	assert.Equal(t, 3, movements[0].QuantityUsed)

	rec = env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/close", env.branchMgrToken, nil)
	requireStatus(t, rec, http.StatusOK)

	// Mission log captured every lifecycle step.
	rec = env.do(t, "GET", "/api/v1/tickets/"+ticketID.String()+"/timeline", env.adminToken, nil)
	requireStatus(t, rec, http.StatusOK)
	logs := decode[[]models.MissionLog](t, rec)
	actions := make([]string, len(logs))
	for i, l := range logs {
		actions[i] = l.Action
	}
	assert.Equal(t, []string{
		models.TicketAssigned, models.TicketInProgress, models.TicketResolved, models.TicketClosed,
	}, actions)
}

func TestResolveInsufficientStockRollsBack(t *testing.T) {
	env := newTestEnv(t)
	ticketID := env.fileTicket(t)
	partID := env.stockPart(t, "fan-motor", 2, 900)
	env.clockInTech(t)

	env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/assign", env.adminToken,
		map[string]interface{}{"assignee_id": env.tech.ID})
	env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/start", env.techToken,
		map[string]float64{})

	rec := env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/resolve", env.techToken,
		map[string]interface{}{
			"resolution_note": "tried",
			"parts":           []map[string]interface{}{{"item_id": partID, "quantity": 5}},
		})
	requireStatus(t, rec, http.StatusUnprocessableEntity)

	// Nothing committed: status, stock and movement log untouched.
	var ticket models.Ticket
	require.NoError(t, env.db.First(&ticket, "id = ?", ticketID).Error)
	assert.Equal(t, models.TicketInProgress, ticket.Status)
	var item models.InventoryItem
	require.NoError(t, env.db.First(&item, "id = ?", partID).Error)
	assert.Equal(t, 2, item.Quantity)
	var count int64
	env.db.Model(&models.InventoryTransaction{}).Where("ticket_id = ?", ticketID).Count(&count)
	assert.EqualValues(t, 0, count)
}

func TestInvalidTransitionsRejected(t *testing.T) {
	env := newTestEnv(t)
	ticketID := env.fileTicket(t)

	// open -> resolved is not reachable without assign+start.
	rec := env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/close", env.branchMgrToken, nil)
	requireStatus(t, rec, http.StatusConflict)

	// cancel works from open, and a cancelled ticket is terminal.
	rec = env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/cancel", env.branchMgrToken, nil)
	requireStatus(t, rec, http.StatusOK)
	rec = env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/assign", env.adminToken,
		map[string]interface{}{"assignee_id": env.tech.ID})
	requireStatus(t, rec, http.StatusConflict)
}

func TestReopenIsOnlyBackwardPath(t *testing.T) {
	env := newTestEnv(t)
	ticketID := env.fileTicket(t)
	env.clockInTech(t)
	env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/assign", env.adminToken,
		map[string]interface{}{"assignee_id": env.tech.ID})
	env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/start", env.techToken, map[string]float64{})
	rec := env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/resolve", env.techToken,
		map[string]interface{}{"resolution_note": "done"})
	requireStatus(t, rec, http.StatusOK)

	rec = env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/reopen", env.adminToken, nil)
	requireStatus(t, rec, http.StatusOK)
	var ticket models.Ticket
	require.NoError(t, env.db.First(&ticket, "id = ?", ticketID).Error)
	assert.Equal(t, models.TicketInProgress, ticket.Status)

	// A closed ticket cannot reopen.
	env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/resolve", env.techToken,
		map[string]interface{}{"resolution_note": "done again"})
	env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/close", env.branchMgrToken, nil)
	rec = env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/reopen", env.adminToken, nil)
	requireStatus(t, rec, http.StatusConflict)
}

func TestStartRequiresAssigneeAndAttendance(t *testing.T) {
	env := newTestEnv(t)
	ticketID := env.fileTicket(t)
	env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/assign", env.adminToken,
		map[string]interface{}{"assignee_id": env.tech.ID})

	// Not clocked in.
	rec := env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/start", env.techToken,
		map[string]float64{})
	requireStatus(t, rec, http.StatusConflict)

	// A different technician cannot start it even when clocked in.
	other := env.createUser(t, "Other Tech", "t2@fixhub.test", models.RoleTechnician, nil)
	branch := env.branch
	require.NoError(t, env.db.Model(&other).Update("branch_id", branch).Error)
	otherToken := env.token(t, &other)
	env.db.Create(&models.TechnicianAttendance{
		TechnicianID: other.ID, BranchID: branch, ClockInAt: time.Now().UTC(),
	})
	rec = env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/start", otherToken,
		map[string]float64{})
	requireStatus(t, rec, http.StatusForbidden)
}

func TestRatingIsWriteOnce(t *testing.T) {
	env := newTestEnv(t)
	ticketID := env.fileTicket(t)
	env.clockInTech(t)
	env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/assign", env.adminToken,
		map[string]interface{}{"assignee_id": env.tech.ID})
	env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/start", env.techToken, map[string]float64{})
	env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/resolve", env.techToken,
		map[string]interface{}{"resolution_note": "fixed"})

	rec := env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/rate", env.branchMgrToken,
		map[string]interface{}{"score": 4, "comment": "quick work"})
	requireStatus(t, rec, http.StatusOK)

	rec = env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/rate", env.branchMgrToken,
		map[string]interface{}{"score": 1})
	requireStatus(t, rec, http.StatusConflict)

	rec = env.do(t, "POST", "/api/v1/tickets/"+ticketID.String()+"/rate", env.branchMgrToken,
		map[string]interface{}{"score": 9})
	requireStatus(t, rec, http.StatusBadRequest)
}
