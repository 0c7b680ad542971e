package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/pkg/rbac"
	"github.com/stratusretail/fixhub/realtime"
)

// validTransitions is the authoritative lifecycle. Every status change goes
// through canTransition; no handler writes the status column directly.
var validTransitions = map[string][]string{
	models.TicketOpen:       {models.TicketAssigned, models.TicketCancelled},
	models.TicketAssigned:   {models.TicketInProgress, models.TicketCancelled},
	models.TicketInProgress: {models.TicketResolved, models.TicketCancelled},
	models.TicketResolved:   {models.TicketClosed, models.TicketInProgress},
	models.TicketClosed:     {},
	models.TicketCancelled:  {},
}

func canTransition(from, to string) bool {
	return slices.Contains(validTransitions[from], to)
}

var validPriorities = []string{
	models.PriorityNormal, models.PriorityHigh, models.PriorityUrgent, models.PriorityCritical,
}

type createTicketReq struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	BranchID    uuid.UUID  `json:"branch_id"`
	AssetID     *uuid.UUID `json:"asset_id"`
	CategoryID  *uuid.UUID `json:"category_id"`
	ReportLat   float64    `json:"report_lat"`
	ReportLng   float64    `json:"report_lng"`
}

// CreateTicket files a fault report. The reporting branch must be inside
// the caller's scope; a branch manager cannot file against another branch.
func CreateTicket(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req createTicketReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.BranchID == uuid.Nil {
		http.Error(w, "title and branch_id are required", http.StatusBadRequest)
		return
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}
	if !slices.Contains(validPriorities, req.Priority) {
		http.Error(w, "unknown priority", http.StatusBadRequest)
		return
	}

	var visible int64
	q := rbac.ApplyScope(config.DB.Table("branches"), user, "branches")
	if err := q.Where("branches.id = ? AND branches.is_deleted = ?", req.BranchID, false).
		Count(&visible).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if visible == 0 {
		http.Error(w, "branch not in your scope", http.StatusForbidden)
		return
	}

	ticket := models.Ticket{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TicketOpen,
		Priority:    req.Priority,
		BranchID:    req.BranchID,
		AssetID:     req.AssetID,
		CategoryID:  req.CategoryID,
		CreatedBy:   user.ID,
		ReportLat:   req.ReportLat,
		ReportLng:   req.ReportLng,
	}
	if err := config.DB.Create(&ticket).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	realtime.Notify("tickets", "insert", ticket.ID.String(), user.ID.String())
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ticket)
}

// loadScopedTicket fetches a live ticket the caller is allowed to see.
func loadScopedTicket(user *models.User, id string) (*models.Ticket, error) {
	var ticket models.Ticket
	q := rbac.ApplyScope(config.DB.Table("tickets"), user, "tickets")
	err := q.Where("tickets.id = ? AND tickets.is_deleted = ?", id, false).
		Select("tickets.*").First(&ticket).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func writeTicketError(w http.ResponseWriter, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "ticket not found", http.StatusNotFound)
		return
	}
	http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
}

type transitionError struct{ from, to string }

func (e *transitionError) Error() string {
	return fmt.Sprintf("cannot move ticket from %s to %s", e.from, e.to)
}

// transition updates the ticket status inside tx after re-checking the
// lifecycle under the row lock, then appends the mission log entry.
func transition(tx *gorm.DB, ticket *models.Ticket, to string, actor uuid.UUID, lat, lng float64, note string) error {
	var current models.Ticket
	if err := tx.First(&current, "id = ?", ticket.ID).Error; err != nil {
		return err
	}
	if !canTransition(current.Status, to) {
		return &transitionError{from: current.Status, to: to}
	}
	ticket.Status = to
	if err := tx.Model(&models.Ticket{}).Where("id = ?", ticket.ID).
		Update("status", to).Error; err != nil {
		return err
	}
	logEntry := models.MissionLog{
		TicketID:     ticket.ID,
		TechnicianID: actor,
		Action:       to,
		Latitude:     lat,
		Longitude:    lng,
		Note:         note,
	}
	return tx.Create(&logEntry).Error
}

type assignReq struct {
	AssigneeID uuid.UUID `json:"assignee_id"`
}

// AssignTicket moves open -> assigned and pins the technician.
func AssignTicket(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req assignReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AssigneeID == uuid.Nil {
		http.Error(w, "assignee_id is required", http.StatusBadRequest)
		return
	}

	ticket, err := loadScopedTicket(user, mux.Vars(r)["id"])
	if err != nil {
		writeTicketError(w, err)
		return
	}

	var tech models.User
	if err := config.DB.First(&tech,
		"id = ? AND role = ? AND is_deleted = ? AND is_active = ?",
		req.AssigneeID, models.RoleTechnician, false, true).Error; err != nil {
		http.Error(w, "assignee is not an active technician", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := transition(tx, ticket, models.TicketAssigned, user.ID, 0, 0, "assigned to "+tech.Name); err != nil {
			return err
		}
		return tx.Model(&models.Ticket{}).Where("id = ?", ticket.ID).
			Updates(map[string]interface{}{"assignee_id": req.AssigneeID, "assigned_at": now}).Error
	})
	if err != nil {
		var te *transitionError
		if errors.As(err, &te) {
			http.Error(w, te.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	realtime.Notify("tickets", "update", ticket.ID.String(), user.ID.String())
	json.NewEncoder(w).Encode(map[string]string{"status": models.TicketAssigned})
}

type geoReq struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// StartTicket moves assigned -> in_progress. Only the assigned technician
// may start, and only while clocked in.
func StartTicket(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req geoReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	ticket, err := loadScopedTicket(user, mux.Vars(r)["id"])
	if err != nil {
		writeTicketError(w, err)
		return
	}
	if ticket.AssigneeID == nil || *ticket.AssigneeID != user.ID {
		http.Error(w, "ticket is not assigned to you", http.StatusForbidden)
		return
	}

	var open int64
	if err := config.DB.Model(&models.TechnicianAttendance{}).
		Where("technician_id = ? AND clock_out_at IS NULL AND is_deleted = ?", user.ID, false).
		Count(&open).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if open == 0 {
		http.Error(w, "clock in before starting work", http.StatusConflict)
		return
	}

	now := time.Now().UTC()
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := transition(tx, ticket, models.TicketInProgress, user.ID, req.Lat, req.Lng, ""); err != nil {
			return err
		}
		return tx.Model(&models.Ticket{}).Where("id = ?", ticket.ID).
			Updates(map[string]interface{}{
				"started_at": now, "start_lat": req.Lat, "start_lng": req.Lng,
			}).Error
	})
	if err != nil {
		var te *transitionError
		if errors.As(err, &te) {
			http.Error(w, te.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	realtime.Notify("tickets", "update", ticket.ID.String(), user.ID.String())
	json.NewEncoder(w).Encode(map[string]string{"status": models.TicketInProgress})
}

type resolvePartReq struct {
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int       `json:"quantity"`
}

type resolveReq struct {
	ResolutionNote string           `json:"resolution_note"`
	LaborCost      decimal.Decimal  `json:"labor_cost"`
	Lat            float64          `json:"lat"`
	Lng            float64          `json:"lng"`
	Parts          []resolvePartReq `json:"parts"`
}

// ResolveTicket moves in_progress -> resolved. Stock checks, stock
// decrements, the per-part inventory transactions, the cost roll-up and the
// mission log all commit in one database transaction or not at all.
func ResolveTicket(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req resolveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.ResolutionNote == "" {
		http.Error(w, "resolution_note is required", http.StatusBadRequest)
		return
	}
	for _, part := range req.Parts {
		if part.Quantity < 1 {
			http.Error(w, "part quantity must be at least 1", http.StatusBadRequest)
			return
		}
	}

	ticket, err := loadScopedTicket(user, mux.Vars(r)["id"])
	if err != nil {
		writeTicketError(w, err)
		return
	}
	if ticket.AssigneeID == nil || *ticket.AssigneeID != user.ID {
		http.Error(w, "ticket is not assigned to you", http.StatusForbidden)
		return
	}

	now := time.Now().UTC()
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		partsCost := decimal.Zero
		for _, part := range req.Parts {
			var item models.InventoryItem
			if err := tx.First(&item, "id = ? AND is_deleted = ?", part.ItemID, false).Error; err != nil {
				return fmt.Errorf("inventory item %s: %w", part.ItemID, err)
			}
			if item.Quantity < part.Quantity {
				return fmt.Errorf("insufficient stock for %s: have %d, need %d",
					item.Name, item.Quantity, part.Quantity)
			}
			if err := tx.Model(&models.InventoryItem{}).Where("id = ?", item.ID).
				Update("quantity", gorm.Expr("quantity - ?", part.Quantity)).Error; err != nil {
				return err
			}
			lineCost := item.UnitCost.Mul(decimal.NewFromInt(int64(part.Quantity)))
			partsCost = partsCost.Add(lineCost)
			txn := models.InventoryTransaction{
				ItemID:       item.ID,
				TicketID:     &ticket.ID,
				TechnicianID: &user.ID,
				QuantityUsed: part.Quantity,
				Direction:    models.InventoryOut,
				TotalCost:    lineCost,
			}
			if err := tx.Create(&txn).Error; err != nil {
				return err
			}
		}

		if err := transition(tx, ticket, models.TicketResolved, user.ID, req.Lat, req.Lng, req.ResolutionNote); err != nil {
			return err
		}
		return tx.Model(&models.Ticket{}).Where("id = ?", ticket.ID).
			Updates(map[string]interface{}{
				"resolved_at":     now,
				"resolve_lat":     req.Lat,
				"resolve_lng":     req.Lng,
				"resolution_note": req.ResolutionNote,
				"parts_cost":      partsCost,
				"labor_cost":      req.LaborCost,
			}).Error
	})
	if err != nil {
		var te *transitionError
		if errors.As(err, &te) {
			http.Error(w, te.Error(), http.StatusConflict)
			return
		}
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	realtime.Notify("tickets", "update", ticket.ID.String(), user.ID.String())
	json.NewEncoder(w).Encode(map[string]string{"status": models.TicketResolved})
}

// CloseTicket moves resolved -> closed, typically after the branch manager
// confirms the fix.
func CloseTicket(w http.ResponseWriter, r *http.Request) {
	simpleTransition(w, r, models.TicketClosed, "closed_at")
}

// CancelTicket abandons a ticket from any pre-resolution status.
func CancelTicket(w http.ResponseWriter, r *http.Request) {
	simpleTransition(w, r, models.TicketCancelled, "")
}

// ReopenTicket moves resolved -> in_progress when the fix didn't hold. This
// is the only path backwards in the lifecycle.
func ReopenTicket(w http.ResponseWriter, r *http.Request) {
	simpleTransition(w, r, models.TicketInProgress, "")
}

func simpleTransition(w http.ResponseWriter, r *http.Request, to, timestampColumn string) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req struct {
		Note string `json:"note"`
	}
	json.NewDecoder(r.Body).Decode(&req) // body optional

	ticket, err := loadScopedTicket(user, mux.Vars(r)["id"])
	if err != nil {
		writeTicketError(w, err)
		return
	}

	err = config.DB.Transaction(func(tx *gorm.DB) error {
		if err := transition(tx, ticket, to, user.ID, 0, 0, req.Note); err != nil {
			return err
		}
		if timestampColumn != "" {
			return tx.Model(&models.Ticket{}).Where("id = ?", ticket.ID).
				Update(timestampColumn, time.Now().UTC()).Error
		}
		return nil
	})
	if err != nil {
		var te *transitionError
		if errors.As(err, &te) {
			http.Error(w, te.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	realtime.Notify("tickets", "update", ticket.ID.String(), user.ID.String())
	json.NewEncoder(w).Encode(map[string]string{"status": to})
}

type rateReq struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// RateTicket records the reporting side's satisfaction score on a resolved
// or closed ticket. Ratings are write-once.
func RateTicket(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req rateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Score < 1 || req.Score > 5 {
		http.Error(w, "score must be between 1 and 5", http.StatusBadRequest)
		return
	}

	ticket, err := loadScopedTicket(user, mux.Vars(r)["id"])
	if err != nil {
		writeTicketError(w, err)
		return
	}
	if ticket.Status != models.TicketResolved && ticket.Status != models.TicketClosed {
		http.Error(w, "only resolved or closed tickets can be rated", http.StatusConflict)
		return
	}
	if ticket.RatingScore != nil {
		http.Error(w, "ticket already rated", http.StatusConflict)
		return
	}

	if err := config.DB.Model(&models.Ticket{}).Where("id = ?", ticket.ID).
		Updates(map[string]interface{}{
			"rating_score":   req.Score,
			"rating_comment": req.Comment,
		}).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	realtime.Notify("tickets", "update", ticket.ID.String(), user.ID.String())
	json.NewEncoder(w).Encode(map[string]interface{}{"rating_score": req.Score})
}

// TicketTimeline returns the mission log entries for one ticket, oldest
// first.
func TicketTimeline(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	ticket, err := loadScopedTicket(user, mux.Vars(r)["id"])
	if err != nil {
		writeTicketError(w, err)
		return
	}
	var logs []models.MissionLog
	if err := config.DB.Where("ticket_id = ?", ticket.ID).
		Order("created_at").Find(&logs).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(logs)
}
