package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/pkg/rbac"
	"github.com/stratusretail/fixhub/pkg/registry"
)

const dashboardCacheTTL = 30 * time.Second

type dashboardStats struct {
	TicketsByStatus   map[string]int64 `json:"tickets_by_status"`
	TicketsByPriority map[string]int64 `json:"tickets_by_priority"`
	OpenByBranch      []branchCount    `json:"open_by_branch"`
	AvgResolutionHrs  float64          `json:"avg_resolution_hours"`
	LowStockCount     int64            `json:"low_stock_count"`
	ActiveTechnicians int64            `json:"active_technicians"`
	GeneratedAt       time.Time        `json:"generated_at"`
}

type branchCount struct {
	BranchID   string `json:"branch_id"`
	BranchName string `json:"branch_name"`
	Count      int64  `json:"count"`
}

// Dashboard serves the batched KPI query. Results are cached in Redis per
// scope position for 30 seconds; a missing or failing cache degrades to a
// direct query.
func Dashboard(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	level, id := user.Scope()
	cacheKey := fmt.Sprintf("dashboard:%d:%s", level, id)

	if config.Cache != nil {
		if cached, err := config.Cache.Get(r.Context(), cacheKey).Bytes(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.Write(cached)
			return
		}
	}

	stats, err := computeDashboard(r.Context(), user)
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	body, err := json.Marshal(stats)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if config.Cache != nil {
		config.Cache.Set(r.Context(), cacheKey, body, dashboardCacheTTL)
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func computeDashboard(ctx context.Context, user *models.User) (*dashboardStats, error) {
	stats := &dashboardStats{
		TicketsByStatus:   map[string]int64{},
		TicketsByPriority: map[string]int64{},
		GeneratedAt:       time.Now().UTC(),
	}

	ticketBase := func() *gorm.DB {
		q := config.DB.WithContext(ctx).Table("tickets").Where("tickets.is_deleted = ?", false)
		return rbac.ApplyScope(q, user, "tickets")
	}

	var rows []countByRow
	if err := ticketBase().
		Select("tickets.status AS key, COUNT(*) AS count").
		Group("tickets.status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.TicketsByStatus[row.Key] = row.Count
	}

	rows = nil
	if err := ticketBase().
		Select("tickets.priority AS key, COUNT(*) AS count").
		Group("tickets.priority").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.TicketsByPriority[row.Key] = row.Count
	}

	if err := ticketBase().
		Joins("JOIN branches b ON b.id = tickets.branch_id").
		Where("tickets.status IN ?", []string{models.TicketOpen, models.TicketAssigned, models.TicketInProgress}).
		Select("tickets.branch_id AS branch_id, b.name AS branch_name, COUNT(*) AS count").
		Group("tickets.branch_id, b.name").
		Order("count DESC").Limit(10).
		Scan(&stats.OpenByBranch).Error; err != nil {
		return nil, err
	}

	// Average report-to-resolve time over the last 30 days, in hours.
	since := time.Now().UTC().AddDate(0, 0, -30)
	var resolvedTickets []models.Ticket
	if err := ticketBase().
		Where("tickets.resolved_at IS NOT NULL AND tickets.resolved_at >= ?", since).
		Select("tickets.created_at, tickets.resolved_at").
		Scan(&resolvedTickets).Error; err != nil {
		return nil, err
	}
	if len(resolvedTickets) > 0 {
		var total float64
		for _, t := range resolvedTickets {
			total += t.ResolvedAt.Sub(t.CreatedAt).Hours()
		}
		stats.AvgResolutionHrs = total / float64(len(resolvedTickets))
	}

	threshold := 5
	if desc := registry.Lookup("inventory_items"); desc != nil && desc.LowStockBelow > 0 {
		threshold = desc.LowStockBelow
	}
	invQ := config.DB.WithContext(ctx).Table("inventory_items").
		Where("inventory_items.is_deleted = ?", false).
		Where("inventory_items.quantity < ?", threshold)
	if err := rbac.ApplyScope(invQ, user, "inventory_items").
		Count(&stats.LowStockCount).Error; err != nil {
		return nil, err
	}

	attQ := config.DB.WithContext(ctx).Table("technician_attendances").
		Where("technician_attendances.clock_out_at IS NULL").
		Where("technician_attendances.is_deleted = ?", false)
	if err := rbac.ApplyScope(attQ, user, "technician_attendances").
		Count(&stats.ActiveTechnicians).Error; err != nil {
		return nil, err
	}

	return stats, nil
}
