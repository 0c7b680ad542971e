package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/pkg/rbac"
	"github.com/stratusretail/fixhub/pkg/registry"
)

const (
	fetchAllChunk = 1000
	fetchAllCap   = 10000
)

// modelSliceFor returns a typed destination slice for tables with GORM
// models, enabling relation preloads. Dynamic tables fall back to maps.
func modelSliceFor(table string) (interface{}, bool) {
	switch table {
	case "tickets":
		return &[]models.Ticket{}, true
	case "users":
		return &[]models.User{}, true
	case "branches":
		return &[]models.Branch{}, true
	case "areas":
		return &[]models.Area{}, true
	case "sectors":
		return &[]models.Sector{}, true
	case "brands":
		return &[]models.Brand{}, true
	case "assets":
		return &[]models.Asset{}, true
	case "ticket_categories":
		return &[]models.TicketCategory{}, true
	case "inventory_items":
		return &[]models.InventoryItem{}, true
	case "inventory_transactions":
		return &[]models.InventoryTransaction{}, true
	case "technician_attendances":
		return &[]models.TechnicianAttendance{}, true
	case "payroll_logs":
		return &[]models.PayrollLog{}, true
	case "shifts":
		return &[]models.Shift{}, true
	case "mission_logs":
		return &[]models.MissionLog{}, true
	}
	return nil, false
}

// missingColumn detects "column does not exist" across postgres (42703) and
// sqlite, used to retry reference tables that never grew an is_deleted column.
func missingColumn(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "42703") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "no such column")
}

// scopedQuery builds the base query for a table: soft-delete filter, RBAC
// scope, and the caller's list filters.
func scopedQuery(user *models.User, table string, params *models.ListParams) *gorm.DB {
	q := config.DB.Table(table)
	q = rbac.ApplyScope(q, user, table)
	if params != nil {
		q = params.Apply(q)
	}
	return q
}

type listResponse struct {
	Data     interface{}            `json:"data"`
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
	Schema   *registry.Resolved     `json:"schema,omitempty"`
	Metrics  map[string]interface{} `json:"metrics,omitempty"`
}

// ListTableData serves GET /data/{table}: one paged, scoped, filtered page
// of rows plus the resolved display schema.
func ListTableData(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	resolved, err := registry.Resolve(config.DB, table)
	if err != nil {
		if err == registry.ErrUnknownTable {
			http.Error(w, "unknown table", http.StatusNotFound)
		} else {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	if !rbac.CanSeeTable(user, table) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	params, err := models.ParseListParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	total, err := countRows(user, table, params)
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	rows, err := loadRows(user, resolved, params, params.PageSize, params.Offset())
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := listResponse{
		Data:     rows,
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
		Schema:   resolved,
	}
	if r.URL.Query().Get("with_metrics") == "true" && resolved.Descriptor != nil {
		metrics, err := computeMetrics(user, table, resolved.Descriptor, params)
		if err != nil {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		resp.Metrics = metrics
	}
	json.NewEncoder(w).Encode(resp)
}

func countRows(user *models.User, table string, params *models.ListParams) (int64, error) {
	var total int64
	err := scopedQuery(user, table, params).
		Where(table+".is_deleted = ?", false).Count(&total).Error
	if missingColumn(err) {
		err = scopedQuery(user, table, params).Count(&total).Error
	}
	return total, err
}

func loadRows(user *models.User, resolved *registry.Resolved, params *models.ListParams, limit, offset int) (interface{}, error) {
	table := resolved.Table

	build := func(withDeletedFilter bool) *gorm.DB {
		// Scope joins bring in columns that shadow the table's own on a
		// bare SELECT *, so always project the base table explicitly.
		q := scopedQuery(user, table, params).Select(table + ".*")
		if withDeletedFilter {
			q = q.Where(table + ".is_deleted = false")
		}
		q = params.ApplySort(q)
		if params.SortBy == "" {
			q = q.Order(table + ".created_at DESC")
		}
		return q.Limit(limit).Offset(offset)
	}

	dest, typed := modelSliceFor(table)
	if !typed {
		var rows []map[string]interface{}
		err := build(true).Find(&rows).Error
		if missingColumn(err) {
			rows = nil
			err = build(false).Find(&rows).Error
		}
		return rows, err
	}

	q := build(true)
	if resolved.Descriptor != nil {
		for _, preload := range resolved.Descriptor.Preloads {
			q = q.Preload(preload)
		}
	}
	err := q.Find(dest).Error
	if missingColumn(err) {
		q = build(false)
		if resolved.Descriptor != nil {
			for _, preload := range resolved.Descriptor.Preloads {
				q = q.Preload(preload)
			}
		}
		err = q.Find(dest).Error
	}
	return dest, err
}

// TableCount serves GET /data/{table}/count.
func TableCount(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := registry.Resolve(config.DB, table); err != nil {
		http.Error(w, "unknown table", http.StatusNotFound)
		return
	}
	params, err := models.ParseListParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	total, err := countRows(user, table, params)
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]int64{"count": total})
}

type countByRow struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// computeMetrics runs every metric of the descriptor against the caller's
// scoped, filtered row set in one pass per metric.
func computeMetrics(user *models.User, table string, desc *registry.Descriptor, params *models.ListParams) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(desc.Metrics))
	for _, metric := range desc.Metrics {
		base := scopedQuery(user, table, params)
		base = base.Where(table + ".is_deleted = false")

		switch metric.Kind {
		case "count_by":
			var rows []countByRow
			err := base.
				Select(table + "." + metric.Column + " AS key, COUNT(*) AS count").
				Group(table + "." + metric.Column).
				Scan(&rows).Error
			if missingColumn(err) {
				rows = nil
				err = scopedQuery(user, table, params).
					Select(table + "." + metric.Column + " AS key, COUNT(*) AS count").
					Group(table + "." + metric.Column).
					Scan(&rows).Error
			}
			if err != nil {
				return nil, err
			}
			grouped := make(map[string]int64, len(rows))
			for _, row := range rows {
				grouped[row.Key] = row.Count
			}
			out[metric.Name] = grouped

		case "sum", "avg":
			fn := "SUM"
			if metric.Kind == "avg" {
				fn = "AVG"
			}
			var value float64
			err := base.
				Select("COALESCE(" + fn + "(" + table + "." + metric.Column + "), 0)").
				Scan(&value).Error
			if err != nil {
				return nil, err
			}
			out[metric.Name] = value
		}
	}

	if desc.LowStockColumn != "" {
		var low int64
		err := scopedQuery(user, table, params).
			Where(table+".is_deleted = false").
			Where(table+"."+desc.LowStockColumn+" < ?", desc.LowStockBelow).
			Count(&low).Error
		if err != nil {
			return nil, err
		}
		out["low_stock"] = low
	}
	return out, nil
}

// TableMetrics serves GET /data/{table}/metrics.
func TableMetrics(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	desc := registry.Lookup(table)
	if desc == nil {
		http.Error(w, "no metrics for table", http.StatusNotFound)
		return
	}
	params, err := models.ParseListParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	metrics, err := computeMetrics(user, table, desc, params)
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(metrics)
}

// FetchAllTableData streams the full scoped row set in fixed-size chunks,
// capped to keep one request from dragging the whole table over the wire.
// Used by the exporter and the offline-first clients' initial sync.
func FetchAllTableData(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	resolved, err := registry.Resolve(config.DB, table)
	if err != nil {
		http.Error(w, "unknown table", http.StatusNotFound)
		return
	}
	if !rbac.CanSeeTable(user, table) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	params, err := models.ParseListParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := fetchAll(user, resolved, params)
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":  rows,
		"total": len(rows),
	})
}

// fetchAll pages through the table in chunks and returns flattened maps so
// dynamic and typed tables share one shape.
func fetchAll(user *models.User, resolved *registry.Resolved, params *models.ListParams) ([]map[string]interface{}, error) {
	var all []map[string]interface{}
	for offset := 0; offset < fetchAllCap; offset += fetchAllChunk {
		var chunk []map[string]interface{}
		build := func(withDeletedFilter bool) *gorm.DB {
			q := scopedQuery(user, resolved.Table, params).Select(resolved.Table + ".*")
			if withDeletedFilter {
				q = q.Where(resolved.Table + ".is_deleted = false")
			}
			return q.Order(resolved.Table + ".created_at").
				Limit(fetchAllChunk).Offset(offset)
		}
		err := build(true).Find(&chunk).Error
		if missingColumn(err) {
			chunk = nil
			err = build(false).Find(&chunk).Error
		}
		if err != nil {
			return nil, err
		}
		all = append(all, chunk...)
		if len(chunk) < fetchAllChunk {
			break
		}
	}
	return all, nil
}
