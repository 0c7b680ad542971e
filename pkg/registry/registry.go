package registry

import (
	"github.com/stratusretail/fixhub/models"
)

// ScopeRule tells the RBAC filter how to reach the scoping column for one
// hierarchy level: an optional inner join chain plus the qualified column
// the user's hierarchy id is compared against.
type ScopeRule struct {
	Join   string
	Column string
}

// Metric is one aggregated KPI computed by the batched metrics query.
type Metric struct {
	Name   string // response key
	Kind   string // count_by | sum | avg
	Column string // grouped or aggregated column
}

// Descriptor is the compiled-in metadata for one core table. Pure data; the
// database-backed UISchema layer supersedes it for user-editable display
// config (see Resolve).
type Descriptor struct {
	Table         string
	Preloads      []string
	ScopeJoins    map[models.ScopeLevel]ScopeRule
	StatusLabels  map[string]string
	StatusColors  map[string]string
	RowActions    []string
	FilterColumns []string
	Metrics       []Metric

	// LowStockColumn flags rows where the named numeric column drops below
	// LowStockBelow (list views render these as warnings).
	LowStockColumn string
	LowStockBelow  int
}

var ticketScope = map[models.ScopeLevel]ScopeRule{
	models.ScopeBranch: {Column: "tickets.branch_id"},
	models.ScopeArea: {
		Join:   "JOIN branches ON branches.id = tickets.branch_id",
		Column: "branches.area_id",
	},
	models.ScopeSector: {
		Join:   "JOIN branches ON branches.id = tickets.branch_id JOIN areas ON areas.id = branches.area_id",
		Column: "areas.sector_id",
	},
	models.ScopeBrand: {
		Join:   "JOIN branches ON branches.id = tickets.branch_id JOIN areas ON areas.id = branches.area_id JOIN sectors ON sectors.id = areas.sector_id",
		Column: "sectors.brand_id",
	},
}

// branchJoined builds the scope rules for tables that carry a direct
// branch_id column, reaching higher levels through the hierarchy joins.
func branchJoined(table string) map[models.ScopeLevel]ScopeRule {
	return map[models.ScopeLevel]ScopeRule{
		models.ScopeBranch: {Column: table + ".branch_id"},
		models.ScopeArea: {
			Join:   "JOIN branches ON branches.id = " + table + ".branch_id",
			Column: "branches.area_id",
		},
		models.ScopeSector: {
			Join:   "JOIN branches ON branches.id = " + table + ".branch_id JOIN areas ON areas.id = branches.area_id",
			Column: "areas.sector_id",
		},
		models.ScopeBrand: {
			Join:   "JOIN branches ON branches.id = " + table + ".branch_id JOIN areas ON areas.id = branches.area_id JOIN sectors ON sectors.id = areas.sector_id",
			Column: "sectors.brand_id",
		},
	}
}

var ticketStatusLabels = map[string]string{
	models.TicketOpen:       "Open",
	models.TicketAssigned:   "Assigned",
	models.TicketInProgress: "In Progress",
	models.TicketResolved:   "Resolved",
	models.TicketClosed:     "Closed",
	models.TicketCancelled:  "Cancelled",
}

var ticketStatusColors = map[string]string{
	models.TicketOpen:       "red",
	models.TicketAssigned:   "orange",
	models.TicketInProgress: "blue",
	models.TicketResolved:   "teal",
	models.TicketClosed:     "green",
	models.TicketCancelled:  "gray",
}

// descriptors is the static registry. Never mutated after init; tables
// absent here fall back to select-all with no scoping or formatting.
var descriptors = map[string]*Descriptor{
	"tickets": {
		Table:         "tickets",
		Preloads:      []string{"Branch", "Asset", "Category", "Assignee"},
		ScopeJoins:    ticketScope,
		StatusLabels:  ticketStatusLabels,
		StatusColors:  ticketStatusColors,
		RowActions:    []string{"edit", "delete", "assign", "rate"},
		FilterColumns: []string{"status", "priority", "branch_id", "assignee_id", "category_id", "created_at"},
		Metrics: []Metric{
			{Name: "by_status", Kind: "count_by", Column: "status"},
			{Name: "by_priority", Kind: "count_by", Column: "priority"},
			{Name: "parts_cost_total", Kind: "sum", Column: "parts_cost"},
			{Name: "labor_cost_total", Kind: "sum", Column: "labor_cost"},
		},
	},
	"inventory_items": {
		Table:          "inventory_items",
		Preloads:       []string{"Branch"},
		ScopeJoins:     branchJoined("inventory_items"),
		RowActions:     []string{"edit", "delete", "restock"},
		FilterColumns:  []string{"branch_id", "sku"},
		LowStockColumn: "quantity",
		LowStockBelow:  5,
		Metrics: []Metric{
			{Name: "stock_total", Kind: "sum", Column: "quantity"},
			{Name: "unit_cost_avg", Kind: "avg", Column: "unit_cost"},
		},
	},
	"inventory_transactions": {
		Table:         "inventory_transactions",
		Preloads:      []string{"Item"},
		FilterColumns: []string{"item_id", "ticket_id", "direction", "created_at"},
		Metrics: []Metric{
			{Name: "by_direction", Kind: "count_by", Column: "direction"},
			{Name: "quantity_total", Kind: "sum", Column: "quantity_used"},
		},
	},
	"technician_attendances": {
		Table:         "technician_attendances",
		Preloads:      []string{"Technician"},
		ScopeJoins:    branchJoined("technician_attendances"),
		FilterColumns: []string{"technician_id", "branch_id", "clock_in_at"},
	},
	"payroll_logs": {
		Table:    "payroll_logs",
		Preloads: []string{"Technician"},
		ScopeJoins: map[models.ScopeLevel]ScopeRule{
			models.ScopeBranch: {
				Join:   "JOIN users ON users.id = payroll_logs.technician_id",
				Column: "users.branch_id",
			},
			models.ScopeArea: {
				Join:   "JOIN users ON users.id = payroll_logs.technician_id JOIN branches ON branches.id = users.branch_id",
				Column: "branches.area_id",
			},
			models.ScopeSector: {
				Join:   "JOIN users ON users.id = payroll_logs.technician_id JOIN branches ON branches.id = users.branch_id JOIN areas ON areas.id = branches.area_id",
				Column: "areas.sector_id",
			},
			models.ScopeBrand: {
				Join:   "JOIN users ON users.id = payroll_logs.technician_id JOIN branches ON branches.id = users.branch_id JOIN areas ON areas.id = branches.area_id JOIN sectors ON sectors.id = areas.sector_id",
				Column: "sectors.brand_id",
			},
		},
		FilterColumns: []string{"technician_id", "date"},
		Metrics: []Metric{
			{Name: "total_paid", Kind: "sum", Column: "total"},
			{Name: "hours_total", Kind: "sum", Column: "hours_worked"},
		},
	},
	"users": {
		Table: "users",
		ScopeJoins: map[models.ScopeLevel]ScopeRule{
			models.ScopeBranch: {Column: "users.branch_id"},
			models.ScopeArea:   {Column: "users.area_id"},
			models.ScopeSector: {Column: "users.sector_id"},
			models.ScopeBrand:  {Column: "users.brand_id"},
		},
		RowActions:    []string{"edit", "delete"},
		FilterColumns: []string{"role", "branch_id", "is_active"},
	},
	"brands": {
		Table: "brands",
		ScopeJoins: map[models.ScopeLevel]ScopeRule{
			models.ScopeBranch: {
				Join:   "JOIN sectors ON sectors.brand_id = brands.id JOIN areas ON areas.sector_id = sectors.id JOIN branches ON branches.area_id = areas.id",
				Column: "branches.id",
			},
			models.ScopeArea: {
				Join:   "JOIN sectors ON sectors.brand_id = brands.id JOIN areas ON areas.sector_id = sectors.id",
				Column: "areas.id",
			},
			models.ScopeSector: {
				Join:   "JOIN sectors ON sectors.brand_id = brands.id",
				Column: "sectors.id",
			},
			models.ScopeBrand: {Column: "brands.id"},
		},
		RowActions: []string{"edit", "delete"},
	},
	"sectors": {
		Table: "sectors",
		ScopeJoins: map[models.ScopeLevel]ScopeRule{
			models.ScopeBranch: {
				Join:   "JOIN areas ON areas.sector_id = sectors.id JOIN branches ON branches.area_id = areas.id",
				Column: "branches.id",
			},
			models.ScopeArea: {
				Join:   "JOIN areas ON areas.sector_id = sectors.id",
				Column: "areas.id",
			},
			models.ScopeSector: {Column: "sectors.id"},
			models.ScopeBrand:  {Column: "sectors.brand_id"},
		},
		RowActions:    []string{"edit", "delete"},
		FilterColumns: []string{"brand_id"},
	},
	"areas": {
		Table: "areas",
		ScopeJoins: map[models.ScopeLevel]ScopeRule{
			models.ScopeBranch: {
				Join:   "JOIN branches ON branches.area_id = areas.id",
				Column: "branches.id",
			},
			models.ScopeArea:   {Column: "areas.id"},
			models.ScopeSector: {Column: "areas.sector_id"},
			models.ScopeBrand: {
				Join:   "JOIN sectors ON sectors.id = areas.sector_id",
				Column: "sectors.brand_id",
			},
		},
		RowActions:    []string{"edit", "delete"},
		FilterColumns: []string{"sector_id"},
	},
	"branches": {
		Table: "branches",
		ScopeJoins: map[models.ScopeLevel]ScopeRule{
			models.ScopeBranch: {Column: "branches.id"},
			models.ScopeArea:   {Column: "branches.area_id"},
			models.ScopeSector: {
				Join:   "JOIN areas ON areas.id = branches.area_id",
				Column: "areas.sector_id",
			},
			models.ScopeBrand: {
				Join:   "JOIN areas ON areas.id = branches.area_id JOIN sectors ON sectors.id = areas.sector_id",
				Column: "sectors.brand_id",
			},
		},
		Preloads:      []string{"Area"},
		RowActions:    []string{"edit", "delete"},
		FilterColumns: []string{"area_id"},
	},
	"assets": {
		Table:         "assets",
		Preloads:      []string{"Branch"},
		ScopeJoins:    branchJoined("assets"),
		RowActions:    []string{"edit", "delete"},
		FilterColumns: []string{"branch_id"},
	},
	"ticket_categories": {
		Table:      "ticket_categories",
		RowActions: []string{"edit", "delete"},
	},
	"shifts": {
		Table:         "shifts",
		ScopeJoins:    branchJoined("shifts"),
		FilterColumns: []string{"technician_id", "branch_id", "weekday"},
	},
}

// Lookup returns the descriptor for a table, or nil when the table is not
// part of the compiled-in registry.
func Lookup(table string) *Descriptor {
	return descriptors[table]
}

// Tables lists every registered table name.
func Tables() []string {
	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	return names
}
