package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Ticket statuses. Lifecycle: open -> assigned -> in_progress -> resolved ->
// closed; cancelled is reachable from open/assigned/in_progress; resolved ->
// in_progress is the only reopen.
const (
	TicketOpen       = "open"
	TicketAssigned   = "assigned"
	TicketInProgress = "in_progress"
	TicketResolved   = "resolved"
	TicketClosed     = "closed"
	TicketCancelled  = "cancelled"
)

const (
	PriorityNormal   = "normal"
	PriorityHigh     = "high"
	PriorityUrgent   = "urgent"
	PriorityCritical = "critical"
)

// Ticket is a maintenance fault report filed by a branch manager against a
// branch asset and worked by a technician. Coordinates are captured three
// times: when reported, when work starts, and when resolved.
type Ticket struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Status      string     `gorm:"size:20;not null;default:'open';index" json:"status"`
	Priority    string     `gorm:"size:20;not null;default:'normal';index" json:"priority"`

	BranchID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"branch_id"`
	Branch     *Branch         `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	AssetID    *uuid.UUID      `gorm:"type:uuid;index" json:"asset_id,omitempty"`
	Asset      *Asset          `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
	CategoryID *uuid.UUID      `gorm:"type:uuid;index" json:"category_id,omitempty"`
	Category   *TicketCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	AssigneeID *uuid.UUID      `gorm:"type:uuid;index" json:"assignee_id,omitempty"`
	Assignee   *User           `gorm:"foreignKey:AssigneeID" json:"assignee,omitempty"`
	CreatedBy  uuid.UUID       `gorm:"type:uuid;not null" json:"created_by"`

	ReportLat  float64 `json:"report_lat"`
	ReportLng  float64 `json:"report_lng"`
	StartLat   float64 `json:"start_lat"`
	StartLng   float64 `json:"start_lng"`
	ResolveLat float64 `json:"resolve_lat"`
	ResolveLng float64 `json:"resolve_lng"`

	PartsCost decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"parts_cost"`
	LaborCost decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"labor_cost"`

	ResolutionNote string     `gorm:"type:text" json:"resolution_note,omitempty"`
	RatingScore    *int       `json:"rating_score,omitempty"`
	RatingComment  string     `gorm:"size:500" json:"rating_comment,omitempty"`
	AssignedAt     *time.Time `json:"assigned_at,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`

	IsDeleted bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *Ticket) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}

// Asset is a piece of branch equipment tickets are filed against.
type Asset struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Code      string    `gorm:"size:50;uniqueIndex;not null" json:"code"`
	BranchID  uuid.UUID `gorm:"type:uuid;not null;index" json:"branch_id"`
	Branch    *Branch   `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	IsDeleted bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Asset) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

// TicketCategory is a global fault-type lookup (electrical, plumbing, ...).
type TicketCategory struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	IsDeleted bool      `gorm:"default:false" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *TicketCategory) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// MissionLog records one unit of technician field work against a ticket,
// written in the same transaction as the lifecycle change it belongs to.
type MissionLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TicketID     uuid.UUID `gorm:"type:uuid;not null;index" json:"ticket_id"`
	TechnicianID uuid.UUID `gorm:"type:uuid;not null;index" json:"technician_id"`
	Action       string    `gorm:"size:50;not null" json:"action"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Note         string    `gorm:"size:500" json:"note,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (m *MissionLog) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}
