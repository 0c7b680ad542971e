package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	InventoryOut = "out"
	InventoryIn  = "in"
)

// InventoryItem is a stocked spare part held at a branch. Quantity is only
// mutated inside the ticket resolve transaction or by an explicit restock.
type InventoryItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string          `gorm:"size:100;not null" json:"name"`
	SKU       string          `gorm:"size:50;uniqueIndex;not null" json:"sku"`
	BranchID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"branch_id"`
	Branch    *Branch         `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	Quantity  int             `gorm:"not null;default:0" json:"quantity"`
	UnitCost  decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"unit_cost"`
	IsDeleted bool            `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (i *InventoryItem) BeforeCreate(tx *gorm.DB) (err error) {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return
}

// InventoryTransaction records one consumption or restock movement. Exactly
// one row is written per part consumed during a ticket resolve.
type InventoryTransaction struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"item_id"`
	Item         *InventoryItem  `gorm:"foreignKey:ItemID" json:"item,omitempty"`
	TicketID     *uuid.UUID      `gorm:"type:uuid;index" json:"ticket_id,omitempty"`
	TechnicianID *uuid.UUID      `gorm:"type:uuid;index" json:"technician_id,omitempty"`
	QuantityUsed int             `gorm:"not null" json:"quantity_used"`
	Direction    string          `gorm:"size:10;not null" json:"direction"` // out | in
	TotalCost    decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"total_cost"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (t *InventoryTransaction) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}
