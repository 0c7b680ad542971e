package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PayrollLog is one technician's computed earnings for one calendar day:
// base pay for hours clocked, a per-resolved-ticket allowance, and a bonus
// above a daily resolution threshold. Unique per technician+date so the
// daily computation can be re-run safely.
type PayrollLog struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	TechnicianID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_payroll_tech_date" json:"technician_id"`
	Technician      *User           `gorm:"foreignKey:TechnicianID" json:"technician,omitempty"`
	Date            string          `gorm:"size:10;not null;uniqueIndex:idx_payroll_tech_date" json:"date"` // "2026-08-29"
	HoursWorked     float64         `json:"hours_worked"`
	TicketsResolved int             `json:"tickets_resolved"`
	BasePay         decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"base_pay"`
	Allowance       decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"allowance"`
	Bonus           decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"bonus"`
	Total           decimal.Decimal `gorm:"type:decimal(15,2);default:0" json:"total"`
	IsDeleted       bool            `gorm:"default:false" json:"is_deleted"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (p *PayrollLog) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
