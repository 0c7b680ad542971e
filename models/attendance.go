package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Shift defines a technician's planned working window at a branch.
type Shift struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TechnicianID uuid.UUID `gorm:"type:uuid;not null;index" json:"technician_id"`
	BranchID     uuid.UUID `gorm:"type:uuid;not null;index" json:"branch_id"`
	StartTime    string    `gorm:"size:5;not null" json:"start_time"` // "08:00"
	EndTime      string    `gorm:"size:5;not null" json:"end_time"`   // "17:00"
	Weekday      int       `gorm:"not null" json:"weekday"`           // 0=Sunday
	IsDeleted    bool      `gorm:"default:false" json:"is_deleted"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Shift) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return
}

// TechnicianAttendance is one clock-in/clock-out pair with the coordinates
// each action was taken from. An open record (ClockOutAt == nil) is what
// gates whether the technician may start ticket work.
type TechnicianAttendance struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TechnicianID uuid.UUID  `gorm:"type:uuid;not null;index" json:"technician_id"`
	Technician   *User      `gorm:"foreignKey:TechnicianID" json:"technician,omitempty"`
	BranchID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"branch_id"`
	ClockInAt    time.Time  `gorm:"not null" json:"clock_in_at"`
	ClockInLat   float64    `json:"clock_in_lat"`
	ClockInLng   float64    `json:"clock_in_lng"`
	ClockOutAt   *time.Time `json:"clock_out_at,omitempty"`
	ClockOutLat  float64    `json:"clock_out_lat"`
	ClockOutLng  float64    `json:"clock_out_lng"`
	IsDeleted    bool       `gorm:"default:false" json:"is_deleted"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (a *TechnicianAttendance) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
