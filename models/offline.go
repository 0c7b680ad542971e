package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	OfflineInsert = "insert"
	OfflineUpdate = "update"
	OfflineDelete = "delete"

	// Actions still failing after this many replays are parked instead of
	// retrying every flush cycle forever.
	OfflineMaxRetries = 5

	OfflinePending    = "pending"
	OfflineDeadLetter = "dead_letter"
)

// OfflineAction is one queued pending write captured while a client was
// disconnected. The flusher replays rows FIFO; success removes the row,
// failure increments RetryCount until the dead-letter cap.
type OfflineAction struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	TableName  string         `gorm:"size:63;not null" json:"table_name"`
	Action     string         `gorm:"size:10;not null" json:"action"`
	Payload    datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	Filter     datatypes.JSON `gorm:"type:jsonb" json:"filter,omitempty"`
	RetryCount int            `gorm:"default:0" json:"retry_count"`
	Status     string         `gorm:"size:20;not null;default:'pending';index" json:"status"`
	LastError  string         `gorm:"size:500" json:"last_error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (a *OfflineAction) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
