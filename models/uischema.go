package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Field roles carried as explicit metadata rather than inferred from field
// names, so geo auto-fill and foreign-key resolution have no guesswork.
const (
	FieldRoleLatitude  = "latitude"
	FieldRoleLongitude = "longitude"
	// Foreign keys use the form "fk:<table>", e.g. "fk:branches".
)

// FormField describes one data-entry input rendered by clients.
type FormField struct {
	Key        string `json:"key"`
	Label      string `json:"label"`
	Type       string `json:"type"` // text|number|email|textarea|select|checkbox|image|hidden|date|datetime
	Required   bool   `json:"required"`
	DataSource string `json:"data_source,omitempty"` // lookup table for select options
	Role       string `json:"role,omitempty"`        // latitude|longitude|fk:<table>
	MaxLength  int    `json:"max_length,omitempty"`
}

// ListColumn describes one displayed column and how its cells are formatted.
type ListColumn struct {
	Key      string `json:"key"`
	Label    string `json:"label"`
	CellType string `json:"cell_type"` // status|date|datetime|checkbox|badge|text
}

// FormFields and ListColumns are stored as JSONB.
type FormFields []FormField

func (f *FormFields) Scan(value interface{}) error {
	if value == nil {
		*f = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			b = []byte(s)
		} else {
			*f = nil
			return nil
		}
	}
	return json.Unmarshal(b, f)
}

func (f FormFields) Value() (driver.Value, error) {
	if f == nil {
		return json.Marshal([]FormField{})
	}
	return json.Marshal(f)
}

type ListColumns []ListColumn

func (c *ListColumns) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			b = []byte(s)
		} else {
			*c = nil
			return nil
		}
	}
	return json.Unmarshal(b, c)
}

func (c ListColumns) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal([]ListColumn{})
	}
	return json.Marshal(c)
}

// UISchema is the database-backed, runtime-editable table descriptor: one row
// per table, maintained through the admin schema builder. The static registry
// supersedes it for scope/join/status vocabulary; UISchema wins for display
// columns and form fields.
type UISchema struct {
	ID          uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	TableName   string      `gorm:"size:63;uniqueIndex;not null" json:"table_name"`
	DisplayName string      `gorm:"size:100" json:"display_name"`
	ListColumns ListColumns `gorm:"type:jsonb" json:"list_columns"`
	FormFields  FormFields  `gorm:"type:jsonb" json:"form_fields"`
	IsDeleted   bool        `gorm:"default:false" json:"is_deleted"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (s *UISchema) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return
}
