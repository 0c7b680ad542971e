package registry

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/models"
)

// Resolved is the effective view of one table: the user-editable display
// config from the ui_schemas table layered over the compiled-in descriptor.
type Resolved struct {
	Table       string             `json:"table"`
	DisplayName string             `json:"display_name"`
	ListColumns models.ListColumns `json:"list_columns"`
	FormFields  models.FormFields  `json:"form_fields"`
	Descriptor  *Descriptor        `json:"-"`
	Dynamic     bool               `json:"dynamic"` // true when the table exists only via a UISchema row
}

// Resolve loads the effective schema for a table. A table is addressable
// when it has a ui_schemas row, a static descriptor, or both; otherwise
// ErrUnknownTable is returned.
var ErrUnknownTable = errors.New("unknown table")

func Resolve(db *gorm.DB, table string) (*Resolved, error) {
	desc := Lookup(table)

	var schema models.UISchema
	err := db.Where("table_name = ? AND is_deleted = ?", table, false).First(&schema).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("load ui schema for %s: %w", table, err)
		}
		if desc == nil {
			return nil, ErrUnknownTable
		}
		return &Resolved{Table: table, DisplayName: table, Descriptor: desc}, nil
	}

	return &Resolved{
		Table:       table,
		DisplayName: schema.DisplayName,
		ListColumns: schema.ListColumns,
		FormFields:  schema.FormFields,
		Descriptor:  desc,
		Dynamic:     desc == nil,
	}, nil
}
