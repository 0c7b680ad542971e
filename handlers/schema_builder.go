package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gorilla/mux"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/pkg/registry"
)

var tableNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// reservedTables cannot be created or structurally altered through the
// schema builder: their columns belong to compiled-in models.
var reservedTables = map[string]bool{
	"users": true, "brands": true, "sectors": true, "areas": true, "branches": true,
	"tickets": true, "assets": true, "ticket_categories": true, "mission_logs": true,
	"inventory_items": true, "inventory_transactions": true,
	"technician_attendances": true, "shifts": true, "payroll_logs": true,
	"ui_schemas": true, "offline_actions": true,
}

// sqlTypeFor maps a form field type to its physical column type.
func sqlTypeFor(field models.FormField) string {
	switch field.Type {
	case "text", "email", "textarea":
		if field.MaxLength > 0 {
			return fmt.Sprintf("VARCHAR(%d)", field.MaxLength)
		}
		return "TEXT"
	case "number":
		return "DECIMAL(15,2)"
	case "checkbox":
		return "BOOLEAN"
	case "date":
		return "DATE"
	case "datetime":
		return "TIMESTAMP"
	case "select", "hidden", "image":
		return "VARCHAR(255)"
	}
	return "TEXT"
}

// ListSchemas serves GET /schemas. Built-in table names ride along so
// clients can address tables that never grew a ui_schemas row.
func ListSchemas(w http.ResponseWriter, r *http.Request) {
	var schemas []models.UISchema
	if err := config.DB.Where("is_deleted = ?", false).
		Order("table_name").Find(&schemas).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"schemas":        schemas,
		"builtin_tables": registry.Tables(),
	})
}

// GetSchema serves GET /schemas/{table}: the merged registry + UISchema view.
func GetSchema(w http.ResponseWriter, r *http.Request) {
	resolved, err := registry.Resolve(config.DB, mux.Vars(r)["table"])
	if err != nil {
		http.Error(w, "unknown table", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(resolved)
}

type createSchemaReq struct {
	TableName   string             `json:"table_name"`
	DisplayName string             `json:"display_name"`
	ListColumns models.ListColumns `json:"list_columns"`
	FormFields  models.FormFields  `json:"form_fields"`
}

// CreateSchema serves POST /schemas: registers a new dynamic table and
// creates its physical table with the declared columns plus the standard
// server-managed ones.
func CreateSchema(w http.ResponseWriter, r *http.Request) {
	var req createSchemaReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !tableNameRe.MatchString(req.TableName) {
		http.Error(w, "invalid table name", http.StatusBadRequest)
		return
	}
	if reservedTables[req.TableName] {
		http.Error(w, "table name is reserved", http.StatusConflict)
		return
	}
	if len(req.FormFields) == 0 {
		http.Error(w, "at least one form field is required", http.StatusBadRequest)
		return
	}
	for _, field := range req.FormFields {
		if !tableNameRe.MatchString(field.Key) {
			http.Error(w, fmt.Sprintf("invalid field key %q", field.Key), http.StatusBadRequest)
			return
		}
	}

	schema := models.UISchema{
		TableName:   req.TableName,
		DisplayName: req.DisplayName,
		ListColumns: req.ListColumns,
		FormFields:  req.FormFields,
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&schema).Error; err != nil {
			return err
		}
		columns := []string{
			"id UUID PRIMARY KEY",
			"is_deleted BOOLEAN NOT NULL DEFAULT FALSE",
			"created_at TIMESTAMP NOT NULL",
			"updated_at TIMESTAMP NOT NULL",
		}
		for _, field := range req.FormFields {
			def := pq.QuoteIdentifier(field.Key) + " " + sqlTypeFor(field)
			columns = append(columns, def)
		}
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
			pq.QuoteIdentifier(req.TableName), strings.Join(columns, ",\n  "))
		return tx.Exec(stmt).Error
	})
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			http.Error(w, "schema for this table already exists", http.StatusConflict)
		} else {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(schema)
}

type updateSchemaReq struct {
	DisplayName *string             `json:"display_name"`
	ListColumns *models.ListColumns `json:"list_columns"`
	FormFields  *models.FormFields  `json:"form_fields"`
}

// UpdateSchema serves PUT /schemas/{table}. New form fields grow matching
// physical columns; removed fields keep their columns (data is never
// dropped implicitly — use the column endpoint to drop).
func UpdateSchema(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	var req updateSchemaReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	var schema models.UISchema
	if err := config.DB.Where("table_name = ? AND is_deleted = ?", table, false).
		First(&schema).Error; err != nil {
		http.Error(w, "schema not found", http.StatusNotFound)
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if req.FormFields != nil && !reservedTables[table] {
			existing := map[string]bool{}
			for _, f := range schema.FormFields {
				existing[f.Key] = true
			}
			for _, field := range *req.FormFields {
				if !tableNameRe.MatchString(field.Key) {
					return fmt.Errorf("invalid field key %q", field.Key)
				}
				if existing[field.Key] {
					continue
				}
				stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s",
					pq.QuoteIdentifier(table), pq.QuoteIdentifier(field.Key), sqlTypeFor(field))
				if err := tx.Exec(stmt).Error; err != nil {
					return err
				}
			}
		}

		if req.DisplayName != nil {
			schema.DisplayName = *req.DisplayName
		}
		if req.ListColumns != nil {
			schema.ListColumns = *req.ListColumns
		}
		if req.FormFields != nil {
			schema.FormFields = *req.FormFields
		}
		return tx.Save(&schema).Error
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	json.NewEncoder(w).Encode(schema)
}

// DropSchemaColumn serves DELETE /schemas/{table}/columns/{column}: removes
// the field from the schema and drops the physical column.
func DropSchemaColumn(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	table, column := vars["table"], vars["column"]
	if reservedTables[table] {
		http.Error(w, "cannot alter a built-in table", http.StatusConflict)
		return
	}
	if !tableNameRe.MatchString(column) || serverManagedColumns[column] {
		http.Error(w, "invalid column", http.StatusBadRequest)
		return
	}

	var schema models.UISchema
	if err := config.DB.Where("table_name = ? AND is_deleted = ?", table, false).
		First(&schema).Error; err != nil {
		http.Error(w, "schema not found", http.StatusNotFound)
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		kept := schema.FormFields[:0]
		found := false
		for _, f := range schema.FormFields {
			if f.Key == column {
				found = true
				continue
			}
			kept = append(kept, f)
		}
		if !found {
			return errors.New("column not in schema")
		}
		schema.FormFields = kept

		cols := schema.ListColumns[:0]
		for _, c := range schema.ListColumns {
			if c.Key != column {
				cols = append(cols, c)
			}
		}
		schema.ListColumns = cols

		if err := tx.Save(&schema).Error; err != nil {
			return err
		}
		stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s",
			pq.QuoteIdentifier(table), pq.QuoteIdentifier(column))
		return tx.Exec(stmt).Error
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteSchema soft-deletes the schema row, hiding the table from the API.
// The physical table and its data stay in place.
func DeleteSchema(w http.ResponseWriter, r *http.Request) {
	table := mux.Vars(r)["table"]
	if err := config.DB.Model(&models.UISchema{}).
		Where("table_name = ?", table).
		Update("is_deleted", true).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
