package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/pkg/rbac"
	"github.com/stratusretail/fixhub/pkg/registry"
	"github.com/stratusretail/fixhub/realtime"
)

// validateRecord checks a payload against the resolved form fields: unknown
// keys are rejected, required fields must be present on create, and string
// lengths are capped.
func validateRecord(resolved *registry.Resolved, record map[string]interface{}, isCreate bool) error {
	if len(resolved.FormFields) == 0 {
		return fmt.Errorf("table %s has no form schema", resolved.Table)
	}

	allowed := make(map[string]models.FormField, len(resolved.FormFields))
	for _, f := range resolved.FormFields {
		allowed[f.Key] = f
	}

	for key, val := range record {
		field, ok := allowed[key]
		if !ok {
			return fmt.Errorf("unknown field %q", key)
		}
		if s, isString := val.(string); isString && field.MaxLength > 0 && len(s) > field.MaxLength {
			return fmt.Errorf("field %q exceeds %d characters", key, field.MaxLength)
		}
	}

	if isCreate {
		for _, f := range resolved.FormFields {
			if !f.Required {
				continue
			}
			val, ok := record[f.Key]
			if !ok || val == nil || val == "" {
				return fmt.Errorf("field %q is required", f.Key)
			}
		}
	}
	return nil
}

// CreateRecord serves POST /data/{table} for schema-driven tables. Columns
// come from the stored form schema, never from the request, so the payload
// cannot name a column the schema doesn't know.
func CreateRecord(w http.ResponseWriter, r *http.Request) {
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

	var record map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := validateRecord(resolved, record, true); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := insertDynamic(config.DB, table, record)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			http.Error(w, "duplicate value for a unique column", http.StatusConflict)
		} else {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	realtime.Notify(table, "insert", id.String(), user.ID.String())
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{"id": id})
}

// insertDynamic builds and runs a parameterized INSERT for a schema-driven
// table, assigning the id and timestamps server-side. Callers validate the
// record against the form schema first.
func insertDynamic(db *gorm.DB, table string, record map[string]interface{}) (uuid.UUID, error) {
	id := uuid.New()
	now := time.Now().UTC()
	record["id"] = id.String()
	record["created_at"] = now
	record["updated_at"] = now

	cols := make([]string, 0, len(record))
	for col := range record {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]interface{}, len(cols))
	for i, col := range cols {
		quoted[i] = pq.QuoteIdentifier(col)
		placeholders[i] = "?"
		args[i] = record[col]
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pq.QuoteIdentifier(table),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "))
	if err := db.Exec(stmt, args...).Error; err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// recordVisible checks the row exists inside the user's scope before an
// update or delete is allowed to touch it.
func recordVisible(db *gorm.DB, user *models.User, table, id string) (bool, error) {
	var n int64
	q := db.Table(table)
	q = rbac.ApplyScope(q, user, table)
	err := q.Where(table+".id = ?", id).Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateRecord serves PUT /data/{table}/{id}.
func UpdateRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	table, id := vars["table"], vars["id"]
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

	var record map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if len(record) == 0 {
		http.Error(w, "empty update", http.StatusBadRequest)
		return
	}
	if err := validateRecord(resolved, record, false); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	visible, err := recordVisible(config.DB, user, table, id)
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !visible {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	record["updated_at"] = time.Now().UTC()
	cols := make([]string, 0, len(record))
	for col := range record {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	assignments := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, col := range cols {
		assignments[i] = pq.QuoteIdentifier(col) + " = ?"
		args = append(args, record[col])
	}
	args = append(args, id)

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?",
		pq.QuoteIdentifier(table), strings.Join(assignments, ", "))
	if err := config.DB.Exec(stmt, args...).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	realtime.Notify(table, "update", id, user.ID.String())
	json.NewEncoder(w).Encode(map[string]string{"id": id, "status": "updated"})
}

// DeleteRecord serves DELETE /data/{table}/{id}. Soft delete via the
// is_deleted flag; tables without the column get a hard delete. Deleting an
// already-deleted row succeeds with no effect; rows outside the caller's
// scope are indistinguishable from absent ones.
func DeleteRecord(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	table, id := vars["table"], vars["id"]
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if _, err := registry.Resolve(config.DB, table); err != nil {
		http.Error(w, "unknown table", http.StatusNotFound)
		return
	}

	visible, err := recordVisible(config.DB, user, table, id)
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !visible {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if err := softDelete(config.DB, table, id); err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	realtime.Notify(table, "delete", id, user.ID.String())
	w.WriteHeader(http.StatusNoContent)
}

func softDelete(db *gorm.DB, table, id string) error {
	stmt := fmt.Sprintf("UPDATE %s SET is_deleted = ? WHERE id = ?", pq.QuoteIdentifier(table))
	err := db.Exec(stmt, true, id).Error
	if missingColumn(err) {
		stmt = fmt.Sprintf("DELETE FROM %s WHERE id = ?", pq.QuoteIdentifier(table))
		err = db.Exec(stmt, id).Error
	}
	return err
}
