package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stratusretail/fixhub/models"
)

// supplierNotesSchema registers a small dynamic table with one required
// field, one length-capped field and one number field.
func (e *testEnv) supplierNotesSchema(t *testing.T) {
	t.Helper()
	rec := e.do(t, "POST", "/api/v1/schemas", e.adminToken, map[string]interface{}{
		"table_name":   "supplier_notes",
		"display_name": "Supplier Notes",
		"list_columns": []map[string]string{
			{"key": "title", "label": "Title"},
			{"key": "rating", "label": "Rating", "cell_type": "number"},
		},
		"form_fields": []map[string]interface{}{
			{"key": "title", "label": "Title", "type": "text", "required": true, "max_length": 80},
			{"key": "body", "label": "Body", "type": "textarea"},
			{"key": "rating", "label": "Rating", "type": "number"},
		},
	})
	requireStatus(t, rec, http.StatusCreated)
}

type listPage struct {
	Data  []map[string]interface{} `json:"data"`
	Total int64                    `json:"total"`
}

func TestDynamicRecordLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.supplierNotesSchema(t)

	rec := env.do(t, "POST", "/api/v1/data/supplier_notes", env.adminToken,
		map[string]interface{}{"title": "late deliveries", "body": "two weeks running", "rating": 2})
	requireStatus(t, rec, http.StatusCreated)
	created := decode[map[string]string](t, rec)
	id := created["id"]
	require.NotEmpty(t, id)

	rec = env.do(t, "GET", "/api/v1/data/supplier_notes", env.adminToken, nil)
	requireStatus(t, rec, http.StatusOK)
	page := decode[listPage](t, rec)
	require.EqualValues(t, 1, page.Total)
	assert.Equal(t, "late deliveries", page.Data[0]["title"])

	rec = env.do(t, "PUT", "/api/v1/data/supplier_notes/"+id, env.adminToken,
		map[string]interface{}{"rating": 4})
	requireStatus(t, rec, http.StatusOK)

	// Delete is idempotent: the second call is also 204 and nothing changes.
	rec = env.do(t, "DELETE", "/api/v1/data/supplier_notes/"+id, env.adminToken, nil)
	requireStatus(t, rec, http.StatusNoContent)
	rec = env.do(t, "DELETE", "/api/v1/data/supplier_notes/"+id, env.adminToken, nil)
	requireStatus(t, rec, http.StatusNoContent)

	// The row is flagged, not removed.
	var flagged bool
	require.NoError(t, env.db.Raw(
		"SELECT is_deleted FROM supplier_notes WHERE id = ?", id).Scan(&flagged).Error)
	assert.True(t, flagged)

	rec = env.do(t, "GET", "/api/v1/data/supplier_notes", env.adminToken, nil)
	page = decode[listPage](t, rec)
	assert.EqualValues(t, 0, page.Total)
}

func TestRecordValidation(t *testing.T) {
	env := newTestEnv(t)
	env.supplierNotesSchema(t)

	// Required field missing.
	rec := env.do(t, "POST", "/api/v1/data/supplier_notes", env.adminToken,
		map[string]interface{}{"body": "no title"})
	requireStatus(t, rec, http.StatusBadRequest)

	// Key the schema never declared.
	rec = env.do(t, "POST", "/api/v1/data/supplier_notes", env.adminToken,
		map[string]interface{}{"title": "ok", "is_deleted": true})
	requireStatus(t, rec, http.StatusBadRequest)

	// Length cap.
	long := make([]byte, 81)
	for i := range long {
		long[i] = 'x'
	}
	rec = env.do(t, "POST", "/api/v1/data/supplier_notes", env.adminToken,
		map[string]interface{}{"title": string(long)})
	requireStatus(t, rec, http.StatusBadRequest)

	rec = env.do(t, "POST", "/api/v1/data/nonexistent", env.adminToken,
		map[string]interface{}{"title": "x"})
	requireStatus(t, rec, http.StatusNotFound)
}

func TestSchemaBuilderGuards(t *testing.T) {
	env := newTestEnv(t)

	// Built-in tables cannot be recreated through the builder.
	rec := env.do(t, "POST", "/api/v1/schemas", env.adminToken, map[string]interface{}{
		"table_name":  "tickets",
		"form_fields": []map[string]interface{}{{"key": "title", "label": "T", "type": "text"}},
	})
	requireStatus(t, rec, http.StatusConflict)

	rec = env.do(t, "POST", "/api/v1/schemas", env.adminToken, map[string]interface{}{
		"table_name":  "Drop Table;--",
		"form_fields": []map[string]interface{}{{"key": "title", "label": "T", "type": "text"}},
	})
	requireStatus(t, rec, http.StatusBadRequest)

	rec = env.do(t, "POST", "/api/v1/schemas", env.adminToken, map[string]interface{}{
		"table_name": "empty_table",
	})
	requireStatus(t, rec, http.StatusBadRequest)

	var count int64
	env.db.Model(&models.UISchema{}).Count(&count)
	assert.EqualValues(t, 0, count)
}
