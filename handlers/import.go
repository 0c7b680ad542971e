package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/pkg/registry"
	"github.com/stratusretail/fixhub/realtime"
)

const importBatchSize = 50

// serverManagedColumns are stripped from imported rows; the insert assigns
// them fresh.
var serverManagedColumns = map[string]bool{
	"id":         true,
	"created_at": true,
	"updated_at": true,
	"is_deleted": true,
}

// ImportTable serves POST /data/{table}/import with a multipart "file"
// field. Header labels are mapped back to field keys through the stored
// schema; unmatched headers fall back to the raw header text so a sheet
// already using column keys imports cleanly too.
func ImportTable(w http.ResponseWriter, r *http.Request) {
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
	if len(resolved.FormFields) == 0 {
		http.Error(w, "table has no form schema to import against", http.StatusUnprocessableEntity)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "multipart field 'file' is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	workbook, err := excelize.OpenReader(file)
	if err != nil {
		http.Error(w, "not a valid spreadsheet", http.StatusBadRequest)
		return
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		http.Error(w, "spreadsheet has no sheets", http.StatusBadRequest)
		return
	}
	rows, err := workbook.GetRows(sheets[0])
	if err != nil {
		http.Error(w, "failed to read sheet: "+err.Error(), http.StatusBadRequest)
		return
	}

	records, parseErrs := parseSheet(resolved, rows)
	if len(records) == 0 {
		http.Error(w, "no data rows found", http.StatusBadRequest)
		return
	}

	imported := 0
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(records); start += importBatchSize {
			end := start + importBatchSize
			if end > len(records) {
				end = len(records)
			}
			for _, record := range records[start:end] {
				if _, err := insertDynamic(tx, table, record); err != nil {
					return fmt.Errorf("row %d: %w", imported+1, err)
				}
				imported++
			}
		}
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	realtime.Notify(table, "insert", "batch", user.ID.String())
	json.NewEncoder(w).Encode(map[string]interface{}{
		"imported": imported,
		"warnings": parseErrs,
	})
}

// parseSheet converts raw sheet rows into insertable records. The header
// row locates each field; rows shorter than the header are padded with
// empty cells, which import as omitted values.
func parseSheet(resolved *registry.Resolved, rows [][]string) ([]map[string]interface{}, []string) {
	if len(rows) == 0 {
		return nil, nil
	}

	// Exported sheets carry a title block; the header is the first row
	// whose labels match the schema.
	labelToKey := map[string]string{}
	for _, f := range resolved.FormFields {
		labelToKey[f.Label] = f.Key
	}
	validKeys := map[string]bool{}
	for _, f := range resolved.FormFields {
		validKeys[f.Key] = true
	}

	headerIdx := -1
	var keys []string
	for i, row := range rows {
		candidate := make([]string, len(row))
		matched := 0
		for j, cell := range row {
			key, ok := labelToKey[cell]
			if !ok {
				key = cell // raw header fallback
			}
			candidate[j] = key
			if validKeys[key] {
				matched++
			}
		}
		if matched > 0 && matched >= len(row)/2 {
			headerIdx = i
			keys = candidate
			break
		}
	}
	if headerIdx == -1 {
		return nil, []string{"no header row matched the schema"}
	}

	var records []map[string]interface{}
	var warnings []string
	for i, row := range rows[headerIdx+1:] {
		record := map[string]interface{}{}
		empty := true
		for j, key := range keys {
			if j >= len(row) || row[j] == "" {
				continue
			}
			if serverManagedColumns[key] || !validKeys[key] {
				continue
			}
			record[key] = row[j]
			empty = false
		}
		if empty {
			continue
		}
		if err := validateRecord(resolved, record, true); err != nil {
			warnings = append(warnings, fmt.Sprintf("row %d skipped: %v", headerIdx+i+2, err))
			continue
		}
		records = append(records, record)
	}
	return records, warnings
}
