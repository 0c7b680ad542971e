package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/pkg/rbac"
	"github.com/stratusretail/fixhub/pkg/registry"
)

// ExportTable serves GET /data/{table}/export?format=xlsx|csv: the caller's
// scoped row set rendered through the resolved list columns.
func ExportTable(w http.ResponseWriter, r *http.Request) {
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
	if len(resolved.ListColumns) == 0 {
		http.Error(w, "table has no export columns", http.StatusUnprocessableEntity)
		return
	}
	if !rbac.CanSeeTable(user, table) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	params, err := models.ParseListParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	rows, err := fetchAll(user, resolved, params)
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	relations, err := relationDisplayMaps(config.DB, resolved)
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	timestamp := time.Now().Format("20060102_150405")
	if r.URL.Query().Get("format") == "csv" {
		data, err := buildCSV(resolved, rows, relations)
		if err != nil {
			http.Error(w, "failed to generate CSV", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%s_%s.csv", table, timestamp))
		w.Write(data)
		return
	}

	f, err := buildWorkbook(resolved, rows, relations)
	if err != nil {
		http.Error(w, "failed to generate Excel file", http.StatusInternalServerError)
		return
	}
	buffer, err := f.WriteToBuffer()
	if err != nil {
		http.Error(w, "failed to write Excel file", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s_%s.xlsx", table, timestamp))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", buffer.Len()))
	w.Write(buffer.Bytes())
}

// relationDisplayMaps builds id -> display-name lookups for every fk-role
// form field, so exported sheets show names instead of UUIDs.
func relationDisplayMaps(db *gorm.DB, resolved *registry.Resolved) (map[string]map[string]string, error) {
	out := map[string]map[string]string{}
	for _, field := range resolved.FormFields {
		refTable := ""
		if strings.HasPrefix(field.Role, "fk:") {
			refTable = strings.TrimPrefix(field.Role, "fk:")
		} else if strings.HasPrefix(field.DataSource, "fk:") {
			refTable = strings.TrimPrefix(field.DataSource, "fk:")
		}
		if refTable == "" {
			continue
		}
		var refs []struct {
			ID   string
			Name string
		}
		if err := db.Table(refTable).Select("id, name").Scan(&refs).Error; err != nil {
			// Reference tables without a name column export raw ids.
			continue
		}
		m := make(map[string]string, len(refs))
		for _, ref := range refs {
			m[ref.ID] = ref.Name
		}
		out[field.Key] = m
	}
	return out, nil
}

// formatCell renders one value for export according to its column type.
func formatCell(resolved *registry.Resolved, col models.ListColumn, value interface{}, relations map[string]map[string]string) string {
	if value == nil {
		return ""
	}
	switch col.CellType {
	case "status":
		if resolved.Descriptor != nil {
			if label, ok := resolved.Descriptor.StatusLabels[fmt.Sprint(value)]; ok {
				return label
			}
		}
	case "date":
		if t, ok := value.(time.Time); ok {
			return t.Format("2006-01-02")
		}
	case "datetime":
		if t, ok := value.(time.Time); ok {
			return t.Format("2006-01-02 15:04:05")
		}
	case "relation":
		if m, ok := relations[col.Key]; ok {
			if name, ok := m[fmt.Sprint(value)]; ok {
				return name
			}
		}
	}
	if t, ok := value.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return fmt.Sprint(value)
}

func buildWorkbook(resolved *registry.Resolved, rows []map[string]interface{}, relations map[string]map[string]string) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Export"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 16},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	f.SetCellValue(sheet, "A1", resolved.DisplayName)
	f.SetCellStyle(sheet, "A1", "A1", titleStyle)
	f.SetRowHeight(sheet, 1, 30)
	f.SetCellValue(sheet, "A2", fmt.Sprintf("Generated: %s", time.Now().Format("2006-01-02 15:04:05")))

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	const headerRow = 4
	for colIdx, col := range resolved.ListColumns {
		cell, _ := excelize.CoordinatesToCellName(colIdx+1, headerRow)
		f.SetCellValue(sheet, cell, col.Label)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
		name, _ := excelize.ColumnNumberToName(colIdx + 1)
		f.SetColWidth(sheet, name, name, 20)
	}

	dataStyle, _ := f.NewStyle(&excelize.Style{
		Border: []excelize.Border{
			{Type: "left", Color: "CCCCCC", Style: 1},
			{Type: "right", Color: "CCCCCC", Style: 1},
			{Type: "top", Color: "CCCCCC", Style: 1},
			{Type: "bottom", Color: "CCCCCC", Style: 1},
		},
	})
	for rowIdx, row := range rows {
		for colIdx, col := range resolved.ListColumns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, headerRow+1+rowIdx)
			f.SetCellValue(sheet, cell, formatCell(resolved, col, row[col.Key], relations))
			f.SetCellStyle(sheet, cell, cell, dataStyle)
		}
	}
	return f, nil
}

func buildCSV(resolved *registry.Resolved, rows []map[string]interface{}, relations map[string]map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	header := make([]string, len(resolved.ListColumns))
	for i, col := range resolved.ListColumns {
		header[i] = col.Label
	}
	if err := writer.Write(header); err != nil {
		return nil, err
	}

	record := make([]string, len(resolved.ListColumns))
	for _, row := range rows {
		for i, col := range resolved.ListColumns {
			record[i] = formatCell(resolved, col, row[col.Key], relations)
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}
