package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/pkg/rbac"
)

// HierarchyTree returns the full brand -> sector -> area -> branch tree.
// Scoped roles get the tree pruned to their own subtree.
func HierarchyTree(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var brands []models.Brand
	q := config.DB.Where("brands.is_deleted = ?", false).
		Preload("Sectors", "is_deleted = ?", false).
		Preload("Sectors.Areas", "is_deleted = ?", false).
		Preload("Sectors.Areas.Branches", "is_deleted = ?", false)
	if err := q.Find(&brands).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	level, id := user.Scope()
	if level != models.ScopeNone {
		brands = pruneTree(brands, level, id)
	}
	json.NewEncoder(w).Encode(brands)
}

// pruneTree keeps only the subtree containing the user's hierarchy node.
func pruneTree(brands []models.Brand, level models.ScopeLevel, id uuid.UUID) []models.Brand {
	var out []models.Brand
	for _, brand := range brands {
		if level == models.ScopeBrand {
			if brand.ID == id {
				out = append(out, brand)
			}
			continue
		}
		var sectors []models.Sector
		for _, sector := range brand.Sectors {
			if level == models.ScopeSector {
				if sector.ID == id {
					sectors = append(sectors, sector)
				}
				continue
			}
			var areas []models.Area
			for _, area := range sector.Areas {
				if level == models.ScopeArea {
					if area.ID == id {
						areas = append(areas, area)
					}
					continue
				}
				var branches []models.Branch
				for _, branch := range area.Branches {
					if branch.ID == id {
						branches = append(branches, branch)
					}
				}
				if len(branches) > 0 {
					area.Branches = branches
					areas = append(areas, area)
				}
			}
			if len(areas) > 0 {
				sector.Areas = areas
				sectors = append(sectors, sector)
			}
		}
		if len(sectors) > 0 {
			brand.Sectors = sectors
			out = append(out, brand)
		}
	}
	return out
}

// hierarchyModel maps the URL level segment to a fresh model instance.
func hierarchyModel(level string) (interface{}, bool) {
	switch level {
	case "brands":
		return &models.Brand{}, true
	case "sectors":
		return &models.Sector{}, true
	case "areas":
		return &models.Area{}, true
	case "branches":
		return &models.Branch{}, true
	}
	return nil, false
}

func hierarchySlice(level string) (interface{}, bool) {
	switch level {
	case "brands":
		return &[]models.Brand{}, true
	case "sectors":
		return &[]models.Sector{}, true
	case "areas":
		return &[]models.Area{}, true
	case "branches":
		return &[]models.Branch{}, true
	}
	return nil, false
}

// ListHierarchyLevel serves GET /hierarchy/{level}.
func ListHierarchyLevel(w http.ResponseWriter, r *http.Request) {
	level := mux.Vars(r)["level"]
	slice, ok := hierarchySlice(level)
	if !ok {
		http.Error(w, "unknown hierarchy level", http.StatusNotFound)
		return
	}
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	q := config.DB.Table(level).Select(level + ".*").Where(level + ".is_deleted = false")
	q = rbac.ApplyScope(q, user, level)
	if parent := r.URL.Query().Get("parent_id"); parent != "" {
		q = q.Where(parentColumn(level)+" = ?", parent)
	}
	if err := q.Order(level + ".name").Find(slice).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(slice)
}

func parentColumn(level string) string {
	switch level {
	case "sectors":
		return "sectors.brand_id"
	case "areas":
		return "areas.sector_id"
	case "branches":
		return "branches.area_id"
	}
	return "id" // brands have no parent; matches nothing useful
}

// CreateHierarchyNode serves POST /hierarchy/{level}.
func CreateHierarchyNode(w http.ResponseWriter, r *http.Request) {
	level := mux.Vars(r)["level"]
	node, ok := hierarchyModel(level)
	if !ok {
		http.Error(w, "unknown hierarchy level", http.StatusNotFound)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(node); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := config.DB.Create(node).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			http.Error(w, "code already in use", http.StatusConflict)
		} else {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(node)
}

// UpdateHierarchyNode serves PUT /hierarchy/{level}/{id}.
func UpdateHierarchyNode(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	node, ok := hierarchyModel(vars["level"])
	if !ok {
		http.Error(w, "unknown hierarchy level", http.StatusNotFound)
		return
	}
	if err := config.DB.First(node, "id = ? AND is_deleted = ?", vars["id"], false).Error; err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := json.NewDecoder(r.Body).Decode(node); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := config.DB.Save(node).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(node)
}

// DeleteHierarchyNode soft-deletes a node. Children stay untouched: a
// deleted area still anchors its branches for historical reports.
func DeleteHierarchyNode(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	node, ok := hierarchyModel(vars["level"])
	if !ok {
		http.Error(w, "unknown hierarchy level", http.StatusNotFound)
		return
	}
	res := config.DB.Model(node).Where("id = ?", vars["id"]).Update("is_deleted", true)
	if res.Error != nil {
		http.Error(w, "db error: "+res.Error.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
