package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/pkg/rbac"
	"github.com/stratusretail/fixhub/pkg/registry"
	"github.com/stratusretail/fixhub/realtime"
)

type restockReq struct {
	Quantity int              `json:"quantity"`
	UnitCost *decimal.Decimal `json:"unit_cost"`
}

// RestockItem adds stock to a part and records the inbound movement. The
// opposite movement happens only inside ticket resolution.
func RestockItem(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req restockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity < 1 {
		http.Error(w, "quantity must be at least 1", http.StatusBadRequest)
		return
	}

	id := mux.Vars(r)["id"]
	var item models.InventoryItem
	q := rbac.ApplyScope(config.DB.Table("inventory_items"), user, "inventory_items")
	err = q.Where("inventory_items.id = ? AND inventory_items.is_deleted = ?", id, false).
		Select("inventory_items.*").First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.Error(w, "item not found", http.StatusNotFound)
		} else {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	var newQuantity int
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"quantity": gorm.Expr("quantity + ?", req.Quantity),
		}
		if req.UnitCost != nil {
			updates["unit_cost"] = *req.UnitCost
		}
		if err := tx.Model(&models.InventoryItem{}).Where("id = ?", item.ID).
			Updates(updates).Error; err != nil {
			return err
		}

		unitCost := item.UnitCost
		if req.UnitCost != nil {
			unitCost = *req.UnitCost
		}
		txn := models.InventoryTransaction{
			ItemID:       item.ID,
			TechnicianID: &user.ID,
			QuantityUsed: req.Quantity,
			Direction:    models.InventoryIn,
			TotalCost:    unitCost.Mul(decimal.NewFromInt(int64(req.Quantity))),
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		// Report the committed total, not the pre-transaction read plus
		// the delta; a concurrent restock makes those differ.
		return tx.Model(&models.InventoryItem{}).Where("id = ?", item.ID).
			Select("quantity").Scan(&newQuantity).Error
	})
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	realtime.Notify("inventory_items", "update", item.ID.String(), user.ID.String())
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":       item.ID,
		"quantity": newQuantity,
	})
}

// LowStockItems lists parts in the caller's scope whose stock fell under
// the registry threshold.
func LowStockItems(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	threshold := 5
	if desc := registry.Lookup("inventory_items"); desc != nil && desc.LowStockBelow > 0 {
		threshold = desc.LowStockBelow
	}
	var items []models.InventoryItem
	q := rbac.ApplyScope(config.DB.Table("inventory_items"), user, "inventory_items")
	err = q.Where("inventory_items.is_deleted = ?", false).
		Where("inventory_items.quantity < ?", threshold).
		Select("inventory_items.*").
		Order("inventory_items.quantity").
		Find(&items).Error
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(items)
}
