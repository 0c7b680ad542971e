package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/pkg/rbac"
	"github.com/stratusretail/fixhub/pkg/registry"
)

// offlinePermission maps a queued action onto the role-matrix permission
// the same write would need online.
func offlinePermission(table, action string) string {
	verb := map[string]string{
		models.OfflineInsert: "create",
		models.OfflineUpdate: "update",
		models.OfflineDelete: "delete",
	}[action]
	return rbac.TableResource(table) + ":" + verb
}

type enqueueItem struct {
	TableName string                 `json:"table_name"`
	Action    string                 `json:"action"`
	Payload   map[string]interface{} `json:"payload"`
	Filter    map[string]interface{} `json:"filter"`
}

// EnqueueOffline serves POST /offline/queue: a batch of writes captured by
// a client while disconnected. Rows are persisted immediately and replayed
// by the background flusher in arrival order.
func EnqueueOffline(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var items []enqueueItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if len(items) == 0 {
		http.Error(w, "empty batch", http.StatusBadRequest)
		return
	}

	var queued []models.OfflineAction
	for _, item := range items {
		switch item.Action {
		case models.OfflineInsert, models.OfflineUpdate, models.OfflineDelete:
		default:
			http.Error(w, fmt.Sprintf("unknown action %q", item.Action), http.StatusBadRequest)
			return
		}
		if _, err := registry.Resolve(config.DB, item.TableName); err != nil {
			http.Error(w, fmt.Sprintf("unknown table %q", item.TableName), http.StatusBadRequest)
			return
		}
		if !rbac.HasPermission(user.Role, offlinePermission(item.TableName, item.Action)) {
			http.Error(w, fmt.Sprintf("not allowed to %s %s", item.Action, item.TableName),
				http.StatusForbidden)
			return
		}
		payload, err := json.Marshal(item.Payload)
		if err != nil {
			http.Error(w, "unencodable payload", http.StatusBadRequest)
			return
		}
		filter, _ := json.Marshal(item.Filter)

		queued = append(queued, models.OfflineAction{
			UserID:    user.ID,
			TableName: item.TableName,
			Action:    item.Action,
			Payload:   datatypes.JSON(payload),
			Filter:    datatypes.JSON(filter),
			Status:    models.OfflinePending,
		})
	}

	if err := config.DB.Create(&queued).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"queued": len(queued)})
}

// MyOfflineActions lists the caller's still-pending and dead-lettered rows.
func MyOfflineActions(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var actions []models.OfflineAction
	if err := config.DB.Where("user_id = ?", user.ID).
		Order("created_at").Find(&actions).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(actions)
}

// RequeueDeadLetter serves POST /offline/{id}/requeue: resets a parked row
// for another round of replays, typically after the underlying conflict was
// fixed by hand.
func RequeueDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res := config.DB.Model(&models.OfflineAction{}).
		Where("id = ? AND status = ?", id, models.OfflineDeadLetter).
		Updates(map[string]interface{}{
			"status":      models.OfflinePending,
			"retry_count": 0,
			"last_error":  "",
		})
	if res.Error != nil {
		http.Error(w, "db error: "+res.Error.Error(), http.StatusInternalServerError)
		return
	}
	if res.RowsAffected == 0 {
		http.Error(w, "no dead-lettered action with that id", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// FlushOfflineQueue replays pending actions oldest-first. A successful
// replay deletes the row; a failed one increments the retry count until the
// cap parks it as dead_letter. Returns (applied, failed).
func FlushOfflineQueue(db *gorm.DB) (int, int) {
	var pending []models.OfflineAction
	if err := db.Where("status = ?", models.OfflinePending).
		Order("created_at").Limit(500).
		Find(&pending).Error; err != nil {
		log.Printf("offline flush: %v", err)
		return 0, 0
	}

	applied, failed := 0, 0
	for i := range pending {
		action := &pending[i]
		if err := applyOfflineAction(db, action); err != nil {
			failed++
			action.RetryCount++
			updates := map[string]interface{}{
				"retry_count": action.RetryCount,
				"last_error":  truncate(err.Error(), 500),
			}
			if action.RetryCount >= models.OfflineMaxRetries {
				updates["status"] = models.OfflineDeadLetter
			}
			if err := db.Model(action).Updates(updates).Error; err != nil {
				log.Printf("offline flush: marking %s failed: %v", action.ID, err)
			}
			continue
		}
		applied++
		if err := db.Delete(action).Error; err != nil {
			log.Printf("offline flush: removing %s: %v", action.ID, err)
		}
	}
	return applied, failed
}

// applyOfflineAction replays one queued write under the enqueuing user's
// authority: their role must still permit the write and, for updates and
// deletes, the target row must sit inside their scope. Replay never runs
// with wider access than the online path would have granted.
func applyOfflineAction(db *gorm.DB, action *models.OfflineAction) error {
	resolved, err := registry.Resolve(db, action.TableName)
	if err != nil {
		return err
	}

	var enqueuer models.User
	if err := db.First(&enqueuer, "id = ?", action.UserID).Error; err != nil {
		return fmt.Errorf("enqueuing user %s: %w", action.UserID, err)
	}
	if !rbac.HasPermission(enqueuer.Role, offlinePermission(action.TableName, action.Action)) {
		return fmt.Errorf("user %s may no longer %s %s", action.UserID, action.Action, action.TableName)
	}

	var payload map[string]interface{}
	if len(action.Payload) > 0 {
		if err := json.Unmarshal(action.Payload, &payload); err != nil {
			return fmt.Errorf("bad payload: %w", err)
		}
	}

	targetInScope := func(id string) error {
		visible, err := recordVisible(db, &enqueuer, action.TableName, id)
		if err != nil {
			return err
		}
		if !visible {
			return fmt.Errorf("row %s is outside the enqueuing user's scope", id)
		}
		return nil
	}

	switch action.Action {
	case models.OfflineInsert:
		if err := validateRecord(resolved, payload, true); err != nil {
			return err
		}
		_, err := insertDynamic(db, action.TableName, payload)
		return err

	case models.OfflineUpdate:
		id, err := offlineTargetID(action)
		if err != nil {
			return err
		}
		if err := validateRecord(resolved, payload, false); err != nil {
			return err
		}
		if err := targetInScope(id); err != nil {
			return err
		}
		payload["updated_at"] = time.Now().UTC()
		return db.Table(action.TableName).Where("id = ?", id).
			Updates(payload).Error

	case models.OfflineDelete:
		id, err := offlineTargetID(action)
		if err != nil {
			return err
		}
		if err := targetInScope(id); err != nil {
			return err
		}
		return softDelete(db, action.TableName, id)
	}
	return fmt.Errorf("unknown action %q", action.Action)
}

// offlineTargetID extracts the row id from the action's filter.
func offlineTargetID(action *models.OfflineAction) (string, error) {
	var filter map[string]interface{}
	if len(action.Filter) > 0 {
		if err := json.Unmarshal(action.Filter, &filter); err != nil {
			return "", fmt.Errorf("bad filter: %w", err)
		}
	}
	id, _ := filter["id"].(string)
	if id == "" {
		return "", fmt.Errorf("filter must carry an id")
	}
	return id, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// StartOfflineFlusher replays the queue on a fixed interval until the stop
// channel closes.
func StartOfflineFlusher(db *gorm.DB, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				applied, failed := FlushOfflineQueue(db)
				if applied > 0 || failed > 0 {
					log.Printf("offline flush: %d applied, %d failed", applied, failed)
				}
			case <-stop:
				return
			}
		}
	}()
}
