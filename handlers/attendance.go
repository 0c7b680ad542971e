package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/utils"
)

// ClockIn opens an attendance record for a technician at their home branch.
// When the branch has a geofence polygon the coordinates must fall inside
// it; a branch without one accepts any position.
func ClockIn(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if user.Role != models.RoleTechnician {
		http.Error(w, "only technicians clock in", http.StatusForbidden)
		return
	}
	if user.BranchID == nil {
		http.Error(w, "no branch assigned", http.StatusConflict)
		return
	}
	var req geoReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	var open models.TechnicianAttendance
	err = config.DB.Where("technician_id = ? AND clock_out_at IS NULL AND is_deleted = ?", user.ID, false).
		First(&open).Error
	if err == nil {
		http.Error(w, "already clocked in", http.StatusConflict)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var branch models.Branch
	if err := config.DB.First(&branch, "id = ?", *user.BranchID).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if branch.Geofence != nil {
		fence, err := utils.ParseGeofence(*branch.Geofence)
		if err != nil {
			http.Error(w, "branch geofence is corrupt", http.StatusInternalServerError)
			return
		}
		if fence != nil && !utils.IsPointInPolygon(utils.Coordinate{Lat: req.Lat, Lng: req.Lng}, fence.Coordinates) {
			http.Error(w, "you are outside the branch geofence", http.StatusForbidden)
			return
		}
	}

	record := models.TechnicianAttendance{
		TechnicianID: user.ID,
		BranchID:     *user.BranchID,
		ClockInAt:    time.Now().UTC(),
		ClockInLat:   req.Lat,
		ClockInLng:   req.Lng,
	}
	if err := config.DB.Create(&record).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record)
}

// ClockOut closes the technician's open attendance record.
func ClockOut(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req geoReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	var open models.TechnicianAttendance
	err = config.DB.Where("technician_id = ? AND clock_out_at IS NULL AND is_deleted = ?", user.ID, false).
		First(&open).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "not clocked in", http.StatusConflict)
		return
	}
	if err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	if err := config.DB.Model(&open).Updates(map[string]interface{}{
		"clock_out_at":  now,
		"clock_out_lat": req.Lat,
		"clock_out_lng": req.Lng,
	}).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	open.ClockOutAt = &now
	open.ClockOutLat = req.Lat
	open.ClockOutLng = req.Lng
	json.NewEncoder(w).Encode(open)
}

// MyAttendance lists the caller's attendance records, newest first.
func MyAttendance(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var records []models.TechnicianAttendance
	if err := config.DB.
		Where("technician_id = ? AND is_deleted = ?", user.ID, false).
		Order("clock_in_at DESC").Limit(100).
		Find(&records).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(records)
}
