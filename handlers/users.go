package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/pkg/rbac"
)

type createUserReq struct {
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Password     string     `json:"password"`
	Role         string     `json:"role"`
	BrandID      *uuid.UUID `json:"brand_id"`
	SectorID     *uuid.UUID `json:"sector_id"`
	AreaID       *uuid.UUID `json:"area_id"`
	BranchID     *uuid.UUID `json:"branch_id"`
	BaseDailyPay float64    `json:"base_daily_pay"`
}

var validRoles = map[string]bool{
	models.RoleAdmin:          true,
	models.RoleMaintManager:   true,
	models.RoleDeputyMaintMgr: true,
	models.RoleBrandManager:   true,
	models.RoleSectorManager:  true,
	models.RoleAreaManager:    true,
	models.RoleBranchManager:  true,
	models.RoleTechnician:     true,
}

// CreateUser provisions an account. There is no self-registration: only
// admins and maintenance managers reach this handler, and only an admin may
// mint another admin.
func CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.Email == "" || req.Phone == "" || len(req.Password) < 8 {
		http.Error(w, "name, email, phone and a password of 8+ chars are required", http.StatusBadRequest)
		return
	}
	if !validRoles[req.Role] {
		http.Error(w, "unknown role", http.StatusBadRequest)
		return
	}
	if req.Role == models.RoleAdmin && middleware.GetRole(r) != models.RoleAdmin {
		http.Error(w, "only admins can create admins", http.StatusForbidden)
		return
	}
	if !models.IsGlobalRole(req.Role) &&
		req.BrandID == nil && req.SectorID == nil && req.AreaID == nil && req.BranchID == nil {
		http.Error(w, "scoped roles need a hierarchy assignment", http.StatusBadRequest)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "error hashing password", http.StatusInternalServerError)
		return
	}
	u := models.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         req.Role,
		BrandID:      req.BrandID,
		SectorID:     req.SectorID,
		AreaID:       req.AreaID,
		BranchID:     req.BranchID,
		BaseDailyPay: req.BaseDailyPay,
		IsActive:     true,
	}
	if err := config.DB.Create(&u).Error; err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			http.Error(w, "email or phone already taken", http.StatusConflict)
		} else {
			http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toUserPayload(&u))
}

// ListUsers returns profiles inside the caller's scope.
func ListUsers(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.GetUser(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	params, err := models.ParseListParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	q := config.DB.Model(&models.User{}).Where("users.is_deleted = ?", false)
	q = rbac.ApplyScope(q, user, "users")
	if role := r.URL.Query().Get("role"); role != "" {
		q = q.Where("users.role = ?", role)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var users []models.User
	if err := q.Order("users.name").
		Limit(params.PageSize).Offset(params.Offset()).
		Find(&users).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	payload := make([]userPayload, len(users))
	for i := range users {
		payload[i] = toUserPayload(&users[i])
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data":  payload,
		"total": total,
		"page":  params.Page,
	})
}

type updateUserReq struct {
	Name         *string    `json:"name"`
	Phone        *string    `json:"phone"`
	Password     *string    `json:"password"`
	Role         *string    `json:"role"`
	BrandID      *uuid.UUID `json:"brand_id"`
	SectorID     *uuid.UUID `json:"sector_id"`
	AreaID       *uuid.UUID `json:"area_id"`
	BranchID     *uuid.UUID `json:"branch_id"`
	BaseDailyPay *float64   `json:"base_daily_pay"`
	IsActive     *bool      `json:"is_active"`
}

func UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req updateUserReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	var u models.User
	if err := config.DB.First(&u, "id = ? AND is_deleted = ?", id, false).Error; err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if u.Role == models.RoleAdmin && middleware.GetRole(r) != models.RoleAdmin {
		http.Error(w, "only admins can modify admins", http.StatusForbidden)
		return
	}

	if req.Name != nil {
		u.Name = *req.Name
	}
	if req.Phone != nil {
		u.Phone = *req.Phone
	}
	if req.Password != nil {
		if len(*req.Password) < 8 {
			http.Error(w, "password must be 8+ chars", http.StatusBadRequest)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "error hashing password", http.StatusInternalServerError)
			return
		}
		u.PasswordHash = string(hash)
	}
	if req.Role != nil {
		if !validRoles[*req.Role] {
			http.Error(w, "unknown role", http.StatusBadRequest)
			return
		}
		if *req.Role == models.RoleAdmin && middleware.GetRole(r) != models.RoleAdmin {
			http.Error(w, "only admins can create admins", http.StatusForbidden)
			return
		}
		u.Role = *req.Role
	}
	if req.BrandID != nil {
		u.BrandID = req.BrandID
	}
	if req.SectorID != nil {
		u.SectorID = req.SectorID
	}
	if req.AreaID != nil {
		u.AreaID = req.AreaID
	}
	if req.BranchID != nil {
		u.BranchID = req.BranchID
	}
	if req.BaseDailyPay != nil {
		u.BaseDailyPay = *req.BaseDailyPay
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
	}

	if err := config.DB.Save(&u).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(toUserPayload(&u))
}

// DeleteUser soft-deletes a profile and revokes login by deactivating it.
func DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var u models.User
	if err := config.DB.First(&u, "id = ?", id).Error; err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	if u.Role == models.RoleAdmin && middleware.GetRole(r) != models.RoleAdmin {
		http.Error(w, "only admins can delete admins", http.StatusForbidden)
		return
	}
	if err := config.DB.Model(&u).
		Updates(map[string]interface{}{"is_deleted": true, "is_active": false}).Error; err != nil {
		http.Error(w, "db error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
