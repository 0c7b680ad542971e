package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/stratusretail/fixhub/config"
	"github.com/stratusretail/fixhub/middleware"
	"github.com/stratusretail/fixhub/models"
	"github.com/stratusretail/fixhub/pkg/rbac"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResp struct {
	Token       string      `json:"token"`
	User        userPayload `json:"user"`
	Permissions []string    `json:"permissions"`
}

type userPayload struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Phone    string     `json:"phone"`
	Role     string     `json:"role"`
	BrandID  *uuid.UUID `json:"brand_id,omitempty"`
	SectorID *uuid.UUID `json:"sector_id,omitempty"`
	AreaID   *uuid.UUID `json:"area_id,omitempty"`
	BranchID *uuid.UUID `json:"branch_id,omitempty"`
}

func toUserPayload(u *models.User) userPayload {
	return userPayload{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Phone:    u.Phone,
		Role:     u.Role,
		BrandID:  u.BrandID,
		SectorID: u.SectorID,
		AreaID:   u.AreaID,
		BranchID: u.BranchID,
	}
}

func Login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	var u models.User
	if err := config.DB.Where("email = ? AND is_deleted = ?", req.Email, false).First(&u).Error; err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if !u.IsActive {
		http.Error(w, "account disabled", http.StatusForbidden)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	token, err := middleware.GenerateToken(u.ID.String(), u.Role, u.Name, u.Email)
	if err != nil {
		http.Error(w, "couldn't create token", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(loginResp{
		Token:       token,
		User:        toUserPayload(&u),
		Permissions: rbac.PermissionsFor(u.Role),
	})
}

// Me returns the authenticated user's profile with its branch preloaded so
// clients can render the hierarchy position without a second round trip.
func Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var user models.User
	if err := config.DB.Preload("Branch").
		First(&user, "id = ? AND is_deleted = ?", claims.UserID, false).Error; err != nil {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(user)
}
