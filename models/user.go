package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// The eight fixed roles. The first three are global: their queries are never
// scope-filtered. The rest are scoped to the matching hierarchy level.
const (
	RoleAdmin            = "admin"
	RoleMaintManager     = "maintenance_manager"
	RoleDeputyMaintMgr   = "deputy_maintenance_manager"
	RoleBrandManager     = "brand_manager"
	RoleSectorManager    = "sector_manager"
	RoleAreaManager      = "area_manager"
	RoleBranchManager    = "branch_manager"
	RoleTechnician       = "technician"
)

// User is both the auth identity and the employee profile. The nullable
// hierarchy foreign keys define the user's RBAC scope; the most specific
// non-null one wins (branch > area > sector > brand).
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string     `gorm:"size:100;not null" json:"name"`
	Email        string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Phone        string     `gorm:"size:20;uniqueIndex;not null" json:"phone"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Role         string     `gorm:"size:50;not null;index" json:"role"`
	BrandID      *uuid.UUID `gorm:"type:uuid;index" json:"brand_id,omitempty"`
	SectorID     *uuid.UUID `gorm:"type:uuid;index" json:"sector_id,omitempty"`
	AreaID       *uuid.UUID `gorm:"type:uuid;index" json:"area_id,omitempty"`
	BranchID     *uuid.UUID `gorm:"type:uuid;index" json:"branch_id,omitempty"`
	Branch       *Branch    `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	BaseDailyPay float64    `gorm:"default:0" json:"base_daily_pay"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	IsDeleted    bool       `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

// IsGlobalRole reports whether a role bypasses scope filtering entirely.
func IsGlobalRole(role string) bool {
	switch role {
	case RoleAdmin, RoleMaintManager, RoleDeputyMaintMgr:
		return true
	}
	return false
}

// ScopeLevel identifies which hierarchy level restricts a user's queries.
type ScopeLevel int

const (
	ScopeNone ScopeLevel = iota // global, no filtering
	ScopeBrand
	ScopeSector
	ScopeArea
	ScopeBranch
)

// Scope resolves the user's effective scope: the most specific non-null
// hierarchy id. Global roles always resolve to ScopeNone regardless of
// which ids happen to be set on the profile.
func (u *User) Scope() (ScopeLevel, uuid.UUID) {
	if IsGlobalRole(u.Role) {
		return ScopeNone, uuid.Nil
	}
	if u.BranchID != nil {
		return ScopeBranch, *u.BranchID
	}
	if u.AreaID != nil {
		return ScopeArea, *u.AreaID
	}
	if u.SectorID != nil {
		return ScopeSector, *u.SectorID
	}
	if u.BrandID != nil {
		return ScopeBrand, *u.BrandID
	}
	return ScopeNone, uuid.Nil
}
