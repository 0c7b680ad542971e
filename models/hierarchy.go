package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Brand is the top of the organizational hierarchy: brand > sector > area > branch.
type Brand struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Code      string    `gorm:"size:50;uniqueIndex;not null" json:"code"`
	IsDeleted bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Sectors []Sector `gorm:"foreignKey:BrandID" json:"sectors,omitempty"`
}

type Sector struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Code      string    `gorm:"size:50;uniqueIndex;not null" json:"code"`
	BrandID   uuid.UUID `gorm:"type:uuid;not null;index" json:"brand_id"`
	Brand     *Brand    `gorm:"foreignKey:BrandID" json:"brand,omitempty"`
	IsDeleted bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Areas []Area `gorm:"foreignKey:SectorID" json:"areas,omitempty"`
}

type Area struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Code      string    `gorm:"size:50;uniqueIndex;not null" json:"code"`
	SectorID  uuid.UUID `gorm:"type:uuid;not null;index" json:"sector_id"`
	Sector    *Sector   `gorm:"foreignKey:SectorID" json:"sector,omitempty"`
	IsDeleted bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Branches []Branch `gorm:"foreignKey:AreaID" json:"branches,omitempty"`
}

// Branch is the leaf of the hierarchy and the finest RBAC scoping boundary.
// Geofence holds a JSON polygon ({"coordinates": [{lat, lng}, ...]});
// technicians must clock in inside it.
type Branch struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Code      string    `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Address   string    `gorm:"size:255" json:"address,omitempty"`
	Phone     string    `gorm:"size:20" json:"phone,omitempty"`
	AreaID    uuid.UUID `gorm:"type:uuid;not null;index" json:"area_id"`
	Area      *Area     `gorm:"foreignKey:AreaID" json:"area,omitempty"`
	Latitude  float64   `gorm:"column:latitude" json:"latitude"`
	Longitude float64   `gorm:"column:longitude" json:"longitude"`
	Geofence  *string   `gorm:"type:jsonb" json:"geofence,omitempty"`
	IsDeleted bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *Brand) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}

func (s *Sector) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return
}

func (a *Area) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

func (b *Branch) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}
