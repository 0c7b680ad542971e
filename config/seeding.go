package config

import (
	"errors"
	"log"
	"os"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/models"
)

// SeedBaseline creates the bootstrap admin, the fault-type lookup and the
// default display schemas. Every step is idempotent.
func SeedBaseline(db *gorm.DB) error {
	if err := seedAdmin(db); err != nil {
		return err
	}
	if err := seedTicketCategories(db); err != nil {
		return err
	}
	return seedUISchemas(db)
}

// seedAdmin creates the first admin account from the environment. All other
// accounts are provisioned through the users API by privileged roles.
func seedAdmin(db *gorm.DB) error {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		log.Println("ADMIN_EMAIL/ADMIN_PASSWORD not set, skipping admin seed")
		return nil
	}

	var existing models.User
	err := db.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	admin := models.User{
		Name:         "Administrator",
		Email:        email,
		Phone:        "0000000000",
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := db.Create(&admin).Error; err != nil {
		return err
	}
	log.Printf("Seeded admin account %s", email)
	return nil
}

func seedTicketCategories(db *gorm.DB) error {
	names := []string{"Electrical", "Plumbing", "Refrigeration", "HVAC", "Structural", "IT Equipment", "Other"}
	for _, name := range names {
		var cat models.TicketCategory
		err := db.Where("name = ?", name).First(&cat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&models.TicketCategory{Name: name}).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func seedUISchemas(db *gorm.DB) error {
	defaults := []models.UISchema{
		{
			TableName:   "tickets",
			DisplayName: "Maintenance Tickets",
			ListColumns: models.ListColumns{
				{Key: "title", Label: "Title", CellType: "text"},
				{Key: "status", Label: "Status", CellType: "status"},
				{Key: "priority", Label: "Priority", CellType: "status"},
				{Key: "branch_id", Label: "Branch", CellType: "relation"},
				{Key: "assignee_id", Label: "Technician", CellType: "relation"},
				{Key: "created_at", Label: "Reported", CellType: "datetime"},
			},
			FormFields: models.FormFields{
				{Key: "title", Label: "Title", Type: "text", Required: true, MaxLength: 255},
				{Key: "description", Label: "Description", Type: "textarea"},
				{Key: "priority", Label: "Priority", Type: "select", Required: true},
				{Key: "branch_id", Label: "Branch", Type: "select", Required: true, DataSource: "fk:branches"},
				{Key: "asset_id", Label: "Asset", Type: "select", DataSource: "fk:assets"},
				{Key: "category_id", Label: "Category", Type: "select", DataSource: "fk:ticket_categories"},
				{Key: "report_lat", Label: "Latitude", Type: "number", Role: models.FieldRoleLatitude},
				{Key: "report_lng", Label: "Longitude", Type: "number", Role: models.FieldRoleLongitude},
			},
		},
		{
			TableName:   "inventory_items",
			DisplayName: "Spare Parts",
			ListColumns: models.ListColumns{
				{Key: "name", Label: "Part", CellType: "text"},
				{Key: "sku", Label: "SKU", CellType: "text"},
				{Key: "branch_id", Label: "Branch", CellType: "relation"},
				{Key: "quantity", Label: "In Stock", CellType: "number"},
				{Key: "unit_cost", Label: "Unit Cost", CellType: "money"},
			},
			FormFields: models.FormFields{
				{Key: "name", Label: "Part", Type: "text", Required: true, MaxLength: 100},
				{Key: "sku", Label: "SKU", Type: "text", Required: true, MaxLength: 50},
				{Key: "branch_id", Label: "Branch", Type: "select", Required: true, DataSource: "fk:branches"},
				{Key: "quantity", Label: "In Stock", Type: "number", Required: true},
				{Key: "unit_cost", Label: "Unit Cost", Type: "number", Required: true},
			},
		},
		{
			TableName:   "assets",
			DisplayName: "Branch Assets",
			ListColumns: models.ListColumns{
				{Key: "name", Label: "Asset", CellType: "text"},
				{Key: "code", Label: "Code", CellType: "text"},
				{Key: "branch_id", Label: "Branch", CellType: "relation"},
			},
			FormFields: models.FormFields{
				{Key: "name", Label: "Asset", Type: "text", Required: true, MaxLength: 100},
				{Key: "code", Label: "Code", Type: "text", Required: true, MaxLength: 50},
				{Key: "branch_id", Label: "Branch", Type: "select", Required: true, DataSource: "fk:branches"},
			},
		},
	}

	for _, schema := range defaults {
		var existing models.UISchema
		err := db.Where("table_name = ?", schema.TableName).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&schema).Error; err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}
