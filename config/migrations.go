package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/stratusretail/fixhub/models"
)

func Migrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "05012026_create_hierarchy_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Brand{}, &models.Sector{}, &models.Area{}, &models.Branch{})
			},
		},
		{
			ID: "05012026_create_users",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.User{})
			},
		},
		{
			ID: "12012026_create_ticket_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.TicketCategory{}, &models.Asset{},
					&models.Ticket{}, &models.MissionLog{})
			},
		},
		{
			ID: "19012026_create_inventory_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.InventoryItem{}, &models.InventoryTransaction{})
			},
		},
		{
			ID: "02022026_create_workforce_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Shift{}, &models.TechnicianAttendance{},
					&models.PayrollLog{})
			},
		},
		{
			ID: "16022026_create_ui_schemas",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.UISchema{})
			},
		},
		{
			ID: "09032026_create_offline_actions",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.OfflineAction{})
			},
		},
		{
			ID: "23032026_ticket_rating_columns",
			Migrate: func(tx *gorm.DB) error {
				// Re-running AutoMigrate picks up the rating_score and
				// rating_comment columns added after the initial rollout.
				return tx.AutoMigrate(&models.Ticket{})
			},
		},
	})
	return m.Migrate()
}
