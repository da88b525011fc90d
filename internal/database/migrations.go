package database

import (
	"gorm.io/gorm"

	"github.com/zenebedagim/dental-clinic-sub002/internal/models"
)

// DefaultBranchID identifies the branch created on first start.
const DefaultBranchID = "00000000-0000-0000-0000-000000000001"

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Branch{},
		&models.User{},
		&models.Notification{},
		&models.CacheEntry{},
	)
}

// SeedData ensures the default branch exists.
func SeedData(db *gorm.DB) error {
	main := models.Branch{
		BaseModel: models.BaseModel{ID: DefaultBranchID},
		Name:      "Main",
	}
	return db.Where(models.Branch{BaseModel: models.BaseModel{ID: main.ID}}).
		Attrs(main).
		FirstOrCreate(&models.Branch{}).Error
}
