package lib

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/theleywin/Collab-Nest/src/models"
)

// AutoMigrate creates tables and indexes, including the partial unique index
// that allows one PENDING request per account pair.
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.ConnectionRequest{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
