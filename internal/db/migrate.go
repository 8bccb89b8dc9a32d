package db

import (
	"fmt"

	"github.com/formgate/formgate/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table used by the service.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.User{},
		&models.Form{},
		&models.Submission{},
		&models.APIKey{},
		&models.DuplicateRecord{},
		&models.RateLimitState{},
		&models.Webhook{},
		&models.WebhookDelivery{},
		&models.Setting{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
