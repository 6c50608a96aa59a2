package db

import (
	"fmt"

	"github.com/modelfleet/governd/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the ledger schema to the connected database.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	entities := []any{
		&models.Provider{},
		&models.Model{},
		&models.ToolMapping{},
		&models.UsageEvent{},
		&models.BudgetAlert{},
		&models.AuditEntry{},
	}
	if errMigrate := conn.AutoMigrate(entities...); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
