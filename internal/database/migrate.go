package database

import (
	"fmt"
	"log"
	"time"

	"marketsimulator/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate brings the schema up to date. defaultInterval backfills the
// scheduler interval on day control rows written before it was persisted.
func AutoMigrate(db *gorm.DB, defaultInterval time.Duration) error {
	if err := migrateExistingData(db, defaultInterval); err != nil {
		log.Printf("Failed to migrate existing data: %v", err)
		return err
	}

	err := db.AutoMigrate(
		&models.DayControl{},
		&models.DayEvent{},
		&models.StockPrice{},
		&models.FinancialReport{},
		&models.Participant{},
		&models.PortfolioHolding{},
		&models.Transaction{},
	)
	if err != nil {
		log.Printf("Failed to auto-migrate: %v", err)
		return err
	}

	log.Println("Database migration completed successfully")
	return nil
}

// migrateExistingData adds the scheduler and version columns with defaults
// before AutoMigrate tries to add them as NOT NULL.
func migrateExistingData(db *gorm.DB, defaultInterval time.Duration) error {
	var count int64
	if err := db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'day_controls'").Scan(&count).Error; err != nil {
		log.Printf("Warning: could not check day_controls table: %v", err)
		return nil
	}
	if count == 0 {
		return nil
	}

	columns := []struct {
		name string
		ddl  string
	}{
		{"auto_advance_interval_ms", fmt.Sprintf("BIGINT NOT NULL DEFAULT %d", defaultInterval.Milliseconds())},
		{"auto_advance_enabled", "BOOLEAN NOT NULL DEFAULT false"},
		{"version", "BIGINT NOT NULL DEFAULT 0"},
	}
	for _, col := range columns {
		if err := db.Raw("SELECT COUNT(*) FROM information_schema.columns WHERE table_name = 'day_controls' AND column_name = ?", col.name).Scan(&count).Error; err != nil {
			log.Printf("Warning: could not check day_controls.%s: %v", col.name, err)
			return nil
		}
		if count > 0 {
			continue
		}
		log.Printf("Adding %s column to day_controls", col.name)
		if err := db.Exec(fmt.Sprintf("ALTER TABLE day_controls ADD COLUMN IF NOT EXISTS %s %s", col.name, col.ddl)).Error; err != nil {
			return err
		}
	}

	log.Println("Existing data migration completed successfully")
	return nil
}
