package database

import (
	"fmt"

	"github.com/gdg-garage/garage-workshops/internal/config"
	"github.com/gdg-garage/garage-workshops/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func dialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DatabaseDriver {
	case "", "sqlite":
		return sqlite.Open(cfg.DatabasePath), nil
	case "postgres":
		return postgres.Open(cfg.DatabaseDSN), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
}

// Connect opens the configured database without touching its schema.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table the marketplace uses.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.UserRecord{},
		&models.Account{},
		&models.WorkshopRecord{},
		&models.ApplicationRecord{},
		&models.Payment{},
	); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}
	return nil
}
