package database

import (
	"fmt"

	"github.com/solwatch/trigger-api/internal/database/migrations"
	"github.com/solwatch/trigger-api/internal/notify"
	"github.com/solwatch/trigger-api/internal/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection
func NewDatabase(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate schemas
	err = db.AutoMigrate(
		&types.Order{},
		&notify.StoredEvent{},
	)
	if err != nil {
		return nil, err
	}

	// Run migrations
	if err := migrations.AddOrderIndexes(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}
