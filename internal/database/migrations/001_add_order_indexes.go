package migrations

import (
	"gorm.io/gorm"
)

// AddOrderIndexes creates the indexes the scheduler and the order API lean on
func AddOrderIndexes(db *gorm.DB) error {
	// Using raw SQL for index creation to have more control over index types
	indexes := []string{
		// Index for the scheduler's pending fetch
		`CREATE INDEX IF NOT EXISTS idx_orders_status
		 ON orders(status)`,

		// Composite index for owner listings, newest first
		`CREATE INDEX IF NOT EXISTS idx_orders_owner_created_at
		 ON orders(owner, created_at)`,

		// Index for snapshot grouping by token
		`CREATE INDEX IF NOT EXISTS idx_orders_token_address
		 ON orders(token_address)`,

		// Composite index for the expiry sweep
		`CREATE INDEX IF NOT EXISTS idx_orders_status_expires_at
		 ON orders(status, expires_at)`,
	}

	// Execute each index creation
	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			return err
		}
	}

	return nil
}
