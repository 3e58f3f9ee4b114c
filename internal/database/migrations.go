package database

import (
	"fmt"

	"gorm.io/gorm"
)

// RunMigrations creates the indexes AutoMigrate does not express.
func RunMigrations(db *gorm.DB) error {
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_query_logs_time ON query_logs(query_time)`,
		`CREATE INDEX IF NOT EXISTS idx_query_logs_bench ON query_logs(bench, error_kind)`,
		`CREATE INDEX IF NOT EXISTS idx_history_listing ON history_entries(listing_date)`,
		// Download queue scan.
		`CREATE INDEX IF NOT EXISTS idx_documents_pending ON documents(fetched, attempts)`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}
