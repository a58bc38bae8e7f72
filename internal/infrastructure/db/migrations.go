package db

import (
	"github.com/apache/bigtop-manager-sub000/internal/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&domain.ConfigSnapshot{},
		&domain.JobRecord{},
		&domain.TimelineEvent{},
	)
	if err != nil {
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		return err
	}

	return nil
}

func createCustomIndexes(db *gorm.DB) error {
	// One live snapshot per service within a wizard session
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_config_snapshots_unique
		ON config_snapshots (session_id, service_name)
		WHERE deleted_at IS NULL
	`).Error; err != nil {
		return err
	}

	// Index for timeline events querying by resource
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_timeline_events_resource
		ON timeline_events (resource_type, resource_id)
		WHERE deleted_at IS NULL
	`).Error; err != nil {
		return err
	}

	return nil
}
