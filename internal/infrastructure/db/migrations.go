package db

import (
	"gorm.io/gorm"

	"github.com/cruxpanel/backend/internal/domain"
)

func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&domain.TimelineEvent{}); err != nil {
		return err
	}

	// Index for timeline events querying by task
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_timeline_events_task
		ON timeline_events (task_id)
		WHERE deleted_at IS NULL
	`).Error
}
