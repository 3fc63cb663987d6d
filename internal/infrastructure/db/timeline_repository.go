package db

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/cruxpanel/backend/internal/core/ports"
	"github.com/cruxpanel/backend/internal/domain"
	"github.com/cruxpanel/backend/internal/infrastructure/logger"
)

type timelineRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewTimelineRepository(db *gorm.DB, log *logger.Logger) ports.TimelineRepository {
	return &timelineRepository{
		db:  db,
		log: log,
	}
}

func (r *timelineRepository) Create(ctx context.Context, event *domain.TimelineEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		r.log.Errorw("timeline_repo_create_failed", "type", event.Type, "status", event.Status, "error", err)
		return err
	}
	return nil
}

func (r *timelineRepository) GetAll(ctx context.Context, limit int) ([]domain.TimelineEvent, error) {
	var events []domain.TimelineEvent
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		r.log.Errorw("timeline_repo_list_failed", "error", err)
		return nil, err
	}
	return events, nil
}

func (r *timelineRepository) GetByTask(ctx context.Context, taskID string) ([]domain.TimelineEvent, error) {
	var events []domain.TimelineEvent
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at desc").
		Limit(50).
		Find(&events).Error
	if err != nil {
		r.log.Errorw("timeline_repo_get_by_task_failed", "task_id", taskID, "error", err)
		return nil, err
	}
	return events, nil
}

// CleanupOld removes events older than the specified duration
func (r *timelineRepository) CleanupOld(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan)
	if err := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&domain.TimelineEvent{}).Error; err != nil {
		r.log.Errorw("timeline_repo_cleanup_failed", "error", err)
		return err
	}
	r.log.Infow("timeline_repo_cleanup_ok")
	return nil
}
