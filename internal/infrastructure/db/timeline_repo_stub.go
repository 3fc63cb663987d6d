package db

import (
	"context"
	"time"

	"github.com/cruxpanel/backend/internal/core/ports"
	"github.com/cruxpanel/backend/internal/domain"
	"github.com/cruxpanel/backend/internal/infrastructure/logger"
)

// TimelineRepoStub is used when no database is configured. Events are
// written to the log and nothing is retained.
type TimelineRepoStub struct {
	logger *logger.Logger
}

func NewTimelineRepoStub(log *logger.Logger) ports.TimelineRepository {
	return &TimelineRepoStub{logger: log}
}

func (r *TimelineRepoStub) Create(ctx context.Context, event *domain.TimelineEvent) error {
	r.logger.Infow("timeline event",
		"type", event.Type,
		"status", event.Status,
		"message", event.Message,
		"task_id", event.TaskID,
	)
	return nil
}

func (r *TimelineRepoStub) GetByTask(ctx context.Context, taskID string) ([]domain.TimelineEvent, error) {
	return nil, nil
}

func (r *TimelineRepoStub) GetAll(ctx context.Context, limit int) ([]domain.TimelineEvent, error) {
	return nil, nil
}

func (r *TimelineRepoStub) CleanupOld(ctx context.Context, olderThan time.Duration) error {
	return nil
}
