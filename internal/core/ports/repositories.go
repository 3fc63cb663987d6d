package ports

import (
	"context"
	"time"

	"github.com/cruxpanel/backend/internal/domain"
)

type TimelineRepository interface {
	Create(ctx context.Context, event *domain.TimelineEvent) error
	GetByTask(ctx context.Context, taskID string) ([]domain.TimelineEvent, error)
	GetAll(ctx context.Context, limit int) ([]domain.TimelineEvent, error)
	CleanupOld(ctx context.Context, olderThan time.Duration) error
}
