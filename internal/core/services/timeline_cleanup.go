package services

import (
	"context"
	"time"

	"github.com/cruxpanel/backend/internal/core/ports"
	"github.com/cruxpanel/backend/internal/infrastructure/logger"
)

const defaultCleanupInterval = 12 * time.Hour

// RunTimelineCleanup prunes timeline events older than retention on a
// fixed interval. It blocks until ctx is cancelled; run it in its own
// goroutine.
func RunTimelineCleanup(ctx context.Context, repo ports.TimelineRepository, retention, interval time.Duration, log *logger.Logger) {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = defaultCleanupInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := repo.CleanupOld(ctx, retention); err != nil {
				log.Errorw("timeline_cleanup_failed", "error", err)
			}
		}
	}
}
