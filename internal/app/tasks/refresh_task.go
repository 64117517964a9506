package tasks

import (
	"context"
	"fmt"
	"time"
)

// newRefreshAllTask creates the scheduled task function that re-pulls every
// registered bot's profiles from Telegram, keeping the cache from drifting
// too far from the remote system of record.
func newRefreshAllTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "refresh_all_bots")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled refresh of all bots...")
		startTime := time.Now()

		err := deps.Syncer.RefreshAll(ctx)

		duration := time.Since(startTime)

		if err != nil {
			log.ErrorContext(ctx, "Scheduled refresh finished with failures", "error", err, "duration", duration)
			return fmt.Errorf("refresh all bots failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled refresh of all bots completed successfully", "duration", duration)
		return nil
	}
}
