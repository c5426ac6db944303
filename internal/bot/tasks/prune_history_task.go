package tasks

import (
	"context"
	"fmt"
	"time"
)

// newPruneHistoryTask creates the scheduled task that deletes stored messages
// older than the configured retention window. The rolling context window is
// far smaller than the retention horizon, so pruning never affects replies.
func newPruneHistoryTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "prune_history")

	return func(ctx context.Context) error {
		retention := time.Duration(deps.Config.Database.RetentionDays) * 24 * time.Hour
		cutoff := time.Now().UTC().Add(-retention)

		log.InfoContext(ctx, "Starting scheduled history pruning task", "cutoff", cutoff)
		startTime := time.Now()

		pruned, err := deps.Store.PruneMessagesBefore(ctx, cutoff)
		duration := time.Since(startTime)

		if err != nil {
			log.ErrorContext(ctx, "History pruning task failed", "error", err, "duration", duration)
			return fmt.Errorf("history pruning failed: %w", err)
		}

		log.InfoContext(ctx, "History pruning task completed", "pruned", pruned, "duration", duration)
		return nil
	}
}
