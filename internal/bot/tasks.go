package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/edgard/brainbot/internal/database"
)

// NewMaintenanceTask creates the scheduled task function for running
// database maintenance.
func NewMaintenanceTask(store database.Store, logger *slog.Logger) ScheduledTaskFunc {
	log := logger.With("task", "db_maintenance")

	return func(ctx context.Context) error {
		log.InfoContext(ctx, "Starting scheduled database maintenance task...")
		startTime := time.Now()

		err := store.RunMaintenance(ctx)
		duration := time.Since(startTime)

		if err != nil {
			log.ErrorContext(ctx, "Database maintenance task failed", "error", err, "duration", duration)
			return fmt.Errorf("database maintenance failed: %w", err)
		}

		log.InfoContext(ctx, "Scheduled database maintenance task completed successfully", "duration", duration)
		return nil
	}
}
