// Package tasks defines the scheduled background jobs: periodic insight
// recomputation from accumulated feedback, and database maintenance.
package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/replycoach/service/internal/database"
)

// ScheduledTaskFunc is the signature every scheduled task implements.
type ScheduledTaskFunc func(ctx context.Context) error

// TaskDeps carries the dependencies shared by all tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
}

// RegisterAllTasks returns the task registry keyed by the names used in the
// scheduler configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	return map[string]ScheduledTaskFunc{
		"insight_refresh": newInsightRefreshTask(deps),
		"db_maintenance":  newDBMaintenanceTask(deps),
	}
}

// newInsightRefreshTask recomputes strategy success rates and learning
// progress for active relationships from the raw usage counters.
func newInsightRefreshTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "insight_refresh")
	return func(ctx context.Context) error {
		if err := deps.Store.RefreshInsights(ctx); err != nil {
			return fmt.Errorf("refreshing relationship insights: %w", err)
		}
		log.InfoContext(ctx, "Relationship insights refreshed")
		return nil
	}
}

// newDBMaintenanceTask runs the periodic SQLite housekeeping pass.
func newDBMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "db_maintenance")
	return func(ctx context.Context) error {
		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			return fmt.Errorf("running database maintenance: %w", err)
		}
		log.InfoContext(ctx, "Database maintenance completed")
		return nil
	}
}
