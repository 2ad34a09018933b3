package background

import (
	"context"
	"log/slog"
	"time"
)

// PruneFunc deletes rows older than threshold and reports how many went
type PruneFunc func(ctx context.Context, threshold time.Time) (int64, error)

// CleanupTask is one retention rule run by the CleanupManager
type CleanupTask struct {
	Name      string
	Retention time.Duration
	Prune     PruneFunc
}

// CleanupManager periodically purges rows older than each task's retention
type CleanupManager struct {
	tasks    []CleanupTask
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration, tasks ...CleanupTask) *CleanupManager {
	return &CleanupManager{
		tasks:    tasks,
		logger:   logger,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. It blocks until Stop is called
// or ctx is cancelled.
func (cm *CleanupManager) Start(ctx context.Context) {
	if cm.interval <= 0 {
		cm.logger.Error("cleanup manager not started: interval must be positive",
			slog.Duration("interval", cm.interval))
		return
	}

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce executes every task. A failing task does not stop the others.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	for _, task := range cm.tasks {
		cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		rowsDeleted, err := task.Prune(cleanupCtx, cm.now().Add(-task.Retention))
		cancel()

		if err != nil {
			cm.logger.Error("cleanup task failed",
				slog.String("task", task.Name),
				slog.Any("error", err))
			continue
		}

		if rowsDeleted > 0 {
			cm.logger.Info("cleanup task completed",
				slog.String("task", task.Name),
				slog.Int64("rows_deleted", rowsDeleted))
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
