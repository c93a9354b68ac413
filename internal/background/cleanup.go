package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/marchalgreen/Rundeklar-sub004/internal/clock"
	"github.com/marchalgreen/Rundeklar-sub004/internal/ratelimit"
)

// CleanupManager periodically removes login attempts past the retention
// horizon. Recording a failure already prunes opportunistically; this
// catches stores that go quiet.
type CleanupManager struct {
	store     ratelimit.AttemptStore
	clk       clock.Clock
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(
	store ratelimit.AttemptStore,
	clk clock.Clock,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *CleanupManager {
	return &CleanupManager{
		store:     store,
		clk:       clk,
		logger:    logger,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic sweep task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runSweep(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runSweep removes attempts older than the retention horizon
func (cm *CleanupManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := cm.clk.Now().Add(-cm.retention)
	rowsDeleted, err := cm.store.PurgeOlderThan(sweepCtx, cutoff)
	if err != nil {
		cm.logger.Error("failed to sweep login attempts", slog.Any("error", err))
		return
	}

	if rowsDeleted > 0 {
		cm.logger.Info("login attempt sweep completed", slog.Int64("rows_deleted", rowsDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
