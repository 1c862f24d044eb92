package background

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredDeleter removes state or records past their retention window.
type ExpiredDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically reaps expired rate limit state and attempt
// records. Lockout decisions never depend on this; expiry is checked lazily
// on read. Cleanup only keeps storage from growing without bound.
type CleanupManager struct {
	states   ExpiredDeleter
	attempts ExpiredDeleter
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager. The attempt log deleter
// is optional; pass nil when the gate runs without durable attempt storage.
func NewCleanupManager(
	states ExpiredDeleter,
	attempts ExpiredDeleter,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		states:   states,
		attempts: attempts,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup reaps expired state and attempt records
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	statesDeleted, err := cm.states.DeleteExpired(cleanupCtx)
	if err != nil {
		cm.logger.Error("failed to cleanup expired gate state", slog.Any("error", err))
	}

	var attemptsDeleted int64
	if cm.attempts != nil {
		attemptsDeleted, err = cm.attempts.DeleteExpired(cleanupCtx)
		if err != nil {
			cm.logger.Error("failed to cleanup expired attempt records", slog.Any("error", err))
		}
	}

	if statesDeleted > 0 || attemptsDeleted > 0 {
		cm.logger.Info("expired gate data cleanup completed",
			slog.Int64("states_deleted", statesDeleted),
			slog.Int64("attempts_deleted", attemptsDeleted))
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
