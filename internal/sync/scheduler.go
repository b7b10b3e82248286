package sync

import (
	"context"
	"time"

	"huntflow-sync/internal/common/logger"
	"huntflow-sync/internal/common/metrics"
)

// Scheduler runs the engine at a fixed interval, with an immediate first
// run. The run lock guarantees at most one reconciliation at a time across
// all replicas; a replica that loses the race simply waits for its next
// tick.
type Scheduler struct {
	engine   *Engine
	lock     *RunLock
	interval time.Duration
	logger   logger.Logger
}

func NewScheduler(engine *Engine, lock *RunLock, interval time.Duration, log logger.Logger) *Scheduler {
	return &Scheduler{
		engine:   engine,
		lock:     lock,
		interval: interval,
		logger:   log,
	}
}

// Start blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	acquired, err := s.lock.TryAcquire(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to acquire reconciliation lock", nil)
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return
	}
	if !acquired {
		s.logger.Info("reconciliation already running elsewhere, skipping", nil)
		metrics.SyncRuns.WithLabelValues("skipped").Inc()
		return
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logger.WithError(err).Error("failed to release reconciliation lock", nil)
		}
	}()

	if err := s.engine.Run(ctx); err != nil {
		s.logger.WithError(err).Error("reconciliation run failed", nil)
	}
}
