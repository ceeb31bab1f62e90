package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fleet-telematics-sync/internal/config"
	"fleet-telematics-sync/internal/logger"
)

// Runner owns the polling loop. Cycles are strictly serial; cancellation is
// observed between cycles, never mid-cycle. A panic inside a cycle is
// recovered and followed by an extended backoff; the process never
// terminates on a cycle failure.
type Runner struct {
	service *Service

	pollInterval   time.Duration
	idleBackoff    time.Duration
	errorBackoff   time.Duration
	reconcileEvery int
}

func NewRunner(service *Service, cfg config.SyncConfig) *Runner {
	reconcileEvery := cfg.ReconcileEvery
	if reconcileEvery < 1 {
		reconcileEvery = 1
	}
	return &Runner{
		service:        service,
		pollInterval:   cfg.PollInterval,
		idleBackoff:    cfg.IdleBackoff,
		errorBackoff:   cfg.ErrorBackoff,
		reconcileEvery: reconcileEvery,
	}
}

// Run blocks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	logger.Info("Sync runner started",
		zap.Duration("poll_interval", r.pollInterval),
		zap.Int("reconcile_every", r.reconcileEvery),
	)

	cycles := 0
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Sync runner stopped")
			return
		case <-timer.C:
		}

		delay := r.runOnce(ctx, &cycles)
		timer.Reset(delay)
	}
}

// runOnce executes a single guarded cycle and returns the delay before the
// next one.
func (r *Runner) runOnce(ctx context.Context, cycles *int) (delay time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Sync cycle panicked",
				zap.Any("panic", rec),
				zap.Duration("backoff", r.errorBackoff),
			)
			delay = r.errorBackoff
		}
	}()

	*cycles++
	wantReconcile := *cycles%r.reconcileEvery == 0

	result, err := r.service.RunCycle(ctx, wantReconcile)
	if err != nil {
		logger.Error("Sync cycle failed",
			zap.Error(err),
			zap.Duration("backoff", r.errorBackoff),
		)
		return r.errorBackoff
	}
	if result.Skipped {
		return r.idleBackoff
	}
	return r.pollInterval
}
