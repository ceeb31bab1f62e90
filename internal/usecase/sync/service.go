package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/logger"
	"fleet-telematics-sync/internal/provider"
)

// Service drives one synchronization cycle: toggle check, fault-isolated
// provider fetches, per-provider cache upserts, history pass and the
// reconciliation pass on its own cadence.
type Service struct {
	registry provider.Registry
	cache    telemetry.CacheRepository
	history  telemetry.HistoryRepository
	fleet    telemetry.FleetRepository
	status   telemetry.StatusRepository

	historyWindow time.Duration
}

func NewService(
	registry provider.Registry,
	cache telemetry.CacheRepository,
	history telemetry.HistoryRepository,
	fleet telemetry.FleetRepository,
	status telemetry.StatusRepository,
	historyWindow time.Duration,
) *Service {
	return &Service{
		registry:      registry,
		cache:         cache,
		history:       history,
		fleet:         fleet,
		status:        status,
		historyWindow: historyWindow,
	}
}

// CycleResult summarizes one cycle for the runner and the logs.
type CycleResult struct {
	Skipped         bool
	Fetched         map[telemetry.Provider]int
	Dropped         map[telemetry.Provider]int
	Written         map[telemetry.Provider]int64
	HistoryAppended int
	Reconciled      bool
}

type fetchResult struct {
	devices []telemetry.Device
	dropped int
}

// RunCycle executes one full cycle. Provider and batch failures are
// contained: a failing provider contributes an empty result set, a failing
// batch rolls back alone, and the cycle always completes for the rest.
func (s *Service) RunCycle(ctx context.Context, wantReconcile bool) (*CycleResult, error) {
	log := logger.WithCycleID(uuid.New().String())

	status, err := s.status.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !status.SyncEnabled() {
		log.Debug("Sync disabled, skipping cycle")
		return &CycleResult{Skipped: true}, nil
	}

	result := &CycleResult{
		Fetched: make(map[telemetry.Provider]int),
		Dropped: make(map[telemetry.Provider]int),
		Written: make(map[telemetry.Provider]int64),
	}

	results := s.fetchAll(ctx, log)

	var cached []telemetry.Device
	for providerName, fetched := range results {
		result.Fetched[providerName] = len(fetched.devices)
		result.Dropped[providerName] = fetched.dropped

		written, err := s.cache.Upsert(ctx, providerName, fetched.devices)
		if err != nil {
			// Only this provider's batch rolled back; siblings proceed.
			log.Error("Cache batch failed",
				zap.String("provider", string(providerName)),
				zap.Error(err),
			)
			continue
		}
		result.Written[providerName] = written
		cached = append(cached, fetched.devices...)
	}

	appended, err := s.AppendChanged(ctx, cached, time.Now())
	if err != nil {
		log.Error("History pass failed", zap.Error(err))
	}
	result.HistoryAppended = appended

	if wantReconcile && status.ReconcileEnabled() {
		if err := s.Recompute(ctx); err != nil {
			log.Error("Reconciliation pass failed", zap.Error(err))
		} else {
			result.Reconciled = true
		}
	}

	log.Info("Sync cycle completed",
		zap.Any("fetched", result.Fetched),
		zap.Any("dropped", result.Dropped),
		zap.Any("written", result.Written),
		zap.Int("history_appended", result.HistoryAppended),
		zap.Bool("reconciled", result.Reconciled),
	)
	return result, nil
}

// fetchAll queries every registered provider concurrently. The fetches are
// independent network calls; results are joined before normalization output
// moves on to the store. A provider failure yields an empty set.
func (s *Service) fetchAll(ctx context.Context, log *zap.Logger) map[telemetry.Provider]fetchResult {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[telemetry.Provider]fetchResult, len(s.registry))
	)

	for _, adapter := range s.registry {
		wg.Add(1)
		go func(adapter provider.Adapter) {
			defer wg.Done()

			devices, dropped, err := adapter.ListDevices(ctx)
			if err != nil {
				log.Error("Provider fetch failed",
					zap.String("provider", string(adapter.Name())),
					zap.Error(err),
				)
				devices, dropped = nil, 0
			}

			mu.Lock()
			results[adapter.Name()] = fetchResult{devices: devices, dropped: dropped}
			mu.Unlock()
		}(adapter)
	}

	wg.Wait()
	return results
}
