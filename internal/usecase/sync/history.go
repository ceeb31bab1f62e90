package sync

import (
	"context"
	"time"

	"fleet-telematics-sync/internal/domain/telemetry"
)

// AppendChanged appends a history entry for each device whose position has
// materially changed since its last recorded entry. The series is
// append-only and never compacted by this engine.
//
// Eligibility: the last fix must fall within the recency window and the
// position must be non-zero on both axes, suppressing stale and
// clearly-invalid fixes. Append when no prior entry exists for the
// identity key, or when the fix is strictly newer and either axis moved.
func (s *Service) AppendChanged(ctx context.Context, devices []telemetry.Device, now time.Time) (int, error) {
	if len(devices) == 0 {
		return 0, nil
	}

	latest, err := s.history.LatestByKey(ctx)
	if err != nil {
		return 0, err
	}

	var entries []telemetry.HistoryEntry
	for i := range devices {
		device := &devices[i]
		if !device.HasRecentFix(now, s.historyWindow) {
			continue
		}

		key := telemetry.HistoryKey{
			Provider: device.Provider,
			UID:      device.UID,
			Name:     device.Name,
		}
		prior, exists := latest[key]
		if exists {
			if device.LastPositionAt <= prior.ObservedAt {
				continue
			}
			if device.PosX == prior.PosX && device.PosY == prior.PosY {
				continue
			}
		}

		entries = append(entries, telemetry.HistoryEntry{
			Provider:   device.Provider,
			UID:        device.UID,
			Name:       device.Name,
			PosX:       device.PosX,
			PosY:       device.PosY,
			ObservedAt: device.LastPositionAt,
		})
	}

	if err := s.history.Append(ctx, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}
