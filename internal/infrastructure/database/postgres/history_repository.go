package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/infrastructure/database/postgres/models"
)

// HistoryRepository implements telemetry.HistoryRepository over the
// append-only cache_history table.
type HistoryRepository struct {
	db *DB
}

func NewHistoryRepository(db *DB) telemetry.HistoryRepository {
	return &HistoryRepository{db: db}
}

// LatestByKey returns the most recent entry per (provider, uid, name)
// identity key.
func (r *HistoryRepository) LatestByKey(ctx context.Context) (map[telemetry.HistoryKey]telemetry.HistoryEntry, error) {
	var rows []models.HistoryModel
	err := r.db.DB.WithContext(ctx).Raw(`
        SELECT DISTINCT ON (provider, uid, name)
               provider, uid, name, pos_x, pos_y, observed_at
        FROM cache_history
        ORDER BY provider, uid, name, observed_at DESC
    `).Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load latest history entries: %w", err)
	}

	latest := make(map[telemetry.HistoryKey]telemetry.HistoryEntry, len(rows))
	for _, row := range rows {
		key := telemetry.HistoryKey{
			Provider: telemetry.Provider(row.Provider),
			UID:      row.UID,
			Name:     row.Name,
		}
		latest[key] = telemetry.HistoryEntry{
			Provider:   key.Provider,
			UID:        row.UID,
			Name:       row.Name,
			PosX:       row.PosX,
			PosY:       row.PosY,
			ObservedAt: row.ObservedAt,
		}
	}
	return latest, nil
}

// Append inserts new history entries in one transaction. Entries are never
// updated or deleted afterwards.
func (r *HistoryRepository) Append(ctx context.Context, entries []telemetry.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]models.HistoryModel, len(entries))
	for i, entry := range entries {
		rows[i] = models.HistoryModel{
			Provider:   string(entry.Provider),
			UID:        entry.UID,
			Name:       entry.Name,
			PosX:       entry.PosX,
			PosY:       entry.PosY,
			ObservedAt: entry.ObservedAt,
		}
	}

	err := r.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, upsertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("failed to append history entries: %w", err)
	}
	return nil
}
