package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/infrastructure/database/postgres/models"
)

// StatusRepository implements telemetry.StatusRepository over the single
// system_status row.
type StatusRepository struct {
	db *DB
}

func NewStatusRepository(db *DB) telemetry.StatusRepository {
	return &StatusRepository{db: db}
}

// Get reads the toggle row. A missing row reads as all-disabled, matching
// the engine's fail-closed posture when the table was never seeded.
func (r *StatusRepository) Get(ctx context.Context) (*telemetry.SystemStatus, error) {
	var row models.SystemStatusModel
	err := r.db.DB.WithContext(ctx).Where("id = ?", 1).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &telemetry.SystemStatus{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read system status: %w", err)
	}

	return &telemetry.SystemStatus{
		EnableSync:      row.EnableSync,
		EnableReconcile: row.EnableReconcile,
		Maintenance:     row.Maintenance,
	}, nil
}

func (r *StatusRepository) Set(ctx context.Context, status *telemetry.SystemStatus) error {
	row := models.SystemStatusModel{
		ID:              1,
		EnableSync:      status.EnableSync,
		EnableReconcile: status.EnableReconcile,
		Maintenance:     status.Maintenance,
	}
	if err := r.db.DB.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("failed to write system status: %w", err)
	}
	return nil
}
