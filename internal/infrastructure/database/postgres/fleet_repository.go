package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/infrastructure/database/postgres/models"
)

// FleetRepository implements telemetry.FleetRepository. Only the equipment
// column of fleet_assets is ever mutated here; asset rows themselves are
// registry data owned elsewhere.
type FleetRepository struct {
	db *DB
}

func NewFleetRepository(db *DB) telemetry.FleetRepository {
	return &FleetRepository{db: db}
}

func (r *FleetRepository) ListAssets(ctx context.Context) ([]telemetry.FleetAsset, error) {
	var rows []models.FleetAssetModel
	if err := r.db.DB.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list fleet assets: %w", err)
	}

	assets := make([]telemetry.FleetAsset, len(rows))
	for i, row := range rows {
		equipment := []string{}
		if row.Equipment != "" {
			_ = json.Unmarshal([]byte(row.Equipment), &equipment)
		}
		assets[i] = telemetry.FleetAsset{
			ID:        row.ID,
			Number:    row.Number,
			Equipment: equipment,
		}
	}
	return assets, nil
}

// SaveLinks atomically resets every cache row's linked flag, marks the
// matched rows and rewrites each asset's equipment set.
func (r *FleetRepository) SaveLinks(ctx context.Context, linked []telemetry.LinkedDevice, assets []telemetry.FleetAsset) error {
	byProvider := make(map[telemetry.Provider][]int64)
	for _, device := range linked {
		byProvider[device.Provider] = append(byProvider[device.Provider], device.ExternalID)
	}

	err := r.db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, provider := range []telemetry.Provider{
			telemetry.ProviderWialon, telemetry.ProviderCesar, telemetry.ProviderAxenta,
		} {
			table, err := cacheTable(provider)
			if err != nil {
				return err
			}
			if err := tx.Exec("UPDATE "+table+" SET linked = FALSE").Error; err != nil {
				return err
			}
			if ids := byProvider[provider]; len(ids) > 0 {
				if err := tx.Exec("UPDATE "+table+" SET linked = TRUE WHERE external_id IN ?", ids).Error; err != nil {
					return err
				}
			}
		}

		for _, asset := range assets {
			equipment := asset.Equipment
			if equipment == nil {
				equipment = []string{}
			}
			encoded, err := json.Marshal(equipment)
			if err != nil {
				return err
			}
			if err := tx.Model(&models.FleetAssetModel{}).
				Where("id = ?", asset.ID).
				Update("equipment", string(encoded)).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save reconciliation links: %w", err)
	}
	return nil
}
