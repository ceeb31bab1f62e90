package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/infrastructure/database/postgres/models"
)

const upsertBatchSize = 500

// CacheRepository implements telemetry.CacheRepository over one table per
// provider with replace-on-conflict semantics.
type CacheRepository struct {
	db *DB
}

func NewCacheRepository(db *DB) telemetry.CacheRepository {
	return &CacheRepository{db: db}
}

// Upsert writes one provider's batch inside its own transaction. A failure
// rolls back only this batch; other providers' batches are unaffected.
func (r *CacheRepository) Upsert(ctx context.Context, provider telemetry.Provider, devices []telemetry.Device) (int64, error) {
	if len(devices) == 0 {
		return 0, nil
	}

	switch provider {
	case telemetry.ProviderWialon:
		rows := make([]models.WialonCacheModel, len(devices))
		for i, d := range devices {
			rows[i] = models.WialonCacheModel{CacheDeviceModel: toCacheRow(&d)}
		}
		return upsertRows(ctx, r.db.DB, provider, rows)
	case telemetry.ProviderCesar:
		rows := make([]models.CesarCacheModel, len(devices))
		for i, d := range devices {
			rows[i] = models.CesarCacheModel{CacheDeviceModel: toCacheRow(&d)}
		}
		return upsertRows(ctx, r.db.DB, provider, rows)
	case telemetry.ProviderAxenta:
		rows := make([]models.AxentaCacheModel, len(devices))
		for i, d := range devices {
			rows[i] = models.AxentaCacheModel{CacheDeviceModel: toCacheRow(&d)}
		}
		return upsertRows(ctx, r.db.DB, provider, rows)
	default:
		return 0, telemetry.ErrUnknownProvider
	}
}

func upsertRows[T any](ctx context.Context, db *gorm.DB, provider telemetry.Provider, rows []T) (int64, error) {
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "external_id"}},
			UpdateAll: true,
		}).CreateInBatches(rows, upsertBatchSize).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert %s batch: %w", provider, err)
	}
	return int64(len(rows)), nil
}

// ListAll returns every cached row across all provider tables.
func (r *CacheRepository) ListAll(ctx context.Context) ([]telemetry.Device, error) {
	var devices []telemetry.Device

	var wialon []models.WialonCacheModel
	if err := r.db.DB.WithContext(ctx).Find(&wialon).Error; err != nil {
		return nil, fmt.Errorf("failed to list wialon cache: %w", err)
	}
	for i := range wialon {
		devices = append(devices, toDevice(telemetry.ProviderWialon, &wialon[i].CacheDeviceModel))
	}

	var cesar []models.CesarCacheModel
	if err := r.db.DB.WithContext(ctx).Find(&cesar).Error; err != nil {
		return nil, fmt.Errorf("failed to list cesar cache: %w", err)
	}
	for i := range cesar {
		devices = append(devices, toDevice(telemetry.ProviderCesar, &cesar[i].CacheDeviceModel))
	}

	var axenta []models.AxentaCacheModel
	if err := r.db.DB.WithContext(ctx).Find(&axenta).Error; err != nil {
		return nil, fmt.Errorf("failed to list axenta cache: %w", err)
	}
	for i := range axenta {
		devices = append(devices, toDevice(telemetry.ProviderAxenta, &axenta[i].CacheDeviceModel))
	}

	return devices, nil
}

// Clear removes all rows for one provider. Not called by the sync cycle;
// stale rows otherwise survive until the device reports again.
func (r *CacheRepository) Clear(ctx context.Context, provider telemetry.Provider) error {
	table, err := cacheTable(provider)
	if err != nil {
		return err
	}
	if err := r.db.DB.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
		return fmt.Errorf("failed to clear %s cache: %w", provider, err)
	}
	return nil
}

func cacheTable(provider telemetry.Provider) (string, error) {
	switch provider {
	case telemetry.ProviderWialon:
		return models.WialonCacheModel{}.TableName(), nil
	case telemetry.ProviderCesar:
		return models.CesarCacheModel{}.TableName(), nil
	case telemetry.ProviderAxenta:
		return models.AxentaCacheModel{}.TableName(), nil
	default:
		return "", telemetry.ErrUnknownProvider
	}
}

func toCacheRow(d *telemetry.Device) models.CacheDeviceModel {
	return models.CacheDeviceModel{
		ExternalID:     d.ExternalID,
		UID:            d.UID,
		Name:           d.Name,
		PosX:           d.PosX,
		PosY:           d.PosY,
		GPSQuality:     d.GPSQuality,
		LastMessageAt:  d.LastMessageAt,
		LastPositionAt: d.LastPositionAt,
		Connected:      d.Connected,
		Commands:       encodeMap(d.Commands),
		Sensors:        encodeMap(d.Sensors),
		ValidNav:       d.ValidNav,
		Linked:         d.Linked,
		PIN:            d.PIN,
		VIN:            d.VIN,
		DeviceType:     d.DeviceType,
		RegisteredAt:   d.RegisteredAt,
	}
}

func toDevice(provider telemetry.Provider, row *models.CacheDeviceModel) telemetry.Device {
	return telemetry.Device{
		Provider:       provider,
		ExternalID:     row.ExternalID,
		UID:            row.UID,
		Name:           row.Name,
		PosX:           row.PosX,
		PosY:           row.PosY,
		GPSQuality:     row.GPSQuality,
		LastMessageAt:  row.LastMessageAt,
		LastPositionAt: row.LastPositionAt,
		Connected:      row.Connected,
		Commands:       decodeCommands(row.Commands),
		Sensors:        decodeSensors(row.Sensors),
		ValidNav:       row.ValidNav,
		Linked:         row.Linked,
		PIN:            row.PIN,
		VIN:            row.VIN,
		DeviceType:     row.DeviceType,
		RegisteredAt:   row.RegisteredAt,
	}
}

func encodeMap(v any) string {
	if v == nil {
		return ""
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(encoded)
}

func decodeCommands(raw string) map[int64]string {
	commands := map[int64]string{}
	if raw == "" {
		return commands
	}
	_ = json.Unmarshal([]byte(raw), &commands)
	return commands
}

func decodeSensors(raw string) map[int64]telemetry.Sensor {
	sensors := map[int64]telemetry.Sensor{}
	if raw == "" {
		return sensors
	}
	_ = json.Unmarshal([]byte(raw), &sensors)
	return sensors
}
