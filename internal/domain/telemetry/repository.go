package telemetry

import "context"

// CacheRepository persists canonical device records, one table per provider.
type CacheRepository interface {
	// Upsert writes one provider's batch in a single transaction with
	// replace-on-conflict semantics and returns the number of rows written.
	Upsert(ctx context.Context, provider Provider, devices []Device) (int64, error)
	// ListAll returns every cached row across all provider tables.
	ListAll(ctx context.Context) ([]Device, error)
	// Clear removes all rows for one provider. Operator use only; the sync
	// cycle never calls it.
	Clear(ctx context.Context, provider Provider) error
}

// HistoryRepository owns the append-only position history.
type HistoryRepository interface {
	// LatestByKey returns the most recent entry per (provider, uid, name) key.
	LatestByKey(ctx context.Context) (map[HistoryKey]HistoryEntry, error)
	Append(ctx context.Context, entries []HistoryEntry) error
}

// HistoryKey is the identity a history series is keyed by.
type HistoryKey struct {
	Provider Provider
	UID      int64
	Name     string
}

// FleetRepository reads fleet assets and writes reconciliation results.
type FleetRepository interface {
	ListAssets(ctx context.Context) ([]FleetAsset, error)
	// SaveLinks atomically resets all linked flags, marks the given cache rows
	// linked and rewrites every asset's equipment set.
	SaveLinks(ctx context.Context, linked []LinkedDevice, assets []FleetAsset) error
}

// LinkedDevice identifies one cache row matched to an asset.
type LinkedDevice struct {
	Provider   Provider
	ExternalID int64
}

// StatusRepository reads and mutates the system toggle row.
type StatusRepository interface {
	Get(ctx context.Context) (*SystemStatus, error)
	Set(ctx context.Context, status *SystemStatus) error
}
