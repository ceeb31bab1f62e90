package telemetry

import "time"

// Provider identifies the telematics platform a record originated from.
type Provider string

const (
	ProviderWialon Provider = "wialon"
	ProviderCesar  Provider = "cesar"
	ProviderAxenta Provider = "axenta"
)

// ValidNavThreshold is the GPS quality score above which a fix is trusted.
const ValidNavThreshold = 4

// GPSNoFix marks records whose source carried no position block at all,
// as opposed to a present-but-zero quality score.
const GPSNoFix = -1

// Sensor describes one device sensor as reported by a provider.
type Sensor struct {
	Name string `json:"name"`
	Unit string `json:"unit,omitempty"`
}

// Device is the canonical device record, independent of source provider.
type Device struct {
	Provider       Provider
	ExternalID     int64
	UID            int64
	Name           string
	PosX           float64
	PosY           float64
	GPSQuality     int
	LastMessageAt  int64
	LastPositionAt int64
	Connected      bool
	Commands       map[int64]string
	Sensors        map[int64]Sensor
	ValidNav       bool
	Linked         bool

	// Cesar registry fields; zero for providers that do not report them.
	PIN          int64
	VIN          string
	DeviceType   string
	RegisteredAt int64
}

// HasRecentFix reports whether the device's last position fix falls within
// the given window and carries a non-zero position on both axes.
func (d *Device) HasRecentFix(now time.Time, window time.Duration) bool {
	if d.PosX == 0 || d.PosY == 0 {
		return false
	}
	if d.LastPositionAt == 0 {
		return false
	}
	return now.Unix()-d.LastPositionAt <= int64(window.Seconds())
}

// HistoryEntry is one append-only position observation for a device.
type HistoryEntry struct {
	Provider   Provider
	UID        int64
	Name       string
	PosX       float64
	PosY       float64
	ObservedAt int64
}

// FleetAsset is an externally registered vehicle the engine links cached
// devices to by name matching.
type FleetAsset struct {
	ID        int64
	Number    string
	Equipment []string
}

// SystemStatus is the externally mutated toggle row gating the sync loop.
type SystemStatus struct {
	EnableSync      bool
	EnableReconcile bool
	Maintenance     bool
}

// SyncEnabled reports whether a poll cycle may run.
func (s *SystemStatus) SyncEnabled() bool {
	return s.EnableSync && !s.Maintenance
}

// ReconcileEnabled reports whether the reconciliation pass may run.
func (s *SystemStatus) ReconcileEnabled() bool {
	return s.EnableReconcile && !s.Maintenance
}
