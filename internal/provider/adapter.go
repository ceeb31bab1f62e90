package provider

import (
	"context"

	"fleet-telematics-sync/internal/domain/telemetry"
)

// Adapter is the uniform capability set over one vendor's API. Variants
// differ only in wire encoding, never in contract.
type Adapter interface {
	Name() telemetry.Provider
	// ListDevices fetches and normalizes the full device list. The second
	// return value counts records dropped for missing identity fields.
	ListDevices(ctx context.Context) ([]telemetry.Device, int, error)
	ExecCommand(ctx context.Context, externalID int64, command string) error
	GetSensors(ctx context.Context, externalID int64) (map[int64]telemetry.Sensor, error)
}

// Registry is the lookup table of configured adapters, built once at startup
// and passed by reference into the orchestrator and the HTTP handlers.
type Registry map[telemetry.Provider]Adapter

func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Name()] = a
	}
	return r
}

func (r Registry) Get(p telemetry.Provider) (Adapter, error) {
	a, ok := r[p]
	if !ok {
		return nil, telemetry.ErrUnknownProvider
	}
	return a, nil
}

func (r Registry) Providers() []telemetry.Provider {
	providers := make([]telemetry.Provider, 0, len(r))
	for p := range r {
		providers = append(providers, p)
	}
	return providers
}
