package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/provider"
)

func historyService(history *fakeHistoryRepo) *Service {
	return NewService(provider.Registry{}, newFakeCacheRepo(), history, &fakeFleetRepo{}, enabledStatus(), 15*time.Minute)
}

func recentDevice(now time.Time, posX, posY float64, at int64) telemetry.Device {
	return telemetry.Device{
		Provider:       telemetry.ProviderWialon,
		ExternalID:     1,
		UID:            9000,
		Name:           "AB1234",
		PosX:           posX,
		PosY:           posY,
		LastPositionAt: at,
	}
}

func TestAppendChangedFirstObservation(t *testing.T) {
	now := time.Now()
	history := newFakeHistoryRepo()
	service := historyService(history)

	appended, err := service.AppendChanged(context.Background(),
		[]telemetry.Device{recentDevice(now, 50.1, 40.2, now.Unix())}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, appended)
	require.Len(t, history.appended, 1)
	assert.Equal(t, 50.1, history.appended[0].PosX)
}

func TestAppendChangedUnchangedPositionAppendsOnce(t *testing.T) {
	now := time.Now()
	history := newFakeHistoryRepo()
	service := historyService(history)

	device := recentDevice(now, 50.1, 40.2, now.Unix())

	appended, err := service.AppendChanged(context.Background(), []telemetry.Device{device}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, appended)

	// identical fix fed again: same timestamp, same position
	appended, err = service.AppendChanged(context.Background(), []telemetry.Device{device}, now)
	require.NoError(t, err)
	assert.Equal(t, 0, appended)
	assert.Len(t, history.appended, 1)
}

func TestAppendChangedNewerTimestampSamePosition(t *testing.T) {
	now := time.Now()
	history := newFakeHistoryRepo()
	service := historyService(history)

	first := recentDevice(now, 50.1, 40.2, now.Unix()-60)
	_, err := service.AppendChanged(context.Background(), []telemetry.Device{first}, now)
	require.NoError(t, err)

	// newer fix but the position did not move
	second := recentDevice(now, 50.1, 40.2, now.Unix())
	appended, err := service.AppendChanged(context.Background(), []telemetry.Device{second}, now)
	require.NoError(t, err)
	assert.Equal(t, 0, appended)
}

func TestAppendChangedMovedPosition(t *testing.T) {
	now := time.Now()
	history := newFakeHistoryRepo()
	service := historyService(history)

	first := recentDevice(now, 50.1, 40.2, now.Unix()-60)
	_, err := service.AppendChanged(context.Background(), []telemetry.Device{first}, now)
	require.NoError(t, err)

	second := recentDevice(now, 50.2, 40.2, now.Unix())
	appended, err := service.AppendChanged(context.Background(), []telemetry.Device{second}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, appended)
	assert.Len(t, history.appended, 2)
}

func TestAppendChangedOlderFixIgnored(t *testing.T) {
	now := time.Now()
	history := newFakeHistoryRepo()
	service := historyService(history)

	first := recentDevice(now, 50.1, 40.2, now.Unix())
	_, err := service.AppendChanged(context.Background(), []telemetry.Device{first}, now)
	require.NoError(t, err)

	// moved position but the fix is not strictly newer
	stale := recentDevice(now, 50.9, 40.9, now.Unix())
	appended, err := service.AppendChanged(context.Background(), []telemetry.Device{stale}, now)
	require.NoError(t, err)
	assert.Equal(t, 0, appended)
}

func TestAppendChangedEligibilityFilters(t *testing.T) {
	now := time.Now()
	history := newFakeHistoryRepo()
	service := historyService(history)

	devices := []telemetry.Device{
		// fix outside the recency window
		recentDevice(now, 50.1, 40.2, now.Add(-time.Hour).Unix()),
		// zero on one axis
		recentDevice(now, 0, 40.2, now.Unix()),
		// no fix timestamp at all
		recentDevice(now, 50.1, 40.2, 0),
	}

	appended, err := service.AppendChanged(context.Background(), devices, now)
	require.NoError(t, err)
	assert.Equal(t, 0, appended)
	assert.Empty(t, history.appended)
}

func TestAppendChangedSeparateIdentityKeys(t *testing.T) {
	now := time.Now()
	history := newFakeHistoryRepo()
	service := historyService(history)

	a := recentDevice(now, 50.1, 40.2, now.Unix())
	b := recentDevice(now, 50.1, 40.2, now.Unix())
	b.Provider = telemetry.ProviderAxenta

	appended, err := service.AppendChanged(context.Background(), []telemetry.Device{a, b}, now)
	require.NoError(t, err)
	assert.Equal(t, 2, appended, "same uid and name under different providers are distinct series")
}
