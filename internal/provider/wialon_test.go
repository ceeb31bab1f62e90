package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Logger = zap.NewNop()
	os.Exit(m.Run())
}

func newWialonTestServer(t *testing.T, handler func(svc string, params map[string]any, sid string, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		svc := r.URL.Query().Get("svc")
		sid := r.URL.Query().Get("sid")

		var params map[string]any
		if raw := r.URL.Query().Get("params"); raw != "" {
			require.NoError(t, json.Unmarshal([]byte(raw), &params))
		}
		handler(svc, params, sid, w)
	}))
}

func TestWialonListDevices(t *testing.T) {
	logins := 0
	server := newWialonTestServer(t, func(svc string, params map[string]any, sid string, w http.ResponseWriter) {
		switch svc {
		case "token/login":
			logins++
			assert.Equal(t, "secret-token", params["token"])
			json.NewEncoder(w).Encode(map[string]string{"eid": "sid-1"})
		case "core/search_items":
			assert.Equal(t, "sid-1", sid)
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{
						"id":   101,
						"uid":  "355094043},",
						"nm":   "KAMAZ 43118 | reserve",
						"pos":  map[string]any{"x": 37.6, "y": 55.7, "sc": 8, "t": 1700000100},
						"lmsg": map[string]any{"t": 1700000200},
						"cml": map[string]any{
							"1": map[string]any{"id": 1, "n": "engine_on"},
						},
						"sens": map[string]any{
							"2": map[string]any{"id": 2, "n": "fuel", "m": "l"},
						},
					},
					{
						"id": 102,
						"nm": "NO POSITION UNIT",
					},
					{
						// missing name, must be dropped
						"id": 103,
					},
				},
			})
		default:
			t.Fatalf("unexpected svc %q", svc)
		}
	})
	defer server.Close()

	client := NewWialonClient(server.URL, "secret-token", time.Second, 1)
	devices, dropped, err := client.ListDevices(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, logins)
	assert.Equal(t, 1, dropped)
	require.Len(t, devices, 2)

	first := devices[0]
	assert.Equal(t, telemetry.ProviderWialon, first.Provider)
	assert.Equal(t, int64(101), first.ExternalID)
	assert.Equal(t, int64(0), first.UID) // non-digit uid coerces to 0
	assert.Equal(t, "KAMAZ 43118", first.Name)
	assert.Equal(t, 37.6, first.PosX)
	assert.Equal(t, 55.7, first.PosY)
	assert.Equal(t, 8, first.GPSQuality)
	assert.True(t, first.ValidNav)
	assert.Equal(t, int64(1700000100), first.LastPositionAt)
	assert.Equal(t, int64(1700000200), first.LastMessageAt)
	assert.Equal(t, map[int64]string{1: "engine_on"}, first.Commands)
	assert.Equal(t, map[int64]telemetry.Sensor{2: {Name: "fuel", Unit: "l"}}, first.Sensors)

	second := devices[1]
	assert.Equal(t, telemetry.GPSNoFix, second.GPSQuality)
	assert.False(t, second.ValidNav)
	assert.Zero(t, second.PosX)
	assert.Zero(t, second.PosY)
}

func TestWialonSessionExpiredRetriesOnce(t *testing.T) {
	logins := 0
	searches := 0
	server := newWialonTestServer(t, func(svc string, params map[string]any, sid string, w http.ResponseWriter) {
		switch svc {
		case "token/login":
			logins++
			json.NewEncoder(w).Encode(map[string]string{"eid": "sid-" + string(rune('0'+logins))})
		case "core/search_items":
			searches++
			if searches == 1 {
				json.NewEncoder(w).Encode(map[string]int{"error": 1003})
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"items": []map[string]any{}})
		}
	})
	defer server.Close()

	client := NewWialonClient(server.URL, "secret-token", time.Second, 1)
	devices, dropped, err := client.ListDevices(context.Background())
	require.NoError(t, err)
	assert.Empty(t, devices)
	assert.Zero(t, dropped)
	assert.Equal(t, 2, logins, "expired sid must be renewed exactly once")
	assert.Equal(t, 2, searches)
}

func TestWialonSessionExpiredRetryBounded(t *testing.T) {
	server := newWialonTestServer(t, func(svc string, params map[string]any, sid string, w http.ResponseWriter) {
		switch svc {
		case "token/login":
			json.NewEncoder(w).Encode(map[string]string{"eid": "sid-1"})
		case "core/search_items":
			json.NewEncoder(w).Encode(map[string]int{"error": 1003})
		}
	})
	defer server.Close()

	client := NewWialonClient(server.URL, "secret-token", time.Second, 1)
	_, _, err := client.ListDevices(context.Background())
	require.Error(t, err)

	var perr *telemetry.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, telemetry.ErrSessionExpired)
}

func TestWialonAPIErrorIsProviderError(t *testing.T) {
	server := newWialonTestServer(t, func(svc string, params map[string]any, sid string, w http.ResponseWriter) {
		switch svc {
		case "token/login":
			json.NewEncoder(w).Encode(map[string]string{"eid": "sid-1"})
		default:
			json.NewEncoder(w).Encode(map[string]int{"error": 4})
		}
	})
	defer server.Close()

	client := NewWialonClient(server.URL, "secret-token", time.Second, 1)
	_, _, err := client.ListDevices(context.Background())

	var perr *telemetry.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, telemetry.ProviderWialon, perr.Provider)
}

func TestWialonLoginMissingEID(t *testing.T) {
	server := newWialonTestServer(t, func(svc string, params map[string]any, sid string, w http.ResponseWriter) {
		json.NewEncoder(w).Encode(map[string]any{"unexpected": true})
	})
	defer server.Close()

	client := NewWialonClient(server.URL, "secret-token", time.Second, 1)
	_, _, err := client.ListDevices(context.Background())
	assert.ErrorIs(t, err, telemetry.ErrAuthFailed)
}

func TestWialonMalformedJSON(t *testing.T) {
	server := newWialonTestServer(t, func(svc string, params map[string]any, sid string, w http.ResponseWriter) {
		if svc == "token/login" {
			json.NewEncoder(w).Encode(map[string]string{"eid": "sid-1"})
			return
		}
		w.Write([]byte("{not json"))
	})
	defer server.Close()

	client := NewWialonClient(server.URL, "secret-token", time.Second, 1)
	_, _, err := client.ListDevices(context.Background())

	var perr *telemetry.ProviderError
	require.ErrorAs(t, err, &perr)
}

func TestNormalizeWialonMissingIdentity(t *testing.T) {
	_, err := normalizeWialon(wialonItem{ID: 0, Name: "X"})
	assert.ErrorIs(t, err, telemetry.ErrMissingIdentity)

	_, err = normalizeWialon(wialonItem{ID: 5})
	assert.ErrorIs(t, err, telemetry.ErrMissingIdentity)

	// name reduced to empty after suffix stripping is also an identity failure
	_, err = normalizeWialon(wialonItem{ID: 5, Name: "  | spare"})
	assert.ErrorIs(t, err, telemetry.ErrMissingIdentity)
}
