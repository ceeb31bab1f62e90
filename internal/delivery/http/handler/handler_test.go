package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fleet-telematics-sync/internal/config"
	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/logger"
	"fleet-telematics-sync/internal/provider"
	"fleet-telematics-sync/pkg/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Logger = zap.NewNop()
	os.Exit(m.Run())
}

type stubAdapter struct {
	name    telemetry.Provider
	execErr error
}

func (s *stubAdapter) Name() telemetry.Provider { return s.name }

func (s *stubAdapter) ListDevices(ctx context.Context) ([]telemetry.Device, int, error) {
	return nil, 0, nil
}

func (s *stubAdapter) ExecCommand(ctx context.Context, externalID int64, command string) error {
	return s.execErr
}

func (s *stubAdapter) GetSensors(ctx context.Context, externalID int64) (map[int64]telemetry.Sensor, error) {
	return nil, s.execErr
}

type stubCacheRepo struct {
	rows []telemetry.Device
	err  error
}

func (s *stubCacheRepo) Upsert(ctx context.Context, p telemetry.Provider, devices []telemetry.Device) (int64, error) {
	return 0, nil
}

func (s *stubCacheRepo) ListAll(ctx context.Context) ([]telemetry.Device, error) {
	return s.rows, s.err
}

func (s *stubCacheRepo) Clear(ctx context.Context, p telemetry.Provider) error { return nil }

func deviceTestRouter(registry provider.Registry, cache telemetry.CacheRepository) *gin.Engine {
	router := gin.New()
	NewDeviceHandler(cache, registry).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestLoginInvalidCredentials(t *testing.T) {
	hash, err := utils.HashPassword("right")
	require.NoError(t, err)

	cfg := &config.Config{Admin: config.AdminConfig{
		Username:     "admin",
		PasswordHash: hash,
		JWTSecret:    "test-secret",
		TokenExpiry:  time.Hour,
	}}
	router := gin.New()
	NewAuthHandler(cfg).RegisterRoutes(router.Group("/api/v1"))

	w := doRequest(router, http.MethodPost, "/api/v1/auth/login",
		`{"username":"admin","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid username or password")
}

func TestLoginMissingFields(t *testing.T) {
	cfg := &config.Config{Admin: config.AdminConfig{Username: "admin"}}
	router := gin.New()
	NewAuthHandler(cfg).RegisterRoutes(router.Group("/api/v1"))

	w := doRequest(router, http.MethodPost, "/api/v1/auth/login", `{"username":"admin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Username and password are required")
}

func TestLoginSuccess(t *testing.T) {
	hash, err := utils.HashPassword("right")
	require.NoError(t, err)

	cfg := &config.Config{Admin: config.AdminConfig{
		Username:     "admin",
		PasswordHash: hash,
		JWTSecret:    "test-secret",
		TokenExpiry:  time.Hour,
	}}
	router := gin.New()
	NewAuthHandler(cfg).RegisterRoutes(router.Group("/api/v1"))

	w := doRequest(router, http.MethodPost, "/api/v1/auth/login",
		`{"username":"admin","password":"right"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "token")
}

func TestExecCommandUnknownProvider(t *testing.T) {
	router := deviceTestRouter(provider.NewRegistry(), &stubCacheRepo{})

	w := doRequest(router, http.MethodPost, "/api/v1/devices/nobody/1/command",
		`{"command":"engine_on"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "unknown provider")
}

func TestExecCommandNotSupported(t *testing.T) {
	adapter := &stubAdapter{
		name: telemetry.ProviderCesar,
		execErr: telemetry.NewProviderError(
			telemetry.ProviderCesar, "exec_command", telemetry.ErrNotSupported),
	}
	router := deviceTestRouter(provider.NewRegistry(adapter), &stubCacheRepo{})

	w := doRequest(router, http.MethodPost, "/api/v1/devices/cesar/1/command",
		`{"command":"engine_on"}`)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestExecCommandProviderFailure(t *testing.T) {
	adapter := &stubAdapter{
		name: telemetry.ProviderWialon,
		execErr: telemetry.NewProviderError(
			telemetry.ProviderWialon, "unit/exec_cmd", errors.New("connection refused")),
	}
	router := deviceTestRouter(provider.NewRegistry(adapter), &stubCacheRepo{})

	w := doRequest(router, http.MethodPost, "/api/v1/devices/wialon/1/command",
		`{"command":"engine_on"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Provider request failed")
}

func TestExecCommandMissingName(t *testing.T) {
	adapter := &stubAdapter{name: telemetry.ProviderWialon}
	router := deviceTestRouter(provider.NewRegistry(adapter), &stubCacheRepo{})

	w := doRequest(router, http.MethodPost, "/api/v1/devices/wialon/1/command", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Command name is required")
}

func TestExecCommandBadDeviceID(t *testing.T) {
	adapter := &stubAdapter{name: telemetry.ProviderWialon}
	router := deviceTestRouter(provider.NewRegistry(adapter), &stubCacheRepo{})

	w := doRequest(router, http.MethodPost, "/api/v1/devices/wialon/abc/command",
		`{"command":"engine_on"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid device id")
}

func TestListCommandsNotSupported(t *testing.T) {
	// the stub does not implement the optional command-listing capability
	adapter := &stubAdapter{name: telemetry.ProviderWialon}
	router := deviceTestRouter(provider.NewRegistry(adapter), &stubCacheRepo{})

	w := doRequest(router, http.MethodGet, "/api/v1/devices/wialon/1/commands", "")
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestListDevicesStoreFailure(t *testing.T) {
	router := deviceTestRouter(provider.NewRegistry(), &stubCacheRepo{err: errors.New("store down")})

	w := doRequest(router, http.MethodGet, "/api/v1/devices", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}
