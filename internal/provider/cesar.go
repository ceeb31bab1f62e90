package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/logger"
)

const (
	cesarDefaultTokenLifetime = 30 * time.Minute
	// Devices silent for longer than this are reported as disconnected.
	cesarOfflineWindow = 3 * 24 * time.Hour
)

// CesarClient authenticates via an OAuth2 password grant and calls the
// vendor's REST API with a bearer token.
type CesarClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	sess     *session
	retries  int
}

func NewCesarClient(baseURL, username, password string, timeout time.Duration, retries int) *CesarClient {
	return &CesarClient{
		baseURL:  baseURL,
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
		sess:     newSession(cesarDefaultTokenLifetime),
		retries:  retries,
	}
}

func (c *CesarClient) Name() telemetry.Provider {
	return telemetry.ProviderCesar
}

func (c *CesarClient) renew(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)
	form.Set("grant_type", "password")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", telemetry.ErrAuthFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "*/*")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", telemetry.ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", telemetry.ErrAuthFailed, resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %v", telemetry.ErrAuthFailed, err)
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("%w: token response missing access_token", telemetry.ErrAuthFailed)
	}
	return result.AccessToken, nil
}

// post executes one authenticated call; a 401 invalidates the cached token
// and the call is retried once with a fresh one.
func (c *CesarClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return telemetry.NewProviderError(c.Name(), path, err)
	}

	token, err := c.sess.ensure(ctx, c.renew)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return telemetry.NewProviderError(c.Name(), path, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "*/*")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.http.Do(req)
		if err != nil {
			return telemetry.NewProviderError(c.Name(), path, err)
		}

		if resp.StatusCode == http.StatusUnauthorized {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			if attempt >= c.retries {
				return telemetry.NewProviderError(c.Name(), path, telemetry.ErrSessionExpired)
			}
			c.sess.invalidate()
			token, err = c.sess.ensure(ctx, c.renew)
			if err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return telemetry.NewProviderError(c.Name(), path,
				fmt.Errorf("unexpected status %d", resp.StatusCode))
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return telemetry.NewProviderError(c.Name(), path,
				fmt.Errorf("malformed response: %w", err))
		}
		return nil
	}
}

type cesarDevice struct {
	UnitID      int64   `json:"unit_id"`
	ObjectName  string  `json:"object_name"`
	PIN         int64   `json:"pin"`
	VIN         string  `json:"vin"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	ReceiveTime string  `json:"receive_time"`
	CreatedAt   string  `json:"created_at"`
	DeviceType  string  `json:"device_type"`
}

// ListDevices fetches the full device-state snapshot. An empty unit_ids list
// asks the vendor for every unit on the account.
func (c *CesarClient) ListDevices(ctx context.Context) ([]telemetry.Device, int, error) {
	var result struct {
		Devices []cesarDevice `json:"devices"`
	}
	if err := c.post(ctx, "units/device-state", map[string]any{"unit_ids": []int64{}}, &result); err != nil {
		return nil, 0, err
	}

	now := time.Now()
	devices := make([]telemetry.Device, 0, len(result.Devices))
	dropped := 0
	for _, item := range result.Devices {
		device, err := normalizeCesar(item, now)
		if err != nil {
			dropped++
			logger.Warn("Dropping cesar record",
				zap.Int64("unit_id", item.UnitID),
				zap.String("name", item.ObjectName),
				zap.Error(err),
			)
			continue
		}
		devices = append(devices, device)
	}
	return devices, dropped, nil
}

func normalizeCesar(item cesarDevice, now time.Time) (telemetry.Device, error) {
	if item.UnitID == 0 || item.ObjectName == "" || item.VIN == "" {
		return telemetry.Device{}, telemetry.ErrMissingIdentity
	}

	receivedAt := ParseZTime(item.ReceiveTime)

	deviceType := item.DeviceType
	if deviceType == "" {
		deviceType = "Unknown"
	}

	device := telemetry.Device{
		Provider:       telemetry.ProviderCesar,
		ExternalID:     item.UnitID,
		UID:            item.UnitID,
		Name:           CleanName(item.ObjectName),
		PosX:           item.Lat,
		PosY:           item.Lon,
		LastMessageAt:  receivedAt,
		LastPositionAt: receivedAt,
		Connected:      receivedAt > 0 && now.Unix()-receivedAt <= int64(cesarOfflineWindow.Seconds()),
		Commands:       map[int64]string{},
		Sensors:        map[int64]telemetry.Sensor{},
		ValidNav:       item.Lat != 0 && item.Lon != 0,
		PIN:            item.PIN,
		VIN:            item.VIN,
		DeviceType:     deviceType,
		RegisteredAt:   ParseZTime(item.CreatedAt),
	}
	if device.Name == "" {
		return telemetry.Device{}, telemetry.ErrMissingIdentity
	}
	return device, nil
}

// ExecCommand is not part of the vendor's API surface.
func (c *CesarClient) ExecCommand(ctx context.Context, externalID int64, command string) error {
	return telemetry.NewProviderError(c.Name(), "exec_command", telemetry.ErrNotSupported)
}

// GetSensors is not part of the vendor's API surface.
func (c *CesarClient) GetSensors(ctx context.Context, externalID int64) (map[int64]telemetry.Sensor, error) {
	return nil, telemetry.NewProviderError(c.Name(), "get_sensors", telemetry.ErrNotSupported)
}
