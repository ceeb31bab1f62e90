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

const axentaTokenLifetime = 10 * time.Minute

// AxentaClient talks a verb-oriented REST API authenticated with an
// `Authorization: Token <t>` header.
type AxentaClient struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	sess     *session
	retries  int
}

func NewAxentaClient(baseURL, username, password string, timeout time.Duration, retries int) *AxentaClient {
	return &AxentaClient{
		baseURL:  baseURL,
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
		sess:     newSession(axentaTokenLifetime),
		retries:  retries,
	}
}

func (c *AxentaClient) Name() telemetry.Provider {
	return telemetry.ProviderAxenta
}

func (c *AxentaClient) renew(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"auth/login/",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", telemetry.ErrAuthFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", telemetry.ErrAuthFailed, err)
	}
	defer resp.Body.Close()

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: %v", telemetry.ErrAuthFailed, err)
	}
	if result.Token == "" {
		return "", fmt.Errorf("%w: login response missing token", telemetry.ErrAuthFailed)
	}
	return result.Token, nil
}

// call executes one authenticated request; a 401 invalidates the cached
// token and the request is retried once with a fresh one.
func (c *AxentaClient) call(ctx context.Context, method, path string, payload, out any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return telemetry.NewProviderError(c.Name(), path, err)
		}
	}

	token, err := c.sess.ensure(ctx, c.renew)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return telemetry.NewProviderError(c.Name(), path, err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", "Token "+token)

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

		if out == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			return nil
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

type axentaObject struct {
	ID        int64              `json:"id"`
	UniqueID  json.RawMessage    `json:"uniqueId"`
	Name      string             `json:"name"`
	Connected bool               `json:"connectedStatus"`
	LastMsg   *axentaLastMessage `json:"lastMessage"`
}

type axentaLastMessage struct {
	T    string          `json:"t"`
	TPos string          `json:"tpos"`
	Pos  *axentaPosition `json:"pos"`
}

type axentaPosition struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	SC int     `json:"sc"`
}

// ListDevices fetches and normalizes the full object list.
func (c *AxentaClient) ListDevices(ctx context.Context) ([]telemetry.Device, int, error) {
	var result []axentaObject
	if err := c.call(ctx, http.MethodGet, "objects", nil, &result); err != nil {
		return nil, 0, err
	}

	devices := make([]telemetry.Device, 0, len(result))
	dropped := 0
	for _, item := range result {
		device, err := normalizeAxenta(item)
		if err != nil {
			dropped++
			logger.Warn("Dropping axenta record",
				zap.Int64("id", item.ID),
				zap.String("name", item.Name),
				zap.Error(err),
			)
			continue
		}
		devices = append(devices, device)
	}
	return devices, dropped, nil
}

func normalizeAxenta(item axentaObject) (telemetry.Device, error) {
	if item.ID == 0 || item.Name == "" {
		return telemetry.Device{}, telemetry.ErrMissingIdentity
	}

	device := telemetry.Device{
		Provider:   telemetry.ProviderAxenta,
		ExternalID: item.ID,
		UID:        CoerceUID(item.UniqueID),
		Name:       CleanName(item.Name),
		GPSQuality: telemetry.GPSNoFix,
		Connected:  item.Connected,
		Commands:   map[int64]string{},
		Sensors:    map[int64]telemetry.Sensor{},
	}
	if device.Name == "" {
		return telemetry.Device{}, telemetry.ErrMissingIdentity
	}

	if item.LastMsg != nil {
		device.LastMessageAt = ParseZTime(item.LastMsg.T)
		device.LastPositionAt = ParseZTime(item.LastMsg.TPos)
		if item.LastMsg.Pos != nil {
			device.PosX = item.LastMsg.Pos.X
			device.PosY = item.LastMsg.Pos.Y
			device.GPSQuality = item.LastMsg.Pos.SC
			device.ValidNav = item.LastMsg.Pos.SC > telemetry.ValidNavThreshold
		}
	}

	return device, nil
}

// ExecCommand posts a command to the object's send_command sub-resource.
func (c *AxentaClient) ExecCommand(ctx context.Context, externalID int64, command string) error {
	payload := map[string]string{"command": command}
	return c.call(ctx, http.MethodPost, fmt.Sprintf("objects/%d/send_command", externalID), payload, nil)
}

type axentaSensor struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// GetSensors returns the object's sensor sub-resource.
func (c *AxentaClient) GetSensors(ctx context.Context, externalID int64) (map[int64]telemetry.Sensor, error) {
	var result []axentaSensor
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("objects/%d/sensors", externalID), nil, &result); err != nil {
		return nil, err
	}

	sensors := make(map[int64]telemetry.Sensor, len(result))
	for _, sensor := range result {
		sensors[sensor.ID] = telemetry.Sensor{Name: sensor.Name, Unit: sensor.Unit}
	}
	return sensors, nil
}

// GetCommands returns the object's command sub-resource.
func (c *AxentaClient) GetCommands(ctx context.Context, externalID int64) (map[int64]string, error) {
	var result []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("objects/%d/commands", externalID), nil, &result); err != nil {
		return nil, err
	}

	commands := make(map[int64]string, len(result))
	for _, cmd := range result {
		commands[cmd.ID] = cmd.Name
	}
	return commands, nil
}
