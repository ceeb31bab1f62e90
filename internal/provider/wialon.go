package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/logger"
)

const (
	wialonSessionLifetime = 5 * time.Minute
	// Vendor error code reported when the sid is no longer valid.
	wialonErrSessionExpired = 1003

	// Item detail flags for core/search_items: base, custom fields,
	// commands, position and sensors.
	wialonSearchFlags = 1 | 256 | 1024 | 4096 | 524288
)

// WialonClient talks the query-envelope protocol: every call is a single GET
// whose query string carries a service name, a JSON-encoded parameter
// envelope and the current session id.
type WialonClient struct {
	baseURL string
	token   string
	http    *http.Client
	sess    *session
	retries int
}

func NewWialonClient(baseURL, token string, timeout time.Duration, retries int) *WialonClient {
	return &WialonClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		sess:    newSession(wialonSessionLifetime),
		retries: retries,
	}
}

func (c *WialonClient) Name() telemetry.Provider {
	return telemetry.ProviderWialon
}

func (c *WialonClient) renew(ctx context.Context) (string, error) {
	params, _ := json.Marshal(map[string]string{"token": c.token})

	var result struct {
		EID string `json:"eid"`
	}
	if err := c.get(ctx, "token/login", string(params), "", &result); err != nil {
		return "", fmt.Errorf("%w: %v", telemetry.ErrAuthFailed, err)
	}
	if result.EID == "" {
		return "", fmt.Errorf("%w: login response missing eid", telemetry.ErrAuthFailed)
	}
	return result.EID, nil
}

// call executes one service request with session handling: an expired sid
// reported by the vendor invalidates the cached session and the request is
// retried once with a fresh one.
func (c *WialonClient) call(ctx context.Context, svc string, params any, out any) error {
	encoded, err := json.Marshal(params)
	if err != nil {
		return telemetry.NewProviderError(c.Name(), svc, err)
	}

	sid, err := c.sess.ensure(ctx, c.renew)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		err = c.get(ctx, svc, string(encoded), sid, out)
		if err == nil {
			return nil
		}
		var perr *wialonAPIError
		if apiErr, ok := err.(*wialonAPIError); ok && apiErr.Code == wialonErrSessionExpired {
			perr = apiErr
		}
		if perr == nil || attempt >= c.retries {
			if perr != nil {
				return telemetry.NewProviderError(c.Name(), svc, telemetry.ErrSessionExpired)
			}
			return telemetry.NewProviderError(c.Name(), svc, err)
		}

		c.sess.invalidate()
		sid, err = c.sess.ensure(ctx, c.renew)
		if err != nil {
			return err
		}
	}
}

type wialonAPIError struct {
	Code int
}

func (e *wialonAPIError) Error() string {
	return fmt.Sprintf("wialon api error %d", e.Code)
}

func (c *WialonClient) get(ctx context.Context, svc, params, sid string, out any) error {
	q := url.Values{}
	q.Set("svc", svc)
	q.Set("params", params)
	if sid != "" {
		q.Set("sid", sid)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var probe struct {
		Error *int `json:"error"`
	}
	if err := json.Unmarshal(body, &probe); err == nil && probe.Error != nil && *probe.Error != 0 {
		return &wialonAPIError{Code: *probe.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}

type wialonItem struct {
	ID       int64                    `json:"id"`
	UID      json.RawMessage          `json:"uid"`
	Name     string                   `json:"nm"`
	Pos      *wialonPosition          `json:"pos"`
	LastMsg  *wialonLastMessage       `json:"lmsg"`
	Commands map[string]wialonCommand `json:"cml"`
	Sensors  map[string]wialonSensor  `json:"sens"`
	NetConn  int                      `json:"netconn"`
}

type wialonPosition struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	SC int     `json:"sc"`
	T  int64   `json:"t"`
}

type wialonLastMessage struct {
	T int64 `json:"t"`
}

type wialonCommand struct {
	ID   int64  `json:"id"`
	Name string `json:"n"`
}

type wialonSensor struct {
	ID   int64  `json:"id"`
	Name string `json:"n"`
	Unit string `json:"m"`
}

// ListDevices fetches all units via core/search_items and normalizes them.
func (c *WialonClient) ListDevices(ctx context.Context) ([]telemetry.Device, int, error) {
	params := map[string]any{
		"spec": map[string]any{
			"itemsType":     "avl_unit",
			"propName":      "sys_name",
			"propValueMask": "*",
			"sortType":      "sys_name",
		},
		"force": 1,
		"flags": wialonSearchFlags,
		"from":  0,
		"to":    0,
	}

	var result struct {
		Items []wialonItem `json:"items"`
	}
	if err := c.call(ctx, "core/search_items", params, &result); err != nil {
		return nil, 0, err
	}

	devices := make([]telemetry.Device, 0, len(result.Items))
	dropped := 0
	for _, item := range result.Items {
		device, err := normalizeWialon(item)
		if err != nil {
			dropped++
			logger.Warn("Dropping wialon record",
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

func normalizeWialon(item wialonItem) (telemetry.Device, error) {
	if item.ID == 0 || item.Name == "" {
		return telemetry.Device{}, telemetry.ErrMissingIdentity
	}

	device := telemetry.Device{
		Provider:   telemetry.ProviderWialon,
		ExternalID: item.ID,
		UID:        CoerceUID(item.UID),
		Name:       CleanName(item.Name),
		GPSQuality: telemetry.GPSNoFix,
		Connected:  item.NetConn != 0,
		Commands:   map[int64]string{},
		Sensors:    map[int64]telemetry.Sensor{},
	}
	if device.Name == "" {
		return telemetry.Device{}, telemetry.ErrMissingIdentity
	}

	if item.Pos != nil {
		device.PosX = item.Pos.X
		device.PosY = item.Pos.Y
		device.GPSQuality = item.Pos.SC
		device.LastPositionAt = item.Pos.T
		device.ValidNav = item.Pos.SC > telemetry.ValidNavThreshold
	}
	if item.LastMsg != nil {
		device.LastMessageAt = item.LastMsg.T
	}

	for _, cmd := range item.Commands {
		device.Commands[cmd.ID] = cmd.Name
	}
	for _, sensor := range item.Sensors {
		device.Sensors[sensor.ID] = telemetry.Sensor{Name: sensor.Name, Unit: sensor.Unit}
	}

	return device, nil
}

// ExecCommand runs a named command on one unit via unit/exec_cmd.
func (c *WialonClient) ExecCommand(ctx context.Context, externalID int64, command string) error {
	params := map[string]any{
		"itemId":      externalID,
		"commandName": command,
		"linkType":    "",
		"param":       "",
		"timeout":     5,
		"flags":       0,
	}
	return c.call(ctx, "unit/exec_cmd", params, nil)
}

// GetSensors returns the unit's sensor set via unit/calc_last_message.
func (c *WialonClient) GetSensors(ctx context.Context, externalID int64) (map[int64]telemetry.Sensor, error) {
	params := map[string]any{
		"unitId":  externalID,
		"sensors": "",
	}

	var result map[string]wialonSensor
	if err := c.call(ctx, "unit/calc_last_message", params, &result); err != nil {
		return nil, err
	}

	sensors := make(map[int64]telemetry.Sensor, len(result))
	for _, sensor := range result {
		sensors[sensor.ID] = telemetry.Sensor{Name: sensor.Name, Unit: sensor.Unit}
	}
	return sensors, nil
}
