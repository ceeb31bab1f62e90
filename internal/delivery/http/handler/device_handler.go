package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/provider"
	appErrors "fleet-telematics-sync/pkg/errors"
	"fleet-telematics-sync/pkg/utils"
)

// DeviceHandler exposes the cached device view and the command/sensor
// passthrough to the live provider adapters.
type DeviceHandler struct {
	cache    telemetry.CacheRepository
	registry provider.Registry
}

func NewDeviceHandler(cache telemetry.CacheRepository, registry provider.Registry) *DeviceHandler {
	return &DeviceHandler{cache: cache, registry: registry}
}

type deviceResponse struct {
	Provider       string  `json:"provider"`
	ExternalID     int64   `json:"external_id"`
	UID            int64   `json:"uid"`
	Name           string  `json:"name"`
	PosX           float64 `json:"pos_x"`
	PosY           float64 `json:"pos_y"`
	GPSQuality     int     `json:"gps_quality"`
	LastMessageAt  int64   `json:"last_message_at"`
	LastPositionAt int64   `json:"last_position_at"`
	Connected      bool    `json:"connected"`
	ValidNav       bool    `json:"valid_nav"`
	Linked         bool    `json:"linked"`
}

func (h *DeviceHandler) List(c *gin.Context) {
	devices, err := h.cache.ListAll(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	providerFilter := c.Query("provider")
	response := make([]deviceResponse, 0, len(devices))
	for _, d := range devices {
		if providerFilter != "" && string(d.Provider) != providerFilter {
			continue
		}
		response = append(response, deviceResponse{
			Provider:       string(d.Provider),
			ExternalID:     d.ExternalID,
			UID:            d.UID,
			Name:           d.Name,
			PosX:           d.PosX,
			PosY:           d.PosY,
			GPSQuality:     d.GPSQuality,
			LastMessageAt:  d.LastMessageAt,
			LastPositionAt: d.LastPositionAt,
			Connected:      d.Connected,
			ValidNav:       d.ValidNav,
			Linked:         d.Linked,
		})
	}

	utils.SuccessResponse(c, http.StatusOK, response)
}

type commandRequest struct {
	Command string `json:"command" validate:"required"`
}

func (h *DeviceHandler) ExecCommand(c *gin.Context) {
	adapter, externalID, ok := h.resolveTarget(c)
	if !ok {
		return
	}

	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, appErrors.NewAppError("VALIDATION_ERROR", "Invalid request body", err))
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		respondWithError(c, appErrors.NewAppError("VALIDATION_ERROR", "Command name is required", err))
		return
	}

	if err := adapter.ExecCommand(c.Request.Context(), externalID, req.Command); err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, gin.H{"executed": true})
}

func (h *DeviceHandler) GetSensors(c *gin.Context) {
	adapter, externalID, ok := h.resolveTarget(c)
	if !ok {
		return
	}

	sensors, err := adapter.GetSensors(c.Request.Context(), externalID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, sensors)
}

// commandLister is the optional capability of listing a device's available
// commands; only some vendors expose it.
type commandLister interface {
	GetCommands(ctx context.Context, externalID int64) (map[int64]string, error)
}

func (h *DeviceHandler) ListCommands(c *gin.Context) {
	adapter, externalID, ok := h.resolveTarget(c)
	if !ok {
		return
	}

	lister, ok := adapter.(commandLister)
	if !ok {
		respondWithError(c, telemetry.ErrNotSupported)
		return
	}

	commands, err := lister.GetCommands(c.Request.Context(), externalID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, commands)
}

func (h *DeviceHandler) resolveTarget(c *gin.Context) (provider.Adapter, int64, bool) {
	adapter, err := h.registry.Get(telemetry.Provider(c.Param("provider")))
	if err != nil {
		respondWithError(c, err)
		return nil, 0, false
	}

	externalID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondWithError(c, appErrors.NewAppError("VALIDATION_ERROR", "Invalid device id", err))
		return nil, 0, false
	}
	return adapter, externalID, true
}

func (h *DeviceHandler) RegisterRoutes(protected *gin.RouterGroup) {
	protected.GET("/devices", h.List)
	protected.POST("/devices/:provider/:id/command", h.ExecCommand)
	protected.GET("/devices/:provider/:id/sensors", h.GetSensors)
	protected.GET("/devices/:provider/:id/commands", h.ListCommands)
}
