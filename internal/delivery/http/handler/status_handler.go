package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/logger"
	appErrors "fleet-telematics-sync/pkg/errors"
	"fleet-telematics-sync/pkg/utils"
)

// StatusHandler exposes the system toggles. The sync engine only observes
// these flags; operators mutate them here.
type StatusHandler struct {
	status telemetry.StatusRepository
}

func NewStatusHandler(status telemetry.StatusRepository) *StatusHandler {
	return &StatusHandler{status: status}
}

type statusResponse struct {
	EnableSync      bool `json:"enable_sync"`
	EnableReconcile bool `json:"enable_reconcile"`
	Maintenance     bool `json:"maintenance"`
}

type statusRequest struct {
	EnableSync      *bool `json:"enable_sync"`
	EnableReconcile *bool `json:"enable_reconcile"`
	Maintenance     *bool `json:"maintenance"`
}

func (h *StatusHandler) Get(c *gin.Context) {
	status, err := h.status.Get(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, statusResponse{
		EnableSync:      status.EnableSync,
		EnableReconcile: status.EnableReconcile,
		Maintenance:     status.Maintenance,
	})
}

func (h *StatusHandler) Update(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, appErrors.NewAppError("VALIDATION_ERROR", "Invalid request body", err))
		return
	}

	ctx := c.Request.Context()
	status, err := h.status.Get(ctx)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if req.EnableSync != nil {
		status.EnableSync = *req.EnableSync
	}
	if req.EnableReconcile != nil {
		status.EnableReconcile = *req.EnableReconcile
	}
	if req.Maintenance != nil {
		status.Maintenance = *req.Maintenance
	}

	if err := h.status.Set(ctx, status); err != nil {
		respondWithError(c, err)
		return
	}

	logger.Info("System status updated",
		zap.Bool("enable_sync", status.EnableSync),
		zap.Bool("enable_reconcile", status.EnableReconcile),
		zap.Bool("maintenance", status.Maintenance),
	)

	utils.SuccessResponse(c, http.StatusOK, statusResponse{
		EnableSync:      status.EnableSync,
		EnableReconcile: status.EnableReconcile,
		Maintenance:     status.Maintenance,
	})
}

func (h *StatusHandler) RegisterRoutes(rg *gin.RouterGroup, protected *gin.RouterGroup) {
	rg.GET("/status", h.Get)
	protected.PUT("/status", h.Update)
}
