package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/logger"
	"fleet-telematics-sync/internal/middleware"
	appErrors "fleet-telematics-sync/pkg/errors"
	"fleet-telematics-sync/pkg/utils"
)

// respondWithError maps domain errors to HTTP responses in one place so
// handlers stay thin.
func respondWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, appErrors.ErrInvalidCredentials),
		errors.Is(err, appErrors.ErrInvalidToken),
		errors.Is(err, appErrors.ErrUnauthorized):
		utils.ErrorResponse(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, telemetry.ErrUnknownProvider):
		utils.ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, telemetry.ErrNotSupported):
		utils.ErrorResponse(c, http.StatusNotImplemented, err.Error())
	default:
		var appErr *appErrors.AppError
		if errors.As(err, &appErr) {
			utils.ErrorResponse(c, http.StatusBadRequest, appErr.Message)
			return
		}

		var provErr *telemetry.ProviderError
		if errors.As(err, &provErr) {
			utils.ErrorResponse(c, http.StatusBadGateway, "Provider request failed")
			return
		}

		logger.Error("Internal server error",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
			zap.Error(err),
		)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}
