package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleet-telematics-sync/internal/config"
	"fleet-telematics-sync/internal/delivery/http/handler"
	"fleet-telematics-sync/internal/domain/telemetry"
	"fleet-telematics-sync/internal/infrastructure/database/postgres"
	"fleet-telematics-sync/internal/middleware"
	"fleet-telematics-sync/internal/provider"
)

func SetupRoutes(
	cfg *config.Config,
	db *postgres.DB,
	registry provider.Registry,
	cache telemetry.CacheRepository,
	status telemetry.StatusRepository,
) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())

	router.GET("/health", func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unhealthy",
				"message": "Database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"message": "Service is running",
		})
	})

	authHandler := handler.NewAuthHandler(cfg)
	statusHandler := handler.NewStatusHandler(status)
	deviceHandler := handler.NewDeviceHandler(cache, registry)

	v1 := router.Group("/api/v1")
	{
		authHandler.RegisterRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))

		statusHandler.RegisterRoutes(v1, protected)
		deviceHandler.RegisterRoutes(protected)
	}

	return router
}
