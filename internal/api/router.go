package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"expiry-alert-service/internal/config"
	"expiry-alert-service/internal/logging"
)

// NewRouter builds the HTTP surface over the alert engine.
func NewRouter(logger *logging.Logger, cfg config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	api := r.Group(cfg.API.BasePath)
	{
		// Alerts
		api.POST("/alerts/generate", h.GenerateAlerts)
		api.GET("/alerts", h.ListAlerts)
		api.GET("/alerts/stats", h.GetStats)
		api.GET("/alerts/:id", h.GetAlert)
		api.POST("/alerts/:id/read", h.MarkAlertRead)
		api.POST("/alerts/:id/dismiss", h.DismissAlert)
		api.POST("/alerts/cleanup", h.CleanupAlerts)

		// Configurations
		api.GET("/configurations/:user_id", h.GetConfiguration)
		api.PUT("/configurations/:user_id", h.UpdateConfiguration)
	}

	// Realtime in_app feed
	r.GET("/ws/alerts/:user_id", h.AlertFeed)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
