// internal/handler/health_handler.go
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scanner-service/internal/config"
	"scanner-service/internal/scanner"
	"scanner-service/internal/utils"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Version     string    `json:"version"`
	ScannerType string    `json:"scanner_type"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	manager *scanner.Manager
	config  *config.Config
	logger  *utils.ServiceLogger
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(manager *scanner.Manager, config *config.Config, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		manager: manager,
		config:  config,
		logger:  utils.NewServiceLogger(logger, "health-handler"),
		started: time.Now(),
	}
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/health", h.HealthCheck)
	router.GET("/live", h.LivenessCheck)
}

// HealthCheck reports service health and the committed scanner type
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, &HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now(),
		Service:     h.config.App.Name,
		Version:     h.config.App.Version,
		ScannerType: string(h.manager.ActiveType()),
	})
}

// LivenessCheck reports process liveness
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
		"uptime": time.Since(h.started).String(),
	})
}
