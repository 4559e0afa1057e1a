// internal/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scanner-service/internal/bridge"
	"scanner-service/internal/config"
	"scanner-service/internal/handler"
	"scanner-service/internal/middleware"
	"scanner-service/internal/scanner"
	"scanner-service/internal/utils"
)

// Router assembles the HTTP surface
type Router struct {
	config  *config.Config
	logger  *zap.Logger
	manager *scanner.Manager
	bus     *bridge.Bus
}

// NewRouter creates a new router manager
func NewRouter(cfg *config.Config, logger *zap.Logger, manager *scanner.Manager, bus *bridge.Bus) *Router {
	return &Router{
		config:  cfg,
		logger:  logger,
		manager: manager,
		bus:     bus,
	}
}

// SetupRouter configures gin with middleware and all routes
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	serviceLogger := utils.NewServiceLogger(r.logger, r.config.App.Name)
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.LoggingMiddleware(serviceLogger))
	router.Use(middleware.CORSMiddleware(&r.config.Server))

	healthHandler := handler.NewHealthHandler(r.manager, r.config, r.logger)
	scannerHandler := handler.NewScannerHandler(r.manager, r.logger)
	websocketHandler := handler.NewWebSocketHandler(r.manager, r.bus, r.logger)

	root := router.Group("/")
	healthHandler.RegisterRoutes(root)

	api := router.Group("/api/v1/scanner")
	scannerHandler.RegisterRoutes(api)

	ws := router.Group("/ws")
	websocketHandler.RegisterRoutes(ws)

	return router
}
