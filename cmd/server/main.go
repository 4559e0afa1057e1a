// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"scanner-service/internal/bridge"
	"scanner-service/internal/config"
	"scanner-service/internal/hardware"
	"scanner-service/internal/routes"
	"scanner-service/internal/scanner"
	"scanner-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config *config.Config
	logger *zap.Logger
	server *http.Server

	bus       *bridge.Bus
	manager   *scanner.Manager
	transport *hardware.SerialTransport
}

func main() {
	app, err := NewApplication()
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, cfg.App.Name)
	serviceLogger.LogServiceStart(cfg.App.Version)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeScanner(); err != nil {
		return nil, fmt.Errorf("failed to initialize scanner manager: %w", err)
	}

	if err := app.initializeServer(); err != nil {
		return nil, fmt.Errorf("failed to initialize server: %w", err)
	}

	return app, nil
}

// initializeScanner wires the event bridge, hardware collaborators, and
// the scan session manager.
func (app *Application) initializeScanner() error {
	app.bus = bridge.NewBus(app.logger)

	enumerator := hardware.NewUSBEnumerator(app.logger, app.config.Scanner.USB.Debug)
	buzzer := hardware.NewBuzzer(app.bus, app.logger)

	managerCfg := scanner.Config{
		Cooldown:       app.config.Scanner.Cooldown,
		DefaultTimeout: app.config.Scanner.DefaultTimeout,
		MaxPayloadLen:  app.config.Scanner.MaxPayloadLen,
		Mode:           scanner.OperationMode(app.config.Scanner.Mode),
		Policy:         scanner.PriorityPolicy(app.config.Scanner.Policy),
		BeepEnabled:    app.config.Scanner.BeepEnabled,
		ToastEnabled:   app.config.Scanner.ToastEnabled,
	}
	app.manager = scanner.NewManager(managerCfg, app.bus, enumerator, buzzer, app.logger)

	// The serial transport is optional: without it the manager still
	// runs against external scanners and test bridges.
	if app.config.Scanner.Serial.Enabled {
		transport, err := hardware.NewSerialTransport(&hardware.SerialConfig{
			Port:     app.config.Scanner.Serial.Port,
			BaudRate: app.config.Scanner.Serial.BaudRate,
			DataBits: app.config.Scanner.Serial.DataBits,
			StopBits: app.config.Scanner.Serial.StopBits,
			Parity:   app.config.Scanner.Serial.Parity,
			Timeout:  app.config.Scanner.Serial.Timeout,
		}, app.bus, app.logger)
		if err != nil {
			return err
		}
		app.transport = transport
	}

	app.logger.Info("Scanner manager initialized",
		zap.String("mode", app.config.Scanner.Mode),
		zap.String("policy", app.config.Scanner.Policy),
		zap.Bool("serial_enabled", app.config.Scanner.Serial.Enabled),
	)
	return nil
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() error {
	routerManager := routes.NewRouter(app.config, app.logger, app.manager, app.bus)
	router := routerManager.SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
	)
	return nil
}

// Start starts the application and blocks until shutdown
func (app *Application) Start() error {
	if app.transport != nil {
		if err := app.transport.Start(); err != nil {
			return fmt.Errorf("failed to start serial transport: %w", err)
		}
	}

	go func() {
		app.logger.Info("HTTP server starting", zap.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	app.waitForShutdown()
	return nil
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, app.config.App.Name)
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	app.manager.Teardown()

	if app.transport != nil {
		if err := app.transport.Stop(); err != nil {
			app.logger.Error("Serial transport shutdown error", zap.Error(err))
		}
	}

	app.logger.Info("Application stopped")
	utils.CloseLogger(app.logger)
}
