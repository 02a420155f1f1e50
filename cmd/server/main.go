package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/halverson/satcom-planner/internal/api"
	"github.com/halverson/satcom-planner/internal/config"
	"github.com/halverson/satcom-planner/internal/coverage"
	"github.com/halverson/satcom-planner/internal/eta"
	"github.com/halverson/satcom-planner/internal/flightstate"
	"github.com/halverson/satcom-planner/internal/mission"
	"github.com/halverson/satcom-planner/internal/simulation"
	"github.com/halverson/satcom-planner/internal/storage/sqlite"
	"github.com/halverson/satcom-planner/internal/telemetry"
	"github.com/halverson/satcom-planner/internal/websocket"
	"github.com/halverson/satcom-planner/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting SATCOM planner server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Ensure the database directory exists
	dbDir := filepath.Dir(cfg.Storage.SQLitePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", dbDir))
		os.Exit(1)
	}

	// Create SQLite storage
	store, err := sqlite.NewStore(cfg.Storage.SQLitePath, log)
	if err != nil {
		log.Error("Failed to create SQLite storage", logger.Error(err))
		os.Exit(1)
	}
	defer store.Close()
	log.Info("Using SQLite storage", logger.String("path", cfg.Storage.SQLitePath))

	// Create WebSocket server
	wsServer := websocket.NewServer(log)

	// Start WebSocket server
	go wsServer.Run()

	// Create flight state manager and push phase changes to connected clients
	flightManager := flightstate.NewManager(flightstate.Config{
		DepartureSpeedKts:    cfg.FlightState.DepartureSpeedKts,
		DeparturePersistence: time.Duration(cfg.FlightState.DeparturePersistenceSec) * time.Second,
		ArrivalRadiusM:       cfg.FlightState.ArrivalRadiusM,
		ArrivalDwell:         time.Duration(cfg.FlightState.ArrivalDwellSec) * time.Second,
	}, log)
	flightManager.SetPhaseChangeCallback(func(change flightstate.PhaseChange) {
		wsServer.BroadcastPhaseChange(string(change.From), string(change.To), change.At.Format(time.RFC3339))
	})

	// Create ETA calculator
	etaCalculator := eta.NewCalculator(eta.Config{
		DefaultSpeedKts:      cfg.ETA.DefaultSpeedKts,
		PassedThresholdM:     cfg.ETA.PassedThresholdM,
		ProjectionToleranceM: cfg.ETA.ProjectionToleranceM,
	}, log)

	// Load the Ka constellation coverage dataset
	coverageData := coverage.NewDataset(cfg.Coverage.GeoJSONPath, log)
	if err := coverageData.LoadError(); err != nil {
		log.Warn("Coverage dataset unavailable, timeline builds skip Ka analysis", logger.Error(err))
	}

	// Create mission timeline builder
	builder := mission.NewBuilder(cfg.Satcom.Catalog(), log)

	// Create the telemetry source: live HTTP feed, or route replay when
	// simulation is enabled.
	var simulationService *simulation.Service
	var telemetrySource telemetry.Source
	var fetchInterval time.Duration

	if cfg.Simulation.Enabled {
		simulationService = simulation.NewService(cfg.Simulation.SpeedKts, cfg.Simulation.TimeFactor, log)
		telemetrySource = simulationService
		fetchInterval = time.Duration(cfg.Simulation.TickSecs) * time.Second
		log.Info("Simulation mode enabled",
			logger.Float64("speed_kts", cfg.Simulation.SpeedKts),
			logger.Float64("time_factor", cfg.Simulation.TimeFactor))
	} else {
		telemetrySource = telemetry.NewClient(
			cfg.Telemetry.SourceURL,
			time.Duration(cfg.Telemetry.TimeoutSecs)*time.Second,
			log,
		)
		fetchInterval = time.Duration(cfg.Telemetry.FetchIntervalSecs) * time.Second
	}

	telemetryService := telemetry.NewService(telemetrySource, flightManager, wsServer, fetchInterval, log)

	// Arrival detection measures distance to the active route's last point.
	telemetryService.SetDestinationResolver(func() (float64, float64, bool) {
		active, err := store.GetActiveMission()
		if err != nil || active == nil || active.RouteID == "" {
			return 0, 0, false
		}
		rt, err := store.GetRoute(active.RouteID)
		if err != nil || rt == nil || len(rt.Points) == 0 {
			return 0, 0, false
		}
		dest := rt.Points[len(rt.Points)-1]
		return dest.Lat, dest.Lon, true
	})

	// Restore the active mission's route into the replay after a restart
	if simulationService != nil {
		if active, err := store.GetActiveMission(); err == nil && active != nil && active.RouteID != "" {
			if rt, err := store.GetRoute(active.RouteID); err == nil && rt != nil {
				if err := simulationService.LoadRoute(rt, cfg.Simulation.StartFromStart); err != nil {
					log.Warn("Failed to load active route into simulation", logger.Error(err))
				}
			}
		}
	}

	// Start telemetry service
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := telemetryService.Start(ctx); err != nil {
		log.Error("Failed to start telemetry service", logger.Error(err))
		os.Exit(1)
	}

	// Create API router
	router := api.NewRouter(store, builder, flightManager, etaCalculator, telemetryService, simulationService, coverageData, cfg, log, wsServer)

	// --- Setup for multiple HTTP servers ---
	var servers []*http.Server
	allPorts := []int{cfg.Server.Port}       // Start with the primary port
	if len(cfg.Server.AdditionalPorts) > 0 { // Only append if there are additional ports
		allPorts = append(allPorts, cfg.Server.AdditionalPorts...)
	}

	log.Info("Configured listener ports", logger.Any("ports", allPorts))

	// Start a server for each configured port
	for _, port := range allPorts {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, port)
		server := &http.Server{
			Addr:         addr,
			Handler:      router.Routes(), // All servers use the same main router
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
		}
		servers = append(servers, server)

		go func(s *http.Server) {
			log.Info("Starting HTTP server", logger.String("addr", s.Addr))
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("HTTP server error on startup", logger.String("addr", s.Addr), logger.Error(err))
			}
		}(server)
	}

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Stop background services first
	log.Info("Stopping telemetry service...")
	telemetryService.Stop()
	log.Info("Telemetry service stopped.")

	// Cancel the main context
	cancel()

	// Shutdown all HTTP servers
	log.Info("Shutting down HTTP servers...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(srv *http.Server) {
			defer wg.Done()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("HTTP server shutdown error", logger.String("addr", srv.Addr), logger.Error(err))
			} else {
				log.Info("HTTP server shutdown complete", logger.String("addr", srv.Addr))
			}
		}(s)
	}
	wg.Wait() // Wait for all server shutdowns to complete

	log.Info("Server fully stopped")
}
