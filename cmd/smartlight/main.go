// SmartLight Core - Smart Lamp State Synchronization Bridge
//
// This is the main entry point for the SmartLight Core application.
// SmartLight Core keeps a durable device registry in sync with live
// lamp hardware over MQTT, and fans state changes out to authorized
// websocket sessions in real time.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/smartlight/smartlight-core/migrations"

	"github.com/smartlight/smartlight-core/internal/api"
	"github.com/smartlight/smartlight-core/internal/auth"
	"github.com/smartlight/smartlight-core/internal/bridge"
	"github.com/smartlight/smartlight-core/internal/infrastructure/broker"
	"github.com/smartlight/smartlight-core/internal/infrastructure/config"
	"github.com/smartlight/smartlight-core/internal/infrastructure/database"
	"github.com/smartlight/smartlight-core/internal/infrastructure/influxdb"
	"github.com/smartlight/smartlight-core/internal/infrastructure/logging"
	"github.com/smartlight/smartlight-core/internal/infrastructure/mqtt"
	"github.com/smartlight/smartlight-core/internal/registry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting SmartLight Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Device registry and auth repositories share the single connection
	repo := registry.NewSQLiteRepository(db.DB)
	userRepo := auth.NewUserRepository(db.DB)
	tokenRepo := auth.NewTokenRepository(db.DB)

	// Seed the initial admin account on an empty user table
	if _, seedErr := auth.SeedAdmin(ctx, userRepo, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin user: %w", seedErr)
	}

	// Start the embedded MQTT broker (development deployments without
	// an external Mosquitto instance)
	if cfg.MQTT.Embedded {
		embedded, brokerErr := broker.New(cfg.MQTT, log)
		if brokerErr != nil {
			return fmt.Errorf("creating embedded broker: %w", brokerErr)
		}
		if startErr := embedded.Start(ctx); startErr != nil {
			return fmt.Errorf("starting embedded broker: %w", startErr)
		}
		defer func() {
			log.Info("stopping embedded broker")
			if closeErr := embedded.Close(); closeErr != nil {
				log.Error("error stopping embedded broker", "error", closeErr)
			}
		}()
		log.Info("embedded MQTT broker started", "port", cfg.MQTT.Broker.Port)
	}

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional status telemetry). A missing
	// telemetry store never blocks lamp control, so failures here
	// degrade to a warning instead of aborting startup.
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, status telemetry disabled", "error", err)
			influxClient = nil
		} else {
			defer func() {
				log.Info("closing InfluxDB connection")
				if closeErr := influxClient.Close(); closeErr != nil {
					log.Error("error closing InfluxDB", "error", closeErr)
				}
			}()
			influxClient.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			log.Info("InfluxDB connected",
				"url", cfg.InfluxDB.URL,
				"org", cfg.InfluxDB.Org,
				"bucket", cfg.InfluxDB.Bucket,
			)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub is shared between the API server (sessions) and the
	// bridge (fan-out), so it is created here and injected into both.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Assemble and start the state synchronization bridge
	svcDeps := bridge.ServiceDeps{
		Store:     repo,
		Schedules: repo,
		Transport: mqttClient,
		Hub:       hub,
		Config:    cfg,
		Logger:    log,
	}
	if influxClient != nil {
		svcDeps.Telemetry = influxClient
	}
	svc := bridge.NewService(svcDeps)
	if startErr := svc.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer svc.Close()
	log.Info("bridge started")

	// Start the API server
	apiServer, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Logger:     log,
		Registry:   repo,
		Users:      userRepo,
		Tokens:     tokenRepo,
		Dispatcher: svc.Dispatcher,
		Bridge:     svc,
		Hub:        hub,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stop accepting requests, drain sessions)
	// 2. Bridge (stop listener and schedule runner)
	// 3. InfluxDB (if connected)
	// 4. MQTT client
	// 5. Embedded broker (if enabled)
	// 6. Database

	log.Info("SmartLight Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SMARTLIGHT_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SMARTLIGHT_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
