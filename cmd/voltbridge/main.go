// VoltBridge - SNMP/serial PDU to MQTT bridge.
//
// The bridge polls one or more CyberPower-style power distribution units
// over SNMPv2c (with an optional RS-232 console fallback), publishes every
// metric as a retained MQTT topic, records samples into a local SQLite
// history and evaluates per-device automation rules against each poll.
// An HTTP/JSON facade exposes live state, history, rules and management.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/voltbridge/voltbridge/migrations"

	"github.com/voltbridge/voltbridge/internal/api"
	"github.com/voltbridge/voltbridge/internal/audit"
	"github.com/voltbridge/voltbridge/internal/bridge"
	"github.com/voltbridge/voltbridge/internal/history"
	"github.com/voltbridge/voltbridge/internal/infrastructure/config"
	"github.com/voltbridge/voltbridge/internal/infrastructure/database"
	"github.com/voltbridge/voltbridge/internal/infrastructure/influxdb"
	"github.com/voltbridge/voltbridge/internal/infrastructure/logging"
	"github.com/voltbridge/voltbridge/internal/infrastructure/mqtt"
)

// Version information - set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability. A
// non-nil return means a fatal boot error; recoverable runtime failures
// (device outages, broker disconnects) never propagate here.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting voltbridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)

	// History store: opens the SQLite database, runs migrations and starts
	// the batch writer.
	hist, err := history.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	}, history.Config{
		RetentionDays: cfg.Bridge.RetentionDays,
	}, log)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer func() {
		log.Info("closing history store")
		if closeErr := hist.Close(); closeErr != nil {
			log.Error("error closing history store", "error", closeErr)
		}
	}()
	log.Info("history store ready", "path", cfg.Database.Path)

	// Audit trail: a second handle on the same database. WAL mode lets it
	// read and write alongside the history writer.
	auditDB, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening audit database: %w", err)
	}
	defer func() {
		if closeErr := auditDB.Close(); closeErr != nil {
			log.Error("error closing audit database", "error", closeErr)
		}
	}()
	auditRepo := audit.NewSQLiteRepository(auditDB.DB)

	// MQTT: registers the bridge LWT and publishes the online marker. A
	// broker outage at boot is not fatal; publishes queue until reconnect.
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
	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port))
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected, queueing publishes", "error", err)
	})

	// InfluxDB telemetry pipe (optional).
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB telemetry enabled",
			"url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Bridge manager: loads the device registry and starts one poller per
	// device.
	manager, err := bridge.NewManager(cfg, mqttClient, hist, log)
	if err != nil {
		return fmt.Errorf("creating bridge manager: %w", err)
	}
	if influxClient != nil {
		manager.SetTelemetry(influxClient)
	}
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("starting bridge: %w", err)
	}
	defer func() {
		log.Info("stopping bridge")
		manager.Stop()
	}()

	// HTTP facade.
	server, err := api.New(api.Deps{
		Config:  cfg,
		Logger:  log,
		Manager: manager,
		History: hist,
		Audit:   auditRepo,
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API server, bridge
	// (pollers publish their offline markers), InfluxDB, MQTT (bridge
	// offline marker), audit database, history store.

	return nil
}

// getConfigPath returns the configuration file path, preferring the
// VOLTBRIDGE_CONFIG environment variable.
func getConfigPath() string {
	if path := os.Getenv("VOLTBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
