// upnpd - UPnP service host
//
// upnpd serves locally defined UPnP devices over HTTP. It answers SOAP
// control requests, accepts GENA event notifications and:
//   - records emitted and received events in SQLite
//   - mirrors state and accepts commands over MQTT (optional)
//   - writes numeric state and invocation metrics to InfluxDB (optional)
//
// With -migrate it runs a schema command against the event log and exits:
//
//	upnpd -migrate status
//	upnpd -migrate up
//	upnpd -migrate down -steps 2
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-upnp/migrations"

	"github.com/nerrad567/gray-logic-upnp/internal/api"
	"github.com/nerrad567/gray-logic-upnp/internal/bridge"
	"github.com/nerrad567/gray-logic-upnp/internal/eventlog"
	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/controlpoint"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/devicedef"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/localsvc"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/meta"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/soap"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	migrateCmd := flag.String("migrate", "", "run an event log schema command and exit: status, up or down")
	steps := flag.Int("steps", 1, "number of migrations reverted by -migrate down")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	if *migrateCmd != "" {
		err = migrate(ctx, os.Stdout, *migrateCmd, *steps)
	} else {
		err = run(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting upnpd",
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

	log = logging.New(cfg.Logging, version).Site(cfg.Site)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(ctx, database.Config{
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

	schema, err := db.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("reading schema status: %w", err)
	}
	if len(schema.Unknown) > 0 {
		return fmt.Errorf("event log schema %s is newer than this build, run a newer upnpd or roll back", schema.Current())
	}
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete", "applied", len(schema.Pending))

	eventRepo := eventlog.NewSQLiteRepository(db.DB)

	// Load device definitions
	devices, host, err := loadDevices(cfg, log)
	if err != nil {
		return err
	}

	soapProcessor, err := soap.New(cfg.SOAPStrategy(), log.Component("soap"))
	if err != nil {
		return fmt.Errorf("creating SOAP processor: %w", err)
	}
	genaProcessor, err := gena.New(cfg.GENAStrategy(), log.Component("gena"))
	if err != nil {
		return fmt.Errorf("creating GENA processor: %w", err)
	}
	log.Info("processors selected",
		"soap", cfg.Processing.SOAP,
		"gena", cfg.Processing.GENA,
	)

	controlPoint := controlpoint.New(controlpoint.Config{
		Timeout:   cfg.GetControlPointTimeout(),
		UserAgent: cfg.ControlPoint.UserAgent,
	}, soapProcessor, genaProcessor)
	controlPoint.SetLogger(log.Component("controlpoint"))

	healthChecks := map[string]api.HealthChecker{"database": db}
	sinks := []api.EventRecorder{eventRepo}
	deps := api.Deps{
		Config:   cfg.API,
		Logger:   log,
		Host:     host,
		SOAP:     soapProcessor,
		GENA:     genaProcessor,
		Devices:  devices.Remote,
		EventLog: eventRepo,
		DB:       db,
		Version:  version,
	}

	// Connect to MQTT broker (optional)
	var mqttBridge *bridge.Bridge
	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttBridge, err = bridge.New(bridge.Options{
			MQTTClient: mqttClient,
			Host:       host,
			Remote:     devices.Remote,
			Invoker:    controlPoint,
			Recorder:   eventRepo,
			Logger:     log.Component("bridge"),
		})
		if err != nil {
			return fmt.Errorf("creating MQTT bridge: %w", err)
		}
		if startErr := mqttBridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer mqttBridge.Stop()

		healthChecks["mqtt"] = mqttClient
		sinks = append(sinks, mqttBridge)
		deps.MQTT = mqttClient
	} else {
		log.Info("MQTT disabled")
		// Without the bridge, emitted values are recorded directly.
		host.Subscribe(func(change localsvc.Change) {
			if recErr := eventRepo.RecordEmitted(ctx, change.Values); recErr != nil {
				log.Error("failed to record emitted values", "error", recErr)
			}
		})
	}

	// Connect to InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB, cfg.Site.ID)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		host.Subscribe(func(change localsvc.Change) {
			influxClient.WriteStateChange(change.Service, change.Values, change.Time)
		})
		healthChecks["influxdb"] = influxClient
		deps.Metrics = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	deps.EventSinks = sinks
	deps.HealthChecks = healthChecks

	if err := healthCheck(ctx, healthChecks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	go pruneEventLog(ctx, cfg, db, eventRepo, log)

	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// API server, InfluxDB, MQTT bridge, MQTT, database.

	log.Info("upnpd stopped")
	return nil
}

// migrate runs one schema command against the configured event log
// database and reports the outcome on w.
//
// Parameters:
//   - ctx: Context for cancellation
//   - w: Destination of the report
//   - command: status, up or down
//   - steps: Number of migrations reverted by down
//
// Returns:
//   - error: Unknown command, configuration or database failure
func migrate(ctx context.Context, w io.Writer, command string, steps int) error {
	switch command {
	case "status", "up", "down":
	default:
		return fmt.Errorf("unknown migrate command %q, want status, up or down", command)
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // Process exits after the command

	status, err := db.MigrationStatus(ctx)
	if err != nil {
		return err
	}

	switch command {
	case "up":
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		for _, m := range status.Pending {
			fmt.Fprintf(w, "applied  %s %s\n", m.Version, m.Name)
		}
	case "down":
		reverted, err := db.Rollback(ctx, steps)
		for _, m := range reverted {
			fmt.Fprintf(w, "reverted %s %s\n", m.Version, m.Name)
		}
		if err != nil {
			return err
		}
	default:
		printSchemaStatus(w, cfg.Database.Path, status)
	}
	return nil
}

func printSchemaStatus(w io.Writer, path string, status *database.MigrationStatus) {
	current := status.Current()
	if current == "" {
		current = "empty"
	}
	fmt.Fprintf(w, "event log %s, schema %s\n", path, current)
	for _, r := range status.Applied {
		fmt.Fprintf(w, "applied  %s %s %s\n", r.Version, r.Name, r.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(w, "pending  %s %s\n", m.Version, m.Name)
	}
	for _, r := range status.Unknown {
		fmt.Fprintf(w, "unknown  %s %s\n", r.Version, r.Name)
	}
}

// getConfigPath returns the configuration file path.
// Uses UPNPD_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("UPNPD_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadDevices reads the device definitions and creates the executors of
// the local devices.
func loadDevices(cfg *config.Config, log *logging.Logger) (*devicedef.Set, *localsvc.Host, error) {
	set, err := devicedef.LoadSet(cfg.Devices.Path, meta.WithLogger(log.Component("meta")))
	if err != nil {
		return nil, nil, fmt.Errorf("loading device definitions: %w", err)
	}

	host, err := localsvc.NewHost(set.Local)
	if err != nil {
		return nil, nil, fmt.Errorf("creating service host: %w", err)
	}
	host.SetLogger(log.Component("localsvc"))

	services := 0
	for _, d := range set.Local {
		services += len(d.AllServices())
	}
	log.Info("devices loaded",
		"path", cfg.Devices.Path,
		"local", len(set.Local),
		"remote", len(set.Remote),
		"services", services,
	)
	return set, host, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - checks: Named components to check
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, checker := range checks {
		if err := checker.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// pruneEventLog deletes events older than the retention period at every
// prune interval, then checkpoints the WAL.
func pruneEventLog(ctx context.Context, cfg *config.Config, db *database.DB, repo *eventlog.SQLiteRepository, log *logging.Logger) {
	retention := cfg.GetRetention()
	if retention <= 0 {
		log.Info("event log pruning disabled")
		return
	}

	interval := cfg.GetPruneInterval()
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repo.Prune(ctx, retention)
			if err != nil {
				log.Error("event log prune failed", "error", err)
				continue
			}
			if removed > 0 {
				log.Info("event log pruned", "removed", removed)
			}
			if err := db.Checkpoint(ctx); err != nil {
				log.Warn("WAL checkpoint failed", "error", err)
			}
		}
	}
}
