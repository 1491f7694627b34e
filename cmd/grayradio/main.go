// Gray Logic Radio - Fail-Safe Transmitter Control
//
// This is the main entry point for the Gray Logic Radio daemon. It
// supervises a multi-channel RF transmitter over its TCP control
// protocol and exposes the control plane to operator consoles:
//   - Hardware watchdog heartbeat with fail-safe carrier shutdown
//   - REST + WebSocket API for operator consoles
//   - MQTT command/telemetry plane for remote sites
//   - Broadcast program activation with audit and history trails
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-radio/migrations"

	"github.com/nerrad567/gray-logic-radio/internal/api"
	"github.com/nerrad567/gray-logic-radio/internal/audit"
	"github.com/nerrad567/gray-logic-radio/internal/auth"
	"github.com/nerrad567/gray-logic-radio/internal/history"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-radio/internal/infrastructure/tsdb"
	"github.com/nerrad567/gray-logic-radio/internal/program"
	"github.com/nerrad567/gray-logic-radio/internal/simulator"
	"github.com/nerrad567/gray-logic-radio/internal/transmitter"
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
//
//nolint:gocognit,gocyclo // linear startup sequence, one block per subsystem
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Radio",
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
	log.Info("configuration loaded",
		"path", configPath,
		"system", cfg.System.Name,
		"environment", cfg.System.Environment,
	)

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

	// Repositories
	operatorRepo := auth.NewOperatorRepository(db.DB)
	auditRepo := audit.NewSQLiteRepository(db.DB)
	programRepo := program.NewSQLiteRepository(db.DB)
	historyRepo := history.NewSQLiteRepository(db.DB)

	// Seed the bootstrap admin on an empty operator table
	seeded, err := auth.SeedAdmin(ctx, operatorRepo,
		cfg.Security.Bootstrap.AdminUsername,
		cfg.Security.Bootstrap.AdminPassword,
		log.Logger,
	)
	if err != nil {
		return fmt.Errorf("seeding admin operator: %w", err)
	}
	if seeded != "" {
		log.Info("bootstrap admin created", "username", seeded)
	}

	// Audit recorder: in-memory ring for /audit/recent plus async
	// persistence to SQLite
	auditRecorder := audit.NewRecorder(audit.NewRing(100), auditRepo, log)
	defer func() {
		log.Info("closing audit recorder")
		auditRecorder.Close()
	}()

	// Program registry and cache
	programRegistry := program.NewRegistry(programRepo)
	programRegistry.SetLogger(log)
	if refreshErr := programRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading program registry: %w", refreshErr)
	}
	log.Info("program registry initialised", "programs", programRegistry.Count())

	// Device simulator (development/test deployments). When enabled
	// its listen address becomes the transmitter target.
	transmitterAddr := fmt.Sprintf("%s:%d", cfg.Transmitter.Host, cfg.Transmitter.Port)
	if cfg.Simulator.Enabled {
		sim := simulator.New(cfg.Simulator, log.With("component", "simulator"))
		if simErr := sim.Start(); simErr != nil {
			return fmt.Errorf("starting simulator: %w", simErr)
		}
		defer func() {
			log.Info("stopping simulator")
			if closeErr := sim.Close(); closeErr != nil {
				log.Error("error closing simulator", "error", closeErr)
			}
		}()
		transmitterAddr = sim.Addr()
		log.Info("device simulator started", "addr", transmitterAddr)
	}

	// Transmitter supervisor
	supervisor, err := transmitter.NewSupervisor(transmitter.Options{
		Addr:                 transmitterAddr,
		ConnectTimeout:       time.Duration(cfg.Transmitter.ConnectTimeoutMs) * time.Millisecond,
		CommandTimeout:       time.Duration(cfg.Transmitter.CommandTimeoutMs) * time.Millisecond,
		PollInterval:         time.Duration(cfg.Transmitter.PollIntervalMs) * time.Millisecond,
		WatchdogTimeout:      time.Duration(cfg.Transmitter.Watchdog.TimeoutS) * time.Second,
		WatchdogWarnFraction: cfg.Transmitter.Watchdog.WarnFraction,
		MaxConsecutiveErrors: cfg.Transmitter.MaxConsecutiveErrors,
		Retry: transmitter.RetryPolicy{
			MaxAttempts:  cfg.Transmitter.Reconnect.MaxAttempts,
			InitialDelay: time.Duration(cfg.Transmitter.Reconnect.InitialDelayMs) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.Transmitter.Reconnect.MaxDelayMs) * time.Millisecond,
			Multiplier:   cfg.Transmitter.Reconnect.Multiplier,
		},
		Logger: log.With("component", "transmitter"),
	})
	if err != nil {
		return fmt.Errorf("creating transmitter supervisor: %w", err)
	}
	defer func() {
		log.Info("closing transmitter supervisor")
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer closeCancel()
		if closeErr := supervisor.Close(closeCtx); closeErr != nil {
			log.Error("error closing supervisor", "error", closeErr)
		}
	}()

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	var remote *transmitter.Remote
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
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

		// Remote control plane: commands in, acks/events/state out
		remote, err = transmitter.NewRemote(transmitter.RemoteOptions{
			Supervisor: supervisor,
			Bus:        mqtt.NewBus(mqttClient),
			Logger:     log.With("component", "remote"),
		})
		if err != nil {
			return fmt.Errorf("creating remote control plane: %w", err)
		}
		if startErr := remote.Start(); startErr != nil {
			return fmt.Errorf("starting remote control plane: %w", startErr)
		}
		defer func() {
			log.Info("stopping remote control plane")
			remote.Stop()
		}()
		log.Info("remote control plane started", "command_topic", remote.CommandTopic())

		// Periodic session health reports, retained for late joiners
		healthReporter, reporterErr := transmitter.NewHealthReporter(transmitter.HealthReporterOptions{
			Supervisor: supervisor,
			Publisher:  mqtt.NewBus(mqttClient),
			Topic:      mqtt.TopicPrefix + "/health/transmitter",
			Logger:     log.With("component", "health"),
		})
		if reporterErr != nil {
			return fmt.Errorf("creating health reporter: %w", reporterErr)
		}
		healthReporter.Start()
		defer func() {
			log.Info("stopping health reporter")
			healthReporter.Stop()
		}()
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to VictoriaMetrics (optional)
	var tsdbClient *tsdb.Client
	if cfg.TSDB.Enabled {
		tsdbClient, err = tsdb.Connect(ctx, cfg.TSDB)
		if err != nil {
			return fmt.Errorf("connecting to TSDB: %w", err)
		}
		defer func() {
			log.Info("closing TSDB connection")
			if closeErr := tsdbClient.Close(); closeErr != nil {
				log.Error("error closing TSDB", "error", closeErr)
			}
		}()
		tsdbClient.SetOnError(func(err error) {
			log.Error("TSDB write error", "error", err)
		})
		log.Info("TSDB connected", "url", cfg.TSDB.URL)
	} else {
		log.Info("TSDB disabled")
	}

	// WebSocket hub, shared between the API server and the event pump
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Program activation engine. Activation frames go to WebSocket
	// clients and, when MQTT is up, to the program topic tree.
	var engineHub program.WSHub = hub
	if mqttClient != nil {
		engineHub = &activationFanout{hub: hub, mqtt: mqttClient, log: log}
	}
	programEngine := program.NewEngine(programRegistry, supervisor, engineHub, programRepo, log)

	// State transition history recorder
	historyRecorder := history.NewRecorder(historyRepo, log)

	// Fan transmitter events out to WebSocket clients, the history
	// trail, and telemetry sinks. MQTT event/state publishing is
	// handled by the remote adapter's own subscription.
	go pumpEvents(ctx, supervisor, hub, historyRecorder, influxClient, tsdbClient, log)

	// API server
	apiServer, err := api.New(api.Deps{
		Config:        cfg.API,
		WS:            cfg.WebSocket,
		Security:      cfg.Security,
		Logger:        log,
		Supervisor:    supervisor,
		Operators:     operatorRepo,
		Programs:      programRegistry,
		ProgramEngine: programEngine,
		ProgramRepo:   programRepo,
		Audit:         auditRecorder,
		AuditRepo:     auditRepo,
		History:       historyRepo,
		TSDB:          tsdbClient,
		MQTT:          mqttClient,
		DB:            db,
		ExternalHub:   hub,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"addr", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"tls", cfg.API.TLS.Enabled,
	)

	// Establish the transmitter session. Failure here is not fatal:
	// the supervisor reconnects and operators can trigger a connect
	// through the API once the device is reachable.
	if cfg.Transmitter.AutoConnect {
		if connErr := supervisor.Connect(ctx); connErr != nil {
			log.Warn("initial transmitter connection failed, will retry on demand",
				"addr", transmitterAddr,
				"error", connErr,
			)
		} else {
			log.Info("transmitter connected", "addr", transmitterAddr)
			auditRecorder.Success("control.connect", "system", audit.SourceSystem, map[string]any{
				"addr": transmitterAddr,
			})
		}
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, tsdbClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server (stop accepting operator commands)
	// 2. TSDB / InfluxDB (flush pending telemetry)
	// 3. Remote control plane, then MQTT
	// 4. Transmitter supervisor (orderly disconnect, carrier off)
	// 5. Simulator (if running)
	// 6. Audit recorder (drain persistence queue)
	// 7. Database

	log.Info("Gray Logic Radio stopped")
	return nil
}

// pumpEvents consumes the supervisor event bus and fans each event out
// to the WebSocket hub, the state transition history, and the
// telemetry sinks. Runs until ctx is cancelled or the bus closes.
func pumpEvents(
	ctx context.Context,
	supervisor *transmitter.Supervisor,
	hub *api.Hub,
	recorder *history.Recorder,
	influx *influxdb.Client,
	vm *tsdb.Client,
	log *logging.Logger,
) {
	sub := supervisor.Subscribe("daemon")
	defer supervisor.Unsubscribe(sub)

	lastConn := supervisor.State().Connection

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C():
			if !ok {
				return
			}
			if evt.Type == transmitter.EventSubscriberLagged {
				log.Warn("event pump lagged, events dropped", "dropped", evt.Dropped)
				continue
			}

			// Per-tick snapshots feed the state mirror and telemetry;
			// the event feed carries transitions only.
			if evt.Type != transmitter.EventStateUpdated {
				hub.Broadcast("transmitter.event", evt)
			}
			hub.Broadcast("transmitter.state", evt.State)
			recorder.Observe(ctx, evt)
			writeTelemetry(evt, lastConn, influx, vm)
			lastConn = evt.State.Connection
		}
	}
}

// writeTelemetry maps a transmitter event onto the telemetry sinks.
// Both sinks are optional and share the same write surface.
func writeTelemetry(evt transmitter.Event, lastConn transmitter.ConnectionState, influx *influxdb.Client, vm *tsdb.Client) {
	if influx == nil && vm == nil {
		return
	}

	switch evt.Type {
	case transmitter.EventConnectionEstablished,
		transmitter.EventConnectionLost,
		transmitter.EventReconnecting,
		transmitter.EventReconnectFailed:
		if evt.State.Connection == lastConn {
			return
		}
		if influx != nil {
			influx.WriteConnectionEvent(string(lastConn), string(evt.State.Connection))
		}
		if vm != nil {
			vm.WriteConnectionEvent(string(lastConn), string(evt.State.Connection))
		}
	case transmitter.EventWatchdogWarning, transmitter.EventWatchdogTriggered:
		age := time.Since(evt.State.LastContact).Milliseconds()
		if influx != nil {
			influx.WriteWatchdogState(string(evt.State.Watchdog), age)
		}
		if vm != nil {
			vm.WriteWatchdogState(string(evt.State.Watchdog), age)
		}
	case transmitter.EventChannelChanged:
		if evt.Channel < 1 || evt.Channel > transmitter.ChannelCount {
			return
		}
		ch := evt.State.Channels[evt.Channel-1]
		if influx != nil {
			influx.WriteChannelState(evt.Channel, ch.Enabled, ch.FrequencyHz)
		}
		if vm != nil {
			vm.WriteChannelState(evt.Channel, ch.Enabled, ch.FrequencyHz)
		}
	default:
		// Temperature rides along on every status snapshot, so the
		// per-tick state event gives it a steady cadence.
		if evt.State.TemperatureC == 0 {
			return
		}
		if influx != nil {
			influx.WriteTemperature(evt.State.TemperatureC)
		}
		if vm != nil {
			vm.WriteTemperature(evt.State.TemperatureC)
		}
	}
}

// activationFanout forwards program engine broadcasts to the
// WebSocket hub and mirrors activation frames onto MQTT so remote
// sites see program changes without a WebSocket session.
type activationFanout struct {
	hub  *api.Hub
	mqtt *mqtt.Client
	log  *logging.Logger
}

func (f *activationFanout) Broadcast(channel string, payload any) {
	f.hub.Broadcast(channel, payload)

	if channel != "program.activated" {
		return
	}
	frame, ok := payload.(map[string]any)
	if !ok {
		return
	}
	slug, _ := frame["program_slug"].(string)
	if slug == "" {
		return
	}
	data, err := json.Marshal(frame)
	if err != nil {
		f.log.Error("marshalling activation frame", "error", err)
		return
	}
	topic := mqtt.Topics{}.ProgramActivated(slug)
	if err := f.mqtt.Publish(topic, data, 1, false); err != nil {
		f.log.Warn("publishing activation frame", "topic", topic, "error", err)
	}
}

// getConfigPath returns the configuration file path.
// Uses GRAYRADIO_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYRADIO_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
// The optional clients may be nil when their subsystem is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, tsdbClient *tsdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if tsdbClient != nil {
		if err := tsdbClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("tsdb: %w", err)
		}
	}

	return nil
}
