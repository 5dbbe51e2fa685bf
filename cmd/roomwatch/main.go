// RoomWatch Core - IoT room telemetry service
//
// This is the main entry point for the RoomWatch Core application.
// Devices report telemetry over HTTP or MQTT; the core stores it, keeps
// room and device state reconciled, dispatches operator commands over MQTT
// and streams live telemetry to operators.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // site timezones must resolve on minimal hosts

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/roomwatch-core/migrations"

	"github.com/nerrad567/roomwatch-core/internal/api"
	"github.com/nerrad567/roomwatch-core/internal/audit"
	"github.com/nerrad567/roomwatch-core/internal/auth"
	"github.com/nerrad567/roomwatch-core/internal/bridge"
	"github.com/nerrad567/roomwatch-core/internal/command"
	"github.com/nerrad567/roomwatch-core/internal/device"
	"github.com/nerrad567/roomwatch-core/internal/fanout"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/config"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/database"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/logging"
	"github.com/nerrad567/roomwatch-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/roomwatch-core/internal/ingest"
	"github.com/nerrad567/roomwatch-core/internal/location"
	"github.com/nerrad567/roomwatch-core/internal/presence"
	"github.com/nerrad567/roomwatch-core/internal/telemetry"
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

// defaultAdminEmail seeds the first account when bootstrap.admin_email is unset.
const defaultAdminEmail = "admin@roomwatch.local"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
// Deferred closes run in reverse order of startup.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting RoomWatch Core",
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
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Rooms and the first admin
	roomRepo := location.NewSQLiteRepository(db)
	created, err := roomRepo.SeedRooms(ctx, roomsFromConfig(cfg.Rooms))
	if err != nil {
		return fmt.Errorf("seeding rooms: %w", err)
	}
	log.Info("rooms seeded", "configured", len(cfg.Rooms), "created", created)

	userRepo := auth.NewUserRepository(db)
	adminEmail := cfg.Bootstrap.AdminEmail
	if adminEmail == "" {
		adminEmail = defaultAdminEmail
	}
	if _, seedErr := auth.SeedAdmin(ctx, userRepo, adminEmail, cfg.Bootstrap.AdminPassword, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin: %w", seedErr)
	}

	// Device registry
	deviceRepo := device.NewSQLiteRepository(db)
	deviceRegistry := device.NewRegistry(deviceRepo)
	deviceRegistry.SetLogger(log)
	deviceRegistry.SetRooms(roomRepo)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetStats().Total)

	tracker := presence.NewTracker(db, presence.NewRoomMapper(positionRules(cfg.Presence)), cfg.Location())
	auditRepo := audit.NewSQLiteRepository(db)
	telemetryStore := telemetry.NewStore(db)

	// InfluxDB mirror (optional)
	var influxClient *influxdb.Client
	influxClient, err = influxdb.Connect(cfg.InfluxDB)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
	case err != nil:
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	default:
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

	gatewayDeps := ingest.Deps{
		DB:        db,
		Devices:   deviceRepo,
		Telemetry: telemetryStore,
		Rooms:     roomRepo,
		Cache:     deviceRegistry,
		Logger:    log,
	}
	if influxClient != nil {
		gatewayDeps.Mirror = influxClient
	}
	gateway := ingest.NewGateway(gatewayDeps)

	topics := mqtt.NewTopics(cfg.MQTT.BaseTopic)

	// MQTT telemetry bridge (optional). It owns its own broker session.
	var mqttClient *mqtt.Client
	if cfg.Bridge.Enabled {
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
			"client_id", mqttClient.ClientID(),
		)

		telemetryBridge := bridge.New(mqttClient, gateway, topics)
		telemetryBridge.SetLogger(log)
		if startErr := telemetryBridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting telemetry bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping telemetry bridge")
			telemetryBridge.Stop()
		}()
	} else {
		log.Info("telemetry bridge disabled")
	}

	// Command dispatch dials lazily so the API serves even while the
	// broker is down; commands then fail with bus_unavailable.
	conns := command.NewConnectionManager(commandDialer(cfg.MQTT), backoffFromConfig(cfg))
	conns.SetLogger(log)
	defer func() {
		if closeErr := conns.Close(); closeErr != nil {
			log.Error("error closing command connection", "error", closeErr)
		}
	}()
	dispatcher := command.NewDispatcher(conns, topics, auditRepo)
	dispatcher.SetLogger(log)

	poller := fanout.NewPoller(telemetryStore, cfg.GetPollInterval(), cfg.Fanout.BatchSize)

	server, err := api.New(api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Security:  cfg.Security,
		Logger:    log,
		Registry:  deviceRegistry,
		Gateway:   gateway,
		Telemetry: telemetryStore,
		Poller:    poller,
		Rooms:     roomRepo,
		Presence:  tracker,
		Users:     userRepo,
		Commands:  dispatcher,
		Audit:     auditRepo,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, topics.AllDeviceTelemetry(), influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	log.Info("RoomWatch Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ROOMWATCH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ROOMWATCH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies the infrastructure connections concurrently.
// mqttClient and influxClient may be nil when their features are disabled.
// When the bridge runs, its subscription to bridgeTopic must be tracked.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, bridgeTopic string, influxClient *influxdb.Client) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
		return nil
	})
	if mqttClient != nil {
		g.Go(func() error {
			if err := mqttClient.HealthCheck(ctx); err != nil {
				return fmt.Errorf("mqtt: %w", err)
			}
			if !mqttClient.HasSubscription(bridgeTopic) {
				return fmt.Errorf("mqtt: bridge not subscribed to %s", bridgeTopic)
			}
			return nil
		})
	}
	if influxClient != nil {
		g.Go(func() error {
			if err := influxClient.HealthCheck(ctx); err != nil {
				return fmt.Errorf("influxdb: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// commandDialer opens a dedicated broker session for command publishing,
// separate from the bridge's subscriber session.
func commandDialer(cfg config.MQTTConfig) command.Dialer {
	cmdCfg := cfg
	cmdCfg.Broker.ClientID = mqtt.ClientID(cfg) + "-cmd"
	return func() (command.Publisher, error) {
		client, err := mqtt.Connect(cmdCfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func backoffFromConfig(cfg *config.Config) command.Backoff {
	return command.Backoff{
		Initial:     time.Duration(cfg.MQTT.Reconnect.InitialDelay) * time.Second,
		Max:         time.Duration(cfg.MQTT.Reconnect.MaxDelay) * time.Second,
		MaxAttempts: cfg.Command.MaxAttempts,
	}
}

func roomsFromConfig(rooms []config.RoomConfig) []location.Room {
	out := make([]location.Room, 0, len(rooms))
	for _, r := range rooms {
		room := location.Room{ID: r.ID, Name: r.Name}
		if r.Name == "" {
			room.Name = location.DefaultRoomName(r.ID)
		}
		if r.Description != "" {
			desc := r.Description
			room.Description = &desc
		}
		out = append(out, room)
	}
	return out
}

func positionRules(cfg config.PresenceConfig) []presence.PositionRule {
	rules := make([]presence.PositionRule, 0, len(cfg.PositionRooms))
	for _, p := range cfg.PositionRooms {
		rules = append(rules, presence.PositionRule{Keyword: p.Keyword, RoomID: p.RoomID})
	}
	return rules
}
