// vHome Bridge - host platform to cloud synchronisation bridge
//
// This is the main entry point for the bridge daemon. It mirrors the host
// platform's registry and state over MQTT, registers selected entities
// with the vendor cloud as sub-devices, pushes their state upstream and
// translates cloud commands back into host service calls.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/vhome-bridge/migrations"

	"github.com/nerrad567/vhome-bridge/internal/api"
	"github.com/nerrad567/vhome-bridge/internal/bridge/advert"
	"github.com/nerrad567/vhome-bridge/internal/bridge/connector"
	"github.com/nerrad567/vhome-bridge/internal/bridge/coordinator"
	"github.com/nerrad567/vhome-bridge/internal/bridge/host"
	"github.com/nerrad567/vhome-bridge/internal/bridge/store"
	"github.com/nerrad567/vhome-bridge/internal/bridge/telemetry"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/config"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/database"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/vhome-bridge/internal/infrastructure/mqtt"
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

// stopTimeout bounds the coordinator's graceful shutdown.
const stopTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
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
	log.Info("starting vHome Bridge",
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

	// Persistence backend
	var (
		st    store.Store
		db    *database.DB
		rdb   *redisBackend
	)
	switch cfg.Store.Backend {
	case config.StoreBackendRedis:
		rdb = openRedis(cfg.Redis)
		defer func() {
			log.Info("closing redis")
			if closeErr := rdb.client.Close(); closeErr != nil {
				log.Error("error closing redis", "error", closeErr)
			}
		}()
		st = store.NewRedisStore(rdb.client, cfg.Redis.KeyPrefix)
		log.Info("using redis store", "addr", cfg.Redis.Addr)
	default:
		db, err = database.Open(database.ConfigFrom(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		st = store.NewSQLiteStore(db)
		log.Info("using sqlite store", "path", cfg.Database.Path)
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

	qos := byte(cfg.MQTT.QoS) //nolint:gosec // validated to 0-2

	hostAdapter := host.NewMQTTHost(mqttClient, cfg.Host, qos, log)
	if err := hostAdapter.Start(); err != nil {
		return fmt.Errorf("starting host adapter: %w", err)
	}
	defer hostAdapter.Stop()

	cloud := connector.NewMQTTConnector(mqttClient, cfg.Connector, qos, log)
	if err := cloud.Start(); err != nil {
		return fmt.Errorf("starting cloud connector: %w", err)
	}
	defer func() {
		if closeErr := cloud.Close(); closeErr != nil {
			log.Error("error closing cloud connector", "error", closeErr)
		}
	}()

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	var telemetrySink coordinator.EventSink
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
		telemetrySink = telemetry.NewSink(influxClient)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	var registrar advert.Registrar
	if cfg.Advert.Enabled {
		registrar = advert.NewZeroconfRegistrar(cfg.Advert.Service, cfg.Advert.Domain, log)
	}

	if err := healthCheck(ctx, db, rdb, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	hub := api.NewHub(cfg.WebSocket, log)

	mirror := telemetry.NewMirror(mqttClient, log)
	go mirror.Run(ctx)

	coord, err := coordinator.New(coordinatorOptions(cfg, hostAdapter, cloud, st, registrar,
		coordinator.MultiSink{hub, telemetrySink, mirror}, log))
	if err != nil {
		return fmt.Errorf("creating coordinator: %w", err)
	}
	if err := coord.Start(ctx); err != nil {
		return fmt.Errorf("starting coordinator: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		log.Info("stopping coordinator")
		if stopErr := coord.Stop(stopCtx); stopErr != nil {
			log.Error("error stopping coordinator", "error", stopErr)
		}
	}()

	server, err := api.New(api.Deps{
		Config:  cfg.API,
		WS:      cfg.WebSocket,
		Logger:  log,
		Bridge:  coord,
		Hub:     hub,
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

	// Deferred calls run in reverse order: API server, coordinator,
	// InfluxDB, cloud connector, host adapter, MQTT, store.
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VHOMEBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VHOMEBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// coordinatorOptions maps the loaded configuration onto coordinator options.
func coordinatorOptions(cfg *config.Config, h host.Host, conn connector.Connector, st store.Store,
	registrar advert.Registrar, sink coordinator.EventSink, log *logging.Logger) coordinator.Options {
	seconds := func(n int) time.Duration { return time.Duration(n) * time.Second }
	return coordinator.Options{
		Identity: coordinator.Identity{
			MAC:         cfg.Bridge.MAC,
			AppName:     cfg.Bridge.AppName,
			Version:     cfg.Bridge.Version,
			HardVersion: cfg.Bridge.HardVersion,
			Vendor:      cfg.Bridge.Vendor,
			InternalURL: cfg.Bridge.InternalURL,
			DeviceID:    cfg.Bridge.DeviceID,
			EntryID:     cfg.Bridge.EntryID,
		},
		Host:             h,
		Connector:        conn,
		Store:            st,
		Registrar:        registrar,
		Sink:             sink,
		CommandPacing:    cfg.GetCommandPacing(),
		ReportDebounce:   cfg.GetReportDebounce(),
		ReconnectBackoff: cfg.GetReconnectBackoff(),
		QRExpiry:         seconds(cfg.Pairing.QRExpiry),
		LANExpiry:        seconds(cfg.Pairing.LANExpiry),
		PollInterval:     cfg.GetPollInterval(),
		Logger:           log,
	}
}

// redisBackend wraps the go-redis client used by the redis store.
type redisBackend struct {
	client *redis.Client
}

func openRedis(cfg config.RedisConfig) *redisBackend {
	return &redisBackend{client: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})}
}

// healthCheck verifies all infrastructure connections concurrently.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: SQLite database (nil with the redis store)
//   - rdb: Redis backend (nil with the sqlite store)
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, rdb *redisBackend, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	g, gctx := errgroup.WithContext(ctx)

	if db != nil {
		g.Go(func() error {
			if err := db.HealthCheck(gctx); err != nil {
				return fmt.Errorf("database: %w", err)
			}
			return nil
		})
	}
	if rdb != nil {
		g.Go(func() error {
			if err := rdb.client.Ping(gctx).Err(); err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		if err := mqttClient.HealthCheck(gctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
		return nil
	})
	if influxClient != nil {
		g.Go(func() error {
			if err := influxClient.HealthCheck(gctx); err != nil {
				return fmt.Errorf("influxdb: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}
