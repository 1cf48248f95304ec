// Command irfleetd is the IR fleet daemon: it decodes a RedRat keyset,
// opens Device Connections to every configured Global Caché unit, and
// serves the Dispatcher façade described in SPEC_FULL.md to whatever
// front-end embeds this core (the HTTP/REST layer is an external
// collaborator and is not built here).
//
// This binary wires the core packages together and starts the
// telemetry collaborators (MQTT, InfluxDB, the SQLite command_audit
// store); it holds no dispatch logic of its own.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hollowgate/irfleet-core/internal/dispatcher"
	"github.com/hollowgate/irfleet-core/internal/infrastructure/config"
	"github.com/hollowgate/irfleet-core/internal/infrastructure/database"
	"github.com/hollowgate/irfleet-core/internal/infrastructure/logging"
	"github.com/hollowgate/irfleet-core/internal/infrastructure/metrics"
	"github.com/hollowgate/irfleet-core/internal/infrastructure/mqtt"
	"github.com/hollowgate/irfleet-core/internal/keyset"
	"github.com/hollowgate/irfleet-core/internal/registry"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is the configuration file path used when
// IRFLEET_CONFIG is unset.
const defaultConfigPath = "configs/config.yaml"

// shutdownGrace is the timeout of the context handed to
// Registry.Shutdown. Each Device Connection's Close does not consult
// that context: it waits at most its own fixed 5 s drain deadline for
// queued commands before closing the socket.
const shutdownGrace = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the daemon's actual logic, separated from main for
// testability: returning an error lets tests assert on failure modes
// without exercising os.Exit.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting irfleetd", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version).WithSite(cfg.Site.ID)
	log.Info("logger initialised", "level", cfg.Logging.Level, "format", cfg.Logging.Format)

	catalogue, diagnostics, err := loadKeyset(cfg.Keyset)
	if err != nil {
		return fmt.Errorf("loading keyset: %w", err)
	}
	for _, d := range diagnostics {
		log.Warn("keyset diagnostic", "detail", d)
	}
	log.Info("keyset loaded", "devices", len(catalogue.ListDevices()))

	specs := deviceSpecs(cfg.Fleet.Devices)
	mappings := slotMappings(cfg.Fleet.Mappings)

	reg, err := registry.New(ctx, specs, mappings, log.Logger)
	if err != nil {
		return fmt.Errorf("building device registry: %w", err)
	}
	log.Info("device registry initialised", "slots", len(mappings))

	var observers []dispatcher.Observer

	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log.WithComponent("mqtt"))
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected", "broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port))
		observers = append(observers, mqtt.NewObserver(mqttClient))
	} else {
		log.Info("MQTT disabled")
	}

	var metricsClient *metrics.Client
	if cfg.Metrics.Enabled {
		metricsClient, err = metrics.Connect(cfg.Metrics)
		if err != nil {
			return fmt.Errorf("connecting to metrics store: %w", err)
		}
		metricsLog := log.WithComponent("metrics")
		metricsClient.SetOnError(func(err error) {
			metricsLog.Error("metrics write error", "error", err)
		})
		defer func() {
			log.Info("closing metrics connection")
			if closeErr := metricsClient.Close(); closeErr != nil {
				log.Error("error closing metrics connection", "error", closeErr)
			}
		}()
		log.Info("metrics connected", "url", cfg.Metrics.URL, "bucket", cfg.Metrics.Bucket)
		observers = append(observers, metrics.NewObserver(metricsClient))
	} else {
		log.Info("metrics disabled")
	}

	var auditDB *database.DB
	if cfg.Audit.Enabled {
		auditDB, err = database.Open(database.ConfigFromAudit(cfg.Audit))
		if err != nil {
			return fmt.Errorf("opening audit database: %w", err)
		}
		defer func() {
			log.Info("closing audit database")
			if closeErr := auditDB.Close(); closeErr != nil {
				log.Error("error closing audit database", "error", closeErr)
			}
		}()

		if migrateErr := auditDB.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running audit migrations: %w", migrateErr)
		}
		log.Info("audit database ready", "path", cfg.Audit.Path)
		observers = append(observers, database.NewObserver(auditDB, log.WithComponent("audit")))
	} else {
		log.Info("audit disabled")
	}

	disp := dispatcher.New(reg, catalogue, observers...)
	defer disp.Close()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go disp.WatchHealth(watchCtx)

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	stopWatch()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancelShutdown()
	reg.Shutdown(shutdownCtx)

	log.Info("irfleetd stopped")
	return nil
}

func loadKeyset(cfg config.KeysetConfig) (*keyset.KeysetCatalogue, []string, error) {
	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading keyset file %q: %w", cfg.Path, err)
	}
	return keyset.Decode(data)
}

func deviceSpecs(devices []config.DeviceConfig) []registry.DeviceSpec {
	specs := make([]registry.DeviceSpec, len(devices))
	for i, d := range devices {
		specs[i] = registry.DeviceSpec{
			Type:     d.Type,
			Host:     d.Host,
			TCPPort:  d.TCPPort,
			Module:   d.Module,
			MaxPorts: d.MaxPorts,
			Count:    d.Count,
		}
	}
	return specs
}

func slotMappings(mappings []config.SlotMappingConfig) []registry.SlotMapping {
	out := make([]registry.SlotMapping, len(mappings))
	for i, m := range mappings {
		out[i] = registry.SlotMapping{
			Slot:        m.Slot,
			DeviceIndex: m.DeviceIndex,
			Port:        m.Port,
		}
	}
	return out
}

// getConfigPath returns the configuration file path, honouring
// IRFLEET_CONFIG if set.
func getConfigPath() string {
	if path := os.Getenv("IRFLEET_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
