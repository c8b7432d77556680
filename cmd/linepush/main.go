// linepush - sensor to InfluxDB line protocol delivery daemon
//
// linepush keeps the latest value of every configured sensor, fed from MQTT,
// renders measurements as InfluxDB line protocol and delivers them over
// HTTP on cron schedules. Failed writes are held in a bounded per-destination
// backlog and replayed after the next successful write.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/nerrad567/linepush/internal/api"
	"github.com/nerrad567/linepush/internal/audit"
	"github.com/nerrad567/linepush/internal/infrastructure/config"
	"github.com/nerrad567/linepush/internal/infrastructure/database"
	"github.com/nerrad567/linepush/internal/infrastructure/influxdb"
	"github.com/nerrad567/linepush/internal/infrastructure/logging"
	"github.com/nerrad567/linepush/internal/infrastructure/mqtt"
	"github.com/nerrad567/linepush/internal/pipeline"
	"github.com/nerrad567/linepush/internal/scheduler"
	"github.com/nerrad567/linepush/migrations"
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

// shutdownTimeout bounds how long running jobs get to finish on exit.
const shutdownTimeout = 10 * time.Second

// pruneJobName is the scheduler name of the audit retention job.
const pruneJobName = "audit-prune"

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
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting linepush",
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

	// Delivery audit log (optional)
	var (
		db     *database.DB
		events audit.Repository
	)
	if cfg.Database.Enabled {
		db, err = database.Open(ctx, cfg.Database)
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

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")
		events = audit.NewSQLiteRepository(db.DB)
	} else {
		log.Info("delivery audit disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Sensor feed (optional when no sensors are configured)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(ctx, cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		mqttClient.SetLogger(log.With("component", "mqtt"))
		mqttClient.SetMetrics(mqtt.NewMetrics(reg))
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
	} else {
		log.Info("MQTT disabled")
	}

	p, err := buildPipeline(cfg, log, mqttClient, events, reg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := p.Close(); closeErr != nil {
			log.Error("error closing pipeline", "error", closeErr)
		}
	}()
	if err := p.Start(); err != nil {
		return fmt.Errorf("starting pipeline: %w", err)
	}
	log.Info("pipeline ready",
		"sensors", p.Registry().Len(),
		"destinations", len(p.Destinations()),
		"measurements", len(p.Measurements()),
	)

	sched, err := buildScheduler(cfg, log, p, events)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if stopErr := sched.Stop(stopCtx); stopErr != nil {
			log.Error("error stopping scheduler", "error", stopErr)
		}
	}()

	// Status API (optional)
	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:     cfg.API,
			Logger:     log,
			Pipeline:   p,
			Scheduler:  sched,
			Events:     events,
			DB:         db,
			MQTT:       mqttClient,
			Gatherer:   reg,
			Registerer: reg,
			Version:    version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("status API disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, p); err != nil {
		// Destinations may be down at boot; the backlog covers that.
		log.Warn("startup health check failed", "error", err)
	} else {
		log.Info("all health checks passed")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order: API, scheduler, pipeline, MQTT,
	// database. Queued backlog entries are discarded.

	log.Info("linepush stopped")
	return nil
}

// buildPipeline assembles sensors, destinations and measurements, wiring
// MQTT as both sensor feed and status mirror when it is connected.
func buildPipeline(cfg *config.Config, log *logging.Logger, mqttClient *mqtt.Client, events audit.Repository, reg prometheus.Registerer) (*pipeline.Pipeline, error) {
	deps := pipeline.Deps{
		Logger:  log,
		Metrics: influxdb.NewMetrics(reg),
	}
	if mqttClient != nil {
		deps.Subscriber = mqttClient
		deps.Status = mqttClient
	}
	if events != nil {
		deps.Recorder = audit.NewRecorder(events)
	}

	p, err := pipeline.Build(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("building pipeline: %w", err)
	}
	return p, nil
}

// buildScheduler registers the configured publish jobs and, with the audit
// log enabled, a daily retention job.
func buildScheduler(cfg *config.Config, log *logging.Logger, p *pipeline.Pipeline, events audit.Repository) (*scheduler.Scheduler, error) {
	sched := scheduler.New()
	sched.SetLogger(log.With("component", "scheduler"))

	for _, job := range cfg.Publish {
		if err := sched.AddPublishJob(job, p); err != nil {
			return nil, fmt.Errorf("scheduling %q: %w", job.Name, err)
		}
	}

	if events != nil && cfg.Database.RetentionDays > 0 {
		retention := time.Duration(cfg.Database.RetentionDays) * 24 * time.Hour
		err := sched.Add(pruneJobName, "@daily", func(ctx context.Context) error {
			n, err := events.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				return err
			}
			log.Info("delivery events pruned", "removed", n)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scheduling %q: %w", pruneJobName, err)
		}
	}

	return sched, nil
}

// getConfigPath returns the configuration file path.
// Uses LINEPUSH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LINEPUSH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check (may be nil if disabled)
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - p: Pipeline whose destinations are pinged
//
// Returns:
//   - error: All failures joined, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, p *pipeline.Pipeline) error {
	var errs []error

	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mqtt: %w", err))
		}
	}

	if err := p.HealthCheck(ctx); err != nil {
		errs = append(errs, fmt.Errorf("influxdb: %w", err))
	}

	return errors.Join(errs...)
}
