package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/iota-import/internal/server"
	"github.com/iota-uz/iota-import/modules"
	"github.com/iota-uz/iota-import/modules/imports"
	"github.com/iota-uz/iota-import/modules/imports/infrastructure/progress"
	"github.com/iota-uz/iota-import/modules/imports/services"
	"github.com/iota-uz/iota-import/pkg/application"
	"github.com/iota-uz/iota-import/pkg/configuration"
	"github.com/iota-uz/iota-import/pkg/eventbus"
	"github.com/iota-uz/iota-import/pkg/logging"
	"github.com/iota-uz/iota-import/pkg/metrics"
	"github.com/iota-uz/iota-import/pkg/outbox"
	eventbusdispatcher "github.com/iota-uz/iota-import/pkg/outbox/dispatchers/eventbus"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	defer conf.Unload()
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(
			context.Background(),
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	progressStore, closeProgress, err := progress.Open(conf.RedisURL, conf.Import.ProgressTTL)
	if err != nil {
		panic(err)
	}
	defer func() { _ = closeProgress() }()

	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
	})
	importModule := imports.NewModule(&imports.ModuleOptions{
		Config: services.Config{
			ChunkSize:      conf.Import.ChunkSize,
			ErrorFlushSize: conf.Import.ErrorFlushSize,
			MappingWorkers: conf.Import.MappingWorkers,
			MaxFileBytes:   conf.Import.MaxFileBytes,
		},
		Progress: progressStore,
	})
	if err := modules.Load(app, importModule); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	startOutboxRelay(runCtx, conf, pool, logger, app.EventPublisher())

	serverInstance, err := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	})
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	log.Printf("Listening on: %s\n", conf.SocketAddress)
	if err := serverInstance.Serve(runCtx, conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

func startOutboxRelay(
	ctx context.Context,
	conf *configuration.Configuration,
	pool *pgxpool.Pool,
	logger *logrus.Logger,
	bus eventbus.EventBus,
) {
	outboxLog := logger.WithField("component", "outbox")
	if !conf.Outbox.RelayEnabled {
		outboxLog.Info("outbox: relay disabled")
		return
	}
	eb, ok := bus.(eventbus.EventBusWithError)
	if !ok {
		outboxLog.Warn("outbox: eventbus does not support PublishE; relay not started")
		return
	}
	store, err := outbox.NewPgStore(pool, imports.OutboxTable)
	if err != nil {
		outboxLog.WithError(err).Warn("outbox: failed to create store")
		return
	}
	relay, err := outbox.NewRelay(store, eventbusdispatcher.New(eb), outbox.RelayOptions{
		PollInterval:    conf.Outbox.RelayPollInterval,
		BatchSize:       conf.Outbox.RelayBatchSize,
		LockTTL:         conf.Outbox.RelayLockTTL,
		MaxAttempts:     conf.Outbox.RelayMaxAttempts,
		LastErrorMaxLen: conf.Outbox.LastErrorMaxBytes,
		DispatchTimeout: conf.Outbox.RelayDispatchTimeout,
		Logger:          outboxLog.WithField("table", outbox.TableLabel(imports.OutboxTable)),
	})
	if err != nil {
		outboxLog.WithError(err).Warn("outbox: failed to create relay")
		return
	}
	go func() {
		if err := relay.Run(ctx); err != nil && ctx.Err() == nil {
			outboxLog.WithError(err).Error("outbox: relay stopped")
		}
	}()
}
