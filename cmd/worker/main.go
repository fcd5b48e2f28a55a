package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tracebridge-backend/internal/audit"
	"github.com/angelmondragon/tracebridge-backend/internal/notifications"
	"github.com/angelmondragon/tracebridge-backend/pkg/bigquery"
	"github.com/angelmondragon/tracebridge-backend/pkg/config"
	"github.com/angelmondragon/tracebridge-backend/pkg/db"
	"github.com/angelmondragon/tracebridge-backend/pkg/instance"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/metrics"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox/registry"
	"github.com/angelmondragon/tracebridge-backend/pkg/pubsub"
	"github.com/angelmondragon/tracebridge-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(context.Background(), "worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers = append(closers, dbClient)

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	closers = append(closers, redisClient)

	pubsubClient, err := pubsub.NewClient(bootCtx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	closers = append(closers, pubsubClient)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}
	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	consumerMetrics := metrics.NewOutboxMetrics(reg)

	deps := map[string]func(context.Context) error{
		"database": dbClient.Ping,
		"redis":    redisClient.Ping,
		"pubsub":   pubsubClient.Ping,
	}

	auditParams := audit.ConsumerParams{
		Repo:         audit.NewRepository(dbClient.DB()),
		Decoders:     eventRegistry.Decoders(),
		Idempotency:  manager,
		Subscription: pubsubClient.AuditSubscription(),
		Metrics:      consumerMetrics,
		Logger:       logg,
	}
	if cfg.FeatureFlags.AuditToBQ {
		bqClient, err := bigquery.NewClient(bootCtx, cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			return err
		}
		closers = append(closers, bqClient)
		if cfg.BigQuery.CreateTable {
			if err := bqClient.EnsureAuditTable(bootCtx, audit.Schema(), audit.PartitionField); err != nil {
				return err
			}
		}
		auditParams.Sink = bqClient
		deps["bigquery"] = bqClient.Ping
	}
	auditConsumer, err := audit.NewConsumer(auditParams)
	if err != nil {
		return err
	}

	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Mailer:       notifications.NewLogMailer(logg),
		Decoders:     eventRegistry.Decoders(),
		Idempotency:  manager,
		Subscription: pubsubClient.NotificationSubscription(),
		Metrics:      consumerMetrics,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Logger:       logg,
		Dependencies: deps,
		Consumers: map[string]consumer{
			audit.ConsumerName:         auditConsumer,
			notifications.ConsumerName: dispatcher,
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID("worker-0"),
	})

	metricsServer := metrics.Serve(ctx, logg, cfg.App.Port, reg)
	defer func() {
		err = multierr.Append(err, metrics.Shutdown(metricsServer))
	}()

	logg.Info(ctx, "starting worker")
	if err := service.Run(ctx); err != nil {
		return err
	}
	logg.Info(ctx, "worker shutting down gracefully")
	return nil
}
