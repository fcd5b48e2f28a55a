package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/tracebridge-backend/api/controllers"
	"github.com/angelmondragon/tracebridge-backend/api/routes"
	"github.com/angelmondragon/tracebridge-backend/internal/artifacts"
	"github.com/angelmondragon/tracebridge-backend/internal/certificates"
	"github.com/angelmondragon/tracebridge-backend/internal/clock"
	"github.com/angelmondragon/tracebridge-backend/internal/connections"
	"github.com/angelmondragon/tracebridge-backend/internal/contributions"
	"github.com/angelmondragon/tracebridge-backend/internal/dashboard"
	"github.com/angelmondragon/tracebridge-backend/internal/directory"
	products "github.com/angelmondragon/tracebridge-backend/internal/products"
	"github.com/angelmondragon/tracebridge-backend/internal/versions"
	"github.com/angelmondragon/tracebridge-backend/pkg/config"
	"github.com/angelmondragon/tracebridge-backend/pkg/db"
	"github.com/angelmondragon/tracebridge-backend/pkg/instance"
	"github.com/angelmondragon/tracebridge-backend/pkg/logger"
	"github.com/angelmondragon/tracebridge-backend/pkg/metrics"
	"github.com/angelmondragon/tracebridge-backend/pkg/migrate"
	"github.com/angelmondragon/tracebridge-backend/pkg/outbox"
	"github.com/angelmondragon/tracebridge-backend/pkg/redis"
	"github.com/angelmondragon/tracebridge-backend/pkg/storage/gcs"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	requireResource(bootCtx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	requireResource(bootCtx, logg, "dev migrations", migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient))

	redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
	requireResource(bootCtx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(bootCtx, cfg.GCS, cfg.GCP, logg)
	requireResource(bootCtx, logg, "gcs", err)
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing gcs", err)
		}
	}()

	reg := metrics.NewRegistry()
	workflowMetrics := metrics.NewWorkflowMetrics(reg)

	clk := clock.New()
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	directoryService, err := directory.NewService(directory.NewRepository(dbClient.DB()), redisClient, cfg.Workflow.DirectoryCacheTTL, logg)
	requireResource(bootCtx, logg, "directory service", err)

	artifactService, err := artifacts.NewService(artifacts.NewRepository(dbClient.DB()), gcsClient, clk, cfg.Artifacts, logg)
	requireResource(bootCtx, logg, "artifact service", err)

	connectionService, err := connections.NewService(connections.ServiceParams{
		Repo:      connections.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Directory: directoryService,
		Outbox:    emitter,
		Clock:     clk,
		Links:     cfg.App,
		Limiter:   redisClient,
		Metrics:   workflowMetrics,
		Logger:    logg,
		Workflow:  cfg.Workflow,
	})
	requireResource(bootCtx, logg, "connection service", err)

	contributionService, err := contributions.NewService(contributions.ServiceParams{
		Repo:      contributions.NewRepository(dbClient.DB()),
		Versions:  versions.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Artifacts: artifactService,
		Outbox:    emitter,
		Clock:     clk,
		Metrics:   workflowMetrics,
		Logger:    logg,
	})
	requireResource(bootCtx, logg, "contribution service", err)

	productService, err := products.NewService(products.NewRepository(dbClient.DB()), dbClient, emitter, clk)
	requireResource(bootCtx, logg, "product service", err)

	certificateService, err := certificates.NewService(certificates.NewRepository(dbClient.DB()), dbClient, clk, logg)
	requireResource(bootCtx, logg, "certificate service", err)

	dashboardService, err := dashboard.NewService(dashboard.NewRepository(dbClient.DB()), logg)
	requireResource(bootCtx, logg, "dashboard service", err)

	handler := routes.NewRouter(routes.Params{
		Config: cfg,
		Logger: logg,
		Redis:  redisClient,
		Readiness: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
			"gcs":      gcsClient,
		},
		Gatherer:      reg,
		HTTPMetrics:   metrics.NewHTTPMetrics(reg),
		Connections:   connectionService,
		Contributions: contributionService,
		Products:      productService,
		Directory:     directoryService,
		Certificates:  certificateService,
		Vault:         artifactService,
		Dashboard:     dashboardService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID("local"),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
		logg.Info(shutdownCtx, "api server stopped")
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to initialize "+name, err)
	os.Exit(1)
}
