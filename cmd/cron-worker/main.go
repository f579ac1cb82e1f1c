package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/routong/routong-backend/internal/contracts"
	"github.com/routong/routong-backend/internal/cron"
	"github.com/routong/routong-backend/internal/ledger"
	"github.com/routong/routong-backend/internal/notifications"
	"github.com/routong/routong-backend/internal/purchases"
	"github.com/routong/routong-backend/internal/settlement"
	"github.com/routong/routong-backend/pkg/appstore"
	"github.com/routong/routong-backend/pkg/config"
	"github.com/routong/routong-backend/pkg/db"
	"github.com/routong/routong-backend/pkg/logger"
	"github.com/routong/routong-backend/pkg/metrics"
	"github.com/routong/routong-backend/pkg/migrate"
	"github.com/routong/routong-backend/pkg/outbox"
	"github.com/routong/routong-backend/pkg/redis"
)

const lockKeyFormat = "rt:cron-worker:lock:%s:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	settlementService, err := buildSettlementService(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build settlement service", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	expiryJob, err := cron.NewContractExpiryJob(cron.ContractExpiryJobParams{
		Logger:     logg,
		Settlement: settlementService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create contract expiry job", err)
		os.Exit(1)
	}
	sweepRegistry := cron.NewRegistry()
	sweepRegistry.Register(expiryJob)

	sweepService, err := newCronService(cfg, logg, redisClient, metricsCollector, "sweep", sweepRegistry, cron.ServiceParams{
		Interval: cfg.Settlement.SweepInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep service", err)
		os.Exit(1)
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(dbClient.DB()),
		Retention:   cfg.Outbox.RetentionDays,
		MinAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox retention job", err)
		os.Exit(1)
	}
	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cfg.Notifications.RetentionDays,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification cleanup job", err)
		os.Exit(1)
	}
	maintenanceRegistry := cron.NewRegistry()
	maintenanceRegistry.Register(retentionJob)
	maintenanceRegistry.Register(cleanupJob)

	maintenanceService, err := newCronService(cfg, logg, redisClient, metricsCollector, "maintenance", maintenanceRegistry, cron.ServiceParams{})
	if err != nil {
		logg.Error(context.Background(), "failed to create maintenance service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	errCh := make(chan error, 2)
	go func() {
		errCh <- sweepService.Run(ctx)
	}()
	go func() {
		errCh <- maintenanceService.Run(ctx)
	}()

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildSettlementService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (settlement.Service, error) {
	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		return nil, err
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	contractService, err := contracts.NewService(
		contracts.NewRepository(dbClient.DB()),
		ledgerService,
		outboxService,
		contracts.NewSelfReportAdjudicator(),
		dbClient,
		logg,
	)
	if err != nil {
		return nil, err
	}

	storeClient, err := appstore.NewClient(cfg.AppStore, logg)
	if err != nil {
		return nil, err
	}
	purchaseService, err := purchases.NewService(ledgerService, storeClient, outboxService, dbClient, logg)
	if err != nil {
		return nil, err
	}

	return settlement.NewService(
		ledgerService,
		contractService,
		purchaseService,
		metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		cfg.Settlement.SweepBatchSize,
	)
}

func newCronService(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	metricsCollector *metrics.CronJobMetrics,
	name string,
	registry *cron.Registry,
	params cron.ServiceParams,
) (*cron.Service, error) {
	lock, err := cron.NewRedisLock(redisClient, lockKey(name, cfg.App.Env), 0)
	if err != nil {
		return nil, err
	}
	params.Logger = logg
	params.Registry = registry
	params.Lock = lock
	params.Metrics = metricsCollector
	return cron.NewService(params)
}

func lockKey(name, env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, name, env)
}
