package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/routong/routong-backend/api/routes"
	"github.com/routong/routong-backend/internal/auth"
	"github.com/routong/routong-backend/internal/contracts"
	"github.com/routong/routong-backend/internal/ledger"
	"github.com/routong/routong-backend/internal/notifications"
	"github.com/routong/routong-backend/internal/purchases"
	"github.com/routong/routong-backend/internal/settlement"
	"github.com/routong/routong-backend/internal/shop"
	"github.com/routong/routong-backend/internal/users"
	"github.com/routong/routong-backend/pkg/appstore"
	"github.com/routong/routong-backend/pkg/auth/session"
	"github.com/routong/routong-backend/pkg/config"
	"github.com/routong/routong-backend/pkg/db"
	"github.com/routong/routong-backend/pkg/logger"
	"github.com/routong/routong-backend/pkg/metrics"
	"github.com/routong/routong-backend/pkg/migrate"
	"github.com/routong/routong-backend/pkg/outbox"
	"github.com/routong/routong-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(dbClient.DB()),
		UserRepoWithTx: func(tx *gorm.DB) auth.UserRepository { return users.NewRepository(tx) },
		Ledger:         ledgerService,
		SessionManager: sessionManager,
		TxRunner:       dbClient,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
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
		logg.Error(context.Background(), "failed to create contract service", err)
		os.Exit(1)
	}

	storeClient, err := appstore.NewClient(cfg.AppStore, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create app store client", err)
		os.Exit(1)
	}

	purchaseService, err := purchases.NewService(ledgerService, storeClient, outboxService, dbClient, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(
		ledgerService,
		contractService,
		purchaseService,
		metrics.NewSettlementMetrics(prometheus.DefaultRegisterer),
		cfg.Settlement.SweepBatchSize,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	shopService, err := shop.NewService(ledgerService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create shop service", err)
		os.Exit(1)
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notification service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			sessionManager,
			authService,
			settlementService,
			shopService,
			notificationService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
