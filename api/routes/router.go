package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/routong/routong-backend/api/controllers"
	"github.com/routong/routong-backend/api/middleware"
	"github.com/routong/routong-backend/internal/auth"
	"github.com/routong/routong-backend/internal/notifications"
	"github.com/routong/routong-backend/internal/settlement"
	"github.com/routong/routong-backend/internal/shop"
	"github.com/routong/routong-backend/pkg/auth/session"
	"github.com/routong/routong-backend/pkg/config"
	"github.com/routong/routong-backend/pkg/db"
	"github.com/routong/routong-backend/pkg/logger"
	"github.com/routong/routong-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	authService auth.Service,
	settlementService settlement.Service,
	shopService shop.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginPhoneLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterPhoneLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AuthRegister(authService, logg))
		r.Post("/refresh", controllers.AuthRefresh(authService, logg))
		r.Post("/logout", controllers.AuthLogout(authService, cfg.JWT, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/contracts", func(r chi.Router) {
			r.Get("/", controllers.ContractList(settlementService, logg))
			r.Post("/", controllers.ContractCreate(settlementService, logg))
			r.Get("/{contractId}", controllers.ContractDetail(settlementService, logg))
			r.Post("/{contractId}/evidence", controllers.ContractSubmitEvidence(settlementService, logg))
		})

		r.Get("/v1/wallet", controllers.WalletOverview(settlementService, logg))

		r.Route("/v1/shop", func(r chi.Router) {
			r.Get("/", controllers.ShopCatalog(shopService, logg))
			r.Post("/purchase", controllers.ShopPurchase(shopService, logg))
		})

		r.Post("/v1/purchases/receipts", controllers.PurchaseSubmitReceipt(settlementService, logg))

		r.Route("/v1/notifications", func(r chi.Router) {
			r.Get("/", controllers.NotificationList(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.NotificationMarkRead(notificationsService, logg))
			r.Post("/read-all", controllers.NotificationMarkAllRead(notificationsService, logg))
		})
	})

	return r
}
