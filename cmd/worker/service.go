package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/routong/routong-backend/internal/notifications"
	"github.com/routong/routong-backend/internal/purchases"
	"github.com/routong/routong-backend/pkg/config"
	"github.com/routong/routong-backend/pkg/db"
	"github.com/routong/routong-backend/pkg/logger"
	"github.com/routong/routong-backend/pkg/pubsub"
	"github.com/routong/routong-backend/pkg/redis"
)

type ServiceParams struct {
	Config               *config.Config
	Logger               *logger.Logger
	DB                   *db.Client
	Redis                *redis.Client
	PubSub               *pubsub.Client
	NotificationConsumer *notifications.Consumer
	PurchaseConsumer     *purchases.Consumer
}

// Service runs the subscription consumers and keeps them tied to one context.
type Service struct {
	cfg                  *config.Config
	logg                 *logger.Logger
	db                   *db.Client
	redis                *redis.Client
	pubsub               *pubsub.Client
	notificationConsumer *notifications.Consumer
	purchaseConsumer     *purchases.Consumer
}

func NewService(params ServiceParams) (*Service, error) {
	required := []struct {
		name string
		ok   bool
	}{
		{"config", params.Config != nil},
		{"logger", params.Logger != nil},
		{"database client", params.DB != nil},
		{"redis client", params.Redis != nil},
		{"pubsub client", params.PubSub != nil},
		{"notification consumer", params.NotificationConsumer != nil},
		{"purchase consumer", params.PurchaseConsumer != nil},
	}
	for _, dep := range required {
		if !dep.ok {
			return nil, fmt.Errorf("%s is required", dep.name)
		}
	}

	return &Service{
		cfg:                  params.Config,
		logg:                 params.Logger,
		db:                   params.DB,
		redis:                params.Redis,
		pubsub:               params.PubSub,
		notificationConsumer: params.NotificationConsumer,
		purchaseConsumer:     params.PurchaseConsumer,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	pings := []struct {
		name string
		ping func(context.Context) error
	}{
		{"database", s.db.Ping},
		{"redis", s.redis.Ping},
		{"pubsub", s.pubsub.Ping},
	}
	for _, dep := range pings {
		if err := dep.ping(ctx); err != nil {
			s.logg.Error(ctx, fmt.Sprintf("%s ping failed", dep.name), err)
			return fmt.Errorf("%s ping failed: %w", dep.name, err)
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

// Run blocks until the context is canceled or a consumer exits. A consumer
// exiting for any reason other than cancellation is treated as fatal so the
// process restarts clean.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	consumers := []func(context.Context) error{
		s.notificationConsumer.Run,
		s.purchaseConsumer.Run,
	}
	errCh := make(chan error, len(consumers))
	for _, run := range consumers {
		run := run
		go func() {
			errCh <- run(ctx)
		}()
	}

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		return ctx.Err()
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "consumer stopped unexpectedly", err)
		}
		return err
	}
}
