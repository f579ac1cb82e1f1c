package purchases

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	pkgerrors "github.com/routong/routong-backend/pkg/errors"
	"github.com/routong/routong-backend/pkg/logger"
	"github.com/routong/routong-backend/pkg/outbox/idempotency"
)

const purchaseReconcilerConsumer = "purchase-reconciler"

// StoreNotification is the store's server-to-server purchase update. The
// receipt blob inside goes through the same verification path as a
// client-submitted receipt.
type StoreNotification struct {
	NotificationID string `json:"notification_id"`
	UserID         string `json:"user_id"`
	ReceiptData    string `json:"receipt_data"`
}

// Consumer reconciles purchase updates pushed by the store backend, crediting
// wallets for purchases the client never reported.
type Consumer struct {
	svc          Service
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds a purchase update consumer.
func NewConsumer(svc Service, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if svc == nil {
		return nil, fmt.Errorf("purchase service required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("purchase subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		svc:          svc,
		subscription: subscription,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
	})

	var notification StoreNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		c.logg.Error(logCtx, "failed to decode store notification", err)
		return processResult{ack: true}
	}

	notificationID, err := uuid.Parse(notification.NotificationID)
	if err != nil {
		c.logg.Error(logCtx, "invalid notification id", err)
		return processResult{ack: true}
	}

	userID, err := uuid.Parse(notification.UserID)
	if err != nil {
		c.logg.Error(logCtx, "invalid user id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, purchaseReconcilerConsumer, notificationID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "store notification already processed")
		return processResult{ack: true}
	}

	if _, err := c.svc.SubmitReceipt(ctx, userID, notification.ReceiptData); err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeUnverifiedReceipt) ||
			pkgerrors.HasCode(err, pkgerrors.CodeValidation) ||
			pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
			// Retrying a bad or already-claimed receipt never helps.
			c.logg.Error(logCtx, "store notification rejected", err)
			return processResult{ack: true}
		}
		c.logg.Error(logCtx, "purchase reconciliation failed", err)
		_ = c.idempotency.Delete(ctx, purchaseReconcilerConsumer, notificationID)
		return processResult{nack: true}
	}

	c.logg.Info(logCtx, "store notification reconciled")
	return processResult{ack: true}
}
