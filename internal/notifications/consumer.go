package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/routong/routong-backend/pkg/db/models"
	"github.com/routong/routong-backend/pkg/enums"
	"github.com/routong/routong-backend/pkg/logger"
	"github.com/routong/routong-backend/pkg/outbox"
	"github.com/routong/routong-backend/pkg/outbox/idempotency"
	"github.com/routong/routong-backend/pkg/outbox/payloads"
	"github.com/routong/routong-backend/pkg/outbox/registry"
)

const settlementNotificationConsumer = "settlement-notifications"

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Consumer watches domain events and turns contract settlements into feed
// entries and, for punished contracts, the shame SMS.
type Consumer struct {
	repo         repository
	gateway      Gateway
	subscription *pubsub.Subscriber
	idempotency  *idempotency.Manager
	decoders     *registry.DecoderRegistry
	logg         *logger.Logger
}

// settlementDecoders registers the payload versions this consumer can read.
func settlementDecoders() *registry.DecoderRegistry {
	decoders := registry.NewDecoderRegistry()
	decoders.Register(enums.EventContractCompleted, 1, func(data json.RawMessage) (interface{}, error) {
		var payload payloads.ContractCompletedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return &payload, nil
	})
	decoders.Register(enums.EventContractPunished, 1, func(data json.RawMessage) (interface{}, error) {
		var payload payloads.ContractPunishedEvent
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return &payload, nil
	})
	return decoders
}

// NewConsumer builds a settlement notification consumer.
func NewConsumer(repo repository, gateway Gateway, subscription *pubsub.Subscriber, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if gateway == nil {
		return nil, fmt.Errorf("sms gateway required")
	}
	if subscription == nil {
		return nil, fmt.Errorf("domain subscription required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		repo:         repo,
		gateway:      gateway,
		subscription: subscription,
		idempotency:  manager,
		decoders:     settlementDecoders(),
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
	eventType := msg.Attributes["event_type"]
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	}
	logCtx := c.logg.WithFields(ctx, fields)

	if eventType != string(enums.EventContractCompleted) && eventType != string(enums.EventContractPunished) {
		c.logg.Info(logCtx, "skipping non-settlement event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "invalid event id", err)
		return processResult{ack: true}
	}

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, settlementNotificationConsumer, eventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.handleEnvelope(ctx, eventType, envelope, logCtx); err != nil {
		c.logg.Error(logCtx, "notification handling failed", err)
		_ = c.idempotency.Delete(ctx, settlementNotificationConsumer, eventID)
		return processResult{nack: true}
	}

	return processResult{ack: true}
}

func (c *Consumer) handleEnvelope(ctx context.Context, eventType string, envelope outbox.PayloadEnvelope, logCtx context.Context) error {
	decoded, err := c.decoders.Decode(enums.OutboxEventType(eventType), envelope.Version, envelope.Data)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", eventType, err)
	}
	switch payload := decoded.(type) {
	case *payloads.ContractCompletedEvent:
		return c.handleCompleted(ctx, *payload, logCtx)
	case *payloads.ContractPunishedEvent:
		return c.handlePunished(ctx, *payload, logCtx)
	default:
		return nil
	}
}

func (c *Consumer) handleCompleted(ctx context.Context, payload payloads.ContractCompletedEvent, logCtx context.Context) error {
	if payload.OwnerID == uuid.Nil {
		return fmt.Errorf("owner id missing")
	}

	message := fmt.Sprintf("You completed %q. Your pledge of %s is back in your wallet and you earned %d points.",
		payload.Title, payload.PledgeAmount.StringFixed(2), payload.RewardPoints)
	if payload.RevivedCard {
		message = fmt.Sprintf("Your revive card saved %q. Your pledge of %s is back in your wallet.",
			payload.Title, payload.PledgeAmount.StringFixed(2))
	}

	notification := &models.Notification{
		UserID:  payload.OwnerID,
		Type:    enums.NotificationTypeSettlement,
		Title:   "Contract completed",
		Message: message,
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "completion notification recorded")
	return nil
}

func (c *Consumer) handlePunished(ctx context.Context, payload payloads.ContractPunishedEvent, logCtx context.Context) error {
	if payload.OwnerID == uuid.Nil {
		return fmt.Errorf("owner id missing")
	}
	if payload.ShameTargetPhone == "" {
		return fmt.Errorf("shame target phone missing")
	}

	shame := ShameMessage{
		Phone:     payload.ShameTargetPhone,
		Recipient: payload.ShameTargetName,
		Body: fmt.Sprintf("Your %s gave up on their commitment %q and forfeited %s. They asked us to tell you if they failed.",
			payload.ShameRelationship, payload.Title, payload.PledgeAmount.StringFixed(2)),
	}
	if err := c.gateway.SendShame(ctx, shame); err != nil {
		return err
	}

	notification := &models.Notification{
		UserID: payload.OwnerID,
		Type:   enums.NotificationTypeShame,
		Title:  "Contract failed",
		Message: fmt.Sprintf("You missed the deadline for %q. Your pledge of %s was forfeited and %s was notified.",
			payload.Title, payload.PledgeAmount.StringFixed(2), payload.ShameTargetName),
	}
	if err := c.repo.Create(ctx, notification); err != nil {
		return err
	}
	c.logg.Info(logCtx, "shame notification sent")
	return nil
}
