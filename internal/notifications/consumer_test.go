package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routong/routong-backend/pkg/db/models"
	"github.com/routong/routong-backend/pkg/enums"
	"github.com/routong/routong-backend/pkg/logger"
	"github.com/routong/routong-backend/pkg/outbox"
	"github.com/routong/routong-backend/pkg/outbox/idempotency"
	"github.com/routong/routong-backend/pkg/outbox/payloads"
)

type stubNotificationRepo struct {
	created []*models.Notification
	err     error
}

func (s *stubNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.created = append(s.created, notification)
	return nil
}

type stubGateway struct {
	sent []ShameMessage
	err  error
}

func (s *stubGateway) SendShame(ctx context.Context, msg ShameMessage) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type memoryIdempotencyStore struct {
	keys map[string]bool
}

func (m *memoryIdempotencyStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (m *memoryIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "rt:idempotency:" + scope + ":" + id
}

func (m *memoryIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

func newTestConsumer(t *testing.T, repo repository, gateway Gateway) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(&memoryIdempotencyStore{}, time.Hour)
	require.NoError(t, err)
	return &Consumer{
		repo:        repo,
		gateway:     gateway,
		idempotency: manager,
		decoders:    settlementDecoders(),
		logg:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
}

func buildMessage(t *testing.T, eventType enums.OutboxEventType, payload any) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return &pubsub.Message{
		ID:         uuid.NewString(),
		Attributes: map[string]string{"event_type": string(eventType)},
		Data:       envelope,
	}
}

func TestConsumerSendsShameOnPunishedContract(t *testing.T) {
	t.Parallel()

	repo := &stubNotificationRepo{}
	gateway := &stubGateway{}
	consumer := newTestConsumer(t, repo, gateway)

	ownerID := uuid.New()
	msg := buildMessage(t, enums.EventContractPunished, payloads.ContractPunishedEvent{
		ContractID:        uuid.New(),
		OwnerID:           ownerID,
		Title:             "run every morning",
		PledgeAmount:      decimal.RequireFromString("50"),
		ShameTargetName:   "Wei",
		ShameTargetPhone:  "+8613800138000",
		ShameRelationship: enums.ShameRelationshipFriend,
		PunishedAt:        time.Now().UTC(),
	})

	result := consumer.process(context.Background(), msg)

	assert.True(t, result.ack)
	require.Len(t, gateway.sent, 1)
	assert.Equal(t, "+8613800138000", gateway.sent[0].Phone)
	assert.Contains(t, gateway.sent[0].Body, "run every morning")
	require.Len(t, repo.created, 1)
	assert.Equal(t, ownerID, repo.created[0].UserID)
	assert.Equal(t, enums.NotificationTypeShame, repo.created[0].Type)
}

func TestConsumerRecordsCompletionWithoutSMS(t *testing.T) {
	t.Parallel()

	repo := &stubNotificationRepo{}
	gateway := &stubGateway{}
	consumer := newTestConsumer(t, repo, gateway)

	msg := buildMessage(t, enums.EventContractCompleted, payloads.ContractCompletedEvent{
		ContractID:   uuid.New(),
		OwnerID:      uuid.New(),
		Title:        "ship the release",
		PledgeAmount: decimal.RequireFromString("20"),
		RewardPoints: 10,
		CompletedAt:  time.Now().UTC(),
	})

	result := consumer.process(context.Background(), msg)

	assert.True(t, result.ack)
	assert.Empty(t, gateway.sent)
	require.Len(t, repo.created, 1)
	assert.Equal(t, enums.NotificationTypeSettlement, repo.created[0].Type)
}

func TestConsumerSkipsDuplicateEvent(t *testing.T) {
	t.Parallel()

	repo := &stubNotificationRepo{}
	gateway := &stubGateway{}
	consumer := newTestConsumer(t, repo, gateway)

	msg := buildMessage(t, enums.EventContractPunished, payloads.ContractPunishedEvent{
		OwnerID:          uuid.New(),
		Title:            "quit smoking",
		PledgeAmount:     decimal.RequireFromString("30"),
		ShameTargetName:  "Mom",
		ShameTargetPhone: "+8613900139000",
	})

	first := consumer.process(context.Background(), msg)
	second := consumer.process(context.Background(), msg)

	assert.True(t, first.ack)
	assert.True(t, second.ack)
	assert.Len(t, gateway.sent, 1)
	assert.Len(t, repo.created, 1)
}

func TestConsumerNacksWhenGatewayFails(t *testing.T) {
	t.Parallel()

	repo := &stubNotificationRepo{}
	gateway := &stubGateway{err: errors.New("provider down")}
	consumer := newTestConsumer(t, repo, gateway)

	msg := buildMessage(t, enums.EventContractPunished, payloads.ContractPunishedEvent{
		OwnerID:          uuid.New(),
		Title:            "write daily",
		PledgeAmount:     decimal.RequireFromString("10"),
		ShameTargetName:  "Lin",
		ShameTargetPhone: "+8613700137000",
	})

	result := consumer.process(context.Background(), msg)
	assert.True(t, result.nack)
	assert.Empty(t, repo.created)

	// redelivery succeeds once the provider recovers
	gateway.err = nil
	retry := consumer.process(context.Background(), msg)
	assert.True(t, retry.ack)
	assert.Len(t, gateway.sent, 1)
	assert.Len(t, repo.created, 1)
}

func TestConsumerIgnoresUnrelatedEvents(t *testing.T) {
	t.Parallel()

	repo := &stubNotificationRepo{}
	gateway := &stubGateway{}
	consumer := newTestConsumer(t, repo, gateway)

	msg := buildMessage(t, enums.EventPurchaseCredited, payloads.PurchaseCreditedEvent{
		WalletID:  uuid.New(),
		ReceiptID: "1000000123",
		NetAmount: decimal.RequireFromString("12.60"),
	})

	result := consumer.process(context.Background(), msg)
	assert.True(t, result.ack)
	assert.Empty(t, gateway.sent)
	assert.Empty(t, repo.created)
}
