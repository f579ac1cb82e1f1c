package purchases

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/routong/routong-backend/pkg/db/models"
	pkgerrors "github.com/routong/routong-backend/pkg/errors"
	"github.com/routong/routong-backend/pkg/logger"
	"github.com/routong/routong-backend/pkg/outbox/idempotency"
)

type stubReceiptService struct {
	submitted []string
	err       error
}

func (s *stubReceiptService) SubmitReceipt(ctx context.Context, userID uuid.UUID, receiptData string) (*models.WalletTransaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.submitted = append(s.submitted, receiptData)
	return &models.WalletTransaction{ID: uuid.New()}, nil
}

func (s *stubReceiptService) Reconcile(ctx context.Context, walletID uuid.UUID, receipt Receipt) (*models.WalletTransaction, error) {
	return nil, nil
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

func newTestPurchaseConsumer(t *testing.T, svc Service) *Consumer {
	t.Helper()
	manager, err := idempotency.NewManager(&memoryIdempotencyStore{}, time.Hour)
	require.NoError(t, err)
	return &Consumer{
		svc:         svc,
		idempotency: manager,
		logg:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	}
}

func buildStoreMessage(t *testing.T, notification StoreNotification) *pubsub.Message {
	t.Helper()
	data, err := json.Marshal(notification)
	require.NoError(t, err)
	return &pubsub.Message{ID: uuid.NewString(), Data: data}
}

func TestStoreNotificationReconciles(t *testing.T) {
	svc := &stubReceiptService{}
	consumer := newTestPurchaseConsumer(t, svc)

	msg := buildStoreMessage(t, StoreNotification{
		NotificationID: uuid.NewString(),
		UserID:         uuid.NewString(),
		ReceiptData:    "opaque-blob",
	})
	result := consumer.process(context.Background(), msg)

	assert.True(t, result.ack)
	require.Len(t, svc.submitted, 1)
	assert.Equal(t, "opaque-blob", svc.submitted[0])
}

func TestStoreNotificationDeduped(t *testing.T) {
	svc := &stubReceiptService{}
	consumer := newTestPurchaseConsumer(t, svc)

	notification := StoreNotification{
		NotificationID: uuid.NewString(),
		UserID:         uuid.NewString(),
		ReceiptData:    "opaque-blob",
	}
	first := consumer.process(context.Background(), buildStoreMessage(t, notification))
	second := consumer.process(context.Background(), buildStoreMessage(t, notification))

	assert.True(t, first.ack)
	assert.True(t, second.ack)
	assert.Len(t, svc.submitted, 1)
}

func TestStoreNotificationBadReceiptAcked(t *testing.T) {
	svc := &stubReceiptService{err: pkgerrors.New(pkgerrors.CodeUnverifiedReceipt, "receipt rejected by store")}
	consumer := newTestPurchaseConsumer(t, svc)

	msg := buildStoreMessage(t, StoreNotification{
		NotificationID: uuid.NewString(),
		UserID:         uuid.NewString(),
		ReceiptData:    "bogus",
	})
	result := consumer.process(context.Background(), msg)

	assert.True(t, result.ack)
	assert.False(t, result.nack)
}

func TestStoreNotificationClaimedReceiptAcked(t *testing.T) {
	svc := &stubReceiptService{err: pkgerrors.New(pkgerrors.CodeConflict, "receipt already credited to another wallet")}
	consumer := newTestPurchaseConsumer(t, svc)

	msg := buildStoreMessage(t, StoreNotification{
		NotificationID: uuid.NewString(),
		UserID:         uuid.NewString(),
		ReceiptData:    "opaque-blob",
	})
	result := consumer.process(context.Background(), msg)

	assert.True(t, result.ack)
	assert.False(t, result.nack)
}

func TestStoreNotificationTransientFailureNacked(t *testing.T) {
	svc := &stubReceiptService{err: pkgerrors.New(pkgerrors.CodeDependency, "database unavailable")}
	consumer := newTestPurchaseConsumer(t, svc)

	notification := StoreNotification{
		NotificationID: uuid.NewString(),
		UserID:         uuid.NewString(),
		ReceiptData:    "opaque-blob",
	}
	result := consumer.process(context.Background(), buildStoreMessage(t, notification))
	assert.True(t, result.nack)

	// Idempotency mark was rolled back, so redelivery goes through.
	svc.err = nil
	retry := consumer.process(context.Background(), buildStoreMessage(t, notification))
	assert.True(t, retry.ack)
	assert.Len(t, svc.submitted, 1)
}

func TestStoreNotificationMalformedAcked(t *testing.T) {
	consumer := newTestPurchaseConsumer(t, &stubReceiptService{})

	msg := &pubsub.Message{ID: uuid.NewString(), Data: []byte("not-json")}
	result := consumer.process(context.Background(), msg)

	assert.True(t, result.ack)
}
