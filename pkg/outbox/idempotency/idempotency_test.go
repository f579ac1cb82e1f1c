package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	setNXResult bool
	setNXErr    error

	setKey     string
	setTTL     time.Duration
	deletedKey string
}

func (s *recordingStore) Get(context.Context, string) (string, error) { return "", nil }

func (s *recordingStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	s.setKey = key
	s.setTTL = ttl
	return s.setNXResult, s.setNXErr
}

func (s *recordingStore) IdempotencyKey(scope, id string) string {
	return "rt:idempotency:" + scope + ":" + id
}

func (s *recordingStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		s.deletedKey = keys[0]
	}
	return nil
}

func newManagerForTest(t *testing.T, store *recordingStore, ttl time.Duration) *Manager {
	t.Helper()
	manager, err := NewManager(store, ttl)
	require.NoError(t, err)
	return manager
}

func TestCheckAndMarkProcessedFirstDelivery(t *testing.T) {
	store := &recordingStore{setNXResult: true}
	manager := newManagerForTest(t, store, 24*time.Hour)

	eventID := uuid.New()
	already, err := manager.CheckAndMarkProcessed(context.Background(), "settlement-worker", eventID)
	require.NoError(t, err)
	assert.False(t, already)
	assert.Equal(t, "rt:idempotency:evt:processed:settlement-worker:"+eventID.String(), store.setKey)
	assert.Equal(t, 24*time.Hour, store.setTTL)
}

func TestCheckAndMarkProcessedRedelivery(t *testing.T) {
	manager := newManagerForTest(t, &recordingStore{setNXResult: false}, time.Hour)

	already, err := manager.CheckAndMarkProcessed(context.Background(), "settlement-worker", uuid.New())
	require.NoError(t, err)
	assert.True(t, already)
}

func TestCheckAndMarkProcessedStoreError(t *testing.T) {
	manager := newManagerForTest(t, &recordingStore{setNXErr: errors.New("redis down")}, time.Hour)

	_, err := manager.CheckAndMarkProcessed(context.Background(), "settlement-worker", uuid.New())
	assert.Error(t, err)
}

func TestCheckAndMarkProcessedRejectsBadKeyParts(t *testing.T) {
	manager := newManagerForTest(t, &recordingStore{}, time.Hour)

	_, err := manager.CheckAndMarkProcessed(context.Background(), "", uuid.New())
	assert.Error(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "settlement-worker", uuid.Nil)
	assert.Error(t, err)
}

func TestDeleteClearsProcessedMarker(t *testing.T) {
	store := &recordingStore{}
	manager := newManagerForTest(t, store, time.Hour)

	eventID := uuid.New()
	require.NoError(t, manager.Delete(context.Background(), "settlement-worker", eventID))
	assert.Equal(t, "rt:idempotency:evt:processed:settlement-worker:"+eventID.String(), store.deletedKey)
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)

	_, err = NewManager(&recordingStore{}, -time.Second)
	assert.Error(t, err)
}
