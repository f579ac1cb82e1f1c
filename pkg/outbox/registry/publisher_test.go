package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/routong/routong-backend/pkg/config"
	"github.com/routong/routong-backend/pkg/db/models"
	"github.com/routong/routong-backend/pkg/enums"
	"github.com/routong/routong-backend/pkg/outbox"
	"github.com/routong/routong-backend/pkg/outbox/payloads"
)

func newTestRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "domain-events"})
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}
	return reg
}

func envelopeRow(t *testing.T, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, data interface{}) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	envelope := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       raw,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   uuid.New(),
		Payload:       payload,
	}
}

func TestResolveContractPunished(t *testing.T) {
	reg := newTestRegistry(t)
	row := envelopeRow(t, enums.EventContractPunished, enums.AggregateContract, payloads.ContractPunishedEvent{
		ContractID:       uuid.New(),
		Title:            "no sugar for a week",
		ShameTargetName:  "Wei",
		ShameTargetPhone: "+8613800000000",
	})

	resolved, err := reg.Resolve(row)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "domain-events" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	event, ok := resolved.Payload.(*payloads.ContractPunishedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if event.ShameTargetName != "Wei" {
		t.Fatalf("unexpected payload %+v", event)
	}
}

func TestResolveRejectsUnknownEventType(t *testing.T) {
	reg := newTestRegistry(t)
	row := envelopeRow(t, enums.OutboxEventType("order_created"), enums.AggregateContract, map[string]string{})

	_, err := reg.Resolve(row)
	if err == nil {
		t.Fatal("expected error")
	}
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestResolveRejectsAggregateMismatch(t *testing.T) {
	reg := newTestRegistry(t)
	row := envelopeRow(t, enums.EventPurchaseCredited, enums.AggregateContract, payloads.PurchaseCreditedEvent{})

	_, err := reg.Resolve(row)
	if err == nil {
		t.Fatal("expected error")
	}
	var nonRetryable NonRetryableError
	if !errors.As(err, &nonRetryable) {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}
