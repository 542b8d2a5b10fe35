package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/api-starter/internal/core/domain"
	"github.com/arklim/api-starter/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T, asyncProducer sarama.AsyncProducer) *EventPublisher {
	t.Helper()

	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "starter",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	return NewEventPublisher(producer, config.AppSettings{
		Name: "api-starter",
		Env:  "test",
	}, zaptest.NewLogger(t))
}

func receiveMessage(t *testing.T, asyncProducer *fakeAsyncProducer) *sarama.ProducerMessage {
	t.Helper()

	select {
	case msg := <-asyncProducer.input:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
		return nil
	}
}

func decodeEnvelope(t *testing.T, msg *sarama.ProducerMessage) map[string]any {
	t.Helper()

	bytes, err := msg.Value.Encode()
	if err != nil {
		t.Fatalf("Value.Encode returned error: %v", err)
	}

	var envelope map[string]any
	if err := json.Unmarshal(bytes, &envelope); err != nil {
		t.Fatalf("failed to unmarshal envelope: %v", err)
	}
	return envelope
}

func TestPublishUserRegistered(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	ip := "192.0.2.10"
	registeredAt := time.Date(2025, 10, 31, 12, 0, 0, 0, time.UTC)
	event := domain.UserRegisteredEvent{
		EventID:      "event-123",
		UserID:       "user-789",
		Email:        "dana@example.com",
		Role:         "user",
		RegisteredAt: registeredAt,
		IPAddress:    &ip,
		Metadata:     map[string]any{"source": "unit-test"},
	}

	if err := publisher.PublishUserRegistered(context.Background(), event); err != nil {
		t.Fatalf("PublishUserRegistered returned error: %v", err)
	}

	msg := receiveMessage(t, asyncProducer)
	if msg.Topic != "starter.user.registered" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}

	envelope := decodeEnvelope(t, msg)
	if got := envelope["event_type"]; got != "user.registered" {
		t.Fatalf("unexpected event_type: %v", got)
	}
	if got := envelope["event_id"]; got != event.EventID {
		t.Fatalf("unexpected event_id: %v", got)
	}
	if got := envelope["user_id"]; got != event.UserID {
		t.Fatalf("unexpected user_id: %v", got)
	}
	if got := envelope["version"]; got != schemaVersion {
		t.Fatalf("unexpected version: %v", got)
	}

	timestamp, ok := envelope["timestamp"].(string)
	if !ok {
		t.Fatalf("timestamp not a string: %T", envelope["timestamp"])
	}
	if timestamp != registeredAt.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected timestamp: %s", timestamp)
	}

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if got := payload["email"]; got != event.Email {
		t.Fatalf("unexpected email: %v", got)
	}
	if got := payload["role"]; got != event.Role {
		t.Fatalf("unexpected role: %v", got)
	}
	if got := payload["ip_address"]; got != ip {
		t.Fatalf("unexpected ip_address: %v", got)
	}

	metadata, ok := payload["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("metadata not a map: %T", payload["metadata"])
	}
	if metadata["source"] != "unit-test" {
		t.Fatalf("metadata did not round-trip: %v", metadata)
	}

	envelopeMetadata, ok := envelope["metadata"].(map[string]any)
	if !ok {
		t.Fatalf("envelope metadata not a map: %T", envelope["metadata"])
	}
	if envelopeMetadata["service"] != "api-starter" {
		t.Fatalf("unexpected metadata service: %v", envelopeMetadata["service"])
	}
	if envelopeMetadata["environment"] != "test" {
		t.Fatalf("unexpected metadata environment: %v", envelopeMetadata["environment"])
	}
}

func TestPublishPermissionGranted(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	grantedAt := time.Date(2025, 11, 18, 8, 30, 0, 0, time.UTC)
	event := domain.PermissionGrantedEvent{
		EventID:        "evt-001",
		RoleID:         "role-123",
		RoleName:       "editor",
		PermissionName: "user:update",
		Actor:          "admin-user",
		GrantedAt:      grantedAt,
	}

	if err := publisher.PublishPermissionGranted(context.Background(), event); err != nil {
		t.Fatalf("PublishPermissionGranted returned error: %v", err)
	}

	msg := receiveMessage(t, asyncProducer)
	if msg.Topic != "starter.permission.granted" {
		t.Fatalf("unexpected topic: %s", msg.Topic)
	}

	envelope := decodeEnvelope(t, msg)
	if got := envelope["event_type"]; got != "permission.granted" {
		t.Fatalf("unexpected event_type: %v", got)
	}

	// The acting administrator rides in the envelope user slot.
	if got := envelope["user_id"]; got != event.Actor {
		t.Fatalf("unexpected user_id: %v", got)
	}

	payload, ok := envelope["payload"].(map[string]any)
	if !ok {
		t.Fatalf("payload not a map: %T", envelope["payload"])
	}
	if got := payload["role_id"]; got != event.RoleID {
		t.Fatalf("unexpected role_id: %v", got)
	}
	if got := payload["role_name"]; got != event.RoleName {
		t.Fatalf("unexpected role_name: %v", got)
	}
	if got := payload["permission_name"]; got != event.PermissionName {
		t.Fatalf("unexpected permission_name: %v", got)
	}
	if got := payload["actor"]; got != event.Actor {
		t.Fatalf("unexpected actor: %v", got)
	}
}

func TestPublishGeneratesEventIDWhenAbsent(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	event := domain.UserLoggedOutEvent{
		UserID:      "user-42",
		SessionID:   "session-9",
		LoggedOutAt: time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC),
	}

	if err := publisher.PublishUserLoggedOut(context.Background(), event); err != nil {
		t.Fatalf("PublishUserLoggedOut returned error: %v", err)
	}

	msg := receiveMessage(t, asyncProducer)
	envelope := decodeEnvelope(t, msg)

	eventID, ok := envelope["event_id"].(string)
	if !ok || eventID == "" {
		t.Fatalf("expected a generated event_id, got %v", envelope["event_id"])
	}
}
