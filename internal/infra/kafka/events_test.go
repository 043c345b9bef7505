package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/infra/config"
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

func newTestPublisher(t *testing.T) (*EventPublisher, *fakeAsyncProducer) {
	t.Helper()

	asyncProducer := newFakeAsyncProducer()
	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "chat",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	publisher := NewEventPublisher(producer, config.AppSettings{
		Name: "chat-security-service",
		Env:  "test",
	}, zaptest.NewLogger(t))

	return publisher, asyncProducer
}

func TestPublishKeysRotated(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	rotatedAt := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	event := domain.KeysRotatedEvent{
		EventID:       "event-123",
		SessionID:     "session-456",
		UserID:        "user-789",
		RoomID:        "room-1",
		KeyVersion:    3,
		RotationCount: 2,
		RotatedAt:     rotatedAt,
	}

	if err := publisher.PublishKeysRotated(context.Background(), event); err != nil {
		t.Fatalf("PublishKeysRotated returned error: %v", err)
	}

	var message *sarama.ProducerMessage
	select {
	case message = <-asyncProducer.input:
	default:
		t.Fatal("no message produced")
	}

	if message.Topic != "chat.keys.rotated" {
		t.Fatalf("unexpected topic %s", message.Topic)
	}

	raw, err := message.Value.Encode()
	if err != nil {
		t.Fatalf("encode message value: %v", err)
	}

	var envelope struct {
		EventID   string            `json:"event_id"`
		EventType string            `json:"event_type"`
		UserID    string            `json:"user_id"`
		Version   string            `json:"version"`
		Payload   map[string]any    `json:"payload"`
		Metadata  map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}

	if envelope.EventID != "event-123" {
		t.Fatalf("unexpected event id %s", envelope.EventID)
	}
	if envelope.EventType != "chat.keys.rotated" {
		t.Fatalf("unexpected event type %s", envelope.EventType)
	}
	if envelope.UserID != "user-789" {
		t.Fatalf("unexpected user id %s", envelope.UserID)
	}
	if envelope.Version != schemaVersion {
		t.Fatalf("unexpected schema version %s", envelope.Version)
	}
	if envelope.Payload["key_version"].(float64) != 3 {
		t.Fatalf("unexpected key_version: %v", envelope.Payload["key_version"])
	}
	if envelope.Metadata["service"] != "chat-security-service" {
		t.Fatalf("unexpected service metadata: %v", envelope.Metadata)
	}
	if _, ok := envelope.Payload["session_key"]; ok {
		t.Fatal("key material must never appear on the audit trail")
	}
}

func TestPublishMessageDestroyed(t *testing.T) {
	publisher, asyncProducer := newTestPublisher(t)

	destroyedAt := time.Date(2026, 3, 10, 12, 0, 10, 0, time.UTC)
	event := domain.MessageDestroyedEvent{
		EventID:     "event-456",
		MessageID:   "msg-1",
		RoomID:      "room-1",
		SenderID:    "user-1",
		DestroyedAt: destroyedAt,
		Trigger:     "timer",
	}

	if err := publisher.PublishMessageDestroyed(context.Background(), event); err != nil {
		t.Fatalf("PublishMessageDestroyed returned error: %v", err)
	}

	message := <-asyncProducer.input
	raw, err := message.Value.Encode()
	if err != nil {
		t.Fatalf("encode message value: %v", err)
	}

	var envelope struct {
		EventType string         `json:"event_type"`
		Payload   map[string]any `json:"payload"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.EventType != "chat.message.destroyed" {
		t.Fatalf("unexpected event type %s", envelope.EventType)
	}
	if envelope.Payload["trigger"] != "timer" {
		t.Fatalf("unexpected trigger: %v", envelope.Payload["trigger"])
	}
}

func TestTopicNamePrefixing(t *testing.T) {
	producer := &Producer{cfg: config.KafkaSettings{TopicPrefix: "chat"}}

	if got := producer.TopicName("chat.keys.rotated"); got != "chat.keys.rotated" {
		t.Fatalf("already-prefixed topic mangled: %s", got)
	}
	if got := producer.TopicName("keys.rotated"); got != "chat.keys.rotated" {
		t.Fatalf("prefix not applied: %s", got)
	}

	bare := &Producer{cfg: config.KafkaSettings{}}
	if got := bare.TopicName("keys.rotated"); got != "keys.rotated" {
		t.Fatalf("empty prefix should pass through: %s", got)
	}
}
