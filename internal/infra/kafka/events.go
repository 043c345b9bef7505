package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/core/port"
	"github.com/arklim/social-platform-chat/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka. Payloads never
// contain key material; only identifiers, versions and reasons travel on the
// audit trail.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishSessionRevoked publishes chat.session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		SessionID string         `json:"session_id"`
		UserID    string         `json:"user_id"`
		RoomID    string         `json:"room_id"`
		RevokedAt time.Time      `json:"revoked_at"`
		RevokedBy string         `json:"revoked_by"`
		Reason    string         `json:"reason"`
		Metadata  map[string]any `json:"metadata,omitempty"`
	}{
		SessionID: event.SessionID,
		UserID:    event.UserID,
		RoomID:    event.RoomID,
		RevokedAt: event.RevokedAt.UTC(),
		RevokedBy: event.RevokedBy,
		Reason:    event.Reason,
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "chat.session.revoked", event.UserID, event.RevokedAt, payload)
}

// PublishKeysRotated publishes chat.keys.rotated events.
func (p *EventPublisher) PublishKeysRotated(ctx context.Context, event domain.KeysRotatedEvent) error {
	payload := struct {
		SessionID     string         `json:"session_id"`
		UserID        string         `json:"user_id"`
		RoomID        string         `json:"room_id"`
		KeyVersion    int            `json:"key_version"`
		RotationCount int            `json:"rotation_count"`
		RotatedAt     time.Time      `json:"rotated_at"`
		Metadata      map[string]any `json:"metadata,omitempty"`
	}{
		SessionID:     event.SessionID,
		UserID:        event.UserID,
		RoomID:        event.RoomID,
		KeyVersion:    event.KeyVersion,
		RotationCount: event.RotationCount,
		RotatedAt:     event.RotatedAt.UTC(),
		Metadata:      event.Metadata,
	}

	return p.publish(ctx, event.EventID, "chat.keys.rotated", event.UserID, event.RotatedAt, payload)
}

// PublishMessageDestroyed publishes chat.message.destroyed events.
func (p *EventPublisher) PublishMessageDestroyed(ctx context.Context, event domain.MessageDestroyedEvent) error {
	payload := struct {
		MessageID   string         `json:"message_id"`
		RoomID      string         `json:"room_id"`
		SenderID    string         `json:"sender_id"`
		DestroyedAt time.Time      `json:"destroyed_at"`
		Trigger     string         `json:"trigger"`
		Metadata    map[string]any `json:"metadata,omitempty"`
	}{
		MessageID:   event.MessageID,
		RoomID:      event.RoomID,
		SenderID:    event.SenderID,
		DestroyedAt: event.DestroyedAt.UTC(),
		Trigger:     event.Trigger,
		Metadata:    event.Metadata,
	}

	return p.publish(ctx, event.EventID, "chat.message.destroyed", event.SenderID, event.DestroyedAt, payload)
}

// PublishAnomalyDetected publishes chat.anomaly.detected events.
func (p *EventPublisher) PublishAnomalyDetected(ctx context.Context, event domain.AnomalyDetectedEvent) error {
	type anomalyPayload struct {
		Type       domain.AnomalyType `json:"type"`
		Severity   domain.Severity    `json:"severity"`
		DetectedAt time.Time          `json:"detected_at"`
		Details    map[string]any     `json:"details,omitempty"`
	}

	anomalies := make([]anomalyPayload, 0, len(event.Anomalies))
	for _, a := range event.Anomalies {
		anomalies = append(anomalies, anomalyPayload{
			Type:       a.Type,
			Severity:   a.Severity,
			DetectedAt: a.DetectedAt.UTC(),
			Details:    a.Details,
		})
	}

	payload := struct {
		UserID    string           `json:"user_id"`
		Score     int              `json:"score"`
		Level     domain.RiskLevel `json:"level"`
		Anomalies []anomalyPayload `json:"anomalies"`
		CheckedAt time.Time        `json:"checked_at"`
		Metadata  map[string]any   `json:"metadata,omitempty"`
	}{
		UserID:    event.UserID,
		Score:     event.Score,
		Level:     event.Level,
		Anomalies: anomalies,
		CheckedAt: event.CheckedAt.UTC(),
		Metadata:  event.Metadata,
	}

	return p.publish(ctx, event.EventID, "chat.anomaly.detected", event.UserID, event.CheckedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
