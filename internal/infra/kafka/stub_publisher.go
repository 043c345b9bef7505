package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for
// development environments without a broker.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishSessionRevoked logs chat.session.revoked events.
func (p *StubPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	payload := map[string]any{
		"session_id": event.SessionID,
		"user_id":    event.UserID,
		"room_id":    event.RoomID,
		"revoked_at": event.RevokedAt,
		"revoked_by": event.RevokedBy,
		"reason":     event.Reason,
		"metadata":   event.Metadata,
	}
	p.logEvent("chat.session.revoked", event.UserID, event.RevokedAt, payload)
	return nil
}

// PublishKeysRotated logs chat.keys.rotated events.
func (p *StubPublisher) PublishKeysRotated(_ context.Context, event domain.KeysRotatedEvent) error {
	payload := map[string]any{
		"session_id":     event.SessionID,
		"user_id":        event.UserID,
		"room_id":        event.RoomID,
		"key_version":    event.KeyVersion,
		"rotation_count": event.RotationCount,
		"rotated_at":     event.RotatedAt,
		"metadata":       event.Metadata,
	}
	p.logEvent("chat.keys.rotated", event.UserID, event.RotatedAt, payload)
	return nil
}

// PublishMessageDestroyed logs chat.message.destroyed events.
func (p *StubPublisher) PublishMessageDestroyed(_ context.Context, event domain.MessageDestroyedEvent) error {
	payload := map[string]any{
		"message_id":   event.MessageID,
		"room_id":      event.RoomID,
		"sender_id":    event.SenderID,
		"destroyed_at": event.DestroyedAt,
		"trigger":      event.Trigger,
		"metadata":     event.Metadata,
	}
	p.logEvent("chat.message.destroyed", event.SenderID, event.DestroyedAt, payload)
	return nil
}

// PublishAnomalyDetected logs chat.anomaly.detected events.
func (p *StubPublisher) PublishAnomalyDetected(_ context.Context, event domain.AnomalyDetectedEvent) error {
	payload := map[string]any{
		"user_id":    event.UserID,
		"score":      event.Score,
		"level":      event.Level,
		"anomalies":  event.Anomalies,
		"checked_at": event.CheckedAt,
		"metadata":   event.Metadata,
	}
	p.logEvent("chat.anomaly.detected", event.UserID, event.CheckedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
