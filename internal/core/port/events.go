package port

import (
	"context"

	"github.com/arklim/social-platform-chat/internal/core/domain"
)

// EventPublisher publishes audit events to the message bus.
type EventPublisher interface {
	PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error
	PublishKeysRotated(ctx context.Context, event domain.KeysRotatedEvent) error
	PublishMessageDestroyed(ctx context.Context, event domain.MessageDestroyedEvent) error
	PublishAnomalyDetected(ctx context.Context, event domain.AnomalyDetectedEvent) error
}
