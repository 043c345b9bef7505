package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-chat/internal/core/port"
)

const (
	roomChannelPrefix = "chat:room"
	userChannelPrefix = "chat:user"
)

// RealtimeBus delivers core events over Redis pub/sub. Socket gateways
// subscribe to the room and user channels and fan the payloads out to their
// connected clients; the core never talks to sockets directly.
type RealtimeBus struct {
	client *red.Client
}

// NewRealtimeBus constructs a pub/sub backed realtime bus.
func NewRealtimeBus(client *red.Client) *RealtimeBus {
	return &RealtimeBus{client: client}
}

// PublishToRoom delivers the event to every subscriber of the room channel.
func (b *RealtimeBus) PublishToRoom(ctx context.Context, roomID string, event port.RealtimeEvent) error {
	return b.publish(ctx, roomChannelPrefix, roomID, event)
}

// SendToUser delivers the event to a single user's channel.
func (b *RealtimeBus) SendToUser(ctx context.Context, userID string, event port.RealtimeEvent) error {
	return b.publish(ctx, userChannelPrefix, userID, event)
}

func (b *RealtimeBus) publish(ctx context.Context, prefix, target string, event port.RealtimeEvent) error {
	trimmed := strings.TrimSpace(target)
	if trimmed == "" {
		return fmt.Errorf("publish target is required")
	}
	if event.Name == "" {
		return fmt.Errorf("event name is required")
	}

	payload, err := json.Marshal(map[string]any{
		"event":   event.Name,
		"payload": event.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal realtime event: %w", err)
	}

	channel := fmt.Sprintf("%s:%s", prefix, trimmed)
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

var _ port.RealtimeBus = (*RealtimeBus)(nil)
