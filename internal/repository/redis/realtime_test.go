package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/arklim/social-platform-chat/internal/core/port"
)

func TestRealtimeBus_PublishToRoom(t *testing.T) {
	client, _ := newTestRedis(t)
	bus := NewRealtimeBus(client)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "chat:room:room-1")
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	event := port.RealtimeEvent{
		Name:    "keys-rotated",
		Payload: map[string]any{"roomId": "room-1", "keyVersion": 2},
	}
	if err := bus.PublishToRoom(ctx, "room-1", event); err != nil {
		t.Fatalf("PublishToRoom returned error: %v", err)
	}

	recvCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(recvCtx)
	if err != nil {
		t.Fatalf("ReceiveMessage returned error: %v", err)
	}

	var decoded struct {
		Event   string         `json:"event"`
		Payload map[string]any `json:"payload"`
	}
	if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.Event != "keys-rotated" {
		t.Fatalf("expected keys-rotated, got %s", decoded.Event)
	}
	if decoded.Payload["roomId"] != "room-1" {
		t.Fatalf("payload lost: %+v", decoded.Payload)
	}
}

func TestRealtimeBus_Validation(t *testing.T) {
	client, _ := newTestRedis(t)
	bus := NewRealtimeBus(client)
	ctx := context.Background()

	if err := bus.PublishToRoom(ctx, "", port.RealtimeEvent{Name: "x"}); err == nil {
		t.Fatalf("expected error for empty room id")
	}
	if err := bus.SendToUser(ctx, "user-1", port.RealtimeEvent{}); err == nil {
		t.Fatalf("expected error for empty event name")
	}
}
