package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/social-platform-chat/internal/core/port"
	"github.com/arklim/social-platform-chat/internal/infra/security"
	"github.com/arklim/social-platform-chat/internal/repository/memory"
	"github.com/arklim/social-platform-chat/internal/usecase"
)

type capturedEvent struct {
	target string
	event  port.RealtimeEvent
}

type captureBus struct {
	mu     sync.Mutex
	toUser []capturedEvent
	toRoom []capturedEvent
}

func (b *captureBus) PublishToRoom(_ context.Context, roomID string, event port.RealtimeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toRoom = append(b.toRoom, capturedEvent{target: roomID, event: event})
	return nil
}

func (b *captureBus) SendToUser(_ context.Context, userID string, event port.RealtimeEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toUser = append(b.toUser, capturedEvent{target: userID, event: event})
	return nil
}

func (b *captureBus) lastToUser(t *testing.T) capturedEvent {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.toUser) == 0 {
		t.Fatalf("no user-directed events captured")
	}
	return b.toUser[len(b.toUser)-1]
}

func (b *captureBus) lastToRoom(t *testing.T) capturedEvent {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.toRoom) == 0 {
		t.Fatalf("no room broadcasts captured")
	}
	return b.toRoom[len(b.toRoom)-1]
}

func newCoordinatorFixture(t *testing.T) (*Coordinator, *captureBus, *memory.RoomRepository) {
	t.Helper()

	sessions := memory.NewSessionRepository()
	rooms := memory.NewRoomRepository()
	messages := memory.NewMessageRepository()
	bus := &captureBus{}
	logger := zaptest.NewLogger(t)

	keys := usecase.NewKeyExchangeService(sessions, rooms, security.NewKeyGenerator(), nil, logger)
	lifecycle := usecase.NewMessageLifecycleService(messages, bus, nil, nil, logger)

	return NewCoordinator(keys, lifecycle, bus, logger), bus, rooms
}

func TestHandleInitiateKeyExchange(t *testing.T) {
	coord, bus, rooms := newCoordinatorFixture(t)
	rooms.AddMember("room-1", "alice")

	err := coord.HandleInitiateKeyExchange(context.Background(), "alice", InitiateKeyExchange{
		RoomID:    "room-1",
		PublicKey: []byte("alice-pub"),
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}

	direct := bus.lastToUser(t)
	if direct.target != "alice" || direct.event.Name != EventKeyExchangeInitiated {
		t.Fatalf("unexpected caller event: %+v", direct)
	}
	if direct.event.Payload["sessionKey"] == nil || direct.event.Payload["sessionIV"] == nil {
		t.Fatalf("caller event must carry key material: %+v", direct.event.Payload)
	}

	broadcast := bus.lastToRoom(t)
	if broadcast.target != "room-1" || broadcast.event.Name != EventKeyExchangeRequest {
		t.Fatalf("unexpected room broadcast: %+v", broadcast)
	}
	if broadcast.event.Payload["sessionKey"] != nil {
		t.Fatalf("room broadcast must not carry key material")
	}
	if broadcast.event.Payload["userId"] != "alice" {
		t.Fatalf("expected initiator in broadcast, got %v", broadcast.event.Payload["userId"])
	}
}

func TestHandleInitiateDeniedEmitsError(t *testing.T) {
	coord, bus, rooms := newCoordinatorFixture(t)
	rooms.AddMember("room-1", "alice")

	err := coord.HandleInitiateKeyExchange(context.Background(), "mallory", InitiateKeyExchange{
		RoomID:    "room-1",
		PublicKey: []byte("mallory-pub"),
	})
	if !errors.Is(err, usecase.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}

	direct := bus.lastToUser(t)
	if direct.event.Name != EventKeyExchangeError {
		t.Fatalf("expected error event, got %q", direct.event.Name)
	}
	if direct.event.Payload["code"] != "access_denied" {
		t.Fatalf("expected access_denied code, got %v", direct.event.Payload["code"])
	}
}

func TestHandleRotateKeysNotifiesRoom(t *testing.T) {
	coord, bus, rooms := newCoordinatorFixture(t)
	rooms.AddMember("room-1", "alice")

	if err := coord.HandleInitiateKeyExchange(context.Background(), "alice", InitiateKeyExchange{
		RoomID:    "room-1",
		PublicKey: []byte("alice-pub"),
	}); err != nil {
		t.Fatalf("seed initiate failed: %v", err)
	}

	err := coord.HandleRotateKeys(context.Background(), "alice", RotateKeys{
		RoomID:        "room-1",
		NewSessionKey: []byte("fresh-key"),
	})
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}

	direct := bus.lastToUser(t)
	if direct.event.Name != EventKeysRotated {
		t.Fatalf("expected keys-rotated to caller, got %q", direct.event.Name)
	}
	if direct.event.Payload["keyVersion"] != 2 || direct.event.Payload["rotationCount"] != 1 {
		t.Fatalf("unexpected counters: %+v", direct.event.Payload)
	}

	broadcast := bus.lastToRoom(t)
	if broadcast.event.Name != EventKeysRotationNotice {
		t.Fatalf("expected rotation notification, got %q", broadcast.event.Name)
	}
	if broadcast.event.Payload["keyVersion"] != 2 {
		t.Fatalf("expected room to learn key version 2, got %v", broadcast.event.Payload["keyVersion"])
	}
}

func TestHandleRequestSessionKey(t *testing.T) {
	coord, bus, rooms := newCoordinatorFixture(t)
	rooms.AddMember("room-1", "alice")

	if err := coord.HandleInitiateKeyExchange(context.Background(), "alice", InitiateKeyExchange{
		RoomID:    "room-1",
		PublicKey: []byte("alice-pub"),
	}); err != nil {
		t.Fatalf("seed initiate failed: %v", err)
	}

	if err := coord.HandleRequestSessionKey(context.Background(), "alice", "room-1"); err != nil {
		t.Fatalf("request session key failed: %v", err)
	}

	direct := bus.lastToUser(t)
	if direct.event.Name != EventSessionKeyResponse {
		t.Fatalf("expected session-key-response, got %q", direct.event.Name)
	}
	if direct.event.Payload["sessionKey"] == nil || direct.event.Payload["keyVersion"] != 1 {
		t.Fatalf("unexpected response payload: %+v", direct.event.Payload)
	}
}

func TestHandleRequestSessionKeyMissing(t *testing.T) {
	coord, bus, rooms := newCoordinatorFixture(t)
	rooms.AddMember("room-1", "alice")

	err := coord.HandleRequestSessionKey(context.Background(), "alice", "room-1")
	if !errors.Is(err, usecase.ErrSessionNotFound) {
		t.Fatalf("expected session not found, got %v", err)
	}

	direct := bus.lastToUser(t)
	if direct.event.Name != EventKeyExchangeError {
		t.Fatalf("expected error event, got %q", direct.event.Name)
	}
	if direct.event.Payload["code"] != "session_not_found" {
		t.Fatalf("expected session_not_found code, got %v", direct.event.Payload["code"])
	}
}
