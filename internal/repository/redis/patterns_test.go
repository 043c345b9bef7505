package redis

import (
	"context"
	"testing"
	"time"

	"github.com/arklim/social-platform-chat/internal/core/domain"
)

func TestUserPatternStore_LazyInit(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewUserPatternStore(client, "pattern")

	pattern, err := store.Get(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if pattern.UserID != "user-1" || pattern.LoginCount != 0 || len(pattern.Devices) != 0 {
		t.Fatalf("expected a fresh empty pattern, got %+v", pattern)
	}
}

func TestUserPatternStore_Roundtrip(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewUserPatternStore(client, "pattern")
	ctx := context.Background()

	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	pattern := domain.UserPattern{UserID: "user-1"}
	pattern.RecordLogin(base)
	pattern.RecordDevice("hash-1")
	pattern.RecordLocation(domain.Location{Latitude: 48.8566, Longitude: 2.3522, Timestamp: base})

	if err := store.Save(ctx, pattern); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if loaded.TypicalHours[9] != 1 || loaded.LoginCount != 1 {
		t.Fatalf("login histogram lost: %+v", loaded)
	}
	if !loaded.KnowsDevice("hash-1") {
		t.Fatalf("device history lost")
	}
	last, ok := loaded.LastLocation()
	if !ok || last.Latitude != 48.8566 || !last.Timestamp.Equal(base) {
		t.Fatalf("location history lost: %+v", last)
	}
}

func TestUserPatternStore_Clear(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewUserPatternStore(client, "pattern")
	ctx := context.Background()

	pattern := domain.UserPattern{UserID: "user-1", MessageCount: 7}
	if err := store.Save(ctx, pattern); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := store.Clear(ctx, "user-1"); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}

	loaded, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if loaded.MessageCount != 0 {
		t.Fatalf("expected empty pattern after clear, got %+v", loaded)
	}
}

func TestUserPatternStore_InvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewUserPatternStore(client, "pattern")
	ctx := context.Background()

	if _, err := store.Get(ctx, ""); err == nil {
		t.Fatalf("expected error for empty user id")
	}
	if err := store.Save(ctx, domain.UserPattern{}); err == nil {
		t.Fatalf("expected error for pattern without user id")
	}
}
