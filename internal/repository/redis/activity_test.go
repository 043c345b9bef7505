package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-chat/internal/core/domain"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestActivityLog_AppendAndWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	log := NewActivityLog(client, ActivityLogConfig{KeyPrefix: "activity", TTL: time.Hour})

	ctx := context.Background()
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	entries := []domain.ActivityEntry{
		{ID: "old", Type: domain.ActivityMessageSent, Timestamp: base.Add(-10 * time.Minute)},
		{ID: "recent-1", Type: domain.ActivityMessageSent, Timestamp: base.Add(-30 * time.Second)},
		{ID: "recent-2", Type: domain.ActivityMessageSent, Timestamp: base.Add(-5 * time.Second)},
		{ID: "other", Type: domain.ActivityLogin, Timestamp: base.Add(-10 * time.Second)},
	}
	for _, entry := range entries {
		if err := log.Append(ctx, "user-1", entry); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	count, err := log.CountSince(ctx, "user-1", domain.ActivityMessageSent, time.Minute, base)
	if err != nil {
		t.Fatalf("CountSince returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 in-window messages, got %d", count)
	}

	matched, err := log.ListSince(ctx, "user-1", domain.ActivityMessageSent, time.Minute, base)
	if err != nil {
		t.Fatalf("ListSince returned error: %v", err)
	}
	if len(matched) != 2 || matched[0].ID != "recent-1" || matched[1].ID != "recent-2" {
		t.Fatalf("expected oldest-first in-window entries, got %+v", matched)
	}
}

func TestActivityLog_CapEvictsOldest(t *testing.T) {
	client, _ := newTestRedis(t)
	log := NewActivityLog(client, ActivityLogConfig{KeyPrefix: "activity", Cap: 5})

	ctx := context.Background()
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	for i := 0; i < 8; i++ {
		entry := domain.ActivityEntry{
			ID:        fmt.Sprintf("e-%d", i),
			Type:      domain.ActivityMessageSent,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		if err := log.Append(ctx, "user-1", entry); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	matched, err := log.ListSince(ctx, "user-1", domain.ActivityMessageSent, time.Hour, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("ListSince returned error: %v", err)
	}
	if len(matched) != 5 {
		t.Fatalf("expected cap of 5 entries, got %d", len(matched))
	}
	if matched[0].ID != "e-3" {
		t.Fatalf("oldest surviving entry should be e-3, got %s", matched[0].ID)
	}
}

func TestActivityLog_MetadataRoundtrip(t *testing.T) {
	client, _ := newTestRedis(t)
	log := NewActivityLog(client, ActivityLogConfig{KeyPrefix: "activity"})

	ctx := context.Background()
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	entry := domain.ActivityEntry{
		ID:        "upload",
		Type:      domain.ActivityFileUpload,
		Timestamp: base,
		Metadata:  map[string]any{"size_bytes": int64(4096)},
	}
	if err := log.Append(ctx, "user-1", entry); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	matched, err := log.ListSince(ctx, "user-1", domain.ActivityFileUpload, time.Minute, base)
	if err != nil {
		t.Fatalf("ListSince returned error: %v", err)
	}
	if len(matched) != 1 {
		t.Fatalf("expected one entry, got %d", len(matched))
	}
	// JSON numbers decode as float64.
	if size, ok := matched[0].Metadata["size_bytes"].(float64); !ok || size != 4096 {
		t.Fatalf("expected size 4096 in metadata, got %v", matched[0].Metadata["size_bytes"])
	}
}

func TestActivityLog_ClearAndValidation(t *testing.T) {
	client, _ := newTestRedis(t)
	log := NewActivityLog(client, ActivityLogConfig{KeyPrefix: "activity"})

	ctx := context.Background()
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	entry := domain.ActivityEntry{ID: "e", Type: domain.ActivityLogin, Timestamp: base}
	if err := log.Append(ctx, "user-1", entry); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if err := log.Clear(ctx, "user-1"); err != nil {
		t.Fatalf("Clear returned error: %v", err)
	}

	count, err := log.CountSince(ctx, "user-1", domain.ActivityLogin, time.Minute, base)
	if err != nil {
		t.Fatalf("CountSince returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty log after clear, got %d", count)
	}

	if err := log.Append(ctx, "", entry); err == nil {
		t.Fatalf("expected error for empty user id")
	}
	if _, err := log.ListSince(ctx, "user-1", domain.ActivityLogin, 0, base); err == nil {
		t.Fatalf("expected error for non-positive window")
	}
}
