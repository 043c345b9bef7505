package redis

import (
	"context"
	"testing"
	"time"
)

func TestRateLimitStore_SlidingWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, "ratelimit", time.Hour)

	ctx := context.Background()
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	for _, at := range []time.Time{
		base.Add(-90 * time.Second),
		base.Add(-30 * time.Second),
		base.Add(-10 * time.Second),
	} {
		if err := store.RecordAttempt(ctx, "ip:10.0.0.1", at); err != nil {
			t.Fatalf("RecordAttempt returned error: %v", err)
		}
	}

	count, err := store.CountAttempts(ctx, "ip:10.0.0.1", time.Minute, base)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 attempts inside the minute, got %d", count)
	}

	oldest, found, err := store.OldestAttempt(ctx, "ip:10.0.0.1", time.Minute, base)
	if err != nil {
		t.Fatalf("OldestAttempt returned error: %v", err)
	}
	if !found || !oldest.Equal(base.Add(-30*time.Second)) {
		t.Fatalf("unexpected oldest attempt: %v found=%v", oldest, found)
	}

	if err := store.TrimWindow(ctx, "ip:10.0.0.1", time.Minute, base); err != nil {
		t.Fatalf("TrimWindow returned error: %v", err)
	}
	count, err = store.CountAttempts(ctx, "ip:10.0.0.1", time.Hour, base)
	if err != nil {
		t.Fatalf("CountAttempts returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("trim should drop only the out-of-window attempt, got %d", count)
	}
}

func TestRateLimitStore_EmptyIdentifier(t *testing.T) {
	client, _ := newTestRedis(t)
	store := NewRateLimitStore(client, "ratelimit", time.Hour)

	if err := store.RecordAttempt(context.Background(), "", time.Now()); err == nil {
		t.Fatalf("expected error for empty identifier")
	}
	if _, err := store.CountAttempts(context.Background(), "ip", 0, time.Now()); err == nil {
		t.Fatalf("expected error for non-positive window")
	}
}
