package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/arklim/social-platform-chat/internal/core/domain"
)

func TestActivityLogEvictsOldestAtCap(t *testing.T) {
	log := NewActivityLog()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	for i := 0; i < domain.ActivityLogCap+5; i++ {
		entry := domain.ActivityEntry{
			ID:        fmt.Sprintf("e-%d", i),
			Type:      domain.ActivityMessageSent,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
		if err := log.Append(ctx, "user-1", entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	if got := log.Len("user-1"); got != domain.ActivityLogCap {
		t.Fatalf("expected cap %d, got %d", domain.ActivityLogCap, got)
	}

	entries, err := log.ListSince(ctx, "user-1", domain.ActivityMessageSent, 24*time.Hour, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListSince: %v", err)
	}
	if entries[0].ID != "e-5" {
		t.Fatalf("oldest surviving entry should be e-5, got %s", entries[0].ID)
	}
	if entries[len(entries)-1].ID != fmt.Sprintf("e-%d", domain.ActivityLogCap+4) {
		t.Fatalf("newest entry missing, got %s", entries[len(entries)-1].ID)
	}
}

func TestActivityLogWindowFilter(t *testing.T) {
	log := NewActivityLog()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	inside := domain.ActivityEntry{ID: "in", Type: domain.ActivityLoginFailed, Timestamp: base.Add(-time.Minute)}
	outside := domain.ActivityEntry{ID: "out", Type: domain.ActivityLoginFailed, Timestamp: base.Add(-10 * time.Minute)}
	otherKind := domain.ActivityEntry{ID: "other", Type: domain.ActivityLogin, Timestamp: base.Add(-time.Minute)}

	for _, e := range []domain.ActivityEntry{inside, outside, otherKind} {
		if err := log.Append(ctx, "user-1", e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	count, err := log.CountSince(ctx, "user-1", domain.ActivityLoginFailed, 5*time.Minute, base)
	if err != nil {
		t.Fatalf("CountSince: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the in-window entry, got %d", count)
	}
}

func TestActivityLogClearIsPerUser(t *testing.T) {
	log := NewActivityLog()
	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	entry := domain.ActivityEntry{ID: "e", Type: domain.ActivityLogin, Timestamp: base}
	if err := log.Append(ctx, "user-1", entry); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := log.Append(ctx, "user-2", entry); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := log.Clear(ctx, "user-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if log.Len("user-1") != 0 {
		t.Fatalf("user-1 log should be empty")
	}
	if log.Len("user-2") != 1 {
		t.Fatalf("user-2 log should be untouched")
	}
}
