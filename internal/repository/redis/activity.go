package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/core/port"
)

const defaultActivityPrefix = "chat:activity"

// ActivityLogConfig tunes the Redis-backed activity log.
type ActivityLogConfig struct {
	KeyPrefix string
	// Cap bounds the per-user entry count; zero falls back to
	// domain.ActivityLogCap.
	Cap int
	// TTL expires idle logs; zero disables expiry.
	TTL time.Duration
}

// ActivityLog persists per-user activity entries in a Redis sorted set scored
// by observation time, so the detectors' sliding-window reads become range
// queries. The per-user cap is enforced on every append by trimming the
// lowest-ranked (oldest) members.
type ActivityLog struct {
	client *red.Client
	cfg    ActivityLogConfig
}

// NewActivityLog constructs a Redis-backed activity log.
func NewActivityLog(client *red.Client, cfg ActivityLogConfig) *ActivityLog {
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = defaultActivityPrefix
	}
	if cfg.Cap <= 0 {
		cfg.Cap = domain.ActivityLogCap
	}
	return &ActivityLog{client: client, cfg: cfg}
}

// Append stores the entry and evicts the oldest members past the cap.
func (l *ActivityLog) Append(ctx context.Context, userID string, entry domain.ActivityEntry) error {
	key, err := l.key(userID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal activity entry: %w", err)
	}

	member := red.Z{Score: float64(entry.Timestamp.UnixNano()), Member: payload}
	if err := l.client.ZAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redis zadd activity: %w", err)
	}

	// Keep the newest cfg.Cap members.
	if err := l.client.ZRemRangeByRank(ctx, key, 0, int64(-(l.cfg.Cap + 1))).Err(); err != nil {
		return fmt.Errorf("redis trim activity: %w", err)
	}

	if l.cfg.TTL > 0 {
		if err := l.client.Expire(ctx, key, l.cfg.TTL).Err(); err != nil {
			return fmt.Errorf("redis expire activity: %w", err)
		}
	}

	return nil
}

// CountSince counts entries of the given type inside [reference-window, reference].
func (l *ActivityLog) CountSince(ctx context.Context, userID string, kind domain.ActivityType, window time.Duration, reference time.Time) (int, error) {
	entries, err := l.ListSince(ctx, userID, kind, window, reference)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ListSince returns the entries of the given type inside the window, oldest
// first.
func (l *ActivityLog) ListSince(ctx context.Context, userID string, kind domain.ActivityType, window time.Duration, reference time.Time) ([]domain.ActivityEntry, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}
	key, err := l.key(userID)
	if err != nil {
		return nil, err
	}

	values, err := l.client.ZRangeByScore(ctx, key, &red.ZRangeBy{
		Min: fmt.Sprintf("%d", reference.Add(-window).UnixNano()),
		Max: fmt.Sprintf("%d", reference.UnixNano()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore activity: %w", err)
	}

	var matched []domain.ActivityEntry
	for _, value := range values {
		var entry domain.ActivityEntry
		if err := json.Unmarshal([]byte(value), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal activity entry: %w", err)
		}
		if entry.Type != kind {
			continue
		}
		matched = append(matched, entry)
	}
	return matched, nil
}

// Clear drops the user's log.
func (l *ActivityLog) Clear(ctx context.Context, userID string) error {
	key, err := l.key(userID)
	if err != nil {
		return err
	}
	if err := l.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete activity: %w", err)
	}
	return nil
}

func (l *ActivityLog) key(userID string) (string, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return "", fmt.Errorf("user id is required")
	}
	return fmt.Sprintf("%s:%s", l.cfg.KeyPrefix, trimmed), nil
}

var _ port.ActivityLog = (*ActivityLog)(nil)
