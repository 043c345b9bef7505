package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-chat/internal/core/port"
)

const defaultRateLimitPrefix = "chat:ratelimit"

// RateLimitStore tracks request attempts per identifier in a sorted set
// scored by attempt time, backing the sliding-window limiter on the HTTP
// surface.
type RateLimitStore struct {
	client *red.Client
	prefix string
	ttl    time.Duration
}

// NewRateLimitStore constructs a Redis-backed attempt store. The TTL reaps
// idle identifiers; it should exceed the largest window the limiter uses.
func NewRateLimitStore(client *red.Client, keyPrefix string, ttl time.Duration) *RateLimitStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultRateLimitPrefix
	}
	return &RateLimitStore{client: client, prefix: prefix, ttl: ttl}
}

// RecordAttempt stores one attempt at the given instant.
func (s *RateLimitStore) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key, err := s.key(identifier)
	if err != nil {
		return err
	}

	nano := at.UnixNano()
	member := red.Z{Score: float64(nano), Member: strconv.FormatInt(nano, 10)}
	if err := s.client.ZAdd(ctx, key, member).Err(); err != nil {
		return fmt.Errorf("redis zadd attempt: %w", err)
	}

	if s.ttl > 0 {
		if err := s.client.Expire(ctx, key, s.ttl).Err(); err != nil {
			return fmt.Errorf("redis expire attempts: %w", err)
		}
	}
	return nil
}

// CountAttempts returns how many attempts fall inside the window ending at
// the reference instant.
func (s *RateLimitStore) CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	key, err := s.key(identifier)
	if err != nil {
		return 0, err
	}
	if window <= 0 {
		return 0, fmt.Errorf("window must be positive")
	}

	min, max := windowBounds(window, reference)
	count, err := s.client.ZCount(ctx, key, min, max).Result()
	if err != nil {
		return 0, fmt.Errorf("redis zcount attempts: %w", err)
	}
	return int(count), nil
}

// TrimWindow drops attempts older than the window.
func (s *RateLimitStore) TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error {
	key, err := s.key(identifier)
	if err != nil {
		return err
	}
	if window <= 0 {
		return fmt.Errorf("window must be positive")
	}

	min, _ := windowBounds(window, reference)
	if err := s.client.ZRemRangeByScore(ctx, key, "-inf", min).Err(); err != nil {
		return fmt.Errorf("redis trim attempts: %w", err)
	}
	return nil
}

// OldestAttempt returns the earliest attempt still inside the window, used to
// compute Retry-After headers.
func (s *RateLimitStore) OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	key, err := s.key(identifier)
	if err != nil {
		return time.Time{}, false, err
	}
	if window <= 0 {
		return time.Time{}, false, fmt.Errorf("window must be positive")
	}

	min, max := windowBounds(window, reference)
	values, err := s.client.ZRangeByScore(ctx, key, &red.ZRangeBy{
		Min:   min,
		Max:   max,
		Count: 1,
	}).Result()
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis zrangebyscore attempts: %w", err)
	}
	if len(values) == 0 {
		return time.Time{}, false, nil
	}

	nano, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse attempt timestamp: %w", err)
	}
	return time.Unix(0, nano), true, nil
}

func (s *RateLimitStore) key(identifier string) (string, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return "", fmt.Errorf("identifier is required")
	}
	return fmt.Sprintf("%s:%s", s.prefix, trimmed), nil
}

func windowBounds(window time.Duration, reference time.Time) (string, string) {
	min := strconv.FormatInt(reference.Add(-window).UnixNano(), 10)
	max := strconv.FormatInt(reference.UnixNano(), 10)
	return min, max
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
