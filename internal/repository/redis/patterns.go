package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	red "github.com/redis/go-redis/v9"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/core/port"
)

const defaultPatternPrefix = "chat:pattern"

// UserPatternStore keeps the per-user aggregate statistics as a JSON blob.
// Patterns are small and read-modify-written by a single logging path, so a
// plain GET/SET pair is sufficient.
type UserPatternStore struct {
	client *red.Client
	prefix string
}

// NewUserPatternStore constructs a Redis-backed pattern store.
func NewUserPatternStore(client *red.Client, keyPrefix string) *UserPatternStore {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultPatternPrefix
	}
	return &UserPatternStore{client: client, prefix: prefix}
}

// Get returns the user's pattern, lazily initializing an empty one on miss.
func (s *UserPatternStore) Get(ctx context.Context, userID string) (*domain.UserPattern, error) {
	key, err := s.key(userID)
	if err != nil {
		return nil, err
	}

	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return &domain.UserPattern{UserID: userID}, nil
		}
		return nil, fmt.Errorf("redis get pattern: %w", err)
	}

	var pattern domain.UserPattern
	if err := json.Unmarshal([]byte(value), &pattern); err != nil {
		return nil, fmt.Errorf("unmarshal pattern: %w", err)
	}
	return &pattern, nil
}

// Save upserts the pattern.
func (s *UserPatternStore) Save(ctx context.Context, pattern domain.UserPattern) error {
	key, err := s.key(pattern.UserID)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(pattern)
	if err != nil {
		return fmt.Errorf("marshal pattern: %w", err)
	}
	if err := s.client.Set(ctx, key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set pattern: %w", err)
	}
	return nil
}

// Clear drops the user's pattern.
func (s *UserPatternStore) Clear(ctx context.Context, userID string) error {
	key, err := s.key(userID)
	if err != nil {
		return err
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete pattern: %w", err)
	}
	return nil
}

func (s *UserPatternStore) key(userID string) (string, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return "", fmt.Errorf("user id is required")
	}
	return fmt.Sprintf("%s:%s", s.prefix, trimmed), nil
}

var _ port.UserPatternStore = (*UserPatternStore)(nil)
