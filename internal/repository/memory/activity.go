package memory

import (
	"context"
	"sync"
	"time"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/core/port"
)

// ActivityLog is the in-memory ring-buffer backend: per user, append-only,
// capped at domain.ActivityLogCap with oldest-first eviction.
type ActivityLog struct {
	mu      sync.RWMutex
	entries map[string][]domain.ActivityEntry
	cap     int
}

// NewActivityLog constructs an empty log with the standard cap.
func NewActivityLog() *ActivityLog {
	return &ActivityLog{
		entries: make(map[string][]domain.ActivityEntry),
		cap:     domain.ActivityLogCap,
	}
}

// Append adds an entry, evicting the oldest once the cap is reached.
func (l *ActivityLog) Append(_ context.Context, userID string, entry domain.ActivityEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := append(l.entries[userID], entry)
	if len(log) > l.cap {
		log = log[len(log)-l.cap:]
	}
	l.entries[userID] = log
	return nil
}

// CountSince counts entries of the given type inside the window.
func (l *ActivityLog) CountSince(ctx context.Context, userID string, kind domain.ActivityType, window time.Duration, reference time.Time) (int, error) {
	entries, err := l.ListSince(ctx, userID, kind, window, reference)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ListSince returns the matching entries inside the window, oldest first.
func (l *ActivityLog) ListSince(_ context.Context, userID string, kind domain.ActivityType, window time.Duration, reference time.Time) ([]domain.ActivityEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	cutoff := reference.Add(-window)
	var matched []domain.ActivityEntry
	for _, entry := range l.entries[userID] {
		if entry.Type != kind {
			continue
		}
		if entry.Timestamp.Before(cutoff) || entry.Timestamp.After(reference) {
			continue
		}
		matched = append(matched, entry)
	}
	return matched, nil
}

// Clear drops the user's log.
func (l *ActivityLog) Clear(_ context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, userID)
	return nil
}

// Len reports the current log length for a user, for tests.
func (l *ActivityLog) Len(userID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries[userID])
}

var _ port.ActivityLog = (*ActivityLog)(nil)

// UserPatternStore is the in-memory pattern backend. Patterns are created
// lazily on first read.
type UserPatternStore struct {
	mu       sync.RWMutex
	patterns map[string]*domain.UserPattern
}

// NewUserPatternStore constructs an empty pattern store.
func NewUserPatternStore() *UserPatternStore {
	return &UserPatternStore{patterns: make(map[string]*domain.UserPattern)}
}

// Get returns the user's pattern, lazily initializing an empty one.
func (s *UserPatternStore) Get(_ context.Context, userID string) (*domain.UserPattern, error) {
	s.mu.RLock()
	pattern, ok := s.patterns[userID]
	s.mu.RUnlock()

	if !ok {
		return &domain.UserPattern{UserID: userID}, nil
	}

	copied := *pattern
	copied.Devices = append([]string(nil), pattern.Devices...)
	copied.Locations = append([]domain.Location(nil), pattern.Locations...)
	return &copied, nil
}

// Save upserts the pattern.
func (s *UserPatternStore) Save(_ context.Context, pattern domain.UserPattern) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := pattern
	copied.Devices = append([]string(nil), pattern.Devices...)
	copied.Locations = append([]domain.Location(nil), pattern.Locations...)
	s.patterns[pattern.UserID] = &copied
	return nil
}

// Clear drops the user's pattern.
func (s *UserPatternStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.patterns, userID)
	return nil
}

var _ port.UserPatternStore = (*UserPatternStore)(nil)
