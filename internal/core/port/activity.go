package port

import (
	"context"
	"time"

	"github.com/arklim/social-platform-chat/internal/core/domain"
)

// ActivityLog is the append-only, capped per-user event log consumed by the
// anomaly detectors. Backends must evict oldest-first once a user's log
// exceeds domain.ActivityLogCap.
type ActivityLog interface {
	Append(ctx context.Context, userID string, entry domain.ActivityEntry) error
	// CountSince returns how many entries of the given type fall inside
	// [reference-window, reference].
	CountSince(ctx context.Context, userID string, kind domain.ActivityType, window time.Duration, reference time.Time) (int, error)
	// ListSince returns the entries of the given type inside the window,
	// oldest first.
	ListSince(ctx context.Context, userID string, kind domain.ActivityType, window time.Duration, reference time.Time) ([]domain.ActivityEntry, error)
	// Clear drops the user's log (testing and privacy requests).
	Clear(ctx context.Context, userID string) error
}

// UserPatternStore holds the per-user aggregate statistics the detectors read.
// Get must lazily initialize an empty pattern for unknown users rather than
// fail.
type UserPatternStore interface {
	Get(ctx context.Context, userID string) (*domain.UserPattern, error)
	Save(ctx context.Context, pattern domain.UserPattern) error
	Clear(ctx context.Context, userID string) error
}
