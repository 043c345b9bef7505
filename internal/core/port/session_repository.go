package port

import (
	"context"

	"github.com/arklim/social-platform-chat/internal/core/domain"
)

// SessionRepository stores negotiated crypto sessions. Implementations must
// apply each write atomically per (userID, roomID) key so the last-writer-wins
// policy on concurrent initiates stays deterministic.
type SessionRepository interface {
	// Upsert replaces the active session for (session.UserID, session.RoomID)
	// or creates it when none exists.
	Upsert(ctx context.Context, session domain.Session) error
	// Create inserts a brand-new session record without touching existing
	// ones for the same key.
	Create(ctx context.Context, session domain.Session) error
	// Update persists an in-place mutation of an existing record.
	Update(ctx context.Context, session domain.Session) error
	// GetActive returns the single active session for the key, or
	// repository.ErrNotFound.
	GetActive(ctx context.Context, userID, roomID string) (*domain.Session, error)
	// GetByID fetches a session regardless of its active flag.
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	// DeactivateAllForRoom flips IsActive off for every active session in the
	// room and returns how many changed.
	DeactivateAllForRoom(ctx context.Context, roomID string) (int, error)
}
