package memory

import (
	"context"
	"sync"
	"time"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/core/port"
	"github.com/arklim/social-platform-chat/internal/repository"
)

// SessionRepository is the in-memory session backend used by unit tests and
// single-process deployments. A single mutex makes every write atomic per
// key, which is what the last-writer-wins initiate policy relies on.
type SessionRepository struct {
	mu       sync.RWMutex
	byID     map[string]*domain.Session
	activeBy map[string]string // (userID|roomID) -> session ID
}

// NewSessionRepository constructs an empty in-memory session store.
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		byID:     make(map[string]*domain.Session),
		activeBy: make(map[string]string),
	}
}

func sessionKey(userID, roomID string) string {
	return userID + "|" + roomID
}

// Upsert replaces the active session for the key or creates it.
func (r *SessionRepository) Upsert(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(session.UserID, session.RoomID)
	if existingID, ok := r.activeBy[key]; ok && existingID != session.ID {
		if existing, ok := r.byID[existingID]; ok {
			existing.IsActive = false
		}
	}

	copied := session
	r.byID[session.ID] = &copied
	if session.IsActive {
		r.activeBy[key] = session.ID
	} else {
		delete(r.activeBy, key)
	}
	return nil
}

// Create inserts a new record. When the record is active it supersedes any
// previously active session for the same key, preserving the single-active
// invariant.
func (r *SessionRepository) Create(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := sessionKey(session.UserID, session.RoomID)
	if session.IsActive {
		if existingID, ok := r.activeBy[key]; ok {
			if existing, ok := r.byID[existingID]; ok {
				existing.IsActive = false
			}
		}
		r.activeBy[key] = session.ID
	}

	copied := session
	r.byID[session.ID] = &copied
	return nil
}

// Update persists an in-place mutation of an existing record.
func (r *SessionRepository) Update(_ context.Context, session domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[session.ID]; !ok {
		return repository.ErrNotFound
	}

	copied := session
	r.byID[session.ID] = &copied

	key := sessionKey(session.UserID, session.RoomID)
	if session.IsActive {
		r.activeBy[key] = session.ID
	} else if r.activeBy[key] == session.ID {
		delete(r.activeBy, key)
	}
	return nil
}

// GetActive returns the single active session for the key.
func (r *SessionRepository) GetActive(_ context.Context, userID, roomID string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.activeBy[sessionKey(userID, roomID)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	session, ok := r.byID[id]
	if !ok || !session.IsActive {
		return nil, repository.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

// GetByID fetches a session regardless of its active flag.
func (r *SessionRepository) GetByID(_ context.Context, sessionID string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.byID[sessionID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *session
	return &copied, nil
}

// DeactivateAllForRoom flips IsActive off for every active session in the room.
func (r *SessionRepository) DeactivateAllForRoom(_ context.Context, roomID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for key, id := range r.activeBy {
		session, ok := r.byID[id]
		if !ok || session.RoomID != roomID {
			continue
		}
		session.IsActive = false
		delete(r.activeBy, key)
		count++
	}
	return count, nil
}

// DeactivateExpired flips every active session whose window has elapsed at
// the supplied moment, used by the optional background sweep.
func (r *SessionRepository) DeactivateExpired(_ context.Context, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for key, id := range r.activeBy {
		session, ok := r.byID[id]
		if !ok || session.ExpiresAt.After(at) {
			continue
		}
		session.IsActive = false
		delete(r.activeBy, key)
		count++
	}
	return count, nil
}

// CountActive reports the number of active sessions, for tests and metrics.
func (r *SessionRepository) CountActive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.activeBy)
}

var _ port.SessionRepository = (*SessionRepository)(nil)
