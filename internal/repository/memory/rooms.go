package memory

import (
	"context"
	"sync"

	"github.com/arklim/social-platform-chat/internal/core/port"
)

// RoomRepository is a static in-memory membership table for tests and local
// development. Production deployments back this port with the room service's
// database.
type RoomRepository struct {
	mu        sync.RWMutex
	members   map[string]map[string]bool // roomID -> userID -> member
	encrypted map[string]bool
}

// NewRoomRepository constructs an empty membership table.
func NewRoomRepository() *RoomRepository {
	return &RoomRepository{
		members:   make(map[string]map[string]bool),
		encrypted: make(map[string]bool),
	}
}

// AddMember registers a user as a participant of the room.
func (r *RoomRepository) AddMember(roomID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.members[roomID] == nil {
		r.members[roomID] = make(map[string]bool)
	}
	r.members[roomID][userID] = true
}

// SetEncryption toggles the room's encryption capability flag.
func (r *RoomRepository) SetEncryption(roomID string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encrypted[roomID] = enabled
}

// IsMember reports whether the user participates in the room.
func (r *RoomRepository) IsMember(_ context.Context, roomID, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.members[roomID][userID], nil
}

// IsEncryptionEnabled reports the room's encryption capability.
func (r *RoomRepository) IsEncryptionEnabled(_ context.Context, roomID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.encrypted[roomID], nil
}

var _ port.RoomRepository = (*RoomRepository)(nil)
