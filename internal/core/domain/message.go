package domain

import "time"

// DestructState enumerates the self-destruct lifecycle of a message.
type DestructState string

const (
	// DestructDisabled means the message never self-destructs.
	DestructDisabled DestructState = "disabled"
	// DestructArmed means self-destruct is enabled but no non-sender read
	// has occurred yet.
	DestructArmed DestructState = "armed"
	// DestructStarted means the timer is running; DestroyAt is fixed.
	DestructStarted DestructState = "started"
	// DestructDestroyed is terminal: content must never be served again.
	DestructDestroyed DestructState = "destroyed"
)

// ReadReceipt records a single user's first read of a message.
type ReadReceipt struct {
	UserID string
	ReadAt time.Time
}

// SelfDestruct carries the per-message destruction policy and its progress.
// ReadAt is set at most once, by the first read from any user other than the
// sender; DestroyAt is computed at that moment and never recomputed.
type SelfDestruct struct {
	Enabled      bool
	TimerSeconds int
	ReadAt       *time.Time
	DestroyAt    *time.Time
}

// Message is the subset of the persisted chat message this service owns:
// read receipts and the self-destruct state machine. The ciphertext payload
// stays opaque.
type Message struct {
	ID           string
	RoomID       string
	SenderID     string
	Ciphertext   []byte
	ReadBy       []ReadReceipt
	SelfDestruct SelfDestruct
	CreatedAt    time.Time
	Destroyed    bool
}

// State derives the destruct state at the supplied moment.
func (m Message) State(at time.Time) DestructState {
	if m.Destroyed {
		return DestructDestroyed
	}
	if !m.SelfDestruct.Enabled {
		return DestructDisabled
	}
	if m.SelfDestruct.DestroyAt == nil {
		return DestructArmed
	}
	if !at.Before(*m.SelfDestruct.DestroyAt) {
		return DestructDestroyed
	}
	return DestructStarted
}

// HasRead reports whether the user already appears in the receipt list.
func (m Message) HasRead(userID string) bool {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// RecordRead appends a receipt for the reader, once per user. The returned
// flag reports whether this call armed the destruct timer, which happens only
// on the first non-sender read of an enabled message.
func (m *Message) RecordRead(userID string, at time.Time) (armed bool) {
	if !m.HasRead(userID) {
		m.ReadBy = append(m.ReadBy, ReadReceipt{UserID: userID, ReadAt: at})
	}

	if !m.SelfDestruct.Enabled || userID == m.SenderID || m.SelfDestruct.ReadAt != nil {
		return false
	}

	readAt := at
	destroyAt := at.Add(time.Duration(m.SelfDestruct.TimerSeconds) * time.Second)
	m.SelfDestruct.ReadAt = &readAt
	m.SelfDestruct.DestroyAt = &destroyAt
	return true
}

// Destroy transitions the message to its terminal state and scrubs content.
// Returns true when the state changed.
func (m *Message) Destroy() bool {
	if m.Destroyed {
		return false
	}
	m.Destroyed = true
	m.Ciphertext = nil
	return true
}
