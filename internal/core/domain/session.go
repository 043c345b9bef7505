package domain

import "time"

// DefaultSessionTTL is the renewable validity window applied on initiate,
// complete and rotate.
const DefaultSessionTTL = 24 * time.Hour

// Session is the negotiated symmetric session for one (user, room) pair.
// Key material is opaque to this service: it is generated, stored and handed
// back to clients without interpretation.
type Session struct {
	ID            string
	UserID        string
	RoomID        string
	SessionKey    []byte
	SessionIV     []byte
	PublicKey     []byte
	KeyVersion    int
	RotationCount int
	CreatedAt     time.Time
	ExpiresAt     time.Time
	IsActive      bool
}

// IsExpired reports whether the renewable window has elapsed at the supplied
// moment. Expiry is enforced lazily on read; the stored IsActive flag is not
// authoritative once ExpiresAt has passed.
func (s Session) IsExpired(at time.Time) bool {
	return !s.ExpiresAt.After(at)
}

// Rotate replaces the key material in place and advances the monotonic
// counters. ExpiresAt only ever moves forward.
func (s *Session) Rotate(newKey, newPublicKey []byte, at time.Time) {
	s.SessionKey = newKey
	if len(newPublicKey) > 0 {
		s.PublicKey = newPublicKey
	}
	s.KeyVersion++
	s.RotationCount++
	if renewed := at.Add(DefaultSessionTTL); renewed.After(s.ExpiresAt) {
		s.ExpiresAt = renewed
	}
}

// Deactivate marks the session unusable. Returns true when the state changed.
func (s *Session) Deactivate() bool {
	if !s.IsActive {
		return false
	}
	s.IsActive = false
	return true
}
