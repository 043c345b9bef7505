package domain

import "time"

// SessionRevokedEvent is published when a session is deactivated by an owner
// action or a room-wide reset.
type SessionRevokedEvent struct {
	EventID   string
	SessionID string
	UserID    string
	RoomID    string
	RevokedAt time.Time
	RevokedBy string
	Reason    string
	Metadata  map[string]any
}

// KeysRotatedEvent is published after a successful in-place key rotation.
type KeysRotatedEvent struct {
	EventID       string
	SessionID     string
	UserID        string
	RoomID        string
	KeyVersion    int
	RotationCount int
	RotatedAt     time.Time
	Metadata      map[string]any
}

// MessageDestroyedEvent is published when a self-destructing message reaches
// its terminal state.
type MessageDestroyedEvent struct {
	EventID     string
	MessageID   string
	RoomID      string
	SenderID    string
	DestroyedAt time.Time
	Trigger     string
	Metadata    map[string]any
}

// AnomalyDetectedEvent is published when a sweep yields a non-empty anomaly
// list.
type AnomalyDetectedEvent struct {
	EventID   string
	UserID    string
	Score     int
	Level     RiskLevel
	Anomalies []Anomaly
	CheckedAt time.Time
	Metadata  map[string]any
}
