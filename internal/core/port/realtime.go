package port

import "context"

// RealtimeEvent is a named payload delivered over the realtime substrate.
type RealtimeEvent struct {
	Name    string
	Payload map[string]any
}

// RealtimeBus is the delivery substrate the socket layer subscribes to. The
// core publishes; fan-out to connected clients happens downstream.
type RealtimeBus interface {
	// PublishToRoom delivers the event to every subscriber of the room.
	PublishToRoom(ctx context.Context, roomID string, event RealtimeEvent) error
	// SendToUser delivers the event to a single user's connections.
	SendToUser(ctx context.Context, userID string, event RealtimeEvent) error
}
