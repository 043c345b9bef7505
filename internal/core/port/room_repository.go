package port

import "context"

// RoomRepository is the membership collaborator. Room CRUD itself lives in
// another service; this core only needs membership gates and the encryption
// capability check.
type RoomRepository interface {
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	IsEncryptionEnabled(ctx context.Context, roomID string) (bool, error)
}
