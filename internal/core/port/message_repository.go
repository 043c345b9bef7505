package port

import (
	"context"

	"github.com/arklim/social-platform-chat/internal/core/domain"
)

// MessageRepository is the persistence collaborator for chat messages. Only
// the fields the lifecycle core touches (read receipts, self-destruct state)
// are contracted here.
type MessageRepository interface {
	GetByID(ctx context.Context, messageID string) (*domain.Message, error)
	Save(ctx context.Context, message domain.Message) error
	// MarkDestroyed scrubs content and records the terminal state. It must be
	// idempotent.
	MarkDestroyed(ctx context.Context, messageID string) error
}
