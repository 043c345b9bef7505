package memory

import (
	"context"
	"sync"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/core/port"
	"github.com/arklim/social-platform-chat/internal/repository"
)

// MessageRepository is the in-memory message backend for unit tests and
// single-process deployments.
type MessageRepository struct {
	mu   sync.RWMutex
	byID map[string]*domain.Message
}

// NewMessageRepository constructs an empty in-memory message store.
func NewMessageRepository() *MessageRepository {
	return &MessageRepository{byID: make(map[string]*domain.Message)}
}

// GetByID fetches a message by ID.
func (r *MessageRepository) GetByID(_ context.Context, messageID string) (*domain.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	message, ok := r.byID[messageID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *message
	copied.ReadBy = append([]domain.ReadReceipt(nil), message.ReadBy...)
	return &copied, nil
}

// Save upserts the message.
func (r *MessageRepository) Save(_ context.Context, message domain.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := message
	copied.ReadBy = append([]domain.ReadReceipt(nil), message.ReadBy...)
	r.byID[message.ID] = &copied
	return nil
}

// MarkDestroyed scrubs content and records the terminal state. Idempotent.
func (r *MessageRepository) MarkDestroyed(_ context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, ok := r.byID[messageID]
	if !ok {
		return repository.ErrNotFound
	}
	message.Destroyed = true
	message.Ciphertext = nil
	return nil
}

// Delete removes the message entirely (out-of-band deletion path).
func (r *MessageRepository) Delete(_ context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[messageID]; !ok {
		return repository.ErrNotFound
	}
	delete(r.byID, messageID)
	return nil
}

var _ port.MessageRepository = (*MessageRepository)(nil)
