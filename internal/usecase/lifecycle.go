package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/core/port"
	"github.com/arklim/social-platform-chat/internal/repository"
)

var (
	// ErrMessageNotFound indicates the message does not exist.
	ErrMessageNotFound = errors.New("message not found")
	// ErrMessageDestroyed indicates the message reached its terminal state
	// and its content must not be served.
	ErrMessageDestroyed = errors.New("message destroyed")
)

// MessageLifecycleService owns the self-destruct state machine: arm on first
// non-sender read, fire-once destruction, read-receipt fan-out. Destruction
// tasks are cancelable by message ID so out-of-band deletion never races a
// stale timer.
type MessageLifecycleService struct {
	messages  port.MessageRepository
	bus       port.RealtimeBus
	scheduler port.DestructScheduler
	events    port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewMessageLifecycleService constructs a MessageLifecycleService.
func NewMessageLifecycleService(messages port.MessageRepository, bus port.RealtimeBus, scheduler port.DestructScheduler, events port.EventPublisher, logger *zap.Logger) *MessageLifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &MessageLifecycleService{
		messages:  messages,
		bus:       bus,
		scheduler: scheduler,
		events:    events,
		logger:    logger,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *MessageLifecycleService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// MarkAsRead appends a read receipt and, on the first non-sender read of a
// self-destructing message, fixes DestroyAt and schedules destruction.
// Subsequent reads append receipts but never re-arm or reschedule. A read
// observing an already-elapsed DestroyAt destroys the message lazily.
func (s *MessageLifecycleService) MarkAsRead(ctx context.Context, messageID, readerID string) (*domain.Message, error) {
	message, err := s.fetch(ctx, messageID)
	if err != nil {
		return nil, err
	}

	now := s.now()

	if message.State(now) == domain.DestructDestroyed {
		if !message.Destroyed {
			if err := s.destroy(ctx, message, "lazy_read"); err != nil {
				return nil, err
			}
		}
		return nil, ErrMessageDestroyed
	}

	armed := message.RecordRead(readerID, now)

	if err := s.messages.Save(ctx, *message); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	if readerID != message.SenderID && s.bus != nil {
		receipt := port.RealtimeEvent{
			Name: "message-read",
			Payload: map[string]any{
				"messageId": message.ID,
				"userId":    readerID,
				"readAt":    now,
			},
		}
		if err := s.bus.PublishToRoom(ctx, message.RoomID, receipt); err != nil {
			s.logger.Warn("broadcast read receipt failed",
				zap.String("message_id", message.ID), zap.Error(err))
		}
	}

	if armed {
		s.scheduleDestruction(message.ID, *message.SelfDestruct.DestroyAt)
		s.logger.Info("self-destruct armed",
			zap.String("message_id", message.ID),
			zap.String("reader_id", readerID),
			zap.Time("destroy_at", *message.SelfDestruct.DestroyAt),
		)
	}

	return message, nil
}

// Destroy forces the terminal transition now, regardless of the timer.
func (s *MessageLifecycleService) Destroy(ctx context.Context, messageID, trigger string) error {
	message, err := s.fetch(ctx, messageID)
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			// Deleted out of band; nothing left to destroy.
			s.CancelDestruction(messageID)
			return nil
		}
		return err
	}

	if message.Destroyed {
		return nil
	}

	return s.destroy(ctx, message, trigger)
}

// CancelDestruction discards a pending destruction task, used when a message
// is deleted through another path before its timer fires.
func (s *MessageLifecycleService) CancelDestruction(messageID string) bool {
	if s.scheduler == nil {
		return false
	}
	return s.scheduler.Cancel(messageID)
}

func (s *MessageLifecycleService) fetch(ctx context.Context, messageID string) (*domain.Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("message id is required")
	}
	message, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return message, nil
}

func (s *MessageLifecycleService) destroy(ctx context.Context, message *domain.Message, trigger string) error {
	message.Destroy()

	if err := s.messages.MarkDestroyed(ctx, message.ID); err != nil {
		return fmt.Errorf("mark message destroyed: %w", err)
	}

	if s.scheduler != nil {
		s.scheduler.Cancel(message.ID)
	}

	now := s.now()

	if s.bus != nil {
		deleted := port.RealtimeEvent{
			Name: "message-deleted",
			Payload: map[string]any{
				"messageId": message.ID,
				"roomId":    message.RoomID,
			},
		}
		if err := s.bus.PublishToRoom(ctx, message.RoomID, deleted); err != nil {
			s.logger.Warn("broadcast message deletion failed",
				zap.String("message_id", message.ID), zap.Error(err))
		}
	}

	if s.events != nil {
		event := domain.MessageDestroyedEvent{
			EventID:     uuid.NewString(),
			MessageID:   message.ID,
			RoomID:      message.RoomID,
			SenderID:    message.SenderID,
			DestroyedAt: now,
			Trigger:     trigger,
		}
		if err := s.events.PublishMessageDestroyed(ctx, event); err != nil {
			s.logger.Warn("publish message destroyed failed",
				zap.String("message_id", message.ID), zap.Error(err))
		}
	}

	s.logger.Info("message destroyed",
		zap.String("message_id", message.ID),
		zap.String("room_id", message.RoomID),
		zap.String("trigger", trigger),
	)

	return nil
}

func (s *MessageLifecycleService) scheduleDestruction(messageID string, at time.Time) {
	if s.scheduler == nil {
		return
	}
	s.scheduler.Schedule(messageID, at, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Destroy(ctx, messageID, "timer"); err != nil {
			s.logger.Error("scheduled destruction failed",
				zap.String("message_id", messageID), zap.Error(err))
		}
	})
}
