package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/core/port"
	"github.com/arklim/social-platform-chat/internal/repository"
)

// MessageRepository implements port.MessageRepository for PostgreSQL. Read
// receipts travel as a JSONB column; the ciphertext stays an opaque bytea.
type MessageRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

// NewMessageRepository constructs a MessageRepository.
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID returns a message by identifier.
func (r *MessageRepository) GetByID(ctx context.Context, messageID string) (*domain.Message, error) {
	sql, args, err := r.builder.
		Select(
			"id",
			"room_id",
			"sender_id",
			"ciphertext",
			"read_by",
			"sd_enabled",
			"sd_timer_seconds",
			"sd_read_at",
			"sd_destroy_at",
			"created_at",
			"destroyed",
		).
		From("chat.messages").
		Where(squirrel.Eq{"id": messageID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select message sql: %w", err)
	}

	row := r.pool.QueryRow(ctx, sql, args...)

	var (
		message domain.Message
		readBy  []byte
	)
	if err := row.Scan(
		&message.ID,
		&message.RoomID,
		&message.SenderID,
		&message.Ciphertext,
		&readBy,
		&message.SelfDestruct.Enabled,
		&message.SelfDestruct.TimerSeconds,
		&message.SelfDestruct.ReadAt,
		&message.SelfDestruct.DestroyAt,
		&message.CreatedAt,
		&message.Destroyed,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}

	if len(readBy) > 0 {
		if err := json.Unmarshal(readBy, &message.ReadBy); err != nil {
			return nil, fmt.Errorf("unmarshal read receipts: %w", err)
		}
	}

	return &message, nil
}

// Save upserts the message's lifecycle fields.
func (r *MessageRepository) Save(ctx context.Context, message domain.Message) error {
	readBy, err := marshalReadReceipts(message.ReadBy)
	if err != nil {
		return err
	}

	sql, args, err := r.builder.Insert("chat.messages").
		Columns(
			"id",
			"room_id",
			"sender_id",
			"ciphertext",
			"read_by",
			"sd_enabled",
			"sd_timer_seconds",
			"sd_read_at",
			"sd_destroy_at",
			"created_at",
			"destroyed",
		).
		Values(
			message.ID,
			message.RoomID,
			message.SenderID,
			message.Ciphertext,
			readBy,
			message.SelfDestruct.Enabled,
			message.SelfDestruct.TimerSeconds,
			message.SelfDestruct.ReadAt,
			message.SelfDestruct.DestroyAt,
			message.CreatedAt,
			message.Destroyed,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			read_by = EXCLUDED.read_by,
			sd_read_at = EXCLUDED.sd_read_at,
			sd_destroy_at = EXCLUDED.sd_destroy_at,
			destroyed = EXCLUDED.destroyed,
			ciphertext = EXCLUDED.ciphertext`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert message sql: %w", err)
	}

	if _, err := r.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

// MarkDestroyed scrubs content and records the terminal state. Idempotent:
// re-marking an already destroyed message is a no-op, not an error.
func (r *MessageRepository) MarkDestroyed(ctx context.Context, messageID string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE chat.messages SET destroyed = TRUE, ciphertext = NULL WHERE id = $1",
		messageID,
	)
	if err != nil {
		return fmt.Errorf("mark message destroyed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func marshalReadReceipts(receipts []domain.ReadReceipt) ([]byte, error) {
	if len(receipts) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(receipts)
	if err != nil {
		return nil, fmt.Errorf("marshal read receipts: %w", err)
	}
	return payload, nil
}

var _ port.MessageRepository = (*MessageRepository)(nil)
