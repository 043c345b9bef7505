package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/social-platform-chat/internal/core/port"
	"github.com/arklim/social-platform-chat/internal/repository"
)

// RoomRepository implements the membership and capability reads against the
// room tables owned by the messaging service.
type RoomRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// IsMember reports whether the user belongs to the room.
func (r *RoomRepository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM chat.room_members WHERE room_id = $1 AND user_id = $2)",
		roomID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check room membership: %w", err)
	}
	return exists, nil
}

// IsEncryptionEnabled reports whether the room negotiates encrypted sessions.
func (r *RoomRepository) IsEncryptionEnabled(ctx context.Context, roomID string) (bool, error) {
	sql, args, err := r.builder.
		Select("encryption_enabled").
		From("chat.rooms").
		Where(squirrel.Eq{"id": roomID}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build select room sql: %w", err)
	}

	var enabled bool
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&enabled); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, repository.ErrNotFound
		}
		return false, fmt.Errorf("scan room capability: %w", err)
	}
	return enabled, nil
}

var _ port.RoomRepository = (*RoomRepository)(nil)
