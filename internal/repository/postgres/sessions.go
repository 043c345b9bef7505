package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/core/port"
	"github.com/arklim/social-platform-chat/internal/repository"
)

var sessionColumns = []string{
	"id",
	"user_id",
	"room_id",
	"session_key",
	"session_iv",
	"public_key",
	"key_version",
	"rotation_count",
	"created_at",
	"expires_at",
	"is_active",
}

// SessionRepository implements port.SessionRepository for PostgreSQL.
type SessionRepository struct {
	pool    *pgxpool.Pool
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{
		pool:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Upsert replaces the active session for (user_id, room_id) inside one
// transaction, so concurrent writers for the same pair serialize to a single
// surviving active record.
func (r *SessionRepository) Upsert(ctx context.Context, session domain.Session) error {
	return r.writeActive(ctx, session)
}

// Create inserts a session record, deactivating any other active record for
// the same (user_id, room_id).
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	return r.writeActive(ctx, session)
}

func (r *SessionRepository) writeActive(ctx context.Context, session domain.Session) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin session write: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		"UPDATE chat.crypto_sessions SET is_active = FALSE WHERE user_id = $1 AND room_id = $2 AND is_active AND id <> $3",
		session.UserID, session.RoomID, session.ID,
	); err != nil {
		return fmt.Errorf("deactivate superseded sessions: %w", err)
	}

	sql, args, err := r.builder.Insert("chat.crypto_sessions").
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.RoomID,
			session.SessionKey,
			session.SessionIV,
			session.PublicKey,
			session.KeyVersion,
			session.RotationCount,
			session.CreatedAt,
			session.ExpiresAt,
			session.IsActive,
		).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			session_key = EXCLUDED.session_key,
			session_iv = EXCLUDED.session_iv,
			public_key = EXCLUDED.public_key,
			key_version = EXCLUDED.key_version,
			rotation_count = EXCLUDED.rotation_count,
			expires_at = EXCLUDED.expires_at,
			is_active = EXCLUDED.is_active`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert session sql: %w", err)
	}

	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit session write: %w", err)
	}
	return nil
}

// Update persists an in-place mutation of an existing record.
func (r *SessionRepository) Update(ctx context.Context, session domain.Session) error {
	sql, args, err := r.builder.Update("chat.crypto_sessions").
		Set("session_key", session.SessionKey).
		Set("session_iv", session.SessionIV).
		Set("public_key", session.PublicKey).
		Set("key_version", session.KeyVersion).
		Set("rotation_count", session.RotationCount).
		Set("expires_at", session.ExpiresAt).
		Set("is_active", session.IsActive).
		Where(squirrel.Eq{"id": session.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update session sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetActive returns the single active session for the (user, room) pair.
func (r *SessionRepository) GetActive(ctx context.Context, userID, roomID string) (*domain.Session, error) {
	sql, args, err := r.builder.
		Select(sessionColumns...).
		From("chat.crypto_sessions").
		Where(squirrel.Eq{"user_id": userID, "room_id": roomID, "is_active": true}).
		OrderBy("created_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select active session sql: %w", err)
	}

	return r.scanOne(ctx, sql, args)
}

// GetByID fetches a session regardless of its active flag.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	sql, args, err := r.builder.
		Select(sessionColumns...).
		From("chat.crypto_sessions").
		Where(squirrel.Eq{"id": sessionID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session by id sql: %w", err)
	}

	return r.scanOne(ctx, sql, args)
}

// DeactivateAllForRoom flips every active session in the room off and reports
// how many changed.
func (r *SessionRepository) DeactivateAllForRoom(ctx context.Context, roomID string) (int, error) {
	tag, err := r.pool.Exec(ctx,
		"UPDATE chat.crypto_sessions SET is_active = FALSE WHERE room_id = $1 AND is_active",
		roomID,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate sessions for room: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeactivateExpired flips every active session whose window has elapsed at
// the supplied moment, used by the optional background sweep.
func (r *SessionRepository) DeactivateExpired(ctx context.Context, at time.Time) (int, error) {
	tag, err := r.pool.Exec(ctx,
		"UPDATE chat.crypto_sessions SET is_active = FALSE WHERE is_active AND expires_at <= $1",
		at,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *SessionRepository) scanOne(ctx context.Context, sql string, args []any) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, sql, args...)

	var session domain.Session
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.RoomID,
		&session.SessionKey,
		&session.SessionIV,
		&session.PublicKey,
		&session.KeyVersion,
		&session.RotationCount,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.IsActive,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
