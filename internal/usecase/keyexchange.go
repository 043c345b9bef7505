package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/core/port"
	"github.com/arklim/social-platform-chat/internal/repository"
)

var (
	// ErrAccessDenied indicates the caller is not a participant of the room.
	ErrAccessDenied = errors.New("caller is not a room participant")
	// ErrSessionNotFound indicates no active session exists for the key.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session's renewable window has elapsed.
	ErrSessionExpired = errors.New("session expired")
	// ErrEncryptionDisabled indicates the room does not require encryption.
	ErrEncryptionDisabled = errors.New("encryption not enabled for room")
)

// KeyExchangeService owns the per-(user, room) session lifecycle: initiate,
// complete, rotate, lazy expiry and revocation. Writes race under
// last-writer-wins; the repository guarantees per-key atomicity.
type KeyExchangeService struct {
	sessions port.SessionRepository
	rooms    port.RoomRepository
	keygen   port.KeyMaterialGenerator
	events   port.EventPublisher
	logger   *zap.Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewKeyExchangeService constructs a KeyExchangeService.
func NewKeyExchangeService(sessions port.SessionRepository, rooms port.RoomRepository, keygen port.KeyMaterialGenerator, events port.EventPublisher, logger *zap.Logger) *KeyExchangeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &KeyExchangeService{
		sessions: sessions,
		rooms:    rooms,
		keygen:   keygen,
		events:   events,
		logger:   logger,
		ttl:      domain.DefaultSessionTTL,
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *KeyExchangeService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithSessionTTL overrides the renewable validity window.
func (s *KeyExchangeService) WithSessionTTL(ttl time.Duration) *KeyExchangeService {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// Initiate starts (or restarts) a key exchange for the caller in the room.
// Fresh key material is generated; an existing active session for the same
// key is overwritten in place with its version bumped, so counters stay
// monotonic across re-initiates.
func (s *KeyExchangeService) Initiate(ctx context.Context, userID, roomID string, publicKey []byte) (*domain.Session, error) {
	if err := s.requireMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}

	key, iv, err := s.keygen.NewSessionKey()
	if err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}

	now := s.now()
	session := domain.Session{
		ID:            uuid.NewString(),
		UserID:        userID,
		RoomID:        roomID,
		SessionKey:    key,
		SessionIV:     iv,
		PublicKey:     publicKey,
		KeyVersion:    1,
		RotationCount: 0,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
		IsActive:      true,
	}

	existing, err := s.sessions.GetActive(ctx, userID, roomID)
	switch {
	case err == nil:
		// Keep the record's identity and history; only the key material and
		// window are replaced. Last writer wins on concurrent initiates.
		session.ID = existing.ID
		session.CreatedAt = existing.CreatedAt
		session.KeyVersion = existing.KeyVersion + 1
		session.RotationCount = existing.RotationCount
		if existing.ExpiresAt.After(session.ExpiresAt) {
			session.ExpiresAt = existing.ExpiresAt
		}
	case errors.Is(err, repository.ErrNotFound):
		// First exchange for this key.
	default:
		return nil, fmt.Errorf("load existing session: %w", err)
	}

	if err := s.sessions.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}

	s.logger.Info("key exchange initiated",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.String("room_id", roomID),
		zap.Int("key_version", session.KeyVersion),
	)

	return &session, nil
}

// Complete records the responding peer's side of a two-sided exchange as a
// brand-new session. The peer supplies the agreed session key; the IV is
// generated fresh.
func (s *KeyExchangeService) Complete(ctx context.Context, userID, roomID string, publicKey, sessionKey []byte) (*domain.Session, error) {
	if err := s.requireMembership(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if len(sessionKey) == 0 {
		return nil, fmt.Errorf("session key is required")
	}

	_, iv, err := s.keygen.NewSessionKey()
	if err != nil {
		return nil, fmt.Errorf("generate session iv: %w", err)
	}

	now := s.now()
	session := domain.Session{
		ID:            uuid.NewString(),
		UserID:        userID,
		RoomID:        roomID,
		SessionKey:    sessionKey,
		SessionIV:     iv,
		PublicKey:     publicKey,
		KeyVersion:    1,
		RotationCount: 0,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
		IsActive:      true,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.logger.Info("key exchange completed",
		zap.String("session_id", session.ID),
		zap.String("user_id", userID),
		zap.String("room_id", roomID),
	)

	return &session, nil
}

// Rotate replaces the caller's active session key in place for forward
// secrecy. Fails with ErrSessionNotFound when no active session exists and
// ErrSessionExpired when the window has lapsed; neither is retried here, the
// client must re-initiate.
func (s *KeyExchangeService) Rotate(ctx context.Context, userID, roomID string, newSessionKey, newPublicKey []byte) (*domain.Session, error) {
	if len(newSessionKey) == 0 {
		return nil, fmt.Errorf("new session key is required")
	}

	session, err := s.GetActive(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}

	session.Rotate(newSessionKey, newPublicKey, s.now())

	if err := s.sessions.Update(ctx, *session); err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}

	s.publishKeysRotated(ctx, session)

	return session, nil
}

// GetActive fetches the caller's session for the room, enforcing expiry
// lazily: a record read past its window is deactivated, persisted and
// reported as expired without leaking key material.
func (s *KeyExchangeService) GetActive(ctx context.Context, userID, roomID string) (*domain.Session, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(roomID) == "" {
		return nil, fmt.Errorf("user id and room id are required")
	}

	session, err := s.sessions.GetActive(ctx, userID, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	if session.IsExpired(s.now()) {
		session.Deactivate()
		if err := s.sessions.Update(ctx, *session); err != nil {
			s.logger.Warn("persist lazy expiry failed",
				zap.String("session_id", session.ID), zap.Error(err))
		}
		return nil, ErrSessionExpired
	}

	return session, nil
}

// Revoke deactivates a session the caller owns.
func (s *KeyExchangeService) Revoke(ctx context.Context, sessionID, userID, reason string) error {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("get session: %w", err)
	}

	if session.UserID != userID {
		return ErrAccessDenied
	}

	if !session.Deactivate() {
		return nil
	}

	if err := s.sessions.Update(ctx, *session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	s.publishSessionRevoked(ctx, session, userID, normalizeReason(reason, "user_revoke"))

	return nil
}

// RevokeAllForRoom deactivates every active session in the room, used when a
// room's security posture must be reset. The caller must be a participant.
func (s *KeyExchangeService) RevokeAllForRoom(ctx context.Context, roomID, requestedBy, reason string) (int, error) {
	if err := s.requireMembership(ctx, roomID, requestedBy); err != nil {
		return 0, err
	}

	count, err := s.sessions.DeactivateAllForRoom(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("deactivate sessions for room: %w", err)
	}

	if count > 0 && s.events != nil {
		event := domain.SessionRevokedEvent{
			EventID:   uuid.NewString(),
			RoomID:    roomID,
			RevokedAt: s.now(),
			RevokedBy: requestedBy,
			Reason:    normalizeReason(reason, "room_reset"),
			Metadata:  map[string]any{"sessions_revoked": count},
		}
		if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
			s.logger.Warn("publish room revocation failed",
				zap.String("room_id", roomID), zap.Error(err))
		}
	}

	s.logger.Info("room sessions revoked",
		zap.String("room_id", roomID),
		zap.String("requested_by", requestedBy),
		zap.Int("count", count),
	)

	return count, nil
}

// RequiresEncryption reports whether the room mandates encrypted payloads.
func (s *KeyExchangeService) RequiresEncryption(ctx context.Context, roomID string) (bool, error) {
	enabled, err := s.rooms.IsEncryptionEnabled(ctx, roomID)
	if err != nil {
		return false, fmt.Errorf("check room encryption: %w", err)
	}
	return enabled, nil
}

func (s *KeyExchangeService) requireMembership(ctx context.Context, roomID, userID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(roomID) == "" {
		return fmt.Errorf("user id and room id are required")
	}
	member, err := s.rooms.IsMember(ctx, roomID, userID)
	if err != nil {
		return fmt.Errorf("check room membership: %w", err)
	}
	if !member {
		return ErrAccessDenied
	}
	return nil
}

func (s *KeyExchangeService) publishKeysRotated(ctx context.Context, session *domain.Session) {
	if s.events == nil {
		return
	}
	event := domain.KeysRotatedEvent{
		EventID:       uuid.NewString(),
		SessionID:     session.ID,
		UserID:        session.UserID,
		RoomID:        session.RoomID,
		KeyVersion:    session.KeyVersion,
		RotationCount: session.RotationCount,
		RotatedAt:     s.now(),
	}
	if err := s.events.PublishKeysRotated(ctx, event); err != nil {
		s.logger.Warn("publish keys rotated failed",
			zap.String("session_id", session.ID), zap.Error(err))
	}
}

func (s *KeyExchangeService) publishSessionRevoked(ctx context.Context, session *domain.Session, revokedBy, reason string) {
	if s.events == nil {
		return
	}
	event := domain.SessionRevokedEvent{
		EventID:   uuid.NewString(),
		SessionID: session.ID,
		UserID:    session.UserID,
		RoomID:    session.RoomID,
		RevokedAt: s.now(),
		RevokedBy: revokedBy,
		Reason:    reason,
	}
	if err := s.events.PublishSessionRevoked(ctx, event); err != nil {
		s.logger.Warn("publish session revoked failed",
			zap.String("session_id", session.ID), zap.Error(err))
	}
}

func normalizeReason(reason, fallback string) string {
	trimmed := strings.TrimSpace(strings.ToLower(reason))
	if trimmed == "" {
		return fallback
	}
	return strings.ReplaceAll(trimmed, " ", "_")
}
