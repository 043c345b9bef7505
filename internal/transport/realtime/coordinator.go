package realtime

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-chat/internal/core/port"
	"github.com/arklim/social-platform-chat/internal/usecase"
)

// Event names of the key exchange and message lifecycle protocol. The socket
// layer subscribes to the bus and fans these out to connected clients.
const (
	EventKeyExchangeInitiated = "key-exchange-initiated"
	EventKeyExchangeRequest   = "key-exchange-request"
	EventKeyExchangeCompleted = "key-exchange-completed"
	EventKeyExchangeAccepted  = "key-exchange-accepted"
	EventKeysRotated          = "keys-rotated"
	EventKeysRotationNotice   = "keys-rotation-notification"
	EventSessionKeyResponse   = "session-key-response"
	EventKeyExchangeError     = "key-exchange-error"
)

// InitiateKeyExchange is the client payload opening an exchange for a room.
type InitiateKeyExchange struct {
	RoomID    string `json:"roomId"`
	PublicKey []byte `json:"publicKey"`
}

// AcceptKeyExchange is the responding peer's payload; it carries the agreed
// session key alongside the responder's public key.
type AcceptKeyExchange struct {
	RoomID     string `json:"roomId"`
	SessionID  string `json:"sessionId"`
	PublicKey  []byte `json:"publicKey"`
	SessionKey []byte `json:"sessionKey"`
}

// RotateKeys is the client payload replacing active key material.
type RotateKeys struct {
	RoomID        string `json:"roomId"`
	NewSessionKey []byte `json:"newSessionKey"`
	NewPublicKey  []byte `json:"newPublicKey"`
}

// Coordinator maps realtime protocol events onto the usecases and fans the
// results back out over the bus. Each handler answers the caller directly and
// broadcasts to the room where the protocol requires it.
type Coordinator struct {
	keys     *usecase.KeyExchangeService
	messages *usecase.MessageLifecycleService
	bus      port.RealtimeBus
	logger   *zap.Logger
}

// NewCoordinator constructs a realtime coordinator.
func NewCoordinator(keys *usecase.KeyExchangeService, messages *usecase.MessageLifecycleService, bus port.RealtimeBus, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{keys: keys, messages: messages, bus: bus, logger: logger}
}

// HandleInitiateKeyExchange opens an exchange: key material goes back to the
// caller only; the room sees the caller's public key and the session ID.
func (c *Coordinator) HandleInitiateKeyExchange(ctx context.Context, userID string, req InitiateKeyExchange) error {
	session, err := c.keys.Initiate(ctx, userID, req.RoomID, req.PublicKey)
	if err != nil {
		return c.sendError(ctx, userID, "initiate-key-exchange", err)
	}

	if err := c.bus.SendToUser(ctx, userID, port.RealtimeEvent{
		Name: EventKeyExchangeInitiated,
		Payload: map[string]any{
			"sessionId":  session.ID,
			"sessionKey": session.SessionKey,
			"sessionIV":  session.SessionIV,
		},
	}); err != nil {
		return err
	}

	return c.bus.PublishToRoom(ctx, req.RoomID, port.RealtimeEvent{
		Name: EventKeyExchangeRequest,
		Payload: map[string]any{
			"userId":    userID,
			"publicKey": req.PublicKey,
			"sessionId": session.ID,
		},
	})
}

// HandleAcceptKeyExchange records the responder's side of the exchange.
func (c *Coordinator) HandleAcceptKeyExchange(ctx context.Context, userID string, req AcceptKeyExchange) error {
	session, err := c.keys.Complete(ctx, userID, req.RoomID, req.PublicKey, req.SessionKey)
	if err != nil {
		return c.sendError(ctx, userID, "accept-key-exchange", err)
	}

	if err := c.bus.SendToUser(ctx, userID, port.RealtimeEvent{
		Name: EventKeyExchangeCompleted,
		Payload: map[string]any{
			"sessionId":  session.ID,
			"sessionIV":  session.SessionIV,
			"keyVersion": session.KeyVersion,
			"expiresAt":  session.ExpiresAt,
		},
	}); err != nil {
		return err
	}

	return c.bus.PublishToRoom(ctx, req.RoomID, port.RealtimeEvent{
		Name: EventKeyExchangeAccepted,
		Payload: map[string]any{
			"userId":    userID,
			"sessionId": session.ID,
		},
	})
}

// HandleRotateKeys rotates the caller's active session and notifies the room
// of the new version, without leaking key material to it.
func (c *Coordinator) HandleRotateKeys(ctx context.Context, userID string, req RotateKeys) error {
	session, err := c.keys.Rotate(ctx, userID, req.RoomID, req.NewSessionKey, req.NewPublicKey)
	if err != nil {
		return c.sendError(ctx, userID, "rotate-keys", err)
	}

	if err := c.bus.SendToUser(ctx, userID, port.RealtimeEvent{
		Name: EventKeysRotated,
		Payload: map[string]any{
			"keyVersion":    session.KeyVersion,
			"rotationCount": session.RotationCount,
		},
	}); err != nil {
		return err
	}

	return c.bus.PublishToRoom(ctx, req.RoomID, port.RealtimeEvent{
		Name: EventKeysRotationNotice,
		Payload: map[string]any{
			"userId":     userID,
			"keyVersion": session.KeyVersion,
		},
	})
}

// HandleRequestSessionKey returns the caller's active key material for a
// room, or a structured error when the session is gone or expired.
func (c *Coordinator) HandleRequestSessionKey(ctx context.Context, userID, roomID string) error {
	session, err := c.keys.GetActive(ctx, userID, roomID)
	if err != nil {
		return c.sendError(ctx, userID, "request-session-key", err)
	}

	return c.bus.SendToUser(ctx, userID, port.RealtimeEvent{
		Name: EventSessionKeyResponse,
		Payload: map[string]any{
			"sessionKey": session.SessionKey,
			"sessionIV":  session.SessionIV,
			"publicKey":  session.PublicKey,
			"keyVersion": session.KeyVersion,
			"expiresAt":  session.ExpiresAt,
		},
	})
}

// HandleMessageRead records a read receipt; the lifecycle service broadcasts
// the receipt and any later destruction itself.
func (c *Coordinator) HandleMessageRead(ctx context.Context, userID, messageID string) error {
	_, err := c.messages.MarkAsRead(ctx, messageID, userID)
	if err != nil {
		c.logger.Warn("message read failed",
			zap.String("message_id", messageID),
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
	return err
}

func (c *Coordinator) sendError(ctx context.Context, userID, operation string, cause error) error {
	payload := map[string]any{
		"operation": operation,
		"code":      errorCode(cause),
		"message":   cause.Error(),
	}

	if err := c.bus.SendToUser(ctx, userID, port.RealtimeEvent{Name: EventKeyExchangeError, Payload: payload}); err != nil {
		c.logger.Warn("deliver error event failed",
			zap.String("user_id", userID), zap.Error(err))
	}

	return cause
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, usecase.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, usecase.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, usecase.ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, usecase.ErrEncryptionDisabled):
		return "encryption_disabled"
	default:
		return "internal_error"
	}
}
