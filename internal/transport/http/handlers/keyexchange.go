package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-chat/internal/repository"
	"github.com/arklim/social-platform-chat/internal/transport/http/middleware"
	"github.com/arklim/social-platform-chat/internal/usecase"
)

// KeyExchangeHandler exposes the REST equivalents of the realtime key
// exchange surface.
type KeyExchangeHandler struct {
	keys *usecase.KeyExchangeService
}

// NewKeyExchangeHandler constructs a key exchange handler.
func NewKeyExchangeHandler(keys *usecase.KeyExchangeService) *KeyExchangeHandler {
	return &KeyExchangeHandler{keys: keys}
}

// RegisterRoutes binds the key exchange routes to the provided router group.
func (h *KeyExchangeHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/initiate", h.Initiate)
	r.POST("/complete", h.Complete)
	r.POST("/rotate", h.Rotate)
	r.GET("/active/:room_id", h.GetActive)
	r.DELETE("/sessions/:session_id", h.Revoke)
	r.DELETE("/rooms/:room_id", h.RevokeRoom)
}

func (h *KeyExchangeHandler) errorCases() []ErrorCase {
	return []ErrorCase{
		{Err: usecase.ErrAccessDenied, Status: http.StatusForbidden, Message: "caller is not a room participant"},
		{Err: usecase.ErrSessionNotFound, Status: http.StatusNotFound, Message: "session not found"},
		{Err: usecase.ErrSessionExpired, Status: http.StatusUnauthorized, Message: "session expired"},
		{Err: usecase.ErrEncryptionDisabled, Status: http.StatusBadRequest, Message: "encryption not enabled for room"},
		{Err: repository.ErrNotFound, Status: http.StatusNotFound, Message: "not found"},
	}
}

// Initiate starts a key exchange: fresh key material is generated and the
// caller's active session for the room is created or overwritten.
func (h *KeyExchangeHandler) Initiate(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req InitiateKeyExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "roomId and publicKey are required"))
		return
	}

	session, err := h.keys.Initiate(c.Request.Context(), userID, req.RoomID, req.PublicKey)
	if err != nil {
		RespondWithMappedError(c, err, h.errorCases(), http.StatusInternalServerError, "failed to initiate key exchange")
		return
	}

	c.JSON(http.StatusCreated, NewSuccessResponse(newSessionPayload(*session)))
}

// Complete records the responding peer's side of a two-sided exchange as a
// brand-new session.
func (h *KeyExchangeHandler) Complete(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req CompleteKeyExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "roomId, publicKey and sessionKey are required"))
		return
	}

	session, err := h.keys.Complete(c.Request.Context(), userID, req.RoomID, req.PublicKey, req.SessionKey)
	if err != nil {
		RespondWithMappedError(c, err, h.errorCases(), http.StatusInternalServerError, "failed to complete key exchange")
		return
	}

	c.JSON(http.StatusCreated, NewSuccessResponse(newSessionPayload(*session)))
}

// Rotate replaces the caller's active key material in place.
func (h *KeyExchangeHandler) Rotate(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req RotateKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "roomId and newSessionKey are required"))
		return
	}

	session, err := h.keys.Rotate(c.Request.Context(), userID, req.RoomID, req.NewSessionKey, req.NewPublicKey)
	if err != nil {
		RespondWithMappedError(c, err, h.errorCases(), http.StatusInternalServerError, "failed to rotate keys")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(newSessionPayload(*session)))
}

// GetActive returns the caller's active session for a room, enforcing lazy
// expiry.
func (h *KeyExchangeHandler) GetActive(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	roomID := c.Param("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "room_id is required"))
		return
	}

	session, err := h.keys.GetActive(c.Request.Context(), userID, roomID)
	if err != nil {
		RespondWithMappedError(c, err, h.errorCases(), http.StatusInternalServerError, "failed to fetch session")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(newSessionPayload(*session)))
}

// Revoke deactivates one of the caller's own sessions.
func (h *KeyExchangeHandler) Revoke(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "session_id is required"))
		return
	}

	var req RevokeSessionRequest
	_ = c.ShouldBindJSON(&req)

	if err := h.keys.Revoke(c.Request.Context(), sessionID, userID, req.Reason); err != nil {
		RespondWithMappedError(c, err, h.errorCases(), http.StatusInternalServerError, "failed to revoke session")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(MessageResponse{Message: "session revoked"}))
}

// RevokeRoom deactivates every active session in a room the caller belongs to.
func (h *KeyExchangeHandler) RevokeRoom(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	roomID := c.Param("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "room_id is required"))
		return
	}

	var req RevokeSessionRequest
	_ = c.ShouldBindJSON(&req)

	revoked, err := h.keys.RevokeAllForRoom(c.Request.Context(), roomID, userID, req.Reason)
	if err != nil {
		RespondWithMappedError(c, err, h.errorCases(), http.StatusInternalServerError, "failed to revoke room sessions")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(RevokeRoomResponse{Revoked: revoked}))
}
