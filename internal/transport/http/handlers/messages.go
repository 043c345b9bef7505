package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-chat/internal/transport/http/middleware"
	"github.com/arklim/social-platform-chat/internal/usecase"
)

// MessageHandler exposes the message lifecycle surface: read receipts and
// explicit destruction.
type MessageHandler struct {
	messages *usecase.MessageLifecycleService
}

// NewMessageHandler constructs a message lifecycle handler.
func NewMessageHandler(messages *usecase.MessageLifecycleService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

// RegisterRoutes binds the message lifecycle routes to the provided router group.
func (h *MessageHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/:message_id/read", h.MarkAsRead)
	r.DELETE("/:message_id", h.Destroy)
}

func (h *MessageHandler) errorCases() []ErrorCase {
	return []ErrorCase{
		{Err: usecase.ErrMessageNotFound, Status: http.StatusNotFound, Message: "message not found"},
		{Err: usecase.ErrMessageDestroyed, Status: http.StatusGone, Message: "message destroyed"},
	}
}

// MarkAsRead records the caller's read receipt; the first non-sender read of
// a self-destructing message starts its timer.
func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	messageID := c.Param("message_id")
	if messageID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "message_id is required"))
		return
	}

	message, err := h.messages.MarkAsRead(c.Request.Context(), messageID, userID)
	if err != nil {
		RespondWithMappedError(c, err, h.errorCases(), http.StatusInternalServerError, "failed to mark message as read")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(newMessagePayload(*message, time.Now())))
}

// Destroy forces the terminal transition immediately, regardless of the
// self-destruct timer.
func (h *MessageHandler) Destroy(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	messageID := c.Param("message_id")
	if messageID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "message_id is required"))
		return
	}

	if err := h.messages.Destroy(c.Request.Context(), messageID, "manual"); err != nil {
		RespondWithMappedError(c, err, h.errorCases(), http.StatusInternalServerError, "failed to destroy message")
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(MessageResponse{Message: "message destroyed"}))
}
