package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/transport/http/middleware"
	"github.com/arklim/social-platform-chat/internal/usecase"
)

// RiskHandler exposes the activity log and risk report surfaces.
type RiskHandler struct {
	anomaly *usecase.AnomalyService
}

// NewRiskHandler constructs a risk handler.
func NewRiskHandler(anomaly *usecase.AnomalyService) *RiskHandler {
	return &RiskHandler{anomaly: anomaly}
}

// RegisterRoutes binds the authenticated activity route to the provided group.
func (h *RiskHandler) RegisterRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.POST("/activity", h.LogActivity)
}

// RegisterAdminRoutes binds the admin-only risk routes to the provided group.
func (h *RiskHandler) RegisterAdminRoutes(r *gin.RouterGroup) {
	if r == nil {
		return
	}

	r.GET("/risk/:user_id", h.RiskReport)
	r.DELETE("/activity/:user_id", h.ClearActivity)
}

func parseActivityType(raw string) (domain.ActivityType, bool) {
	switch domain.ActivityType(raw) {
	case domain.ActivityMessageSent, domain.ActivityLogin, domain.ActivityLoginFailed, domain.ActivityFileUpload:
		return domain.ActivityType(raw), true
	default:
		return "", false
	}
}

func activityContextFromRequest(req LogActivityRequest, at time.Time) (usecase.ActivityContext, bool) {
	kind, ok := parseActivityType(req.Type)
	if !ok {
		return usecase.ActivityContext{}, false
	}

	actx := usecase.ActivityContext{
		Type:              kind,
		DeviceFingerprint: req.DeviceFingerprint,
		FileSizeBytes:     req.FileSizeBytes,
		Metadata:          req.Metadata,
	}

	if req.Latitude != nil && req.Longitude != nil {
		actx.Location = &domain.Location{
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
			Timestamp: at,
		}
	}

	return actx, true
}

// LogActivity scores the caller against the detectors for the reported
// activity, then records it. Scoring runs first so the new entry does not
// count against itself.
func (h *RiskHandler) LogActivity(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req LogActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "type is required"))
		return
	}

	actx, ok := activityContextFromRequest(req, time.Now().UTC())
	if !ok {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown activity type"))
		return
	}

	report := h.anomaly.CheckAllAnomalies(c.Request.Context(), userID, actx)

	if err := h.anomaly.LogActivity(c.Request.Context(), userID, actx); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to record activity"))
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(newRiskReportPayload(*report)))
}

// RiskReport runs an anomaly sweep for the given user on demand. An optional
// type query parameter focuses the sweep on one activity kind.
func (h *RiskHandler) RiskReport(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user_id is required"))
		return
	}

	actx := usecase.ActivityContext{}
	if raw := c.Query("type"); raw != "" {
		kind, ok := parseActivityType(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unknown activity type"))
			return
		}
		actx.Type = kind
	}

	report := h.anomaly.CheckAllAnomalies(c.Request.Context(), userID, actx)

	c.JSON(http.StatusOK, NewSuccessResponse(newRiskReportPayload(*report)))
}

// ClearActivity drops the user's activity log and learned pattern, used for
// privacy requests.
func (h *RiskHandler) ClearActivity(c *gin.Context) {
	userID := c.Param("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "user_id is required"))
		return
	}

	if err := h.anomaly.ClearUser(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to clear activity"))
		return
	}

	c.JSON(http.StatusOK, NewSuccessResponse(MessageResponse{Message: "activity cleared"}))
}
