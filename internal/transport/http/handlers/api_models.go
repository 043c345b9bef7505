package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/social-platform-chat/internal/core/domain"
)

// APIResponse is the uniform envelope returned by every endpoint: data on
// success, a human-readable message otherwise.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewSuccessResponse wraps a payload in the success envelope.
func NewSuccessResponse(data any) APIResponse {
	return APIResponse{Success: true, Data: data}
}

// NewErrorResponse creates an error envelope with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) APIResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return APIResponse{
		Success: false,
		Message: errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports liveness status.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadyResponse reports readiness of each backing dependency.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// InitiateKeyExchangeRequest starts a key exchange for a room.
type InitiateKeyExchangeRequest struct {
	RoomID    string `json:"roomId" binding:"required"`
	PublicKey []byte `json:"publicKey" binding:"required"`
}

// CompleteKeyExchangeRequest is sent by the responding peer with its own key
// material.
type CompleteKeyExchangeRequest struct {
	RoomID     string `json:"roomId" binding:"required"`
	PublicKey  []byte `json:"publicKey" binding:"required"`
	SessionKey []byte `json:"sessionKey" binding:"required"`
}

// RotateKeysRequest replaces the key material of the caller's active session.
type RotateKeysRequest struct {
	RoomID        string `json:"roomId" binding:"required"`
	NewSessionKey []byte `json:"newSessionKey" binding:"required"`
	NewPublicKey  []byte `json:"newPublicKey"`
}

// RevokeSessionRequest carries the optional audit reason for a revocation.
type RevokeSessionRequest struct {
	Reason string `json:"reason"`
}

// RevokeRoomResponse reports how many sessions a room-wide revocation hit.
type RevokeRoomResponse struct {
	Revoked int `json:"revoked"`
}

// SessionPayload is the wire form of a crypto session. Byte fields marshal as
// base64; the blobs stay opaque end to end.
type SessionPayload struct {
	SessionID     string    `json:"sessionId"`
	UserID        string    `json:"userId"`
	RoomID        string    `json:"roomId"`
	SessionKey    []byte    `json:"sessionKey,omitempty"`
	SessionIV     []byte    `json:"sessionIV,omitempty"`
	PublicKey     []byte    `json:"publicKey,omitempty"`
	KeyVersion    int       `json:"keyVersion"`
	RotationCount int       `json:"rotationCount"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
	IsActive      bool      `json:"isActive"`
}

func newSessionPayload(session domain.Session) SessionPayload {
	return SessionPayload{
		SessionID:     session.ID,
		UserID:        session.UserID,
		RoomID:        session.RoomID,
		SessionKey:    session.SessionKey,
		SessionIV:     session.SessionIV,
		PublicKey:     session.PublicKey,
		KeyVersion:    session.KeyVersion,
		RotationCount: session.RotationCount,
		CreatedAt:     session.CreatedAt,
		ExpiresAt:     session.ExpiresAt,
		IsActive:      session.IsActive,
	}
}

// ReadReceiptPayload is one user's read record on a message.
type ReadReceiptPayload struct {
	UserID string    `json:"userId"`
	ReadAt time.Time `json:"readAt"`
}

// SelfDestructPayload mirrors the destruction policy and its progress.
type SelfDestructPayload struct {
	Enabled      bool       `json:"enabled"`
	TimerSeconds int        `json:"timerSeconds"`
	ReadAt       *time.Time `json:"readAt,omitempty"`
	DestroyAt    *time.Time `json:"destroyAt,omitempty"`
}

// MessagePayload is the lifecycle view of a message; ciphertext is never
// included in lifecycle responses.
type MessagePayload struct {
	MessageID    string               `json:"messageId"`
	RoomID       string               `json:"roomId"`
	SenderID     string               `json:"senderId"`
	ReadBy       []ReadReceiptPayload `json:"readBy"`
	SelfDestruct SelfDestructPayload  `json:"selfDestruct"`
	State        string               `json:"state"`
	CreatedAt    time.Time            `json:"createdAt"`
}

func newMessagePayload(message domain.Message, at time.Time) MessagePayload {
	receipts := make([]ReadReceiptPayload, 0, len(message.ReadBy))
	for _, r := range message.ReadBy {
		receipts = append(receipts, ReadReceiptPayload{UserID: r.UserID, ReadAt: r.ReadAt})
	}

	return MessagePayload{
		MessageID: message.ID,
		RoomID:    message.RoomID,
		SenderID:  message.SenderID,
		ReadBy:    receipts,
		SelfDestruct: SelfDestructPayload{
			Enabled:      message.SelfDestruct.Enabled,
			TimerSeconds: message.SelfDestruct.TimerSeconds,
			ReadAt:       message.SelfDestruct.ReadAt,
			DestroyAt:    message.SelfDestruct.DestroyAt,
		},
		State:     string(message.State(at)),
		CreatedAt: message.CreatedAt,
	}
}

// LogActivityRequest records one behavioral observation for the caller and
// triggers the matching detectors.
type LogActivityRequest struct {
	Type              string         `json:"type" binding:"required"`
	Latitude          *float64       `json:"latitude"`
	Longitude         *float64       `json:"longitude"`
	DeviceFingerprint string         `json:"deviceFingerprint"`
	FileSizeBytes     int64          `json:"fileSizeBytes"`
	Metadata          map[string]any `json:"metadata"`
}

// AnomalyPayload is a single detector finding.
type AnomalyPayload struct {
	Type       string         `json:"type"`
	Severity   string         `json:"severity"`
	DetectedAt time.Time      `json:"detectedAt"`
	Details    map[string]any `json:"details,omitempty"`
}

// RiskReportPayload is the aggregate anomaly sweep outcome for one user.
type RiskReportPayload struct {
	UserID    string           `json:"userId"`
	Score     int              `json:"score"`
	Level     string           `json:"level"`
	Anomalies []AnomalyPayload `json:"anomalies"`
	CheckedAt time.Time        `json:"checkedAt"`
}

func newRiskReportPayload(report domain.RiskReport) RiskReportPayload {
	anomalies := make([]AnomalyPayload, 0, len(report.Anomalies))
	for _, a := range report.Anomalies {
		anomalies = append(anomalies, AnomalyPayload{
			Type:       string(a.Type),
			Severity:   string(a.Severity),
			DetectedAt: a.DetectedAt,
			Details:    a.Details,
		})
	}

	return RiskReportPayload{
		UserID:    report.UserID,
		Score:     report.Score,
		Level:     string(report.Level),
		Anomalies: anomalies,
		CheckedAt: report.CheckedAt,
	}
}
