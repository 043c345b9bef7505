package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/social-platform-chat/internal/infra/security"
	"github.com/arklim/social-platform-chat/internal/repository/memory"
	"github.com/arklim/social-platform-chat/internal/transport/http/middleware"
	"github.com/arklim/social-platform-chat/internal/usecase"
)

func asUser(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Next()
	}
}

func newKeyExchangeRouter(t *testing.T, userID string) (*gin.Engine, *usecase.KeyExchangeService, *memory.RoomRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions := memory.NewSessionRepository()
	rooms := memory.NewRoomRepository()
	svc := usecase.NewKeyExchangeService(sessions, rooms, security.NewKeyGenerator(), nil, zaptest.NewLogger(t))

	router := gin.New()
	group := router.Group("/keys")
	group.Use(asUser(userID))
	NewKeyExchangeHandler(svc).RegisterRoutes(group)

	return router, svc, rooms
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) APIResponse {
	t.Helper()
	var envelope APIResponse
	if err := json.Unmarshal(body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return envelope
}

func postJSON(t *testing.T, router *gin.Engine, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestInitiateCreatesSession(t *testing.T) {
	router, _, rooms := newKeyExchangeRouter(t, "alice")
	rooms.AddMember("room-1", "alice")

	rr := postJSON(t, router, "/keys/initiate", InitiateKeyExchangeRequest{
		RoomID:    "room-1",
		PublicKey: []byte("alice-pub"),
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}

	envelope := decodeEnvelope(t, rr.Body)
	if !envelope.Success {
		t.Fatalf("expected success envelope, got %+v", envelope)
	}

	data, ok := envelope.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected object data, got %T", envelope.Data)
	}
	if data["keyVersion"] != float64(1) {
		t.Fatalf("expected keyVersion 1, got %v", data["keyVersion"])
	}
	if data["sessionKey"] == nil || data["sessionKey"] == "" {
		t.Fatalf("expected session key material in response")
	}
	if data["userId"] != "alice" || data["roomId"] != "room-1" {
		t.Fatalf("unexpected ownership fields: %+v", data)
	}
}

func TestInitiateRejectsNonMember(t *testing.T) {
	router, _, rooms := newKeyExchangeRouter(t, "mallory")
	rooms.AddMember("room-1", "alice")

	rr := postJSON(t, router, "/keys/initiate", InitiateKeyExchangeRequest{
		RoomID:    "room-1",
		PublicKey: []byte("mallory-pub"),
	})

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}

	envelope := decodeEnvelope(t, rr.Body)
	if envelope.Success {
		t.Fatalf("expected failure envelope")
	}
}

func TestInitiateValidation(t *testing.T) {
	router, _, _ := newKeyExchangeRouter(t, "alice")

	rr := postJSON(t, router, "/keys/initiate", map[string]any{"roomId": "room-1"})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing publicKey, got %d", rr.Code)
	}
}

func TestRotateWithoutActiveSession(t *testing.T) {
	router, _, rooms := newKeyExchangeRouter(t, "alice")
	rooms.AddMember("room-1", "alice")

	rr := postJSON(t, router, "/keys/rotate", RotateKeysRequest{
		RoomID:        "room-1",
		NewSessionKey: []byte("fresh-key"),
	})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGetActiveLazyExpiry(t *testing.T) {
	router, svc, rooms := newKeyExchangeRouter(t, "alice")
	rooms.AddMember("room-1", "alice")

	past := time.Now().Add(-48 * time.Hour)
	svc.WithClock(func() time.Time { return past })

	rr := postJSON(t, router, "/keys/initiate", InitiateKeyExchangeRequest{
		RoomID:    "room-1",
		PublicKey: []byte("alice-pub"),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed initiate failed: %d", rr.Code)
	}

	svc.WithClock(time.Now)

	req := httptest.NewRequest(http.MethodGet, "/keys/active/room-1", nil)
	get := httptest.NewRecorder()
	router.ServeHTTP(get, req)

	if get.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired session, got %d: %s", get.Code, get.Body.String())
	}

	envelope := decodeEnvelope(t, get.Body)
	if envelope.Success || envelope.Data != nil {
		t.Fatalf("expired session must not leak key material: %+v", envelope)
	}
}

func TestRevokeRejectsForeignSession(t *testing.T) {
	gin.SetMode(gin.TestMode)

	sessions := memory.NewSessionRepository()
	rooms := memory.NewRoomRepository()
	rooms.AddMember("room-1", "alice")
	rooms.AddMember("room-1", "bob")
	svc := usecase.NewKeyExchangeService(sessions, rooms, security.NewKeyGenerator(), nil, zaptest.NewLogger(t))

	aliceRouter := gin.New()
	aliceGroup := aliceRouter.Group("/keys")
	aliceGroup.Use(asUser("alice"))
	NewKeyExchangeHandler(svc).RegisterRoutes(aliceGroup)

	rr := postJSON(t, aliceRouter, "/keys/initiate", InitiateKeyExchangeRequest{
		RoomID:    "room-1",
		PublicKey: []byte("alice-pub"),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed initiate failed: %d", rr.Code)
	}
	envelope := decodeEnvelope(t, rr.Body)
	sessionID := envelope.Data.(map[string]any)["sessionId"].(string)

	bobRouter := gin.New()
	bobGroup := bobRouter.Group("/keys")
	bobGroup.Use(asUser("bob"))
	NewKeyExchangeHandler(svc).RegisterRoutes(bobGroup)

	req := httptest.NewRequest(http.MethodDelete, "/keys/sessions/"+sessionID, nil)
	del := httptest.NewRecorder()
	bobRouter.ServeHTTP(del, req)

	if del.Code != http.StatusForbidden {
		t.Fatalf("expected 403 revoking another user's session, got %d", del.Code)
	}
}

func TestRevokeRoomReportsCount(t *testing.T) {
	router, _, rooms := newKeyExchangeRouter(t, "alice")
	rooms.AddMember("room-1", "alice")

	rr := postJSON(t, router, "/keys/initiate", InitiateKeyExchangeRequest{
		RoomID:    "room-1",
		PublicKey: []byte("alice-pub"),
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("seed initiate failed: %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodDelete, "/keys/rooms/room-1", nil)
	del := httptest.NewRecorder()
	router.ServeHTTP(del, req)

	if del.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", del.Code, del.Body.String())
	}

	envelope := decodeEnvelope(t, del.Body)
	data := envelope.Data.(map[string]any)
	if data["revoked"] != float64(1) {
		t.Fatalf("expected 1 revoked session, got %v", data["revoked"])
	}
}
