package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/infra/security"
	"github.com/arklim/social-platform-chat/internal/repository/memory"
	"github.com/arklim/social-platform-chat/internal/usecase"
)

func newRiskRouter(t *testing.T, userID string) (*gin.Engine, *memory.ActivityLog) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	activity := memory.NewActivityLog()
	patterns := memory.NewUserPatternStore()
	svc := usecase.NewAnomalyService(activity, patterns, security.NewFingerprintHasher(), nil, zaptest.NewLogger(t))

	router := gin.New()
	handler := NewRiskHandler(svc)

	riskGroup := router.Group("/risk")
	riskGroup.Use(asUser(userID))
	handler.RegisterRoutes(riskGroup)

	adminGroup := router.Group("/admin")
	handler.RegisterAdminRoutes(adminGroup)

	return router, activity
}

func seedFailedLogins(t *testing.T, activity *memory.ActivityLog, userID string, count int) {
	t.Helper()
	now := time.Now()
	for i := 0; i < count; i++ {
		err := activity.Append(context.Background(), userID, domain.ActivityEntry{
			ID:        uuid.NewString(),
			Type:      domain.ActivityLoginFailed,
			Timestamp: now.Add(-time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("seed activity: %v", err)
		}
	}
}

func TestLogActivityReportsFailedLoginAnomaly(t *testing.T) {
	router, activity := newRiskRouter(t, "victim")
	seedFailedLogins(t, activity, "victim", 3)

	rr := postJSON(t, router, "/risk/activity", LogActivityRequest{Type: string(domain.ActivityLogin)})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	envelope := decodeEnvelope(t, rr.Body)
	data := envelope.Data.(map[string]any)
	if data["level"] != string(domain.RiskCritical) {
		t.Fatalf("expected critical risk level, got %v", data["level"])
	}
	if data["score"] != float64(10) {
		t.Fatalf("expected score 10, got %v", data["score"])
	}

	anomalies := data["anomalies"].([]any)
	found := false
	for _, raw := range anomalies {
		if raw.(map[string]any)["type"] == string(domain.AnomalyFailedLogins) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected failed-login anomaly in report: %v", anomalies)
	}

	// The login itself must have been recorded after scoring.
	count, err := activity.CountSince(context.Background(), "victim", domain.ActivityLogin, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("count logins: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected the login to be logged, got %d entries", count)
	}
}

func TestLogActivityRejectsUnknownType(t *testing.T) {
	router, _ := newRiskRouter(t, "victim")

	rr := postJSON(t, router, "/risk/activity", LogActivityRequest{Type: "teleport"})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestAdminRiskReportCleanUser(t *testing.T) {
	router, _ := newRiskRouter(t, "victim")

	req := httptest.NewRequest(http.MethodGet, "/admin/risk/victim", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	envelope := decodeEnvelope(t, rr.Body)
	data := envelope.Data.(map[string]any)
	if data["level"] != string(domain.RiskNone) {
		t.Fatalf("expected none risk level, got %v", data["level"])
	}
	if data["score"] != float64(0) {
		t.Fatalf("expected score 0, got %v", data["score"])
	}
}

func TestAdminClearActivity(t *testing.T) {
	router, activity := newRiskRouter(t, "victim")
	seedFailedLogins(t, activity, "victim", 3)

	req := httptest.NewRequest(http.MethodDelete, "/admin/activity/victim", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if got := activity.Len("victim"); got != 0 {
		t.Fatalf("expected empty log after clear, got %d entries", got)
	}
}
