package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arklim/social-platform-chat/internal/infra/config"
)

// Provider represents a telemetry provider handle. Request-level metrics
// live in the HTTP middleware; the provider carries the domain collectors.
type Provider struct {
	anomalyCounter   *prometheus.CounterVec
	destructionGauge prometheus.Gauge
}

// Attach configures telemetry exporters and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	anomalies := promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chat",
		Name:      "anomalies_detected_total",
		Help:      "Anomalies detected, labeled by type and severity",
	}, []string{"type", "severity"})

	pending := promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chat",
		Name:      "pending_destructions",
		Help:      "Self-destruct timers currently scheduled",
	})

	return &Provider{
		anomalyCounter:   anomalies,
		destructionGauge: pending,
	}, nil
}

// AnomalyCounter exposes the detector finding metric.
func (p *Provider) AnomalyCounter() *prometheus.CounterVec {
	if p == nil {
		return prometheus.NewCounterVec(prometheus.CounterOpts{}, []string{"type", "severity"})
	}
	return p.anomalyCounter
}

// PendingDestructions exposes the scheduled timer gauge.
func (p *Provider) PendingDestructions() prometheus.Gauge {
	if p == nil {
		return prometheus.NewGauge(prometheus.GaugeOpts{})
	}
	return p.destructionGauge
}
