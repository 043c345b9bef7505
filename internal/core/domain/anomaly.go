package domain

import (
	"math"
	"time"
)

// AnomalyType identifies which detector produced an anomaly.
type AnomalyType string

const (
	AnomalyHighMessageRate   AnomalyType = "HIGH_MESSAGE_RATE"
	AnomalyHourlyMessageRate AnomalyType = "HIGH_HOURLY_MESSAGE_RATE"
	AnomalyFailedLogins      AnomalyType = "REPEATED_FAILED_LOGINS"
	AnomalyUnusualLoginHour  AnomalyType = "UNUSUAL_LOGIN_HOUR"
	AnomalyImpossibleTravel  AnomalyType = "IMPOSSIBLE_TRAVEL"
	AnomalyNewDevice         AnomalyType = "NEW_DEVICE"
	AnomalyExcessiveUploads  AnomalyType = "EXCESSIVE_FILE_UPLOADS"
	AnomalyLargeUploadVolume AnomalyType = "LARGE_UPLOAD_VOLUME"
	AnomalyOversizedFile     AnomalyType = "OVERSIZED_FILE"
)

// Severity grades an anomaly for risk aggregation.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight returns the scoring weight of the severity. Unknown severities
// contribute nothing.
func (s Severity) Weight() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 3
	case SeverityHigh:
		return 5
	case SeverityCritical:
		return 10
	default:
		return 0
	}
}

// Anomaly is a single detector finding.
type Anomaly struct {
	Type       AnomalyType
	Severity   Severity
	DetectedAt time.Time
	Details    map[string]any
}

// RiskLevel buckets a composite risk score.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevelForScore maps a composite score onto its bucket.
func RiskLevelForScore(score int) RiskLevel {
	switch {
	case score <= 0:
		return RiskNone
	case score <= 3:
		return RiskLow
	case score <= 7:
		return RiskMedium
	case score <= 15:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// RiskScore sums severity weights over the anomaly list.
func RiskScore(anomalies []Anomaly) int {
	total := 0
	for _, a := range anomalies {
		total += a.Severity.Weight()
	}
	return total
}

// RiskReport is the aggregate outcome of a full anomaly sweep for one user.
type RiskReport struct {
	UserID    string
	Anomalies []Anomaly
	Score     int
	Level     RiskLevel
	CheckedAt time.Time
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two coordinates in
// kilometers.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
