package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/core/port"
)

// AnomalyThresholds is the fixed threshold table the detectors evaluate
// against. Zero values fall back to the defaults.
type AnomalyThresholds struct {
	MessagesPerMinute  int
	MessagesPerHour    int
	FailedLogins       int
	FailedLoginWindow  time.Duration
	MinLoginHistory    int
	TypicalHourShare   float64
	MaxTravelSpeedKmH  float64
	UploadsPerHour     int
	UploadBytesPerHour int64
	MaxSingleFileBytes int64
}

// DefaultAnomalyThresholds returns the production threshold table.
func DefaultAnomalyThresholds() AnomalyThresholds {
	return AnomalyThresholds{
		MessagesPerMinute:  30,
		MessagesPerHour:    500,
		FailedLogins:       3,
		FailedLoginWindow:  5 * time.Minute,
		MinLoginHistory:    10,
		TypicalHourShare:   0.30,
		MaxTravelSpeedKmH:  900,
		UploadsPerHour:     20,
		UploadBytesPerHour: 200 * 1024 * 1024,
		MaxSingleFileBytes: 50 * 1024 * 1024,
	}
}

// ActivityContext carries the observation being scored or logged. Location
// and device fingerprint are optional; detectors that need them are skipped
// when absent.
type ActivityContext struct {
	Type              domain.ActivityType
	Location          *domain.Location
	DeviceFingerprint string
	FileSizeBytes     int64
	Metadata          map[string]any
}

// AnomalyService runs the behavioral detectors over the activity log and the
// user pattern store. Detectors are pure readers; LogActivity is the explicit
// write step the caller performs separately. Detector failures degrade to "no
// anomaly" so scoring never blocks the message, login or upload path.
type AnomalyService struct {
	activity   port.ActivityLog
	patterns   port.UserPatternStore
	hasher     port.FingerprintHasher
	events     port.EventPublisher
	logger     *zap.Logger
	thresholds AnomalyThresholds
	observe    func(anomalyType, severity string)
	now        func() time.Time
}

// NewAnomalyService constructs an AnomalyService with default thresholds.
func NewAnomalyService(activity port.ActivityLog, patterns port.UserPatternStore, hasher port.FingerprintHasher, events port.EventPublisher, logger *zap.Logger) *AnomalyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	service := &AnomalyService{
		activity:   activity,
		patterns:   patterns,
		hasher:     hasher,
		events:     events,
		logger:     logger,
		thresholds: DefaultAnomalyThresholds(),
	}
	service.now = func() time.Time { return time.Now().UTC() }
	return service
}

// WithClock overrides the internal clock for deterministic tests.
func (s *AnomalyService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// WithObserver registers a hook invoked once per detector finding, used to
// feed metrics without coupling the service to a metrics backend.
func (s *AnomalyService) WithObserver(observe func(anomalyType, severity string)) *AnomalyService {
	s.observe = observe
	return s
}

// WithThresholds overrides the detector threshold table.
func (s *AnomalyService) WithThresholds(t AnomalyThresholds) *AnomalyService {
	defaults := DefaultAnomalyThresholds()
	if t.MessagesPerMinute <= 0 {
		t.MessagesPerMinute = defaults.MessagesPerMinute
	}
	if t.MessagesPerHour <= 0 {
		t.MessagesPerHour = defaults.MessagesPerHour
	}
	if t.FailedLogins <= 0 {
		t.FailedLogins = defaults.FailedLogins
	}
	if t.FailedLoginWindow <= 0 {
		t.FailedLoginWindow = defaults.FailedLoginWindow
	}
	if t.MinLoginHistory <= 0 {
		t.MinLoginHistory = defaults.MinLoginHistory
	}
	if t.TypicalHourShare <= 0 {
		t.TypicalHourShare = defaults.TypicalHourShare
	}
	if t.MaxTravelSpeedKmH <= 0 {
		t.MaxTravelSpeedKmH = defaults.MaxTravelSpeedKmH
	}
	if t.UploadsPerHour <= 0 {
		t.UploadsPerHour = defaults.UploadsPerHour
	}
	if t.UploadBytesPerHour <= 0 {
		t.UploadBytesPerHour = defaults.UploadBytesPerHour
	}
	if t.MaxSingleFileBytes <= 0 {
		t.MaxSingleFileBytes = defaults.MaxSingleFileBytes
	}
	s.thresholds = t
	return s
}

// LogActivity appends an entry to the user's activity log and folds it into
// the aggregate pattern. It is the explicit write step: detectors never log
// implicitly.
func (s *AnomalyService) LogActivity(ctx context.Context, userID string, actx ActivityContext) error {
	if userID == "" {
		return fmt.Errorf("user id is required")
	}

	now := s.now()
	entry := domain.ActivityEntry{
		ID:        uuid.NewString(),
		Type:      actx.Type,
		Timestamp: now,
		Metadata:  actx.Metadata,
	}
	if actx.Type == domain.ActivityFileUpload && actx.FileSizeBytes > 0 {
		if entry.Metadata == nil {
			entry.Metadata = make(map[string]any)
		}
		entry.Metadata["size_bytes"] = actx.FileSizeBytes
	}

	if err := s.activity.Append(ctx, userID, entry); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}

	pattern, err := s.patterns.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("load pattern: %w", err)
	}

	switch actx.Type {
	case domain.ActivityLogin:
		pattern.RecordLogin(now)
	case domain.ActivityMessageSent:
		pattern.MessageCount++
	}
	if actx.DeviceFingerprint != "" && s.hasher != nil {
		pattern.RecordDevice(s.hasher.HashFingerprint(actx.DeviceFingerprint))
	}
	if actx.Location != nil {
		loc := *actx.Location
		if loc.Timestamp.IsZero() {
			loc.Timestamp = now
		}
		pattern.RecordLocation(loc)
	}

	if err := s.patterns.Save(ctx, *pattern); err != nil {
		return fmt.Errorf("save pattern: %w", err)
	}

	return nil
}

// ClearUser drops a user's activity log and pattern, for tests and privacy
// requests.
func (s *AnomalyService) ClearUser(ctx context.Context, userID string) error {
	if err := s.activity.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear activity: %w", err)
	}
	if err := s.patterns.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear pattern: %w", err)
	}
	return nil
}

// DetectMessageRateAnomaly checks the one-minute message burst window.
func (s *AnomalyService) DetectMessageRateAnomaly(ctx context.Context, userID string) (*domain.Anomaly, error) {
	now := s.now()
	count, err := s.activity.CountSince(ctx, userID, domain.ActivityMessageSent, time.Minute, now)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	if count <= s.thresholds.MessagesPerMinute {
		return nil, nil
	}
	return &domain.Anomaly{
		Type:       domain.AnomalyHighMessageRate,
		Severity:   domain.SeverityHigh,
		DetectedAt: now,
		Details:    map[string]any{"count": count, "window_seconds": 60},
	}, nil
}

// DetectHourlyMessageRateAnomaly checks the sustained one-hour message rate.
func (s *AnomalyService) DetectHourlyMessageRateAnomaly(ctx context.Context, userID string) (*domain.Anomaly, error) {
	now := s.now()
	count, err := s.activity.CountSince(ctx, userID, domain.ActivityMessageSent, time.Hour, now)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	if count <= s.thresholds.MessagesPerHour {
		return nil, nil
	}
	return &domain.Anomaly{
		Type:       domain.AnomalyHourlyMessageRate,
		Severity:   domain.SeverityMedium,
		DetectedAt: now,
		Details:    map[string]any{"count": count, "window_seconds": 3600},
	}, nil
}

// DetectFailedLoginAnomaly checks repeated failed logins in the short window.
func (s *AnomalyService) DetectFailedLoginAnomaly(ctx context.Context, userID string) (*domain.Anomaly, error) {
	now := s.now()
	count, err := s.activity.CountSince(ctx, userID, domain.ActivityLoginFailed, s.thresholds.FailedLoginWindow, now)
	if err != nil {
		return nil, fmt.Errorf("count failed logins: %w", err)
	}
	if count < s.thresholds.FailedLogins {
		return nil, nil
	}
	return &domain.Anomaly{
		Type:       domain.AnomalyFailedLogins,
		Severity:   domain.SeverityCritical,
		DetectedAt: now,
		Details:    map[string]any{"count": count, "window_seconds": int(s.thresholds.FailedLoginWindow.Seconds())},
	}, nil
}

// DetectUnusualLoginHour compares the current hour against the user's
// all-time login histogram. Users with thin history are never flagged.
func (s *AnomalyService) DetectUnusualLoginHour(ctx context.Context, userID string, at time.Time) (*domain.Anomaly, error) {
	pattern, err := s.patterns.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load pattern: %w", err)
	}

	total := 0
	for _, c := range pattern.TypicalHours {
		total += c
	}
	if total <= s.thresholds.MinLoginHistory {
		return nil, nil
	}

	hour := at.Hour()
	share := float64(pattern.TypicalHours[hour]) / float64(total)
	if share >= s.thresholds.TypicalHourShare {
		return nil, nil
	}
	return &domain.Anomaly{
		Type:       domain.AnomalyUnusualLoginHour,
		Severity:   domain.SeverityLow,
		DetectedAt: s.now(),
		Details:    map[string]any{"hour": hour, "share": share},
	}, nil
}

// DetectImpossibleTravel flags consecutive locations whose implied velocity
// exceeds the feasible ceiling.
func (s *AnomalyService) DetectImpossibleTravel(ctx context.Context, userID string, next domain.Location) (*domain.Anomaly, error) {
	pattern, err := s.patterns.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load pattern: %w", err)
	}

	last, ok := pattern.LastLocation()
	if !ok {
		return nil, nil
	}

	at := next.Timestamp
	if at.IsZero() {
		at = s.now()
	}

	distanceKm := domain.HaversineKm(last.Latitude, last.Longitude, next.Latitude, next.Longitude)
	elapsedHours := at.Sub(last.Timestamp).Hours()

	var velocity float64
	switch {
	case elapsedHours <= 0:
		// Same-instant reports from two places are only meaningful when the
		// places actually differ.
		if distanceKm < 1 {
			return nil, nil
		}
		velocity = s.thresholds.MaxTravelSpeedKmH + 1
	default:
		velocity = distanceKm / elapsedHours
	}

	if velocity <= s.thresholds.MaxTravelSpeedKmH {
		return nil, nil
	}
	return &domain.Anomaly{
		Type:       domain.AnomalyImpossibleTravel,
		Severity:   domain.SeverityHigh,
		DetectedAt: s.now(),
		Details: map[string]any{
			"distance_km":  distanceKm,
			"elapsed_h":    elapsedHours,
			"velocity_kmh": velocity,
		},
	}, nil
}

// DetectNewDevice flags a fingerprint unseen among the remembered devices,
// once the user has established more than one known device.
func (s *AnomalyService) DetectNewDevice(ctx context.Context, userID, fingerprint string) (*domain.Anomaly, error) {
	if fingerprint == "" || s.hasher == nil {
		return nil, nil
	}
	pattern, err := s.patterns.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load pattern: %w", err)
	}

	hash := s.hasher.HashFingerprint(fingerprint)
	if pattern.KnowsDevice(hash) || len(pattern.Devices) <= 1 {
		return nil, nil
	}
	return &domain.Anomaly{
		Type:       domain.AnomalyNewDevice,
		Severity:   domain.SeverityMedium,
		DetectedAt: s.now(),
		Details:    map[string]any{"known_devices": len(pattern.Devices)},
	}, nil
}

// DetectExcessiveUploads checks the hourly upload count, cumulative volume
// and the size of the current file.
func (s *AnomalyService) DetectExcessiveUploads(ctx context.Context, userID string, fileSizeBytes int64) ([]domain.Anomaly, error) {
	now := s.now()
	entries, err := s.activity.ListSince(ctx, userID, domain.ActivityFileUpload, time.Hour, now)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}

	var anomalies []domain.Anomaly

	if len(entries) >= s.thresholds.UploadsPerHour {
		anomalies = append(anomalies, domain.Anomaly{
			Type:       domain.AnomalyExcessiveUploads,
			Severity:   domain.SeverityMedium,
			DetectedAt: now,
			Details:    map[string]any{"count": len(entries)},
		})
	}

	var totalBytes int64
	for _, entry := range entries {
		totalBytes += metadataBytes(entry.Metadata, "size_bytes")
	}
	if totalBytes > s.thresholds.UploadBytesPerHour {
		anomalies = append(anomalies, domain.Anomaly{
			Type:       domain.AnomalyLargeUploadVolume,
			Severity:   domain.SeverityMedium,
			DetectedAt: now,
			Details:    map[string]any{"total_bytes": totalBytes},
		})
	}

	if fileSizeBytes > s.thresholds.MaxSingleFileBytes {
		anomalies = append(anomalies, domain.Anomaly{
			Type:       domain.AnomalyOversizedFile,
			Severity:   domain.SeverityLow,
			DetectedAt: now,
			Details:    map[string]any{"size_bytes": fileSizeBytes},
		})
	}

	return anomalies, nil
}

// CheckAllAnomalies runs the detectors relevant to the supplied context and
// aggregates the findings into a risk report. Failed-login checks always run;
// location and device checks run when the context supplies them. Detector
// errors are logged and degrade to "no anomaly".
func (s *AnomalyService) CheckAllAnomalies(ctx context.Context, userID string, actx ActivityContext) *domain.RiskReport {
	now := s.now()
	var anomalies []domain.Anomaly

	collect := func(a *domain.Anomaly, err error) {
		if err != nil {
			s.logger.Warn("anomaly detector failed", zap.String("user_id", userID), zap.Error(err))
			return
		}
		if a != nil {
			anomalies = append(anomalies, *a)
			if s.observe != nil {
				s.observe(string(a.Type), string(a.Severity))
			}
		}
	}

	switch actx.Type {
	case domain.ActivityMessageSent:
		collect(s.DetectMessageRateAnomaly(ctx, userID))
		collect(s.DetectHourlyMessageRateAnomaly(ctx, userID))
	case domain.ActivityLogin:
		collect(s.DetectUnusualLoginHour(ctx, userID, now))
	case domain.ActivityFileUpload:
		uploads, err := s.DetectExcessiveUploads(ctx, userID, actx.FileSizeBytes)
		if err != nil {
			s.logger.Warn("anomaly detector failed", zap.String("user_id", userID), zap.Error(err))
		}
		anomalies = append(anomalies, uploads...)
		if s.observe != nil {
			for _, a := range uploads {
				s.observe(string(a.Type), string(a.Severity))
			}
		}
	}

	collect(s.DetectFailedLoginAnomaly(ctx, userID))

	if actx.Location != nil {
		collect(s.DetectImpossibleTravel(ctx, userID, *actx.Location))
	}
	if actx.DeviceFingerprint != "" {
		collect(s.DetectNewDevice(ctx, userID, actx.DeviceFingerprint))
	}

	report := &domain.RiskReport{
		UserID:    userID,
		Anomalies: anomalies,
		Score:     domain.RiskScore(anomalies),
		CheckedAt: now,
	}
	report.Level = domain.RiskLevelForScore(report.Score)

	if len(anomalies) > 0 {
		s.publishReport(ctx, report)
	}

	return report
}

func (s *AnomalyService) publishReport(ctx context.Context, report *domain.RiskReport) {
	if s.events == nil {
		return
	}
	event := domain.AnomalyDetectedEvent{
		EventID:   uuid.NewString(),
		UserID:    report.UserID,
		Score:     report.Score,
		Level:     report.Level,
		Anomalies: report.Anomalies,
		CheckedAt: report.CheckedAt,
	}
	if err := s.events.PublishAnomalyDetected(ctx, event); err != nil {
		s.logger.Warn("publish anomaly report failed",
			zap.String("user_id", report.UserID), zap.Error(err))
	}
}

func metadataBytes(metadata map[string]any, key string) int64 {
	if metadata == nil {
		return 0
	}
	switch v := metadata[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
