package scheduler

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/social-platform-chat/internal/core/port"
)

// DestructScheduler runs at most one pending timer per message ID.
// Scheduling again for the same ID replaces the pending timer; Cancel
// discards it. Fired tasks remove themselves before running, so a task can
// safely re-enter the scheduler.
type DestructScheduler struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
	logger *zap.Logger
	gauge  prometheus.Gauge
	now    func() time.Time
}

// New constructs an empty scheduler.
func New(logger *zap.Logger) *DestructScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DestructScheduler{
		timers: make(map[string]*time.Timer),
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithPendingGauge attaches a gauge that tracks how many timers are armed.
func (s *DestructScheduler) WithPendingGauge(gauge prometheus.Gauge) *DestructScheduler {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauge = gauge
	s.syncGauge()
	return s
}

// syncGauge must be called with the mutex held.
func (s *DestructScheduler) syncGauge() {
	if s.gauge != nil {
		s.gauge.Set(float64(len(s.timers)))
	}
}

// Schedule arms a timer that runs the task at the given instant. An instant
// in the past fires immediately on the timer goroutine.
func (s *DestructScheduler) Schedule(messageID string, at time.Time, task func()) {
	if messageID == "" || task == nil {
		return
	}

	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.timers[messageID]; ok {
		existing.Stop()
		s.logger.Debug("replacing pending destruction timer",
			zap.String("message_id", messageID))
	}

	s.timers[messageID] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, messageID)
		s.syncGauge()
		s.mu.Unlock()
		task()
	})
	s.syncGauge()
}

// Cancel discards the pending timer for the message, reporting whether one
// existed.
func (s *DestructScheduler) Cancel(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer, ok := s.timers[messageID]
	if !ok {
		return false
	}
	timer.Stop()
	delete(s.timers, messageID)
	s.syncGauge()
	return true
}

// Pending reports how many timers are currently armed.
func (s *DestructScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every pending timer, for shutdown.
func (s *DestructScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.syncGauge()
}

var _ port.DestructScheduler = (*DestructScheduler)(nil)
