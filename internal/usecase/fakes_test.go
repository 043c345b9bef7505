package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/arklim/social-platform-chat/internal/core/domain"
	"github.com/arklim/social-platform-chat/internal/core/port"
)

type fakeKeygen struct {
	counter int
	fail    error
}

func (f *fakeKeygen) NewSessionKey() ([]byte, []byte, error) {
	if f.fail != nil {
		return nil, nil, f.fail
	}
	f.counter++
	key := []byte(fmt.Sprintf("key-%d", f.counter))
	iv := []byte(fmt.Sprintf("iv-%d", f.counter))
	return key, iv, nil
}

type fakeHasher struct{}

func (fakeHasher) HashFingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}

type fakeEventPublisher struct {
	mu               sync.Mutex
	sessionRevoked   []domain.SessionRevokedEvent
	keysRotated      []domain.KeysRotatedEvent
	messageDestroyed []domain.MessageDestroyedEvent
	anomalyDetected  []domain.AnomalyDetectedEvent
	fail             error
}

func (f *fakeEventPublisher) PublishSessionRevoked(_ context.Context, event domain.SessionRevokedEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessionRevoked = append(f.sessionRevoked, event)
	return nil
}

func (f *fakeEventPublisher) PublishKeysRotated(_ context.Context, event domain.KeysRotatedEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keysRotated = append(f.keysRotated, event)
	return nil
}

func (f *fakeEventPublisher) PublishMessageDestroyed(_ context.Context, event domain.MessageDestroyedEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messageDestroyed = append(f.messageDestroyed, event)
	return nil
}

func (f *fakeEventPublisher) PublishAnomalyDetected(_ context.Context, event domain.AnomalyDetectedEvent) error {
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.anomalyDetected = append(f.anomalyDetected, event)
	return nil
}

type busDelivery struct {
	target string // room or user ID
	event  port.RealtimeEvent
}

type fakeRealtimeBus struct {
	mu     sync.Mutex
	toRoom []busDelivery
	toUser []busDelivery
}

func (f *fakeRealtimeBus) PublishToRoom(_ context.Context, roomID string, event port.RealtimeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toRoom = append(f.toRoom, busDelivery{target: roomID, event: event})
	return nil
}

func (f *fakeRealtimeBus) SendToUser(_ context.Context, userID string, event port.RealtimeEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toUser = append(f.toUser, busDelivery{target: userID, event: event})
	return nil
}

type scheduledTask struct {
	at   time.Time
	task func()
}

// fakeScheduler captures scheduled tasks without running them; tests fire
// them explicitly.
type fakeScheduler struct {
	mu       sync.Mutex
	tasks    map[string]scheduledTask
	canceled []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: make(map[string]scheduledTask)}
}

func (f *fakeScheduler) Schedule(messageID string, at time.Time, task func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[messageID] = scheduledTask{at: at, task: task}
}

func (f *fakeScheduler) Cancel(messageID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled = append(f.canceled, messageID)
	_, ok := f.tasks[messageID]
	delete(f.tasks, messageID)
	return ok
}

func (f *fakeScheduler) pending(messageID string) (scheduledTask, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	task, ok := f.tasks[messageID]
	return task, ok
}

// failingActivityLog always errors, for degradation tests.
type failingActivityLog struct{ err error }

func (f failingActivityLog) Append(context.Context, string, domain.ActivityEntry) error { return f.err }

func (f failingActivityLog) CountSince(context.Context, string, domain.ActivityType, time.Duration, time.Time) (int, error) {
	return 0, f.err
}

func (f failingActivityLog) ListSince(context.Context, string, domain.ActivityType, time.Duration, time.Time) ([]domain.ActivityEntry, error) {
	return nil, f.err
}

func (f failingActivityLog) Clear(context.Context, string) error { return f.err }
