package port

import "time"

// DestructScheduler runs a single fire-once task per message. Schedule
// replaces any pending task for the same message ID; Cancel discards a
// pending task so out-of-band deletion never races a stale timer.
type DestructScheduler interface {
	Schedule(messageID string, at time.Time, task func())
	Cancel(messageID string) bool
}
