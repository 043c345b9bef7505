package domain

import "time"

// ActivityType labels entries in the per-user activity log.
type ActivityType string

const (
	ActivityMessageSent ActivityType = "message_sent"
	ActivityLogin       ActivityType = "login"
	ActivityLoginFailed ActivityType = "login_failed"
	ActivityFileUpload  ActivityType = "file_upload"
)

const (
	// ActivityLogCap bounds the per-user log; the oldest entries are evicted
	// first once the cap is reached.
	ActivityLogCap = 1000
	// KnownDeviceCap bounds the device fingerprint history per user.
	KnownDeviceCap = 5
	// KnownLocationCap bounds the location history per user.
	KnownLocationCap = 10
)

// ActivityEntry is one timestamped behavioral observation for a user.
type ActivityEntry struct {
	ID        string
	Type      ActivityType
	Timestamp time.Time
	Metadata  map[string]any
}

// Location is a reported coordinate with its observation time.
type Location struct {
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}

// UserPattern aggregates long-lived behavioral statistics for one user,
// derived incrementally from the activity log. Created lazily on first
// activity; clearable on demand for privacy requests.
type UserPattern struct {
	UserID       string
	TypicalHours [24]int
	Devices      []string
	Locations    []Location
	MessageCount int64
	LoginCount   int64
}

// RecordLogin folds a successful login into the hourly histogram.
func (p *UserPattern) RecordLogin(at time.Time) {
	p.TypicalHours[at.Hour()]++
	p.LoginCount++
}

// RecordDevice remembers a device fingerprint hash, keeping the most recent
// KnownDeviceCap distinct entries.
func (p *UserPattern) RecordDevice(hash string) {
	if hash == "" {
		return
	}
	for i, known := range p.Devices {
		if known == hash {
			// Move to the tail so eviction stays least-recently-seen.
			p.Devices = append(append(p.Devices[:i:i], p.Devices[i+1:]...), hash)
			return
		}
	}
	p.Devices = append(p.Devices, hash)
	if len(p.Devices) > KnownDeviceCap {
		p.Devices = p.Devices[len(p.Devices)-KnownDeviceCap:]
	}
}

// KnowsDevice reports whether the fingerprint hash is among the remembered
// devices.
func (p UserPattern) KnowsDevice(hash string) bool {
	for _, known := range p.Devices {
		if known == hash {
			return true
		}
	}
	return false
}

// RecordLocation appends a location observation, keeping the most recent
// KnownLocationCap entries.
func (p *UserPattern) RecordLocation(loc Location) {
	p.Locations = append(p.Locations, loc)
	if len(p.Locations) > KnownLocationCap {
		p.Locations = p.Locations[len(p.Locations)-KnownLocationCap:]
	}
}

// LastLocation returns the most recent observation, if any.
func (p UserPattern) LastLocation() (Location, bool) {
	if len(p.Locations) == 0 {
		return Location{}, false
	}
	return p.Locations[len(p.Locations)-1], true
}
