package healthcheck

import (
	"sync"
	"time"
)

// Snapshot describes the latest poll timing details.
type Snapshot struct {
	LastCycleTime       *time.Time `json:"last_cycle_time"`
	CycleDurationMS     int64      `json:"cycle_duration_ms"`
	ServicesObserved    int        `json:"services_observed"`
	DockerAvailable     bool       `json:"docker_available"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
}

// Tracker records poll timing for health endpoints.
type Tracker struct {
	mu                  sync.RWMutex
	lastCycle           time.Time
	lastAttempt         time.Time
	cycleDuration       time.Duration
	servicesObserved    int
	dockerAvailable     bool
	consecutiveFailures int
	lastError           string
	ready               bool
}

// NewTracker constructs a new Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordCycle updates timing after a successful poll and marks the tracker ready.
func (t *Tracker) RecordCycle(duration time.Duration, servicesObserved int) {
	if t == nil {
		return
	}
	now := time.Now().UTC()
	t.mu.Lock()
	t.lastCycle = now
	t.lastAttempt = now
	t.cycleDuration = duration
	t.servicesObserved = servicesObserved
	t.dockerAvailable = true
	t.consecutiveFailures = 0
	t.lastError = ""
	t.ready = true
	t.mu.Unlock()
}

// RecordFailure notes a failed poll. The loop is still alive, so the
// attempt counts toward liveness and readiness.
func (t *Tracker) RecordFailure(err error, dockerAvailable bool) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.lastAttempt = time.Now().UTC()
	t.dockerAvailable = dockerAvailable
	t.consecutiveFailures++
	if err != nil {
		t.lastError = err.Error()
	}
	t.ready = true
	t.mu.Unlock()
}

// Snapshot returns the current tracker snapshot.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var last *time.Time
	if !t.lastCycle.IsZero() {
		value := t.lastCycle
		last = &value
	}
	return Snapshot{
		LastCycleTime:       last,
		CycleDurationMS:     int64(t.cycleDuration / time.Millisecond),
		ServicesObserved:    t.servicesObserved,
		DockerAvailable:     t.dockerAvailable,
		ConsecutiveFailures: t.consecutiveFailures,
		LastError:           t.lastError,
	}
}

// Ready reports whether at least one poll has completed.
func (t *Tracker) Ready() bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}

// Healthy reports whether the last poll attempt happened within 2x the poll interval.
func (t *Tracker) Healthy(now time.Time, pollInterval time.Duration) bool {
	if t == nil {
		return false
	}
	if pollInterval <= 0 {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastAttempt.IsZero() {
		return false
	}
	return now.Sub(t.lastAttempt) <= 2*pollInterval
}
