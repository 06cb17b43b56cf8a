// Package status provides a thread-safe status tracker for the washer-sensor daemon.
// It is written by the sampler, reconciler and message handler, and read by
// the HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/washer-sensor/internal/logic"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Broker    string
	ClientID  string
	BaseTopic string
	I2CBus    string
	LEDPin    int
	HTTPAddr  string
}

// Monitoring is the runtime configuration received over MQTT.
type Monitoring struct {
	Received       bool
	SampleSecs     float64
	MaxIdlePeriods int
	Sensitivity    float64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Active        bool
	State         string
	IdleCounter   int
	Completions   int
	LastDeltas    *logic.Deltas
	LastSampleAt  time.Time
	Monitoring    Monitoring
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// UpdateSample records the outcome of one sampling cycle.
func (t *Tracker) UpdateSample(d logic.Deltas, idleCounter, completions int) {
	now := t.now()
	t.mu.Lock()
	t.snap.LastDeltas = &d
	t.snap.IdleCounter = idleCounter
	t.snap.Completions = completions
	t.snap.LastSampleAt = now
	t.mu.Unlock()
}

// SetActive sets the operator-visible active flag.
func (t *Tracker) SetActive(active bool) {
	t.mu.Lock()
	t.snap.Active = active
	t.mu.Unlock()
}

// SetState sets the reconciler state name.
func (t *Tracker) SetState(state string) {
	t.mu.Lock()
	t.snap.State = state
	t.mu.Unlock()
}

// SetMonitoring sets the runtime monitoring configuration.
func (t *Tracker) SetMonitoring(m Monitoring) {
	t.mu.Lock()
	t.snap.Monitoring = m
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.LastDeltas != nil {
		d := *s.LastDeltas
		s.LastDeltas = &d
	}
	s.Now = t.now()
	return s
}
