// Package monitor runs the washer completion monitor: a sampler goroutine that
// classifies motion, a reconciler goroutine that reports over MQTT, and the
// inbound message handler. The only state they share lives in Cell and Settings.
package monitor

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sweeney/washer-sensor/internal/logic"
)

// Config is the runtime monitoring configuration, changed only through the
// config topic.
type Config struct {
	SamplePeriod   time.Duration
	MaxIdlePeriods int
	Sensitivity    float64
}

// DefaultConfig is in effect until the first config message arrives:
// done means no motion for 10s * 6 periods.
func DefaultConfig() Config {
	return Config{
		SamplePeriod:   10 * time.Second,
		MaxIdlePeriods: 6,
		Sensitivity:    110,
	}
}

// Params returns the classifier view of the configuration.
func (c Config) Params() logic.Params {
	return logic.Params{
		MaxIdlePeriods: c.MaxIdlePeriods,
		Sensitivity:    c.Sensitivity,
	}
}

func (c Config) String() string {
	return fmt.Sprintf("sampleSecs: %g, maxIdlePeriods: %d, sensitivity: %g",
		c.SamplePeriod.Seconds(), c.MaxIdlePeriods, c.Sensitivity)
}

// MinSamplePeriod is the shortest accepted sample period.
const MinSamplePeriod = time.Millisecond

// maxSampleSecs is the largest period in seconds that fits a time.Duration.
const maxSampleSecs = math.MaxInt64 / float64(time.Second)

var errSamplePeriodRange = errors.New("sample period out of range")

// SamplePeriodFromSecs converts a period in seconds, rejecting values that are
// shorter than MinSamplePeriod or do not fit a time.Duration.
func SamplePeriodFromSecs(secs float64) (time.Duration, error) {
	if math.IsNaN(secs) || secs >= maxSampleSecs {
		return 0, fmt.Errorf("%w: %g s", errSamplePeriodRange, secs)
	}
	d := time.Duration(secs * float64(time.Second))
	if d < MinSamplePeriod {
		return 0, fmt.Errorf("%w: %g s is below %v", errSamplePeriodRange, secs, MinSamplePeriod)
	}
	return d, nil
}

// Update is a partial configuration. Nil fields leave the current value unchanged.
type Update struct {
	SamplePeriod   *time.Duration
	MaxIdlePeriods *int
	Sensitivity    *float64
}

// Settings owns the current Config. Readers get copies; only Apply mutates it.
type Settings struct {
	mu       sync.RWMutex
	cfg      Config
	received bool
}

// NewSettings creates Settings holding defaults, marked as not yet received.
func NewSettings(defaults Config) *Settings {
	return &Settings{cfg: defaults}
}

// Get returns a copy of the current configuration.
func (s *Settings) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Received reports whether a configuration message has been accepted.
func (s *Settings) Received() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.received
}

// Apply merges u into the current configuration, marks it received and
// returns the result.
func (s *Settings) Apply(u Update) Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.SamplePeriod != nil {
		s.cfg.SamplePeriod = *u.SamplePeriod
	}
	if u.MaxIdlePeriods != nil {
		s.cfg.MaxIdlePeriods = *u.MaxIdlePeriods
	}
	if u.Sensitivity != nil {
		s.cfg.Sensitivity = *u.Sensitivity
	}
	s.received = true
	return s.cfg
}
