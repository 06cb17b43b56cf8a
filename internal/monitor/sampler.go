package monitor

import (
	"context"
	"log"
	"time"

	"github.com/sweeney/washer-sensor/internal/accel"
	"github.com/sweeney/washer-sensor/internal/logic"
	"github.com/sweeney/washer-sensor/internal/status"
)

// Sampler reads the sensor once per sample period and classifies motion.
// It exclusively owns the classifier; Run must not be called concurrently.
type Sampler struct {
	reader     accel.Reader
	settings   *Settings
	cell       *Cell
	classifier *logic.Classifier
	tracker    *status.Tracker
}

// NewSampler creates a Sampler whose first delta is taken against initial.
// tracker may be nil.
func NewSampler(reader accel.Reader, settings *Settings, cell *Cell, initial logic.Reading, tracker *status.Tracker) *Sampler {
	return &Sampler{
		reader:     reader,
		settings:   settings,
		cell:       cell,
		classifier: logic.NewClassifier(initial),
		tracker:    tracker,
	}
}

// Step runs one sampling cycle. It returns false when nothing was sampled:
// monitoring inactive, or the sensor read failed.
func (s *Sampler) Step() (logic.Result, bool) {
	cyc := s.cell.Begin()
	if !cyc.Active {
		return logic.Result{}, false
	}
	if cyc.Reset {
		s.classifier.Reset()
	}

	current, err := s.reader.Read()
	if err != nil {
		log.Printf("sampler: read error, skipping cycle: %v", err)
		return logic.Result{}, false
	}

	cfg := s.settings.Get()
	res := s.classifier.Step(current, cfg.Params())
	log.Printf("sampler: X:%d, Y:%d, Z:%d", res.Deltas.X, res.Deltas.Y, res.Deltas.Z)
	if res.Done {
		log.Printf("sampler: done after %d idle periods", res.IdleCounter)
	}

	if !s.cell.StageSample(cyc.Epoch, res.Deltas, res.Done) {
		log.Printf("sampler: monitoring changed during cycle, discarding sample")
	}

	if s.tracker != nil {
		s.tracker.UpdateSample(res.Deltas, res.IdleCounter, s.classifier.Completions())
	}
	return res, true
}

// IdleCounter returns the classifier's idle counter. Only safe to call from
// the goroutine running the sampler, or after Run has returned.
func (s *Sampler) IdleCounter() int {
	return s.classifier.IdleCounter()
}

// LastReading returns the reading the next delta is taken against. Same
// restrictions as IdleCounter.
func (s *Sampler) LastReading() logic.Reading {
	return s.classifier.LastReading()
}

// Run samples until ctx is done. The period is re-read after every cycle so
// configuration changes take effect on the next wait. after is normally time.After.
func (s *Sampler) Run(ctx context.Context, after func(time.Duration) <-chan time.Time) {
	for {
		s.Step()

		select {
		case <-ctx.Done():
			return
		case <-after(s.settings.Get().SamplePeriod):
		}
	}
}
