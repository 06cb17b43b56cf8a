package logic

// Classifier counts consecutive quiet samples and detects the end of a cycle.
type Classifier struct {
	last        Reading
	idleCounter int
	// fired is set once the current idle episode has produced a completion.
	fired       bool
	completions int
}

// NewClassifier creates a classifier whose first delta is taken against initial.
func NewClassifier(initial Reading) *Classifier {
	return &Classifier{last: initial}
}

// Step classifies current against the previous reading and advances the idle counter.
// Completion is edge-triggered: Done is reported once when the counter reaches
// p.MaxIdlePeriods and not again until a motion spike or Reset starts a new episode.
func (c *Classifier) Step(current Reading, p Params) Result {
	d := Deltas{
		X: absDiff(current.X, c.last.X),
		Y: absDiff(current.Y, c.last.Y),
		Z: absDiff(current.Z, c.last.Z),
	}
	c.last = current

	moving := float64(d.Sum()) > p.Sensitivity
	if moving {
		c.idleCounter = 0
		c.fired = false
	} else {
		c.idleCounter++
	}

	done := false
	if !c.fired && p.MaxIdlePeriods > 0 && c.idleCounter >= p.MaxIdlePeriods {
		c.fired = true
		c.completions++
		done = true
	}

	return Result{
		Deltas:      d,
		Moving:      moving,
		IdleCounter: c.idleCounter,
		Done:        done,
	}
}

// Reset starts a new idle episode. The last reading is kept.
func (c *Classifier) Reset() {
	c.idleCounter = 0
	c.fired = false
}

// IdleCounter returns the number of consecutive quiet samples.
func (c *Classifier) IdleCounter() int {
	return c.idleCounter
}

// LastReading returns the reading the next delta is taken against.
func (c *Classifier) LastReading() Reading {
	return c.last
}

// Completions returns how many idle episodes have completed since startup.
func (c *Classifier) Completions() int {
	return c.completions
}

func absDiff(a, b int32) int64 {
	d := int64(a) - int64(b)
	if d < 0 {
		return -d
	}
	return d
}
