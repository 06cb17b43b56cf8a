package monitor

import (
	"sync"

	"github.com/sweeney/washer-sensor/internal/logic"
)

// Cell is the handoff between the sampler, the message handler and the
// reconciler. Every slot holds at most one value; staging overwrites, taking
// clears. All access goes through the mutex.
type Cell struct {
	mu sync.Mutex

	command      *string
	readings     *logic.Deltas
	notification *string

	active       bool
	resetPending bool
	// epoch increments on each activation so the sampler can drop results
	// from a cycle that straddled it.
	epoch uint64
}

// Cycle is what the sampler sees at the start of one sampling cycle.
type Cycle struct {
	Active bool
	// Reset is true once after each activation; the sampler must restart the
	// idle episode before classifying.
	Reset bool
	Epoch uint64
}

// NewCell creates an empty, inactive Cell.
func NewCell() *Cell {
	return &Cell{}
}

// StageCommand stages an operator or self-generated command.
func (c *Cell) StageCommand(cmd string) {
	c.mu.Lock()
	c.command = &cmd
	c.mu.Unlock()
}

// TakeCommand returns and clears the staged command.
func (c *Cell) TakeCommand() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.command == nil {
		return "", false
	}
	cmd := *c.command
	c.command = nil
	return cmd, true
}

// TakeReadings returns and clears the staged readings.
func (c *Cell) TakeReadings() (logic.Deltas, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readings == nil {
		return logic.Deltas{}, false
	}
	d := *c.readings
	c.readings = nil
	return d, true
}

// TakeNotification returns and clears the staged notification.
func (c *Cell) TakeNotification() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notification == nil {
		return "", false
	}
	n := *c.notification
	c.notification = nil
	return n, true
}

// Begin snapshots the activity state for one sampling cycle and consumes any
// pending reset request.
func (c *Cell) Begin() Cycle {
	c.mu.Lock()
	defer c.mu.Unlock()
	cyc := Cycle{Active: c.active, Reset: c.resetPending, Epoch: c.epoch}
	if c.active {
		c.resetPending = false
	}
	return cyc
}

// StageSample stages the deltas from a sampling cycle and, when done is set,
// the self-generated "off" command and completion notification. Nothing is
// staged if monitoring was reactivated since the cycle began.
func (c *Cell) StageSample(epoch uint64, d logic.Deltas, done bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch || !c.active {
		return false
	}
	c.readings = &d
	if done {
		off := logic.CommandOff
		msg := logic.DoneMessage
		c.command = &off
		c.notification = &msg
	}
	return true
}

// SetActive records the operator-visible active flag. Every activation, even
// when already active, requests a classifier reset and clears staged readings.
// Returns true on an inactive->active transition.
func (c *Cell) SetActive(active bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	activated := active && !c.active
	c.active = active
	if active {
		c.resetPending = true
		c.readings = nil
		c.epoch++
	}
	return activated
}

// Active reports the current active flag.
func (c *Cell) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
