// Package logic contains pure business logic for appliance motion tracking.
// This package has NO external dependencies (no I2C, MQTT, OS, or time.Sleep).
// Sensor readings and configuration are always passed in by the caller.
package logic

import (
	"fmt"
	"strings"
)

// Commands recognised on the active channel. Matching is case-insensitive.
const (
	CommandOn  = "on"
	CommandOff = "off"
)

// DoneMessage is the notification staged when an idle episode completes.
const DoneMessage = "We're done!"

// Reading is one raw sample of the three motion axes (sensor counts).
type Reading struct {
	X int32
	Y int32
	Z int32
}

// Deltas holds the per-axis absolute change between two consecutive readings.
type Deltas struct {
	X int64
	Y int64
	Z int64
}

// Sum returns the combined motion magnitude.
func (d Deltas) Sum() int64 {
	return d.X + d.Y + d.Z
}

// String formats the deltas as a 3-tuple, e.g. "(12, 4, 0)".
func (d Deltas) String() string {
	return fmt.Sprintf("(%d, %d, %d)", d.X, d.Y, d.Z)
}

// Params are the classification settings in effect for one step.
type Params struct {
	// MaxIdlePeriods is the number of consecutive quiet samples that marks completion.
	MaxIdlePeriods int
	// Sensitivity is the combined delta above which a sample counts as motion.
	Sensitivity float64
}

// Result is the outcome of classifying one sample.
type Result struct {
	Deltas      Deltas
	Moving      bool
	IdleCounter int
	// Done is true only on the step that completes an idle episode.
	Done bool
}

// IsOnCommand reports whether cmd activates monitoring.
func IsOnCommand(cmd string) bool {
	return strings.EqualFold(cmd, CommandOn)
}
