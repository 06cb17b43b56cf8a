// Package gpio drives the activity indicator LED with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Indicator shows whether monitoring is active.
type Indicator interface {
	// Set turns the indicator on or off.
	Set(on bool) error

	// Close releases GPIO resources and leaves the line as an input.
	Close() error
}

// DefaultChip is the Raspberry Pi header GPIO controller.
const DefaultChip = "gpiochip0"

// PinDisabled disables the indicator when passed as a pin number.
const PinDisabled = -1
