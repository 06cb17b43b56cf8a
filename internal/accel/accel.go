// Package accel provides motion sensor reading with hardware abstraction.
// The real implementation drives an MPU6050 over a Linux I2C character device.
// The fake implementation allows testing without hardware.
package accel

import "github.com/sweeney/washer-sensor/internal/logic"

// Reader reads the motion axes.
type Reader interface {
	// Read returns the current raw gyroscope counts for X, Y and Z.
	Read() (logic.Reading, error)

	// Close releases sensor resources.
	Close() error
}

// Bus and device defaults (Raspberry Pi header I2C, AD0 low).
const (
	DefaultBus     = "/dev/i2c-1"
	DefaultAddress = 0x68
)
