//go:build linux

package accel

import (
	"fmt"

	"github.com/sweeney/washer-sensor/internal/logic"
)

// RealReader reads an MPU6050 attached to a Linux I2C adapter.
type RealReader struct {
	bus *Bus
	dev *Device
}

// NewRealReader opens the bus and configures the sensor at addr.
func NewRealReader(busPath string, addr uint16) (*RealReader, error) {
	bus, err := OpenBus(busPath)
	if err != nil {
		return nil, err
	}

	dev := NewDevice(bus, addr)
	if err := dev.Configure(); err != nil {
		bus.Close()
		return nil, fmt.Errorf("configure mpu6050 at 0x%02x on %s: %w", addr, busPath, err)
	}

	return &RealReader{bus: bus, dev: dev}, nil
}

// Read returns the current gyroscope counts.
func (r *RealReader) Read() (logic.Reading, error) {
	return r.dev.Read()
}

// Close releases the I2C adapter.
func (r *RealReader) Close() error {
	if r.bus == nil {
		return nil
	}
	if err := r.bus.Close(); err != nil {
		return fmt.Errorf("close i2c bus: %w", err)
	}
	return nil
}
