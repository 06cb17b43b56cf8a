package accel

import (
	"encoding/binary"
	"errors"
	"fmt"

	"tinygo.org/x/drivers"

	"github.com/sweeney/washer-sensor/internal/logic"
)

// MPU6050 registers.
const (
	regGyroConfig  = 0x1B
	regAccelConfig = 0x1C
	regAccelXOutH  = 0x3B
	regPwrMgmt1    = 0x6B
	regWhoAmI      = 0x75

	whoAmIValue = 0x68
)

// ErrWrongDevice is returned when WHO_AM_I does not identify an MPU6050.
var ErrWrongDevice = errors.New("mpu6050: unexpected WHO_AM_I")

// Sample is one full MPU6050 measurement block in raw counts.
type Sample struct {
	AccelX, AccelY, AccelZ int16
	Temp                   int16
	GyroX, GyroY, GyroZ    int16
}

// Device wraps an I2C connection to an MPU6050.
// The bus must perform a write followed by a repeated-start read when Tx is
// given both buffers.
type Device struct {
	bus     drivers.I2C
	Address uint16

	buf [14]byte
}

// NewDevice creates a Device. It does not touch the bus.
func NewDevice(bus drivers.I2C, addr uint16) *Device {
	if addr == 0 {
		addr = DefaultAddress
	}
	return &Device{bus: bus, Address: addr}
}

// Configure checks the device identity, wakes it from sleep and selects the
// ±250°/s gyro and ±2g accel ranges.
func (d *Device) Configure() error {
	who := []byte{0}
	if err := d.bus.Tx(d.Address, []byte{regWhoAmI}, who); err != nil {
		return fmt.Errorf("read WHO_AM_I: %w", err)
	}
	if who[0]&0x7E != whoAmIValue {
		return fmt.Errorf("%w: 0x%02x", ErrWrongDevice, who[0])
	}
	for _, w := range [][]byte{
		{regPwrMgmt1, 0x00},
		{regGyroConfig, 0x00},
		{regAccelConfig, 0x00},
	} {
		if err := d.bus.Tx(d.Address, w, nil); err != nil {
			return fmt.Errorf("write register 0x%02x: %w", w[0], err)
		}
	}
	return nil
}

// ReadSample reads accelerometer, temperature and gyroscope in one burst.
func (d *Device) ReadSample() (Sample, error) {
	if err := d.bus.Tx(d.Address, []byte{regAccelXOutH}, d.buf[:]); err != nil {
		return Sample{}, fmt.Errorf("read measurement block: %w", err)
	}
	be := func(i int) int16 { return int16(binary.BigEndian.Uint16(d.buf[i:])) }
	return Sample{
		AccelX: be(0),
		AccelY: be(2),
		AccelZ: be(4),
		Temp:   be(6),
		GyroX:  be(8),
		GyroY:  be(10),
		GyroZ:  be(12),
	}, nil
}

// Read returns the gyroscope axes, which are what the washer drum disturbs most.
func (d *Device) Read() (logic.Reading, error) {
	s, err := d.ReadSample()
	if err != nil {
		return logic.Reading{}, err
	}
	return logic.Reading{X: int32(s.GyroX), Y: int32(s.GyroY), Z: int32(s.GyroZ)}, nil
}
