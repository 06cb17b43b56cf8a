//go:build !linux

package accel

import (
	"errors"

	"github.com/sweeney/washer-sensor/internal/logic"
)

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(busPath string, addr uint16) (*RealReader, error) {
	return nil, errors.New("accel: not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (logic.Reading, error) {
	return logic.Reading{}, errors.New("accel: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}
