//go:build linux

package accel

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// From <linux/i2c-dev.h> and <linux/i2c.h>.
const (
	i2cRDWR    = 0x0707
	i2cMsgRead = 0x0001
)

type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   uintptr
}

type i2cRdwrData struct {
	msgs  uintptr
	nmsgs uint32
}

// Bus is a Linux I2C adapter (/dev/i2c-N) implementing drivers.I2C.
// Write and read halves of a Tx are issued as one I2C_RDWR transaction, so
// the read uses a repeated start.
type Bus struct {
	mu sync.Mutex
	f  *os.File
}

// OpenBus opens the I2C character device at path.
func OpenBus(path string) (*Bus, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	return &Bus{f: f}, nil
}

// Tx writes w then reads len(r) bytes from the device at addr.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	var msgs []i2cMsg
	if len(w) > 0 {
		msgs = append(msgs, i2cMsg{
			addr: addr,
			len:  uint16(len(w)),
			buf:  uintptr(unsafe.Pointer(&w[0])),
		})
	}
	if len(r) > 0 {
		msgs = append(msgs, i2cMsg{
			addr:  addr,
			flags: i2cMsgRead,
			len:   uint16(len(r)),
			buf:   uintptr(unsafe.Pointer(&r[0])),
		})
	}
	if len(msgs) == 0 {
		return nil
	}

	data := i2cRdwrData{
		msgs:  uintptr(unsafe.Pointer(&msgs[0])),
		nmsgs: uint32(len(msgs)),
	}

	b.mu.Lock()
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, b.f.Fd(), i2cRDWR, uintptr(unsafe.Pointer(&data)))
	b.mu.Unlock()

	runtime.KeepAlive(w)
	runtime.KeepAlive(r)
	runtime.KeepAlive(msgs)

	if errno != 0 {
		return fmt.Errorf("i2c transfer to 0x%02x: %w", addr, errno)
	}
	return nil
}

// Close closes the character device.
func (b *Bus) Close() error {
	return b.f.Close()
}
