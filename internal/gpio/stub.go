//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealBus is not available on non-Linux platforms.
type RealBus struct{}

// NewRealBus returns an error on non-Linux platforms.
func NewRealBus(chipName string, pinCLK, pinData int) (*RealBus, error) {
	return nil, errUnsupported
}

// Value is not implemented on non-Linux platforms.
func (b *RealBus) Value() (int, error) { return 0, errUnsupported }

// Levels is not implemented on non-Linux platforms.
func (b *RealBus) Levels() (int, int, error) { return 0, 0, errUnsupported }

// Watch is not implemented on non-Linux platforms.
func (b *RealBus) Watch(onEdge func(stamp time.Duration)) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (b *RealBus) Close() error { return nil }

// RealButton is not available on non-Linux platforms.
type RealButton struct{}

// NewRealButton returns an error on non-Linux platforms.
func NewRealButton(chipName string, pin int) (*RealButton, error) {
	return nil, errUnsupported
}

// SetPressed is not implemented on non-Linux platforms.
func (b *RealButton) SetPressed(pressed bool) error { return errUnsupported }

// Close is not implemented on non-Linux platforms.
func (b *RealButton) Close() error { return nil }

// MemDataLine is not available on non-Linux platforms.
type MemDataLine struct{}

// NewMemDataLine returns an error on non-Linux platforms.
func NewMemDataLine(pin int) (*MemDataLine, error) {
	return nil, errUnsupported
}

// Value is not implemented on non-Linux platforms.
func (d *MemDataLine) Value() (int, error) { return 0, errUnsupported }

// Close is not implemented on non-Linux platforms.
func (d *MemDataLine) Close() error { return nil }
