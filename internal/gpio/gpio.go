// Package gpio provides access to the spa display bus and panel buttons.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

import "time"

// Bus reads the panel's synchronous clock+data display bus.
type Bus interface {
	// Value samples the data line (0 or 1).
	Value() (int, error)

	// Levels returns the current clock and data levels.
	Levels() (clk, data int, err error)

	// Watch calls onEdge for every clock rising edge until Close, with the
	// time the edge was seen on the monotonic clock.
	// onEdge runs on the GPIO event goroutine, not the caller's.
	Watch(onEdge func(stamp time.Duration)) error

	// Close releases GPIO resources.
	Close() error
}

// Button is a momentary panel button output.
type Button interface {
	// SetPressed drives the button output active (true) or idle (false).
	SetPressed(pressed bool) error

	// Close releases the line, leaving the button idle.
	Close() error
}

// Pin definitions (BCM numbering)
const (
	DefaultChip    = "gpiochip0"
	DefaultPinCLK  = 17 // display bus clock
	DefaultPinData = 27 // display bus data
	DefaultPinCool = 22 // COOL button opto
)

// Data line samplers.
const (
	SamplerCdev = "cdev" // character-device line read
	SamplerMem  = "mem"  // /dev/gpiomem register read
)
