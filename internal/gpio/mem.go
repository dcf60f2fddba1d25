//go:build linux

package gpio

import (
	"fmt"

	"github.com/stianeikeland/go-rpio"
)

// MemDataLine samples the data line from the SoC level register through
// /dev/gpiomem. The pin stays requested by RealBus; this only reads it.
type MemDataLine struct {
	pin rpio.Pin
}

// NewMemDataLine maps the GPIO registers and configures pin as an input
// without pulls.
func NewMemDataLine(pin int) (*MemDataLine, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("open gpiomem: %w", err)
	}
	p := rpio.Pin(pin)
	p.Input()
	p.PullOff()
	return &MemDataLine{pin: p}, nil
}

// Value samples the data line.
func (d *MemDataLine) Value() (int, error) {
	if d.pin.Read() == rpio.High {
		return 1, nil
	}
	return 0, nil
}

// Close unmaps the GPIO registers.
func (d *MemDataLine) Close() error {
	if err := rpio.Close(); err != nil {
		return fmt.Errorf("close gpiomem: %w", err)
	}
	return nil
}
