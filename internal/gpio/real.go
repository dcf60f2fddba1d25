//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "spa-sensor"

// RealBus reads the display bus from actual hardware using the Linux GPIO character device.
type RealBus struct {
	chip   *gpiocdev.Chip
	clkPin int
	clk    *gpiocdev.Line
	data   *gpiocdev.Line
}

// NewRealBus opens the clock and data lines as inputs.
// No pulls are applied; the bus needs external pull resistors.
func NewRealBus(chipName string, pinCLK, pinData int) (*RealBus, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	data, err := chip.RequestLine(pinData, gpiocdev.AsInput)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request DATA pin %d: %w", pinData, err)
	}

	clk, err := chip.RequestLine(pinCLK, gpiocdev.AsInput)
	if err != nil {
		data.Close()
		chip.Close()
		return nil, fmt.Errorf("request CLK pin %d: %w", pinCLK, err)
	}

	return &RealBus{
		chip:   chip,
		clkPin: pinCLK,
		clk:    clk,
		data:   data,
	}, nil
}

// Value samples the data line.
func (b *RealBus) Value() (int, error) {
	return b.data.Value()
}

// Levels returns the current clock and data levels.
func (b *RealBus) Levels() (int, int, error) {
	clk, err := b.clk.Value()
	if err != nil {
		return 0, 0, fmt.Errorf("read CLK pin: %w", err)
	}
	data, err := b.data.Value()
	if err != nil {
		return 0, 0, fmt.Errorf("read DATA pin: %w", err)
	}
	return clk, data, nil
}

// Watch re-requests the clock line with rising-edge detection and calls
// onEdge from the gpiocdev event goroutine for every edge, stamped with the
// kernel event time.
func (b *RealBus) Watch(onEdge func(stamp time.Duration)) error {
	if b.clk != nil {
		if err := b.clk.Close(); err != nil {
			return fmt.Errorf("release CLK pin: %w", err)
		}
		b.clk = nil
	}
	clk, err := b.chip.RequestLine(b.clkPin,
		gpiocdev.AsInput,
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) { onEdge(evt.Timestamp) }),
	)
	if err != nil {
		return fmt.Errorf("watch CLK pin %d: %w", b.clkPin, err)
	}
	b.clk = clk
	return nil
}

// Close releases GPIO resources.
func (b *RealBus) Close() error {
	var errs []error
	if b.clk != nil {
		if err := b.clk.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close CLK pin: %w", err))
		}
	}
	if b.data != nil {
		if err := b.data.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close DATA pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// RealButton drives a panel button through an output line (active high).
type RealButton struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealButton requests pin as an output, initially released.
func NewRealButton(chipName string, pin int) (*RealButton, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request button pin %d: %w", pin, err)
	}
	return &RealButton{chip: chip, line: line}, nil
}

// SetPressed drives the output high while pressed.
func (b *RealButton) SetPressed(pressed bool) error {
	v := 0
	if pressed {
		v = 1
	}
	if err := b.line.SetValue(v); err != nil {
		return fmt.Errorf("set button: %w", err)
	}
	return nil
}

// Close releases the button and reconfigures the pin as an input with
// pull-down (matching Pi boot defaults) so the opto stays off.
func (b *RealButton) Close() error {
	var errs []error
	if b.line != nil {
		if err := b.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("release button: %w", err))
		}
		if err := b.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button pin: %w", err))
		}
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}
