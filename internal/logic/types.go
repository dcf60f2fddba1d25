// Package logic contains the loop-side decoding pipeline for the spa display bus:
// frame validation, 7-segment decoding, debounce, set-mode inference, heartbeat
// and set-point auto-refresh.
// This package has NO GPIO, MQTT or OS dependencies and never sleeps.
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"
)

// TempUnknown marks a temperature that could not be decoded.
const TempUnknown = -1

// State represents the published state of an equipment signal.
type State string

const (
	StateUnknown State = ""
	StateOn      State = "ON"
	StateOff     State = "OFF"
)

func stateOf(on bool) State {
	if on {
		return StateOn
	}
	return StateOff
}

// Mode is the inferred display mode.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSet
)

func (m Mode) String() string {
	if m == ModeSet {
		return "SET"
	}
	return "NORMAL"
}

// TemperaturePublisher receives temperature values in degrees.
type TemperaturePublisher interface {
	PublishTemperature(value float64)
}

// BooleanStatePublisher receives equipment on/off states.
type BooleanStatePublisher interface {
	PublishState(on bool)
}

// Sensors are the outputs of the decoder. Any field may be nil.
type Sensors struct {
	Measured TemperaturePublisher
	Set      TemperaturePublisher
	Heater   BooleanStatePublisher
	Pump     BooleanStatePublisher
	Light    BooleanStatePublisher
}

// Button drives the physical panel button used to reveal the set-point.
type Button interface {
	SetPressed(pressed bool) error
}

// Scheduler runs one-shot callbacks on the loop goroutine.
// Scheduling a name that is already pending replaces it.
type Scheduler interface {
	After(name string, delay time.Duration, fn func(now time.Time))
}

// FrameSource is the interrupt-side state block as seen from the loop.
type FrameSource interface {
	// Take returns the most recently completed frame and clears the ready flag.
	Take() (uint32, bool)
	// DrainPartials returns and resets the partial-frame counter.
	// A non-zero result also clears the last-frame-valid flag.
	DrainPartials() uint32
	LastFrameValid() bool
	SetLastFrameValid(valid bool)
}

// Config holds the decoder's tunables.
type Config struct {
	StableThreshold       uint8
	PumpStableThreshold   uint8
	LightStableThreshold  uint8
	SetModeTimeout        time.Duration
	SetCandidateFreshness time.Duration
	HeaterOffHold         time.Duration
	Heartbeat             time.Duration
	SetRefreshInterval    time.Duration
	PressDuration         time.Duration
	BootPressDelay        time.Duration
}

// DefaultConfig returns the values observed to work with the panel.
func DefaultConfig() Config {
	return Config{
		StableThreshold:       2,
		PumpStableThreshold:   3,
		LightStableThreshold:  2,
		SetModeTimeout:        2 * time.Second,
		SetCandidateFreshness: 3 * time.Second,
		HeaterOffHold:         1 * time.Second,
		Heartbeat:             30 * time.Second,
		SetRefreshInterval:    5 * time.Minute,
		PressDuration:         200 * time.Millisecond,
		BootPressDelay:        1500 * time.Millisecond,
	}
}

// Counts tracks diagnostic counters since startup.
type Counts struct {
	Frames         int
	Valid          int
	ChecksumFailed int
	UnknownDigits  int
	Partial        int
	SetCaptures    int
	StaleSetPoints int
	Presses        int
	Heartbeats     int
}

// Published is the last state handed to the sensors.
// Temperatures are TempUnknown and states StateUnknown until first published.
type Published struct {
	Measured    int
	Set         int
	Heater      State
	Pump        State
	Light       State
	Mode        Mode
	LastPublish time.Time
	LastFrame   uint32
	HaveFrame   bool
}

// Result describes what a single Poll did.
type Result struct {
	FrameTaken bool
	Valid      bool
	Reading    Reading
	Partials   uint32
	Heartbeat  bool
	Pressed    bool
}
