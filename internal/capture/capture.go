// Package capture assembles display frames from clock edges.
//
// OnClockEdge is the interrupt side: it is called once per clock rising edge
// from the GPIO event goroutine. Everything else is the loop side. The fields
// guarded by mu are the only state the edge handler touches; the settle delay
// is a busy-wait outside the lock so the critical section stays short.
package capture

import (
	"sync"
	"time"
)

// FrameBits is the number of clock edges in one frame.
const FrameBits = 24

// Counter is a free-running cycle counter. It wraps at 2^32.
type Counter interface {
	Cycles() uint32
}

// DataLine samples the bus data line.
type DataLine interface {
	Value() (int, error)
}

// Config holds the capture timing in counter cycles.
type Config struct {
	// GapCycles is the inter-edge gap that starts a new frame. It must exceed
	// the bit spacing and be shorter than the idle time between frames.
	GapCycles uint32
	// SettleCycles is the delay between the clock edge and sampling data.
	SettleCycles uint32
}

// Capture is the state block shared between the edge handler and the loop.
type Capture struct {
	counter Counter
	data    DataLine
	cfg     Config

	mu        sync.Mutex
	shift     uint32
	bits      uint8
	frame     uint32
	ready     bool
	partials  uint32
	lastValid bool
	lastEdge  uint32
	seenEdge  bool
}

// New creates a Capture sampling data on each clock edge.
func New(counter Counter, data DataLine, cfg Config) *Capture {
	return &Capture{counter: counter, data: data, cfg: cfg}
}

// OnClockEdge handles one clock rising edge timed by the counter at dispatch.
func (c *Capture) OnClockEdge() {
	c.OnClockEdgeAt(c.counter.Cycles())
}

// OnClockEdgeAt handles one clock rising edge that happened at stamp, in
// counter cycles. Gap detection uses stamp so edges delivered late and back to
// back still split into frames; the settle delay runs from dispatch. It does
// not allocate or block apart from the short mutex hold.
func (c *Capture) OnClockEdgeAt(stamp uint32) {
	c.mu.Lock()
	if c.seenEdge && stamp-c.lastEdge > c.cfg.GapCycles {
		// Frame boundary; anything but an empty or complete frame was cut short.
		if c.bits != 0 && c.bits != FrameBits {
			c.partials++
		}
		c.shift = 0
		c.bits = 0
	}
	c.lastEdge = stamp
	c.seenEdge = true
	c.mu.Unlock()

	start := c.counter.Cycles()
	for c.counter.Cycles()-start < c.cfg.SettleCycles {
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := c.data.Value()
	if err != nil {
		if c.bits != 0 {
			c.partials++
		}
		c.shift = 0
		c.bits = 0
		return
	}
	c.shift = c.shift<<1 | uint32(v&1)
	c.bits++
	if c.bits == FrameBits {
		c.frame = c.shift & 0xFFFFFF
		c.ready = true
		c.shift = 0
		c.bits = 0
	}
}

// Take returns the latest completed frame, superseding any earlier ones,
// and clears the ready flag.
func (c *Capture) Take() (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return 0, false
	}
	c.ready = false
	return c.frame, true
}

// DrainPartials returns the number of frames cut short since the last call
// and resets the counter. Any partial invalidates the stored frame.
func (c *Capture) DrainPartials() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.partials
	c.partials = 0
	if n > 0 {
		c.lastValid = false
	}
	return n
}

// LastFrameValid reports whether the last processed frame passed validation.
func (c *Capture) LastFrameValid() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastValid
}

// SetLastFrameValid records the validation result of the last processed frame.
func (c *Capture) SetLastFrameValid(valid bool) {
	c.mu.Lock()
	c.lastValid = valid
	c.mu.Unlock()
}

// NanoCounter counts nanoseconds on the monotonic clock.
type NanoCounter struct {
	start time.Time
}

// NewNanoCounter creates a counter starting at zero now.
func NewNanoCounter() *NanoCounter {
	return &NanoCounter{start: time.Now()}
}

// Cycles returns elapsed nanoseconds modulo 2^32.
func (n *NanoCounter) Cycles() uint32 {
	return uint32(time.Since(n.start).Nanoseconds())
}

// NanoHz is the NanoCounter rate.
const NanoHz = uint64(time.Second)

// NanoCycles converts a nanosecond timestamp, such as a kernel line event
// time, to NanoCounter cycles.
func NanoCycles(ts time.Duration) uint32 {
	return uint32(ts.Nanoseconds())
}

// CyclesFor converts a duration to cycles of a counter running at hz.
func CyclesFor(d time.Duration, hz uint64) uint32 {
	return uint32(uint64(d.Nanoseconds()) * hz / uint64(time.Second))
}
