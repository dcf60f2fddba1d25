package gpio

import (
	"errors"
	"sync"
	"time"
)

// FakeBus is a test double that clocks scripted bits into a watcher.
type FakeBus struct {
	mu     sync.Mutex
	data   int
	clk    int
	stamp  time.Duration
	onEdge func(stamp time.Duration)

	// BitPeriod is added to the edge timestamp after every clock edge.
	BitPeriod time.Duration

	// ReadError, if set, will be returned by Value() and Levels().
	ReadError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeBus creates a FakeBus with both lines low.
func NewFakeBus() *FakeBus {
	return &FakeBus{}
}

// Value returns the current data level.
func (f *FakeBus) Value() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return 0, f.ReadError
	}
	return f.data, nil
}

// Levels returns the current clock and data levels.
func (f *FakeBus) Levels() (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadError != nil {
		return 0, 0, f.ReadError
	}
	return f.clk, f.data, nil
}

// Watch records the edge handler.
func (f *FakeBus) Watch(onEdge func(stamp time.Duration)) error {
	if onEdge == nil {
		return errors.New("nil edge handler")
	}
	f.mu.Lock()
	f.onEdge = onEdge
	f.mu.Unlock()
	return nil
}

// Clock sets the data line to bit and raises one clock edge.
// The handler runs synchronously on the caller's goroutine.
func (f *FakeBus) Clock(bit int) {
	f.mu.Lock()
	f.data = bit & 1
	f.clk = 1
	h := f.onEdge
	stamp := f.stamp
	f.stamp += f.BitPeriod
	f.mu.Unlock()

	if h != nil {
		h(stamp)
	}

	f.mu.Lock()
	f.clk = 0
	f.mu.Unlock()
}

// Advance moves the edge timestamp forward, as an idle bus would.
func (f *FakeBus) Advance(d time.Duration) {
	f.mu.Lock()
	f.stamp += d
	f.mu.Unlock()
}

// SendBits clocks the low n bits of v, most significant first.
func (f *FakeBus) SendBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		f.Clock(int(v>>uint(i)) & 1)
	}
}

// Close marks the bus as closed.
func (f *FakeBus) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeButton records button transitions.
type FakeButton struct {
	// Transitions contains every SetPressed value in call order.
	Transitions []bool

	// Pressed is the current output state.
	Pressed bool

	// PressError, if set, will be returned by SetPressed(true).
	PressError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeButton creates a released FakeButton.
func NewFakeButton() *FakeButton {
	return &FakeButton{}
}

// SetPressed records the transition.
func (f *FakeButton) SetPressed(pressed bool) error {
	if pressed && f.PressError != nil {
		return f.PressError
	}
	f.Transitions = append(f.Transitions, pressed)
	f.Pressed = pressed
	return nil
}

// Presses returns how many times the button went from released to pressed.
func (f *FakeButton) Presses() int {
	n := 0
	for _, p := range f.Transitions {
		if p {
			n++
		}
	}
	return n
}

// Close releases the button.
func (f *FakeButton) Close() error {
	f.Pressed = false
	f.Closed = true
	return nil
}
