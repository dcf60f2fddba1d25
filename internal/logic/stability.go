package logic

import "time"

// countCap bounds run-length counters; saturating does not affect threshold checks.
const countCap = 255

// Tracker debounces a signal by counting consecutive identical observations.
type Tracker[T comparable] struct {
	threshold uint8
	candidate T
	count     uint8
}

// NewTracker creates a tracker that becomes stable after threshold identical observations.
func NewTracker[T comparable](threshold uint8) *Tracker[T] {
	if threshold == 0 {
		threshold = 1
	}
	return &Tracker[T]{threshold: threshold}
}

// Observe feeds one observation and reports whether the candidate is now stable.
func (t *Tracker[T]) Observe(v T) bool {
	if t.count > 0 && v == t.candidate {
		if t.count < countCap {
			t.count++
		}
	} else {
		t.candidate = v
		t.count = 1
	}
	return t.Stable()
}

// Stable reports whether the current candidate has reached the threshold.
func (t *Tracker[T]) Stable() bool {
	return t.count >= t.threshold
}

// Candidate returns the value currently being counted.
func (t *Tracker[T]) Candidate() T {
	return t.candidate
}

// Count returns the current run length.
func (t *Tracker[T]) Count() uint8 {
	return t.count
}

// HeaterHold applies asymmetric hysteresis to the heater bit: on is accepted
// immediately, off only after the bit has read off continuously for hold.
type HeaterHold struct {
	hold     time.Duration
	on       bool
	offSince time.Time
}

// NewHeaterHold creates a hysteresis filter with the given off-hold duration.
func NewHeaterHold(hold time.Duration) *HeaterHold {
	return &HeaterHold{hold: hold}
}

// Update feeds the raw heater bit and returns the filtered state.
func (h *HeaterHold) Update(raw bool, now time.Time) bool {
	if raw {
		h.on = true
		h.offSince = time.Time{}
		return true
	}
	if !h.on {
		return false
	}
	if h.offSince.IsZero() {
		h.offSince = now
	}
	if now.Sub(h.offSince) >= h.hold {
		h.on = false
		h.offSince = time.Time{}
	}
	return h.on
}
