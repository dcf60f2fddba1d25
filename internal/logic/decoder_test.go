package logic

import (
	"errors"
	"testing"
	"time"

	"github.com/sweeney/spa-sensor/internal/gpio"
	"github.com/sweeney/spa-sensor/internal/sched"
)

// fakeSource hands out queued frames one per Take.
type fakeSource struct {
	frames    []uint32
	partials  uint32
	lastValid bool
}

func (s *fakeSource) Take() (uint32, bool) {
	if len(s.frames) == 0 {
		return 0, false
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, true
}

func (s *fakeSource) DrainPartials() uint32 {
	n := s.partials
	s.partials = 0
	if n > 0 {
		s.lastValid = false
	}
	return n
}

func (s *fakeSource) LastFrameValid() bool     { return s.lastValid }
func (s *fakeSource) SetLastFrameValid(v bool) { s.lastValid = v }

// recorder captures published values for one sensor.
type recorder struct {
	temps  []float64
	states []bool
}

func (r *recorder) PublishTemperature(v float64) { r.temps = append(r.temps, v) }
func (r *recorder) PublishState(on bool)         { r.states = append(r.states, on) }

type harness struct {
	t      *testing.T
	d      *Decoder
	src    *fakeSource
	button *gpio.FakeButton
	timers *sched.Queue

	measured, set, heater, pump, light *recorder
}

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		src:      &fakeSource{},
		button:   gpio.NewFakeButton(),
		timers:   sched.New(t0),
		measured: &recorder{},
		set:      &recorder{},
		heater:   &recorder{},
		pump:     &recorder{},
		light:    &recorder{},
	}
	sensors := Sensors{Measured: h.measured, Set: h.set, Heater: h.heater, Pump: h.pump, Light: h.light}
	h.d = NewDecoder(cfg, h.src, sensors, h.button, h.timers, nil, t0)
	return h
}

// feed delivers one frame at t0+at and runs one loop iteration.
func (h *harness) feed(frame uint32, at time.Duration) Result {
	h.src.frames = append(h.src.frames, frame)
	return h.idle(at)
}

// idle runs one loop iteration at t0+at.
func (h *harness) idle(at time.Duration) Result {
	now := t0.Add(at)
	h.timers.Run(now)
	return h.d.Poll(now)
}

var (
	zeroFrame = frameOf(0, 0, 0, 0)
	temp72    = frameOf(0, Glyph(7), Glyph(2), 0)
	temp98    = frameOf(0, Glyph(9), Glyph(8), 0)
	example   = frameOf(0b0000100, Glyph(7), Glyph(2), 0b010)
	badFrame  = frameOf(0b1000000, Glyph(7), Glyph(2), 0)
	ms        = time.Millisecond
)

func expectTemps(t *testing.T, name string, got []float64, want ...float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %v, got %v", name, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s[%d]: expected %v, got %v", name, i, want[i], got[i])
		}
	}
}

func expectStates(t *testing.T, name string, got []bool, want ...bool) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %v, got %v", name, want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s[%d]: expected %v, got %v", name, i, want[i], got[i])
		}
	}
}

func TestEndToEndExampleFrame(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.feed(example, 0)
	expectTemps(t, "measured", h.measured.temps)
	// Heater on is accepted without debounce.
	expectStates(t, "heater", h.heater.states, true)
	expectStates(t, "light", h.light.states)

	h.feed(example, 100*ms)
	expectTemps(t, "measured", h.measured.temps, 72)
	expectStates(t, "heater", h.heater.states, true)
	expectStates(t, "light", h.light.states, true)
	expectStates(t, "pump", h.pump.states)

	s := h.d.State()
	if s.Measured != 72 || s.Heater != StateOn || s.Light != StateOn || s.Pump != StateUnknown {
		t.Errorf("unexpected state: %+v", s)
	}
	if s.Mode != ModeNormal {
		t.Errorf("expected normal mode, got %s", s.Mode)
	}
}

func TestMeasuredPublishedOnlyOnChange(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	for i := 0; i < 5; i++ {
		h.feed(temp72, time.Duration(i)*100*ms)
	}
	expectTemps(t, "measured", h.measured.temps, 72)

	h.feed(temp98, 600*ms)
	expectTemps(t, "measured", h.measured.temps, 72)
	h.feed(temp98, 700*ms)
	expectTemps(t, "measured", h.measured.temps, 72, 98)
}

func TestTransientTemperatureRejected(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.feed(temp72, 0)
	h.feed(temp98, 100*ms)
	h.feed(temp72, 200*ms)
	h.feed(temp98, 300*ms)
	expectTemps(t, "measured", h.measured.temps)
}

func TestInvalidFrameDoesNotTouchTrackers(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.feed(temp72, 0)
	count := h.d.temp.Count()

	res := h.feed(badFrame, 100*ms)
	if !res.FrameTaken || res.Valid {
		t.Errorf("expected taken invalid frame, got %+v", res)
	}
	if h.d.temp.Count() != count || h.d.zero.Count() != 1 || h.d.pump.Count() != 1 {
		t.Errorf("invalid frame advanced trackers: temp=%d zero=%d pump=%d",
			h.d.temp.Count(), h.d.zero.Count(), h.d.pump.Count())
	}
	if h.src.lastValid {
		t.Error("invalid frame should clear last-frame-valid")
	}

	// The invalid frame did not break the run of 72s.
	h.feed(temp72, 200*ms)
	expectTemps(t, "measured", h.measured.temps, 72)

	c := h.d.CountsSnapshot()
	if c.Frames != 3 || c.Valid != 2 || c.ChecksumFailed != 1 {
		t.Errorf("unexpected counts: %+v", c)
	}
}

func TestProcessFrameChecksumError(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	_, err := h.d.ProcessFrame(frameOf(0, Glyph(1), Glyph(1), 0b001), t0)
	if !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
	if len(h.heater.states)+len(h.light.states)+len(h.pump.states) != 0 {
		t.Error("invalid frame must not publish")
	}
}

func TestSetPointCapturedBetweenZeros(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.feed(zeroFrame, 0)
	h.feed(zeroFrame, 100*ms)
	if h.d.State().Mode != ModeSet {
		t.Fatal("expected set mode after stable zero")
	}
	h.feed(temp72, 200*ms)
	h.feed(zeroFrame, 300*ms)
	expectTemps(t, "set", h.set.temps)
	h.feed(zeroFrame, 400*ms)

	expectTemps(t, "set", h.set.temps, 72)
	expectTemps(t, "measured", h.measured.temps)
	if h.d.State().Set != 72 {
		t.Errorf("expected set 72, got %d", h.d.State().Set)
	}
	if c := h.d.CountsSnapshot(); c.SetCaptures != 1 {
		t.Errorf("expected 1 set capture, got %d", c.SetCaptures)
	}
}

func TestSetPointNotCapturedWhenStale(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.feed(zeroFrame, 0)
	h.feed(zeroFrame, 100*ms)
	h.feed(temp72, 200*ms)
	h.feed(zeroFrame, 10200*ms)
	h.feed(zeroFrame, 10300*ms)

	expectTemps(t, "set", h.set.temps)
	if h.d.State().Set != TempUnknown {
		t.Errorf("expected unknown set temp, got %d", h.d.State().Set)
	}
}

func TestSetPointFreshnessWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SetModeTimeout = time.Minute // keep set mode so only freshness applies
	h := newHarness(t, cfg)

	h.feed(zeroFrame, 0)
	h.feed(zeroFrame, 100*ms)
	h.feed(temp72, 200*ms)
	h.feed(zeroFrame, 4000*ms)
	h.feed(zeroFrame, 4100*ms)

	expectTemps(t, "set", h.set.temps)
	if c := h.d.CountsSnapshot(); c.StaleSetPoints != 1 {
		t.Errorf("expected 1 stale near-miss, got %d", c.StaleSetPoints)
	}
}

func TestSetPointNotRepublishedWhenUnchanged(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	seq := []uint32{zeroFrame, zeroFrame, temp72, zeroFrame, zeroFrame, temp72, zeroFrame, zeroFrame}
	for i, f := range seq {
		h.feed(f, time.Duration(i)*100*ms)
	}
	expectTemps(t, "set", h.set.temps, 72)
}

func TestSetModeSuppressesMeasured(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.feed(zeroFrame, 0)
	h.feed(zeroFrame, 100*ms)
	h.feed(temp98, 200*ms)
	h.feed(temp98, 300*ms)
	h.feed(temp98, 400*ms)
	expectTemps(t, "measured", h.measured.temps)

	// No zero for the set-mode timeout: back to normal, candidate discarded.
	h.feed(temp98, 2100*ms)
	if h.d.State().Mode != ModeNormal {
		t.Fatal("expected normal mode after timeout")
	}
	if h.d.setCandidate != TempUnknown {
		t.Errorf("candidate should be discarded on exit, got %d", h.d.setCandidate)
	}
	expectTemps(t, "measured", h.measured.temps, 98)
	expectTemps(t, "set", h.set.temps)
}

func TestSingleZeroDoesNotEnterSetMode(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.feed(temp72, 0)
	h.feed(zeroFrame, 100*ms)
	h.feed(temp72, 200*ms)
	h.feed(temp72, 300*ms)

	if h.d.State().Mode != ModeNormal {
		t.Error("a single zero frame should not enter set mode")
	}
	expectTemps(t, "measured", h.measured.temps, 72)
}

func TestHeaterBlipOffStaysOn(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	on := frameOf(0b0000100, Glyph(7), Glyph(2), 0)

	h.feed(on, 0)
	h.feed(temp72, 300*ms)
	h.feed(on, 600*ms)
	h.feed(temp72, 900*ms)
	h.feed(on, 1200*ms)

	expectStates(t, "heater", h.heater.states, true)
}

func TestHeaterOffAfterHold(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	on := frameOf(0b0000100, Glyph(7), Glyph(2), 0)

	h.feed(on, 0)
	h.feed(temp72, 100*ms)
	h.feed(temp72, 500*ms)
	h.feed(temp72, 1099*ms)
	expectStates(t, "heater", h.heater.states, true)

	h.feed(temp72, 1100*ms)
	expectStates(t, "heater", h.heater.states, true, false)

	h.feed(temp72, 1500*ms)
	h.feed(temp72, 3000*ms)
	expectStates(t, "heater", h.heater.states, true, false)
}

func TestHeaterInitialOffNeedsStability(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.feed(temp72, 0)
	expectStates(t, "heater", h.heater.states)
	h.feed(temp72, 100*ms)
	expectStates(t, "heater", h.heater.states, false)
}

func TestPumpNeedsThreeFrames(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	pumpOn := frameOf(0, Glyph(7), Glyph(2), 0b100)

	h.feed(pumpOn, 0)
	h.feed(pumpOn, 100*ms)
	expectStates(t, "pump", h.pump.states)
	h.feed(pumpOn, 200*ms)
	expectStates(t, "pump", h.pump.states, true)

	// Noise: two off frames then on again does not flip the pump.
	h.feed(temp72, 300*ms)
	h.feed(temp72, 400*ms)
	h.feed(pumpOn, 500*ms)
	expectStates(t, "pump", h.pump.states, true)
}

func TestLightToggle(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	lightOn := frameOf(0, Glyph(7), Glyph(2), 0b010)

	h.feed(lightOn, 0)
	h.feed(lightOn, 100*ms)
	h.feed(temp72, 200*ms)
	h.feed(temp72, 300*ms)
	expectStates(t, "light", h.light.states, true, false)
}

func TestPartialFramesCounted(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.src.partials = 3

	res := h.idle(0)
	if res.Partials != 3 {
		t.Errorf("expected 3 partials in result, got %d", res.Partials)
	}
	if c := h.d.CountsSnapshot(); c.Partial != 3 {
		t.Errorf("expected 3 partials counted, got %d", c.Partial)
	}
}

func TestHeartbeatRepublishesFromStoredFrame(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.feed(example, 0)
	h.feed(example, 100*ms)

	if res := h.idle(30 * time.Second); res.Heartbeat {
		t.Fatal("heartbeat should wait a full interval after the last publish")
	}
	res := h.idle(30*time.Second + 100*ms)
	if !res.Heartbeat {
		t.Fatal("expected heartbeat")
	}

	expectTemps(t, "measured", h.measured.temps, 72, 72)
	expectStates(t, "heater", h.heater.states, true, true)
	expectStates(t, "light", h.light.states, true, true)
	// Pump was never debounced; the heartbeat falls back to the stored frame's bit.
	expectStates(t, "pump", h.pump.states, false)
	expectTemps(t, "set", h.set.temps)

	if res := h.idle(31 * time.Second); res.Heartbeat {
		t.Error("heartbeat should not repeat immediately")
	}
	if c := h.d.CountsSnapshot(); c.Heartbeats != 1 {
		t.Errorf("expected 1 heartbeat, got %d", c.Heartbeats)
	}
}

func TestHeartbeatIgnoresUndebouncedStoredFrame(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	temp78 := frameOf(0, Glyph(7), Glyph(8), 0)
	// An 8 with segment g dropped reads as 0.
	noisy70 := frameOf(0, Glyph(7), Glyph(0), 0)

	h.feed(temp78, 0)
	h.feed(temp78, 100*ms)
	h.feed(noisy70, 200*ms)

	if res := h.idle(30*time.Second + 200*ms); !res.Heartbeat {
		t.Fatal("expected heartbeat")
	}
	expectTemps(t, "measured", h.measured.temps, 78, 78)

	h.feed(temp78, 31*time.Second)
	h.feed(temp78, 31*time.Second+100*ms)
	h.feed(temp78, 31*time.Second+200*ms)
	expectTemps(t, "measured", h.measured.temps, 78, 78)
	if got := h.d.State().Measured; got != 78 {
		t.Errorf("published measured: got %d, want 78", got)
	}
}

func TestHeartbeatStoredValuesWithoutValidFrame(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.feed(example, 0)
	h.feed(example, 100*ms)
	h.src.partials = 1 // clears last-frame-valid

	res := h.idle(30*time.Second + 100*ms)
	if !res.Heartbeat {
		t.Fatal("expected heartbeat")
	}
	expectTemps(t, "measured", h.measured.temps, 72, 72)
	expectStates(t, "pump", h.pump.states)
}

func TestHeartbeatBeforeAnyFrame(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	res := h.idle(30 * time.Second)
	if !res.Heartbeat {
		t.Fatal("expected heartbeat")
	}
	expectTemps(t, "measured", h.measured.temps)
	expectStates(t, "heater", h.heater.states)
}

func TestHeartbeatInSetModeKeepsMeasured(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.feed(temp72, 0)
	h.feed(temp72, 100*ms)
	h.feed(zeroFrame, 200*ms)
	h.feed(zeroFrame, 300*ms)
	h.feed(temp98, 400*ms)

	h.idle(30*time.Second + 400*ms)
	expectTemps(t, "measured", h.measured.temps, 72, 72)
}

func TestHeartbeatDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Heartbeat = 0
	h := newHarness(t, cfg)

	if res := h.idle(time.Hour); res.Heartbeat {
		t.Error("heartbeat should be disabled")
	}
}

func TestBootPress(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.d.Boot(t0)

	h.idle(1400 * ms)
	if h.button.Presses() != 0 {
		t.Fatal("boot press fired early")
	}
	h.idle(1500 * ms)
	if !h.button.Pressed {
		t.Fatal("expected button pressed at 1.5s")
	}
	h.idle(1600 * ms)
	if !h.button.Pressed {
		t.Error("button released too early")
	}
	h.idle(1700 * ms)
	if h.button.Pressed {
		t.Error("expected button released at 1.7s")
	}
	if h.button.Presses() != 1 {
		t.Errorf("expected 1 press, got %d", h.button.Presses())
	}
}

func TestAutoRefreshPress(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.d.Boot(t0)
	h.idle(1500 * ms)
	h.idle(1700 * ms)

	// Refresh interval is measured from the boot press.
	if res := h.idle(1500*ms + 5*time.Minute - ms); res.Pressed {
		t.Fatal("refresh fired early")
	}
	res := h.idle(1500*ms + 5*time.Minute)
	if !res.Pressed {
		t.Fatal("expected auto-refresh press")
	}
	if res.Heartbeat {
		t.Error("refresh press should suppress the heartbeat")
	}
	h.idle(1700*ms + 5*time.Minute)
	if h.button.Pressed {
		t.Error("expected release after press duration")
	}
	if h.button.Presses() != 2 {
		t.Errorf("expected 2 presses, got %d", h.button.Presses())
	}

	// Next refresh only after another full interval, even without a capture.
	if res := h.idle(1500*ms + 9*time.Minute); res.Pressed {
		t.Error("refresh should be rate limited")
	}
	if res := h.idle(1500*ms + 10*time.Minute); !res.Pressed {
		t.Error("expected second auto-refresh press")
	}
}

func TestSetCaptureResetsRefreshTimer(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	base := 4 * time.Minute
	h.feed(zeroFrame, base)
	h.feed(zeroFrame, base+100*ms)
	h.feed(temp72, base+200*ms)
	h.feed(zeroFrame, base+300*ms)
	h.feed(zeroFrame, base+400*ms)
	expectTemps(t, "set", h.set.temps, 72)

	if res := h.idle(6 * time.Minute); res.Pressed {
		t.Error("set capture should restart the refresh interval")
	}
	if res := h.idle(base + 400*ms + 5*time.Minute); !res.Pressed {
		t.Error("expected refresh five minutes after the capture")
	}
}

func TestPressErrorStillRestartsTimer(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.button.PressError = errors.New("line busy")

	if res := h.idle(5 * time.Minute); !res.Pressed {
		t.Fatal("expected refresh attempt")
	}
	if h.button.Presses() != 0 {
		t.Error("failed press should not be recorded")
	}
	if res := h.idle(6 * time.Minute); res.Pressed {
		t.Error("failed press should still rate limit")
	}
	if c := h.d.CountsSnapshot(); c.Presses != 0 {
		t.Errorf("expected 0 successful presses, got %d", c.Presses)
	}
}

func TestManualPress(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	h.idle(time.Minute)
	h.d.Press(t0.Add(time.Minute))
	if !h.button.Pressed {
		t.Fatal("expected pressed")
	}
	h.idle(time.Minute + 200*ms)
	if h.button.Pressed {
		t.Error("expected released")
	}
	if res := h.idle(5 * time.Minute); res.Pressed {
		t.Error("manual press should restart the refresh interval")
	}
}

func TestNilSensorsAndButton(t *testing.T) {
	src := &fakeSource{frames: []uint32{example, example}}
	d := NewDecoder(DefaultConfig(), src, Sensors{}, nil, nil, nil, t0)

	d.Boot(t0)
	d.Poll(t0)
	d.Poll(t0.Add(100 * ms))
	d.Poll(t0.Add(10 * time.Minute))

	if d.State().Measured != 72 {
		t.Errorf("expected measured 72, got %d", d.State().Measured)
	}
}
