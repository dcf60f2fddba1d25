package logic

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Decoder owns all loop-side state: trackers, set-mode machine and published values.
// It is not safe for concurrent use; call it only from the cooperative loop.
type Decoder struct {
	cfg     Config
	source  FrameSource
	sensors Sensors
	button  Button
	timers  Scheduler
	log     logrus.FieldLogger

	zero   *Tracker[bool]
	temp   *Tracker[int]
	heater *Tracker[bool]
	pump   *Tracker[bool]
	light  *Tracker[bool]
	hold   *HeaterHold

	mode              Mode
	setCandidate      int
	lastZeroSeen      time.Time
	lastCandidateSeen time.Time
	lastSetCaptured   time.Time

	pub    Published
	counts Counts
}

// NewDecoder creates a decoder reading from source and publishing to sensors.
// The button and timers are used for set-point refresh presses and may be nil.
func NewDecoder(cfg Config, source FrameSource, sensors Sensors, button Button, timers Scheduler, logger logrus.FieldLogger, now time.Time) *Decoder {
	if logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		logger = l
	}
	return &Decoder{
		cfg:             cfg,
		source:          source,
		sensors:         sensors,
		button:          button,
		timers:          timers,
		log:             logger,
		zero:            NewTracker[bool](cfg.StableThreshold),
		temp:            NewTracker[int](cfg.StableThreshold),
		heater:          NewTracker[bool](cfg.StableThreshold),
		pump:            NewTracker[bool](cfg.PumpStableThreshold),
		light:           NewTracker[bool](cfg.LightStableThreshold),
		hold:            NewHeaterHold(cfg.HeaterOffHold),
		setCandidate:    TempUnknown,
		lastSetCaptured: now,
		pub: Published{
			Measured:    TempUnknown,
			Set:         TempUnknown,
			LastPublish: now,
		},
	}
}

// Poll runs one cooperative iteration: it drains the partial-frame counter and
// then either processes the latest completed frame or runs the idle duties
// (set-point auto-refresh and heartbeat).
func (d *Decoder) Poll(now time.Time) Result {
	var res Result

	if partials := d.source.DrainPartials(); partials > 0 {
		d.counts.Partial += int(partials)
		res.Partials = partials
		d.log.Debugf("dropped %d partial frames (gap before %d bits)", partials, FrameBits)
	}

	frame, ok := d.source.Take()
	if !ok {
		res.Pressed = d.checkRefresh(now)
		res.Heartbeat = d.checkHeartbeat(now)
		return res
	}

	res.FrameTaken = true
	r, err := d.ProcessFrame(frame, now)
	if err != nil {
		d.source.SetLastFrameValid(false)
		return res
	}
	d.source.SetLastFrameValid(true)
	res.Valid = true
	res.Reading = r
	return res
}

// ProcessFrame validates and decodes one frame and advances every tracker.
// Frames failing the checksum return an error wrapping ErrChecksum and leave
// all state untouched apart from the counters.
func (d *Decoder) ProcessFrame(frame uint32, now time.Time) (Reading, error) {
	d.counts.Frames++

	r, err := Decode(frame)
	if err != nil {
		d.counts.ChecksumFailed++
		d.log.Debugf("frame 0x%06X ignored: %v", frame&0xFFFFFF, err)
		return Reading{}, err
	}
	d.counts.Valid++
	d.log.Debugf("frame raw=0x%06X %s", r.Raw, r.Fields)

	if !r.Zero && r.Temp == TempUnknown {
		d.counts.UnknownDigits++
		d.log.Debugf("undecodable digits p2=0x%02X p3=0x%02X", r.Fields.P2, r.Fields.P3)
	}
	if r.Zero {
		d.log.Debugf("zero display p2=0x%02X p3=0x%02X (d2=%d d3=%d)", r.Fields.P2, r.Fields.P3, r.Tens, r.Ones)
	}

	d.pub.LastFrame = r.Raw
	d.pub.HaveFrame = true

	zeroStable := d.zero.Observe(r.Zero) && d.zero.Candidate()
	tempStable := d.temp.Observe(r.Temp)

	d.updateSetMode(r.Temp, zeroStable, now)

	if d.mode == ModeNormal && tempStable && r.Temp != TempUnknown && r.Temp != d.pub.Measured {
		d.pub.Measured = r.Temp
		d.pub.LastPublish = now
		if d.sensors.Measured != nil {
			d.sensors.Measured.PublishTemperature(float64(r.Temp))
		}
		d.log.Debugf("measured temp %d", r.Temp)
	}

	d.updateEquipment(r, now)
	return r, nil
}

func (d *Decoder) updateEquipment(r Reading, now time.Time) {
	heaterStable := d.heater.Observe(r.Heater)
	pumpStable := d.pump.Observe(r.Pump)
	lightStable := d.light.Observe(r.Light)

	heater := d.pub.Heater
	if on := d.hold.Update(r.Heater, now); on {
		heater = StateOn
	} else if d.pub.Heater == StateOn || heaterStable {
		heater = StateOff
	}

	pump := d.pub.Pump
	if pumpStable {
		pump = stateOf(d.pump.Candidate())
	}
	light := d.pub.Light
	if lightStable {
		light = stateOf(d.light.Candidate())
	}

	changed := false
	if heater != d.pub.Heater {
		d.pub.Heater = heater
		publishState(d.sensors.Heater, heater)
		changed = true
	}
	if pump != d.pub.Pump {
		d.pub.Pump = pump
		publishState(d.sensors.Pump, pump)
		changed = true
	}
	if light != d.pub.Light {
		d.pub.Light = light
		publishState(d.sensors.Light, light)
		changed = true
	}
	if changed {
		d.pub.LastPublish = now
		d.log.Debugf("equipment heater=%s pump=%s light=%s (runs h=%d p=%d l=%d)",
			heater, pump, light, d.heater.Count(), d.pump.Count(), d.light.Count())
	}
}

func publishState(p BooleanStatePublisher, s State) {
	if p == nil || s == StateUnknown {
		return
	}
	p.PublishState(s == StateOn)
}

// State returns a copy of the published state.
func (d *Decoder) State() Published {
	s := d.pub
	s.Mode = d.mode
	return s
}

// CountsSnapshot returns a copy of the diagnostic counters.
func (d *Decoder) CountsSnapshot() Counts {
	return d.counts
}
