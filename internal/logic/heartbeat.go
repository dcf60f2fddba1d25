package logic

import "time"

const (
	timerBootPress = "boot_press_cool"
	timerRelease   = "release_cool"
)

// Boot schedules the start-up press that makes the panel show its set-point.
// The refresh timer is referenced from now so no auto-refresh fires immediately.
func (d *Decoder) Boot(now time.Time) {
	d.lastSetCaptured = now
	if d.timers == nil {
		return
	}
	d.timers.After(timerBootPress, d.cfg.BootPressDelay, func(at time.Time) {
		d.log.Infof("boot: pressing COOL to initialise set temp")
		d.Press(at)
	})
}

// Press pulses the set-point button for PressDuration and restarts the
// auto-refresh timer whether or not a set-point is captured afterwards.
func (d *Decoder) Press(now time.Time) {
	d.lastSetCaptured = now
	if d.button == nil {
		return
	}
	if err := d.button.SetPressed(true); err != nil {
		d.log.Warnf("press COOL: %v", err)
		return
	}
	d.counts.Presses++
	release := func(time.Time) {
		if err := d.button.SetPressed(false); err != nil {
			d.log.Warnf("release COOL: %v", err)
		}
	}
	if d.timers == nil {
		release(now)
		return
	}
	d.timers.After(timerRelease, d.cfg.PressDuration, release)
}

// checkRefresh presses the button if no set-point was captured for SetRefreshInterval.
func (d *Decoder) checkRefresh(now time.Time) bool {
	if d.cfg.SetRefreshInterval <= 0 {
		return false
	}
	since := now.Sub(d.lastSetCaptured)
	if since < d.cfg.SetRefreshInterval {
		return false
	}
	d.log.Infof("no set temp captured for %v, pressing COOL to refresh", since.Truncate(time.Second))
	d.Press(now)
	// Do not follow the press with a heartbeat of stale values.
	d.pub.LastPublish = now
	return true
}

// checkHeartbeat republishes the last known values when nothing has been
// published for the heartbeat interval. Returns true if it published.
func (d *Decoder) checkHeartbeat(now time.Time) bool {
	if d.cfg.Heartbeat <= 0 || now.Sub(d.pub.LastPublish) < d.cfg.Heartbeat {
		return false
	}
	d.pub.LastPublish = now
	d.counts.Heartbeats++

	measured := d.pub.Measured
	heater, pump, light := d.pub.Heater, d.pub.Pump, d.pub.Light

	if d.source.LastFrameValid() && d.pub.HaveFrame {
		r, err := Decode(d.pub.LastFrame)
		if err != nil {
			d.log.Warnf("heartbeat: stored frame 0x%06X fails checksum, not publishing", d.pub.LastFrame)
			return false
		}
		// Only a debounced temperature may replace the published one.
		if d.mode == ModeNormal && r.Temp != TempUnknown && d.temp.Stable() && d.temp.Candidate() == r.Temp {
			measured = r.Temp
			d.pub.Measured = measured
		}
		heater = orRaw(heater, r.Heater)
		pump = orRaw(pump, r.Pump)
		light = orRaw(light, r.Light)
		d.log.Infof("heartbeat: measured=%d set=%d status=0x%X heater=%s pump=%s light=%s",
			measured, d.pub.Set, r.Fields.P4, heater, pump, light)
	} else {
		d.log.Infof("heartbeat (stored): measured=%d set=%d heater=%s pump=%s light=%s",
			measured, d.pub.Set, heater, pump, light)
	}

	if measured != TempUnknown && d.sensors.Measured != nil {
		d.sensors.Measured.PublishTemperature(float64(measured))
	}
	if d.pub.Set != TempUnknown && d.sensors.Set != nil {
		d.sensors.Set.PublishTemperature(float64(d.pub.Set))
	}
	publishState(d.sensors.Heater, heater)
	publishState(d.sensors.Pump, pump)
	publishState(d.sensors.Light, light)
	return true
}

// orRaw prefers the debounced state and falls back to the raw bit.
func orRaw(s State, raw bool) State {
	if s != StateUnknown {
		return s
	}
	return stateOf(raw)
}
