package logic

import "time"

// updateSetMode advances the set-mode machine for one valid frame.
//
// The panel shows the set-point by alternating it with blank (all-zero)
// frames. A stable zero enters set mode; a temperature seen while in set mode
// becomes the set-point candidate; the next stable zero commits it if the
// candidate is still fresh. No stable zero for SetModeTimeout returns to normal.
func (d *Decoder) updateSetMode(temp int, zeroStable bool, now time.Time) {
	if temp != TempUnknown {
		d.lastCandidateSeen = now
	}

	switch {
	case zeroStable:
		d.lastZeroSeen = now
		if d.mode != ModeSet {
			d.mode = ModeSet
			d.log.Debugf("zero display confirmed, entering set mode")
		}
	case temp != TempUnknown && d.mode == ModeSet:
		if d.setCandidate != temp {
			d.setCandidate = temp
			d.log.Debugf("set temp candidate %d", temp)
		}
	}

	if d.mode == ModeSet && now.Sub(d.lastZeroSeen) >= d.cfg.SetModeTimeout {
		d.mode = ModeNormal
		d.setCandidate = TempUnknown
		d.log.Debugf("no zero display for %v, leaving set mode", now.Sub(d.lastZeroSeen))
	}

	if !zeroStable || d.setCandidate == TempUnknown || d.setCandidate == d.pub.Set {
		return
	}
	if age := now.Sub(d.lastCandidateSeen); age > d.cfg.SetCandidateFreshness {
		d.counts.StaleSetPoints++
		d.log.Debugf("set temp candidate %d too old (%v), ignoring", d.setCandidate, age)
		return
	}

	d.pub.Set = d.setCandidate
	d.pub.LastPublish = now
	d.lastSetCaptured = now
	d.counts.SetCaptures++
	if d.sensors.Set != nil {
		d.sensors.Set.PublishTemperature(float64(d.pub.Set))
	}
	d.log.Infof("set temp %d confirmed by zero display", d.pub.Set)
}
