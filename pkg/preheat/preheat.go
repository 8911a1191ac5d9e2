// Package preheat drives the drum while the bath warms up and decides
// when the process is ready to start: a direct (ramp-free) drive with a
// static-friction kick, and a hysteretic readiness latch on the measured
// temperature.
package preheat

import (
	"github.com/sirupsen/logrus"

	"github.com/rotolab/roto/pkg/clock"
	"github.com/rotolab/roto/pkg/thermal"
)

const (
	// KickMS is the initial full-duty burst that overcomes static
	// friction before settling on the dial value.
	KickMS = 300

	// EnterBandTenths is how close the measured temperature must stay to
	// target to accumulate hold time.
	EnterBandTenths = 3
	// ExitBandTenths is how far it must drift to drop readiness once
	// latched. Wider than the enter band so readiness does not flap.
	ExitBandTenths = 8

	// MinHoldMS is the floor on the continuous in-band dwell; a profile
	// may require more.
	MinHoldMS = 20000

	// FallbackMS is the blind-readiness timeout when the driving sensor
	// is invalid.
	FallbackMS = 600000
)

// Drive produces the preheat duty: full duty for the kick window, then the
// dial value directly, always in a single fixed direction.
type Drive struct {
	active    bool
	kickUntil clock.Ticks
}

// Begin starts (or restarts) the direct drive at now.
func (d *Drive) Begin(now clock.Ticks) {
	d.active = true
	d.kickUntil = now + KickMS
}

// Stop ends the direct drive.
func (d *Drive) Stop() { d.active = false }

func (d *Drive) Active() bool { return d.active }

// Duty maps the dial to the drive output. Both H-bridge values are never
// driven at once; preheat always turns forward.
func (d *Drive) Duty(now clock.Ticks, dial int) uint8 {
	if !d.active {
		return 0
	}
	if now < d.kickUntil {
		return 255
	}
	if dial < 0 {
		dial = 0
	}
	if dial > 1023 {
		dial = 1023
	}
	return uint8(dial >> 2)
}

// Readiness is the preheat-ready latch. Entering readiness requires the
// measured temperature to stay inside the enter band continuously for the
// hold duration; once latched it is held until the temperature leaves the
// wider exit band.
type Readiness struct {
	startedAt   clock.Ticks
	holdMS      int64
	inBandSince clock.Ticks
	tracking    bool
	latched     bool
}

// Begin resets the latch and timers for a new preheat (or a profile
// change while preheating). minHoldSec comes from the active profile.
func (r *Readiness) Begin(now clock.Ticks, minHoldSec int) {
	hold := int64(minHoldSec) * 1000
	if hold < MinHoldMS {
		hold = MinHoldMS
	}
	r.startedAt = now
	r.holdMS = hold
	r.tracking = false
	r.latched = false
}

// Update evaluates the latch against the driving sensor. When the sensor
// is invalid, readiness falls back to elapsed preheat time.
func (r *Readiness) Update(now clock.Ticks, measured thermal.Reading, targetTenths int) {
	if !measured.Valid {
		// Blind fallback: assume ready after the fixed duration.
		r.tracking = false
		if !r.latched && int64(now-r.startedAt) >= FallbackMS {
			r.latched = true
			logrus.Warn("preheat ready by fallback timer, sensor invalid")
		}
		return
	}

	diff := measured.Tenths - targetTenths
	if diff < 0 {
		diff = -diff
	}

	if r.latched {
		if diff > ExitBandTenths {
			r.latched = false
			r.tracking = false
			logrus.WithField("diffTenths", diff).Info("preheat readiness dropped")
		}
		return
	}

	if diff > EnterBandTenths {
		r.tracking = false
		return
	}

	if !r.tracking {
		r.tracking = true
		r.inBandSince = now
		return
	}
	if int64(now-r.inBandSince) >= r.holdMS {
		r.latched = true
		logrus.WithField("holdMS", r.holdMS).Info("preheat ready")
	}
}

// Ready reports the latch state.
func (r *Readiness) Ready() bool { return r.latched }

// InBandSince returns the start of the current dwell window; the second
// return is false when not tracking.
func (r *Readiness) InBandSince() (clock.Ticks, bool) {
	return r.inBandSince, r.tracking
}

// ElapsedMS returns time spent preheating since Begin.
func (r *Readiness) ElapsedMS(now clock.Ticks) int64 {
	return int64(now - r.startedAt)
}
