// Package speed maps the operator's dial to a filtered target drum speed.
package speed

import (
	"github.com/sirupsen/logrus"

	"github.com/rotolab/roto/pkg/clock"
	"github.com/rotolab/roto/pkg/motor"
)

const (
	// DialMax is the full-scale raw reading of the speed dial.
	DialMax = 1023

	// NominalRPM is the mid-dial drum speed; the dial moves the target
	// inside NominalRPM +/- WindowRPM, clamped to the drivable band.
	NominalRPM = 75
	WindowRPM  = 45

	// JitterRPM is the anti-jitter threshold: a candidate closer than
	// this to the last accepted speed is discarded outright.
	JitterRPM = 2

	// SampleIntervalMS is how often the dial is sampled.
	SampleIntervalMS = 200
)

// Adapter owns the accepted speed and the cycle geometry derived from it.
type Adapter struct {
	interval *clock.Interval

	accepted int
	cycleLen clock.Ticks
	brakeAt  clock.Ticks
	meanRPM  int
}

func NewAdapter() *Adapter {
	a := &Adapter{
		interval: clock.NewInterval(SampleIntervalMS),
		accepted: NominalRPM,
	}
	a.recompute()
	return a
}

// MapDial converts a raw dial reading to a candidate speed.
func MapDial(dial int) int {
	if dial < 0 {
		dial = 0
	}
	if dial > DialMax {
		dial = DialMax
	}
	rpm := NominalRPM - WindowRPM + dial*(2*WindowRPM)/DialMax
	return motor.ClampRPM(rpm)
}

// Update samples the dial if the sample interval is due. It returns true
// when a new speed was accepted; the previous value is retained verbatim
// when the candidate is within the jitter threshold.
func (a *Adapter) Update(now clock.Ticks, dial int) bool {
	if !a.interval.Due(now) {
		return false
	}

	candidate := MapDial(dial)
	diff := candidate - a.accepted
	if diff < 0 {
		diff = -diff
	}
	if diff < JitterRPM {
		return false
	}

	a.accepted = candidate
	a.recompute()
	logrus.WithFields(logrus.Fields{
		"rpm":      a.accepted,
		"cycleLen": a.cycleLen,
		"meanRPM":  a.meanRPM,
	}).Debug("speed accepted")
	return true
}

func (a *Adapter) recompute() {
	// Compute fully into locals, then assign.
	cl := motor.CycleLengthMS(a.accepted)
	br := motor.BrakeThresholdMS(cl)
	// The two half-ramps together cost about one accel window of dwell at
	// speed, so the mean over a cycle sits slightly below the target.
	mean := a.accepted * int(cl-motor.AccelWindowMS) / int(cl)

	a.cycleLen = cl
	a.brakeAt = br
	a.meanRPM = mean
}

// RPM returns the last accepted target speed.
func (a *Adapter) RPM() int { return a.accepted }

// MeanRPM returns the cycle-averaged speed estimate.
func (a *Adapter) MeanRPM() int { return a.meanRPM }

// CycleLen returns the cycle length derived from the accepted speed.
func (a *Adapter) CycleLen() clock.Ticks { return a.cycleLen }

// BrakeAt returns the brake threshold derived from the accepted speed.
func (a *Adapter) BrakeAt() clock.Ticks { return a.brakeAt }
