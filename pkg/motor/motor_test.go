package motor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotolab/roto/pkg/clock"
)

func TestCycleGeometryValidForAllSpeeds(t *testing.T) {
	for rpm := -10; rpm <= 200; rpm++ {
		cl := CycleLengthMS(rpm)
		br := BrakeThresholdMS(cl)
		require.Greater(t, cl, clock.Ticks(0), "rpm=%d", rpm)
		require.Less(t, br, cl, "rpm=%d", rpm)
		require.Greater(t, br, clock.Ticks(0), "rpm=%d", rpm)
	}
}

func TestRPMToDutyMonotonic(t *testing.T) {
	prev := RPMToDuty(MinRPM)
	for rpm := MinRPM + 1; rpm <= MaxRPM; rpm++ {
		d := RPMToDuty(rpm)
		require.GreaterOrEqual(t, d, prev, "duty must not decrease with speed")
		prev = d
	}
	assert.Equal(t, uint8(90), RPMToDuty(0), "below floor clamps to floor duty")
	assert.Equal(t, uint8(255), RPMToDuty(500), "above ceiling clamps to max duty")
}

func TestStartIgnoredWhileRunning(t *testing.T) {
	c := NewController()
	c.Start(0, 75, 60000)
	require.True(t, c.Running())
	first := c.RemainingMS(0)

	c.Start(5000, 120, 1000)
	assert.Equal(t, first-5000, c.RemainingMS(5000), "second Start must not restart the run")
}

func TestTimedStopScenario(t *testing.T) {
	// Programmed duration 00:10, started at tick 0, driven at the loop rate.
	c := NewController()
	c.Start(0, 75, 10000)

	for tick := clock.Ticks(10); tick <= 5000; tick += 10 {
		c.Continue(tick)
	}
	assert.False(t, c.TakeCompleted(), "must not complete at half time")
	cw, ccw := c.Outputs()
	assert.True(t, cw > 0 || ccw > 0, "motor should be driving at half time")

	for tick := clock.Ticks(5010); tick <= 10001; tick += 10 {
		c.Continue(tick)
	}
	c.Continue(10001)
	assert.True(t, c.TakeCompleted(), "must complete after duration elapsed")
	assert.False(t, c.TakeCompleted(), "completion latch fires exactly once")
	cw, ccw = c.Outputs()
	assert.Equal(t, uint8(0), cw)
	assert.Equal(t, uint8(0), ccw)
	assert.False(t, c.Running())
}

func TestForceStopIdempotent(t *testing.T) {
	c := NewController()
	c.Start(0, 90, 0)
	c.Continue(1000)

	c.ForceStop()
	cw, ccw := c.Outputs()
	assert.Zero(t, cw)
	assert.Zero(t, ccw)
	assert.False(t, c.Running())
	assert.Equal(t, int64(0), c.RemainingMS(2000))

	// Second stop is a no-op, not an error.
	c.ForceStop()
	assert.False(t, c.Running())
}

func TestRampInterpolation(t *testing.T) {
	c := NewController()
	c.Start(0, 75, 0)
	target := RPMToDuty(75)

	// Mid ramp-up: about half the target duty.
	c.Continue(AccelWindowMS / 2)
	cw, _ := c.Outputs()
	assert.InDelta(t, float64(target)/2, float64(cw), 2)
	assert.Equal(t, PhaseAccelerating, c.Phase())

	// Constant phase: full target duty.
	c.Continue(AccelWindowMS + 100)
	cw, _ = c.Outputs()
	assert.Equal(t, target, cw)
	assert.Equal(t, PhaseConstant, c.Phase())

	// Mid ramp-down.
	cl := CycleLengthMS(75)
	br := BrakeThresholdMS(cl)
	c.Continue(br + (cl-br)/2)
	cw, _ = c.Outputs()
	assert.InDelta(t, float64(target)/2, float64(cw), 2)
	assert.Equal(t, PhaseBraking, c.Phase())
}

func TestReversalAllStopAndFlip(t *testing.T) {
	c := NewController()
	c.Start(0, 75, 0)
	cl := CycleLengthMS(75)

	require.Equal(t, Forward, c.Direction())

	// At the cycle boundary both outputs drop to zero and direction flips.
	c.Continue(cl)
	cw, ccw := c.Outputs()
	assert.Zero(t, cw)
	assert.Zero(t, ccw)
	assert.Equal(t, Reverse, c.Direction())
	assert.True(t, c.Running())

	// The new cycle ramps on the other leg.
	c.Continue(cl + AccelWindowMS + 50)
	cw, ccw = c.Outputs()
	assert.Zero(t, cw)
	assert.Equal(t, RPMToDuty(75), ccw)
}

func TestRetargetOnlyWhileRunning(t *testing.T) {
	c := NewController()
	c.Retarget(120)
	c.Continue(10)
	cw, ccw := c.Outputs()
	assert.Zero(t, cw)
	assert.Zero(t, ccw)

	c.Start(0, 30, 0)
	c.Continue(AccelWindowMS + 10)
	cw, _ = c.Outputs()
	require.Equal(t, RPMToDuty(30), cw)

	c.Retarget(120)
	c.Continue(AccelWindowMS + 20)
	cw, _ = c.Outputs()
	assert.Equal(t, RPMToDuty(120), cw)
}

func TestRemainingClampsToZero(t *testing.T) {
	c := NewController()
	c.Start(0, 75, 1000)
	assert.Equal(t, int64(400), c.RemainingMS(600))
	assert.Equal(t, int64(0), c.RemainingMS(5000))
}
