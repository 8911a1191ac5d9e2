package speed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotolab/roto/pkg/motor"
)

func TestMapDialEndpoints(t *testing.T) {
	assert.Equal(t, NominalRPM-WindowRPM, MapDial(0))
	assert.Equal(t, NominalRPM+WindowRPM, MapDial(DialMax))
	assert.InDelta(t, NominalRPM, MapDial(DialMax/2), 1)

	// Out-of-range raw readings clamp instead of wrapping.
	assert.Equal(t, MapDial(0), MapDial(-50))
	assert.Equal(t, MapDial(DialMax), MapDial(5000))
}

func TestAntiJitterRetainsPreviousValue(t *testing.T) {
	a := NewAdapter()

	// Move the dial decisively.
	require.True(t, a.Update(0, DialMax))
	got := a.RPM()
	require.Equal(t, NominalRPM+WindowRPM, got)

	// A wiggle of less than the threshold must not be accepted, and the
	// previous value is kept verbatim.
	require.Equal(t, got-1, MapDial(1018))
	assert.False(t, a.Update(200, 1018))
	assert.Equal(t, got, a.RPM())

	// A move of at least the threshold is accepted.
	require.LessOrEqual(t, MapDial(966), got-JitterRPM)
	assert.True(t, a.Update(400, 966))
	assert.NotEqual(t, got, a.RPM())
}

func TestUpdateRateLimited(t *testing.T) {
	a := NewAdapter()
	require.True(t, a.Update(0, DialMax))

	// Inside the sample interval nothing is even sampled.
	assert.False(t, a.Update(100, 0))
	assert.Equal(t, NominalRPM+WindowRPM, a.RPM())

	assert.True(t, a.Update(200, 0))
	assert.Equal(t, NominalRPM-WindowRPM, a.RPM())
}

func TestGeometryFollowsAcceptedSpeed(t *testing.T) {
	a := NewAdapter()
	require.True(t, a.Update(0, DialMax))

	assert.Equal(t, motor.CycleLengthMS(a.RPM()), a.CycleLen())
	assert.Equal(t, motor.BrakeThresholdMS(a.CycleLen()), a.BrakeAt())
	assert.Greater(t, a.CycleLen(), a.BrakeAt())
	assert.Less(t, a.MeanRPM(), a.RPM())
	assert.Greater(t, a.MeanRPM(), 0)
}
