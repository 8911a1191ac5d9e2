package preheat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotolab/roto/pkg/thermal"
)

func valid(t int) thermal.Reading { return thermal.Reading{Tenths: t, Valid: true} }

func TestDriveKickThenDial(t *testing.T) {
	var d Drive
	assert.Equal(t, uint8(0), d.Duty(0, 512), "inactive drive outputs nothing")

	d.Begin(1000)
	assert.Equal(t, uint8(255), d.Duty(1000, 100), "kick at full duty")
	assert.Equal(t, uint8(255), d.Duty(1000+KickMS-1, 100))
	assert.Equal(t, uint8(100>>2), d.Duty(1000+KickMS, 100), "dial passthrough after kick")
	assert.Equal(t, uint8(255), d.Duty(2000, 1023))

	d.Stop()
	assert.Equal(t, uint8(0), d.Duty(2000, 1023))
}

func TestReadinessRequiresContinuousDwell(t *testing.T) {
	var r Readiness
	r.Begin(0, 0) // hold floor = 20 s

	target := 380

	// In band, but not long enough.
	r.Update(1000, valid(382), target)
	r.Update(10000, valid(381), target)
	assert.False(t, r.Ready())

	// Drifts out before the hold elapses: dwell resets.
	r.Update(15000, valid(385), target)
	_, tracking := r.InBandSince()
	assert.False(t, tracking)

	// Back in band; dwell starts over and must run the full hold again.
	r.Update(16000, valid(380), target)
	r.Update(30000, valid(380), target)
	assert.False(t, r.Ready())
	r.Update(36001, valid(380), target)
	assert.True(t, r.Ready())
}

func TestReadinessHysteresis(t *testing.T) {
	var r Readiness
	r.Begin(0, 0)
	target := 380

	r.Update(0, valid(380), target)
	r.Update(MinHoldMS+1, valid(380), target)
	require.True(t, r.Ready())

	// Drift beyond the enter band but inside the exit band: still ready.
	r.Update(30000, valid(380+ExitBandTenths), target)
	assert.True(t, r.Ready())

	// Beyond the exit band: readiness drops.
	r.Update(31000, valid(380+ExitBandTenths+1), target)
	assert.False(t, r.Ready())
}

func TestReadinessProfileHoldExtends(t *testing.T) {
	var r Readiness
	r.Begin(0, 600) // 10 min profile hold
	target := 380

	r.Update(0, valid(380), target)
	r.Update(MinHoldMS+1, valid(380), target)
	assert.False(t, r.Ready(), "profile hold longer than the floor")
	r.Update(600001, valid(380), target)
	assert.True(t, r.Ready())
}

func TestReadinessFallbackWhenSensorInvalid(t *testing.T) {
	var r Readiness
	r.Begin(0, 0)

	r.Update(FallbackMS-1, thermal.Reading{}, 380)
	assert.False(t, r.Ready())
	r.Update(FallbackMS, thermal.Reading{}, 380)
	assert.True(t, r.Ready(), "blind fallback after fixed duration")
}

func TestBeginResetsLatchAndTimer(t *testing.T) {
	var r Readiness
	r.Begin(0, 0)
	r.Update(0, valid(380), 380)
	r.Update(MinHoldMS+1, valid(380), 380)
	require.True(t, r.Ready())

	// Profile change while preheating.
	r.Begin(50000, 0)
	assert.False(t, r.Ready())
	assert.Equal(t, int64(0), r.ElapsedMS(50000))
}
