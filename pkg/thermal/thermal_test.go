package thermal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotolab/roto/pkg/clock"
	"github.com/rotolab/roto/pkg/profile"
	"github.com/rotolab/roto/pkg/settings"
)

func valid(t int) Reading { return Reading{Tenths: t, Valid: true} }

func TestMeanExcludesInvalid(t *testing.T) {
	r := Readings{Bath: valid(380), Tank: Reading{}, Bottle: valid(370)}
	m := Mean(r)
	require.True(t, m.Valid)
	assert.Equal(t, 375, m.Tenths)

	assert.False(t, Mean(Readings{}).Valid, "no valid samples, no mean")
}

func TestCalibrateAppliesOffsetsOnlyToValid(t *testing.T) {
	r := Readings{Bath: valid(380), Tank: Reading{Tenths: 100}, Bottle: valid(370)}
	o := settings.Offsets{Bath: 5, Tank: 50, Bottle: -3}
	cal := Calibrate(r, o)
	assert.Equal(t, 385, cal.Bath.Tenths)
	assert.Equal(t, 367, cal.Bottle.Tenths)
	assert.Equal(t, 100, cal.Tank.Tenths, "invalid readings stay untouched")
}

func TestDriverPriority(t *testing.T) {
	all := Readings{Bath: valid(1), Tank: valid(2), Bottle: valid(3)}
	mean := valid(4)

	assert.Equal(t, 2, Driver(ModePreheat, all, mean).Tenths, "preheat prefers tank")
	assert.Equal(t, 4, Driver(ModeDevelopment, all, mean).Tenths, "development prefers mean")

	// Fallback chains.
	noTank := Readings{Bath: valid(1), Bottle: valid(3)}
	assert.Equal(t, 1, Driver(ModePreheat, noTank, Reading{}).Tenths)
	assert.Equal(t, 1, Driver(ModeDevelopment, noTank, Reading{}).Tenths)
	assert.False(t, Driver(ModeDevelopment, Readings{}, Reading{}).Valid)
}

func TestTauClampedPiecewise(t *testing.T) {
	// Larger volume raises tau, higher speed lowers it.
	assert.Greater(t, Tau(600, 75), Tau(250, 75))
	assert.Less(t, Tau(500, 120), Tau(500, 30))

	// Clamps.
	assert.Equal(t, 20, Tau(0, 120))
	assert.Equal(t, 240, Tau(100000, 30))
}

func TestLagConvergesMonotonicallyWithoutOvershoot(t *testing.T) {
	e := NewEstimator()
	prof := profile.Builtin().ByIndex(2) // C-41, 500 mL

	in := Inputs{
		Readings: Readings{Tank: valid(380)},
		Mode:     ModePreheat,
		Profile:  prof,
		RPM:      75,
	}

	// Seed well below the driver, then hold the driver constant for
	// several tau.
	e.SeedRunStart(Readings{Bottle: valid(200)}, settings.Offsets{}, profile.Profile{PourCoolTenths: 0})
	require.Equal(t, 200, e.EstimateTenths())

	tau := Tau(prof.VolumeML, 75)
	prev := e.EstimateTenths()
	now := clock.Ticks(0)
	for i := 0; i < tau*6; i++ {
		now += UpdateIntervalMS
		require.True(t, e.Update(now, in))
		got := e.EstimateTenths()
		require.GreaterOrEqual(t, got, prev, "estimate must approach the driver monotonically")
		require.LessOrEqual(t, got, 380, "estimate must never overshoot the driver")
		prev = got
	}
	assert.InDelta(t, 380, e.EstimateTenths(), 2, "after several tau the estimate reaches the driver")
}

func TestSeedFiresExactlyOncePerRun(t *testing.T) {
	e := NewEstimator()
	prof := profile.Profile{PourCoolTenths: 12, VolumeML: 500}

	e.SeedRunStart(Readings{Bottle: valid(380)}, settings.Offsets{}, prof)
	assert.Equal(t, 368, e.EstimateTenths(), "seed = bottle - pour cooling")

	// A second seed in the same run must not fire.
	e.SeedRunStart(Readings{Bottle: valid(999)}, settings.Offsets{}, prof)
	assert.Equal(t, 368, e.EstimateTenths())

	// The next run re-arms it.
	e.ClearSeed()
	e.SeedRunStart(Readings{Bottle: valid(300)}, settings.Offsets{}, prof)
	assert.Equal(t, 288, e.EstimateTenths())
}

func TestInvalidDriverHoldsEstimate(t *testing.T) {
	e := NewEstimator()
	e.SeedRunStart(Readings{Bottle: valid(350)}, settings.Offsets{}, profile.Profile{})

	in := Inputs{Mode: ModeDevelopment, Profile: profile.Profile{VolumeML: 500}, RPM: 75}
	require.True(t, e.Update(1000, in))
	assert.Equal(t, 350, e.EstimateTenths(), "no valid driver, estimate held")
}

func TestSuggestionClampAndPourCool(t *testing.T) {
	e := NewEstimator()
	prof := profile.Profile{TargetTenths: 378, PourCoolTenths: 12, VolumeML: 500}

	in := Inputs{
		Readings: Readings{Bath: valid(380), Bottle: valid(375)},
		Offsets:  settings.Offsets{Heater: 2},
		Mode:     ModeDevelopment,
		Profile:  prof,
		RPM:      75,
	}
	require.True(t, e.Update(1000, in))
	// target + (bath-bottle) + heater offset = 378 + 5 + 2
	assert.Equal(t, 385, e.SuggestionTenths())

	in.DevRunning = true
	require.True(t, e.Update(2000, in))
	assert.Equal(t, 397, e.SuggestionTenths(), "pour cooling only while a run is active")

	// Clamp top.
	in.Profile.TargetTenths = 900
	require.True(t, e.Update(3000, in))
	assert.Equal(t, SuggestionMax, e.SuggestionTenths())
}

func TestUpdateRateLimited(t *testing.T) {
	e := NewEstimator()
	in := Inputs{Readings: Readings{Bath: valid(300)}, Profile: profile.Profile{VolumeML: 250}, RPM: 75}
	require.True(t, e.Update(0, in))
	assert.False(t, e.Update(500, in))
	assert.True(t, e.Update(1000, in))
}
