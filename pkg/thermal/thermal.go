// Package thermal derives process temperature from the three machine
// sensors: a calibrated mean, a first-order lag estimate of the chemistry
// inside the drum, and a suggested heater-dial setting. All temperatures
// are in tenths of a degree.
package thermal

import (
	"math"

	"github.com/rotolab/roto/pkg/clock"
	"github.com/rotolab/roto/pkg/profile"
	"github.com/rotolab/roto/pkg/settings"
)

// Reading is one sensor sample: a value in tenths, or invalid when the
// sensor is absent or faulted. Invalid readings are excluded from every
// computation instead of being propagated as errors.
type Reading struct {
	Tenths int  `json:"tenths"`
	Valid  bool `json:"valid"`
}

// Readings are the three named samples present at any time.
type Readings struct {
	Bath   Reading `json:"bath"`
	Tank   Reading `json:"tank"`
	Bottle Reading `json:"bottle"`
}

// Mode selects the driver-temperature priority.
type Mode int

const (
	// ModeDevelopment prefers the mean, falling back through bath and
	// bottle.
	ModeDevelopment Mode = iota
	// ModePreheat prefers the tank-contact sensor.
	ModePreheat
)

const (
	// UpdateIntervalMS is the estimator's fixed recompute period.
	UpdateIntervalMS = 1000

	// Suggestion display clamp, tenths.
	SuggestionMin = 150
	SuggestionMax = 450

	// Tau clamp, seconds.
	tauMin = 20
	tauMax = 240
)

// Inputs is everything one estimator pass needs, gathered by the loop.
type Inputs struct {
	Readings Readings
	Offsets  settings.Offsets
	Mode     Mode
	Profile  profile.Profile
	// RPM is the current mean drum speed; faster rotation mixes the
	// chemistry harder and shortens the lag.
	RPM int
	// DevRunning enables the pour-cooling compensation on the heater
	// suggestion.
	DevRunning bool
}

// Estimator owns the derived temperature values.
type Estimator struct {
	interval *clock.Interval
	lastRun  clock.Ticks
	haveLast bool

	estimate float64
	seeded   bool

	mean        Reading
	driver      Reading
	suggestion  int
}

func NewEstimator() *Estimator {
	return &Estimator{
		interval:   clock.NewInterval(UpdateIntervalMS),
		suggestion: SuggestionMin,
	}
}

// Calibrate applies the per-sensor offsets to the raw readings.
func Calibrate(r Readings, o settings.Offsets) Readings {
	out := r
	if out.Bath.Valid {
		out.Bath.Tenths += int(o.Bath)
	}
	if out.Tank.Valid {
		out.Tank.Tenths += int(o.Tank)
	}
	if out.Bottle.Valid {
		out.Bottle.Tenths += int(o.Bottle)
	}
	return out
}

// Mean averages the currently valid calibrated samples.
func Mean(r Readings) Reading {
	sum, n := 0, 0
	for _, s := range []Reading{r.Bath, r.Tank, r.Bottle} {
		if s.Valid {
			sum += s.Tenths
			n++
		}
	}
	if n == 0 {
		return Reading{}
	}
	return Reading{Tenths: sum / n, Valid: true}
}

// Driver picks the single temperature that feeds the lag filter, by
// mode-specific priority.
func Driver(mode Mode, r Readings, mean Reading) Reading {
	var order []Reading
	if mode == ModePreheat {
		order = []Reading{r.Tank, r.Bath, r.Bottle, mean}
	} else {
		order = []Reading{mean, r.Bath, r.Bottle, r.Tank}
	}
	for _, s := range order {
		if s.Valid {
			return s
		}
	}
	return Reading{}
}

// Tau returns the lag time constant in seconds. Larger chemistry volume
// raises it, faster rotation lowers it; the clamp keeps the filter away
// from degenerate coefficients.
func Tau(volumeML, rpm int) int {
	t := 30 + volumeML/20 - rpm/2
	if t < tauMin {
		t = tauMin
	}
	if t > tauMax {
		t = tauMax
	}
	return t
}

// SeedRunStart initializes the lag state for a development run from the
// bottle sensor corrected by the profile's pour-cooling offset. It fires
// exactly once per run start; later calls before ClearSeed are no-ops.
func (e *Estimator) SeedRunStart(r Readings, o settings.Offsets, p profile.Profile) {
	if e.seeded {
		return
	}
	cal := Calibrate(r, o)
	if cal.Bottle.Valid {
		e.estimate = float64(cal.Bottle.Tenths - p.PourCoolTenths)
	} else if m := Mean(cal); m.Valid {
		e.estimate = float64(m.Tenths)
	}
	e.seeded = true
}

// ClearSeed re-arms the one-shot initial condition for the next run.
func (e *Estimator) ClearSeed() { e.seeded = false }

// Update runs one estimator pass if the interval is due. Returns true
// when derived values were recomputed.
func (e *Estimator) Update(now clock.Ticks, in Inputs) bool {
	if !e.interval.Due(now) {
		return false
	}

	cal := Calibrate(in.Readings, in.Offsets)
	mean := Mean(cal)
	driver := Driver(in.Mode, cal, mean)

	estimate := e.estimate
	if driver.Valid {
		if !e.seeded {
			// Outside a run the filter tracks from wherever the driver
			// is; the run-start seed takes precedence when armed.
			if !e.haveLast {
				estimate = float64(driver.Tenths)
			}
		}
		var dt float64
		if e.haveLast {
			dt = float64(now-e.lastRun) / 1000.0
		} else {
			dt = float64(UpdateIntervalMS) / 1000.0
		}
		coeff := dt / float64(Tau(in.Profile.VolumeML, in.RPM))
		if coeff > 1 {
			coeff = 1
		}
		if coeff < 0 {
			coeff = 0
		}
		estimate += coeff * (float64(driver.Tenths) - estimate)
	}

	suggestion := e.suggestion
	if cal.Bath.Valid && cal.Bottle.Valid {
		target := in.Profile.TargetTenths + in.Profile.BoostTenths
		s := target + (cal.Bath.Tenths - cal.Bottle.Tenths) + int(in.Offsets.Heater)
		if in.DevRunning {
			s += in.Profile.PourCoolTenths
		}
		if s < SuggestionMin {
			s = SuggestionMin
		}
		if s > SuggestionMax {
			s = SuggestionMax
		}
		suggestion = s
	}

	// Assign fully computed values in one step each.
	e.mean = mean
	e.driver = driver
	e.estimate = estimate
	e.suggestion = suggestion
	e.lastRun = now
	e.haveLast = true
	return true
}

// MeanReading returns the calibrated mean of the valid samples.
func (e *Estimator) MeanReading() Reading { return e.mean }

// DriverReading returns the temperature currently feeding the filter.
func (e *Estimator) DriverReading() Reading { return e.driver }

// EstimateTenths returns the lag-filtered process temperature.
func (e *Estimator) EstimateTenths() int { return int(math.Round(e.estimate)) }

// SuggestionTenths returns the clamped heater-dial suggestion.
func (e *Estimator) SuggestionTenths() int { return e.suggestion }
