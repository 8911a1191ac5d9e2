// Package settings persists the operator-facing machine state: the last
// used timing, the nine programmable steps, the active profile index and
// the four calibration offsets. The on-disk format is a fixed-size
// versioned record written atomically as one block; a version mismatch
// invalidates the whole record and resets it to defaults, there is no
// field-by-field migration.
package settings

// SchemaVersion tags the record layout. Bump it on any layout change.
const SchemaVersion uint16 = 3

// StepCount is the number of programmable timing slots (1..9 on the keypad).
const StepCount = 9

// Step is one user-programmable timing preset. Steps are created or
// overwritten only by an explicit store action and never expire.
type Step struct {
	Minutes uint8 `json:"minutes"`
	Seconds uint8 `json:"seconds"`
	Defined bool  `json:"defined"`
}

// Offsets are the signed calibration corrections, in tenths of a degree.
type Offsets struct {
	Heater int16 `json:"heater"`
	Bath   int16 `json:"bath"`
	Tank   int16 `json:"tank"`
	Bottle int16 `json:"bottle"`
}

// Settings is the persisted aggregate.
type Settings struct {
	Minutes       uint16           `json:"minutes"`
	Seconds       uint16           `json:"seconds"`
	Steps         [StepCount]Step  `json:"steps"`
	ActiveProfile uint8            `json:"activeProfile"`
	Offsets       Offsets          `json:"offsets"`
}

// Default returns the documented default aggregate: 5:00 timing, no steps
// defined, profile index 0, all offsets zero.
func Default() Settings {
	return Settings{Minutes: 5, Seconds: 0}
}

// DurationMS returns the programmed run duration in milliseconds.
func (s Settings) DurationMS() int64 {
	return (int64(s.Minutes)*60 + int64(s.Seconds)) * 1000
}
