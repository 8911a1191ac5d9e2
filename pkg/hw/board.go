// Package hw is the machine I/O boundary: the keypad, the temperature
// probes, the heater dial, the drum motor H-bridge, the backlight and the
// beeper. Control code talks to a Board; the daemon picks the serial MCU
// implementation or the simulator at startup.
package hw

import "github.com/rotolab/roto/pkg/thermal"

// Board is the full machine front end. Readings and Dial return the most
// recent sample without blocking; PollKey drains one queued keypress per
// call. Implementations are safe for one poller plus one writer.
type Board interface {
	// PollKey returns one queued keypad symbol, or ok=false when none is
	// pending.
	PollKey() (key byte, ok bool)

	// Readings returns the latest raw (uncalibrated) probe sample.
	Readings() thermal.Readings

	// Dial returns the latest control dial position, 0..1023.
	Dial() int

	// SetMotor drives the H-bridge duty pair. Callers never set both
	// sides at once.
	SetMotor(cw, ccw uint8) error

	SetBacklight(on bool) error

	// Beep sounds the board beeper for the given duration. A zero
	// duration silences an active beep.
	Beep(ms int) error

	Close() error
}
