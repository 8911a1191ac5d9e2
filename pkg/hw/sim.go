package hw

import (
	"sync"

	"github.com/rotolab/roto/pkg/thermal"
)

// SimBoard is a software stand-in for the front panel: a small thermal
// plant for the bath, direct stores for the other probes and the dial,
// and a key-injection queue. It backs the daemon's sim mode and the loop
// tests.
type SimBoard struct {
	mu sync.RWMutex

	readings thermal.Readings
	dial     int

	cw, ccw   uint8
	backlight bool
	beeps     []int

	keys chan byte

	ambient float64
	bath    float64
}

// NewSimBoard starts the plant at ambient, with all probes valid.
func NewSimBoard(ambientTenths int) *SimBoard {
	a := float64(ambientTenths)
	s := &SimBoard{
		keys:    make(chan byte, keyQueueSize),
		ambient: a,
		bath:    a,
	}
	s.readings = thermal.Readings{
		Bath:   thermal.Reading{Tenths: ambientTenths, Valid: true},
		Tank:   thermal.Reading{Tenths: ambientTenths, Valid: true},
		Bottle: thermal.Reading{Tenths: ambientTenths, Valid: true},
	}
	return s
}

func (s *SimBoard) PollKey() (byte, bool) {
	select {
	case k := <-s.keys:
		return k, true
	default:
		return 0, false
	}
}

// InjectKey queues a keypress as if the operator pressed it.
func (s *SimBoard) InjectKey(k byte) {
	select {
	case s.keys <- k:
	default:
	}
}

func (s *SimBoard) Readings() thermal.Readings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readings
}

func (s *SimBoard) Dial() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dial
}

// SetDial moves the simulated heater dial.
func (s *SimBoard) SetDial(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 1023 {
		v = 1023
	}
	s.dial = v
}

// SetReadings overrides the probe sample, for scripting fault cases.
func (s *SimBoard) SetReadings(r thermal.Readings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = r
	s.bath = float64(r.Bath.Tenths)
}

func (s *SimBoard) SetMotor(cw, ccw uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cw, s.ccw = cw, ccw
	return nil
}

// MotorOutputs returns the last duty pair the control loop drove.
func (s *SimBoard) MotorOutputs() (cw, ccw uint8) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cw, s.ccw
}

func (s *SimBoard) SetBacklight(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backlight = on
	return nil
}

func (s *SimBoard) Backlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backlight
}

func (s *SimBoard) Beep(ms int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beeps = append(s.beeps, ms)
	return nil
}

// Beeps returns and clears the recorded beep durations.
func (s *SimBoard) Beeps() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.beeps
	s.beeps = nil
	return out
}

func (s *SimBoard) Close() error { return nil }

// StepPlant advances the bath model by dt milliseconds: a first-order
// pull toward the dial setpoint, back toward ambient at dial zero. The
// tank and bottle probes track the bath loosely so scripted scenarios
// stay plausible without extra knobs.
func (s *SimBoard) StepPlant(dtMS int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Dial maps linearly onto 15.0..45.0 degrees.
	setpoint := 150.0 + float64(s.dial)*300.0/1023.0
	if setpoint < s.ambient {
		setpoint = s.ambient
	}
	const plantTauSec = 60.0
	dt := float64(dtMS) / 1000.0
	s.bath += (setpoint - s.bath) * dt / plantTauSec

	bath := int(s.bath + 0.5)
	if s.readings.Bath.Valid {
		s.readings.Bath.Tenths = bath
	}
	if s.readings.Tank.Valid {
		s.readings.Tank.Tenths = bath - 2
	}
	if s.readings.Bottle.Valid {
		s.readings.Bottle.Tenths = bath - 5
	}
}
