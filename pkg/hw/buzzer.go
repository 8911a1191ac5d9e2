package hw

import (
	"sync"
	"time"
)

// buzzerLine is the platform half of the buzzer: a single digital output.
type buzzerLine interface {
	Set(on bool) error
	Close() error
}

// Buzzer drives a piezo on a host GPIO line, for machines whose beeper
// hangs off the controller board instead of the front-panel MCU.
type Buzzer struct {
	mu    sync.Mutex
	line  buzzerLine
	timer *time.Timer
}

// OpenBuzzer claims the GPIO line for the given pin. Returns an error on
// platforms without a GPIO character device.
func OpenBuzzer(pin int) (*Buzzer, error) {
	line, err := openBuzzerLine(pin)
	if err != nil {
		return nil, err
	}
	return &Buzzer{line: line}, nil
}

// Pulse sounds the buzzer for ms milliseconds. A new pulse restarts the
// off timer.
func (b *Buzzer) Pulse(ms int) error {
	if b == nil || ms <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	if err := b.line.Set(true); err != nil {
		return err
	}
	b.timer = time.AfterFunc(time.Duration(ms)*time.Millisecond, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		_ = b.line.Set(false)
	})
	return nil
}

// Stop silences the buzzer immediately, canceling a pending pulse.
func (b *Buzzer) Stop() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	return b.line.Set(false)
}

func (b *Buzzer) Close() error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
	}
	return b.line.Close()
}
