// Package clock provides the monotonic millisecond time base shared by all
// control components, plus the deadline helpers they use to rate-limit
// themselves inside the polling loop.
package clock

import "time"

// Ticks is a count of elapsed milliseconds since daemon start. It is
// monotonic, never resets during a session, and carries no wall-clock
// meaning; only differences are valid.
type Ticks int64

// Source yields the current tick count.
type Source interface {
	Now() Ticks
}

// Wall is the production Source, anchored at construction time. It reads
// the Go monotonic clock, so suspends and NTP steps do not affect it.
type Wall struct {
	start time.Time
}

func NewWall() *Wall {
	return &Wall{start: time.Now()}
}

func (w *Wall) Now() Ticks {
	return Ticks(time.Since(w.start) / time.Millisecond)
}

// Manual is a hand-advanced Source for tests.
type Manual struct {
	t Ticks
}

func NewManual(start Ticks) *Manual { return &Manual{t: start} }

func (m *Manual) Now() Ticks { return m.t }

// Advance moves the clock forward by d milliseconds.
func (m *Manual) Advance(d Ticks) { m.t += d }

// Set jumps the clock to an absolute tick. It never moves backwards.
func (m *Manual) Set(t Ticks) {
	if t > m.t {
		m.t = t
	}
}

// Deadline is a one-shot timer: armed at an absolute tick, it reports
// expiry exactly once. The zero value is disarmed.
type Deadline struct {
	at    Ticks
	armed bool
}

func (d *Deadline) Arm(at Ticks) {
	d.at = at
	d.armed = true
}

func (d *Deadline) Cancel() { d.armed = false }

func (d *Deadline) Armed() bool { return d.armed }

// At returns the tick the deadline is armed for. Meaningless when disarmed.
func (d *Deadline) At() Ticks { return d.at }

// Expired reports whether the armed deadline has passed, disarming it so
// the expiry fires exactly once.
func (d *Deadline) Expired(now Ticks) bool {
	if !d.armed || now < d.at {
		return false
	}
	d.armed = false
	return true
}

// Interval fires at a fixed period. Due returns true at most once per
// period; the next due time is advanced from the current tick, not
// accumulated, so a stalled loop does not cause a burst of catch-up fires.
type Interval struct {
	period Ticks
	next   Ticks
	primed bool
}

func NewInterval(period Ticks) *Interval {
	if period <= 0 {
		period = 1
	}
	return &Interval{period: period}
}

func (i *Interval) Due(now Ticks) bool {
	if !i.primed {
		i.primed = true
		i.next = now + i.period
		return true
	}
	if now < i.next {
		return false
	}
	i.next = now + i.period
	return true
}

// Reset forgets the schedule; the next Due call fires immediately.
func (i *Interval) Reset() { i.primed = false }

// Remaining returns max(0, until-now). Guards timing underflow when the
// moment has already passed.
func Remaining(until, now Ticks) Ticks {
	if until <= now {
		return 0
	}
	return until - now
}
