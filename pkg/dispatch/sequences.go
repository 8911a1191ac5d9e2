package dispatch

import (
	"strconv"

	"github.com/rotolab/roto/pkg/clock"
)

// Each multi-key sequence is its own explicit pending value with a single
// resolver, so a new sequence cannot silently interleave with an old one:
// while a sequence is pending, every event either extends it or terminates
// it.

// digitBuffer accumulates bounded numeric entry. Extra digits beyond the
// bound are swallowed, not wrapped.
type digitBuffer struct {
	buf []byte
	max int
}

func newDigitBuffer(max int) digitBuffer { return digitBuffer{max: max} }

func (b *digitBuffer) push(k Key) {
	if !k.IsDigit() || len(b.buf) >= b.max {
		return
	}
	b.buf = append(b.buf, byte(k))
}

func (b *digitBuffer) empty() bool { return len(b.buf) == 0 }

func (b *digitBuffer) text() string { return string(b.buf) }

// value parses the accumulated digits; ok is false on an empty buffer.
func (b *digitBuffer) value() (int, bool) {
	if b.empty() {
		return 0, false
	}
	n, err := strconv.Atoi(string(b.buf))
	if err != nil {
		return 0, false
	}
	return n, true
}

// storeArm is the single-shot step-store sequence: one key arms it, the
// next digit 1..9 selects the slot, anything else cancels without storing.
type storeArm struct {
	armed bool
}

func (s *storeArm) arm()     { s.armed = true }
func (s *storeArm) pending() bool { return s.armed }

// resolve consumes the key after arming. slot is the 0-based step index
// when stored is true.
func (s *storeArm) resolve(k Key) (slot int, stored bool) {
	s.armed = false
	if k.IsDigit() && k != '0' {
		return k.Digit() - 1, true
	}
	return 0, false
}

// profileJump is the direct profile selection sequence: arm, then up to
// two digits, terminated by its own closing key. The digits name a profile
// ID, not a catalog position.
type profileJump struct {
	armed bool
	entry digitBuffer
}

func (j *profileJump) arm() {
	j.armed = true
	j.entry = newDigitBuffer(2)
}

func (j *profileJump) pending() bool { return j.armed }

// feed consumes one key while armed. done is true when the sequence ended;
// id is valid only when done && hasID.
func (j *profileJump) feed(k Key) (done bool, id int, hasID bool) {
	switch {
	case k.IsDigit():
		j.entry.push(k)
		return false, 0, false
	case k == KeyHash:
		j.armed = false
		id, ok := j.entry.value()
		return true, id, ok
	default:
		// Any other key abandons the selection.
		j.armed = false
		return true, 0, false
	}
}

// comboOutcome is the three-way result of the timed combo sequence.
type comboOutcome int

const (
	comboNone comboOutcome = iota
	// comboRepeat: the arming key arrived again inside the window.
	comboRepeat
	// comboOther: a different key arrived inside the window.
	comboOther
	// comboExpired: the window closed with no second key.
	comboExpired
)

// timedCombo is the disambiguation window behind the calibration entry:
// the same key twice in quick succession means one thing, a different
// second key another, and letting the window lapse a third. All three
// outcomes are mutually exclusive.
type timedCombo struct {
	windowMS clock.Ticks
	armKey   Key
	deadline clock.Deadline
}

func newTimedCombo(armKey Key, windowMS clock.Ticks) timedCombo {
	return timedCombo{windowMS: windowMS, armKey: armKey}
}

func (c *timedCombo) arm(now clock.Ticks) { c.deadline.Arm(now + c.windowMS) }

func (c *timedCombo) pending() bool { return c.deadline.Armed() }

// feed consumes the second key of the pending combo.
func (c *timedCombo) feed(k Key) comboOutcome {
	c.deadline.Cancel()
	if k == c.armKey {
		return comboRepeat
	}
	return comboOther
}

// tick reports expiry exactly once.
func (c *timedCombo) tick(now clock.Ticks) comboOutcome {
	if c.deadline.Expired(now) {
		return comboExpired
	}
	return comboNone
}

// pairWindow is the backlight-style sequence: one key opens a window and
// only the single paired key inside it performs the action; everything
// else lets it die silently.
type pairWindow struct {
	windowMS clock.Ticks
	pairKey  Key
	deadline clock.Deadline
}

func newPairWindow(pairKey Key, windowMS clock.Ticks) pairWindow {
	return pairWindow{windowMS: windowMS, pairKey: pairKey}
}

func (w *pairWindow) arm(now clock.Ticks) { w.deadline.Arm(now + w.windowMS) }

func (w *pairWindow) pending() bool { return w.deadline.Armed() }

// feed consumes the key following the arming key; fired is true only for
// the paired key.
func (w *pairWindow) feed(k Key) (fired bool) {
	w.deadline.Cancel()
	return k == w.pairKey
}

// tick silently retires an expired window.
func (w *pairWindow) tick(now clock.Ticks) {
	w.deadline.Expired(now)
}
