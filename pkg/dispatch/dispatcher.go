// Package dispatch turns keypad events into machine actions. It owns the
// operating mode, the page the operator is looking at, and every pending
// multi-key sequence. The dispatcher itself never touches hardware: it
// returns Effects and the control loop applies them.
package dispatch

import (
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rotolab/roto/pkg/clock"
	"github.com/rotolab/roto/pkg/profile"
	"github.com/rotolab/roto/pkg/settings"
)

const (
	// comboWindowMS disambiguates the calibration entry from the two
	// profile-step actions sharing the same arming key.
	comboWindowMS = 800
	// pairWindowMS is the backlight toggle window.
	pairWindowMS = 1000
	// graceMS keeps the completion screen up before falling back to the
	// menu.
	graceMS = 3000

	beepShortMS = 40
	beepLongMS  = 600
)

// CalibChannelCount is the number of editable calibration offsets.
const CalibChannelCount = 4

// CalibChannelName names the offset edited at channel i.
func CalibChannelName(i int) string {
	switch i {
	case 0:
		return "heater"
	case 1:
		return "bath"
	case 2:
		return "tank"
	case 3:
		return "bottle"
	}
	return "?"
}

// Effects is what one dispatcher step asks the control loop to do.
// Multiple fields may be set at once.
type Effects struct {
	StartRun     bool
	StopRun      bool
	StartPreheat bool
	StopPreheat  bool

	// ProfileChanged asks the loop to re-seed everything derived from the
	// active profile (readiness hold, thermal constants).
	ProfileChanged bool

	ToggleBacklight bool
	BeepMS          int
	Render          bool
}

func (e *Effects) merge(o Effects) {
	e.StartRun = e.StartRun || o.StartRun
	e.StopRun = e.StopRun || o.StopRun
	e.StartPreheat = e.StartPreheat || o.StartPreheat
	e.StopPreheat = e.StopPreheat || o.StopPreheat
	e.ProfileChanged = e.ProfileChanged || o.ProfileChanged
	e.ToggleBacklight = e.ToggleBacklight || o.ToggleBacklight
	if o.BeepMS > e.BeepMS {
		e.BeepMS = o.BeepMS
	}
	e.Render = e.Render || o.Render
}

// Dispatcher is the application state machine. Not safe for concurrent
// use; the control loop is its only caller.
type Dispatcher struct {
	store   *settings.Store
	catalog *profile.Catalog

	page  Page
	mode  OpMode
	state State

	entry digitBuffer // numeric entry for the edit states

	stepStore storeArm
	jump      profileJump
	combo     timedCombo
	backlight pairWindow

	grace clock.Deadline

	calibChannel int
}

func New(store *settings.Store, catalog *profile.Catalog) *Dispatcher {
	return &Dispatcher{
		store:     store,
		catalog:   catalog,
		combo:     newTimedCombo(KeyHash, comboWindowMS),
		backlight: newPairWindow('0', pairWindowMS),
	}
}

func (d *Dispatcher) Page() Page   { return d.page }
func (d *Dispatcher) Mode() OpMode { return d.mode }
func (d *Dispatcher) State() State { return d.state }

// ActiveProfile returns the catalog index and entry currently selected.
func (d *Dispatcher) ActiveProfile() (int, profile.Profile) {
	i := int(d.store.Get().ActiveProfile)
	return i, d.catalog.ByIndex(i)
}

// CalibChannel returns the offset channel being edited.
func (d *Dispatcher) CalibChannel() int { return d.calibChannel }

// EntryText returns the numeric entry buffer for rendering.
func (d *Dispatcher) EntryText() string { return d.entry.text() }

// HandleEvent consumes one keypad event. Pending sequences always win:
// while one is open every event either extends it or terminates it, and
// nothing else sees the key.
func (d *Dispatcher) HandleEvent(k Key, now clock.Ticks) Effects {
	var fx Effects
	if !k.Valid() {
		return fx
	}
	if d.state == StateMenu {
		d.state = StateHub
		fx.Render = true
	}

	switch d.state {
	case StateEditMinutes, StateEditSeconds:
		fx.merge(d.handleEntry(k))
		return fx
	case StateCalibrating:
		fx.merge(d.handleCalibration(k))
		return fx
	}

	if done, sfx := d.feedSequences(k, now); done {
		fx.merge(sfx)
		return fx
	}

	switch d.state {
	case StateHub:
		fx.merge(d.handleHub(k, now))
	case StateRunning:
		fx.merge(d.handleRunning(k))
	case StatePreheating:
		fx.merge(d.handlePreheating(k, now))
	}
	return fx
}

// Tick advances the timed sequences and the completion grace period.
func (d *Dispatcher) Tick(now clock.Ticks) Effects {
	var fx Effects

	if d.state == StateMenu {
		d.state = StateHub
		fx.Render = true
	}

	// Window lapse is the third outcome of the combo: step the profile
	// forward.
	if d.combo.tick(now) == comboExpired {
		fx.merge(d.stepProfile(+1))
	}
	d.backlight.tick(now)

	if d.grace.Expired(now) {
		d.state = StateMenu
		fx.Render = true
	}
	return fx
}

// OnRunCompleted is called once when a timed run finishes on its own. The
// completion screen stays up for a grace period before the menu returns.
func (d *Dispatcher) OnRunCompleted(now clock.Ticks) Effects {
	d.mode = ModeIdle
	d.grace.Arm(now + graceMS)
	logrus.Info("development run completed")
	return Effects{BeepMS: beepLongMS, Render: true}
}

// Command entry points for the remote API. They take the same
// transitions as the keypad so mode ownership stays here.

var (
	ErrNotIdle = pkgerrors.New("machine is not idle")
	ErrNoRun   = pkgerrors.New("no active run or preheat")
)

// CommandStartRun starts a development run with the stored timing.
func (d *Dispatcher) CommandStartRun(now clock.Ticks) (Effects, error) {
	if d.mode != ModeIdle || d.state == StateCalibrating {
		return Effects{}, ErrNotIdle
	}
	d.mode = ModeDeveloping
	d.state = StateRunning
	return Effects{StartRun: true, Render: true}, nil
}

// CommandStop stops whatever is active, run or preheat.
func (d *Dispatcher) CommandStop(now clock.Ticks) (Effects, error) {
	var fx Effects
	switch d.mode {
	case ModeDeveloping:
		fx.StopRun = true
	case ModePreheating:
		fx.StopPreheat = true
	default:
		return Effects{}, ErrNoRun
	}
	d.mode = ModeIdle
	d.state = StateHub
	fx.Render = true
	return fx, nil
}

// CommandPreheat starts or stops a preheat.
func (d *Dispatcher) CommandPreheat(now clock.Ticks, on bool) (Effects, error) {
	if !on {
		if d.mode != ModePreheating {
			return Effects{}, ErrNoRun
		}
		d.mode = ModeIdle
		d.state = StateHub
		return Effects{StopPreheat: true, Render: true}, nil
	}
	if d.mode != ModeIdle || d.state == StateCalibrating {
		return Effects{}, ErrNotIdle
	}
	d.mode = ModePreheating
	d.state = StatePreheating
	d.page = PageTemperature
	return Effects{StartPreheat: true, Render: true}, nil
}

// CommandSetTime overwrites the stored run timing.
func (d *Dispatcher) CommandSetTime(minutes, seconds int) error {
	if minutes < 0 || minutes > 99 || seconds < 0 || seconds > 59 {
		return pkgerrors.Errorf("timing out of range: %d:%02d", minutes, seconds)
	}
	return d.store.Update(func(s *settings.Settings) {
		s.Minutes = uint16(minutes)
		s.Seconds = uint16(seconds)
	})
}

// CommandSelectProfile selects a profile by its catalog ID.
func (d *Dispatcher) CommandSelectProfile(id int) (Effects, error) {
	idx, ok := d.catalog.ByID(id)
	if !ok {
		return Effects{}, pkgerrors.Errorf("no profile with id %d", id)
	}
	return d.setProfile(idx), nil
}

// feedSequences routes the key into whichever sequence is pending.
func (d *Dispatcher) feedSequences(k Key, now clock.Ticks) (bool, Effects) {
	var fx Effects

	if d.combo.pending() {
		switch d.combo.feed(k) {
		case comboRepeat:
			fx.merge(d.enterCalibration())
		case comboOther:
			fx.merge(d.stepProfile(-1))
		}
		return true, fx
	}

	if d.backlight.pending() {
		if d.backlight.feed(k) {
			fx.ToggleBacklight = true
		}
		return true, fx
	}

	if d.stepStore.pending() {
		if slot, stored := d.stepStore.resolve(k); stored {
			fx.merge(d.storeStep(slot))
		}
		return true, fx
	}

	if d.jump.pending() {
		done, id, hasID := d.jump.feed(k)
		if done && hasID {
			fx.merge(d.jumpToProfile(id))
		}
		return true, fx
	}

	return false, fx
}

func (d *Dispatcher) handleHub(k Key, now clock.Ticks) Effects {
	var fx Effects
	if d.page == PageDevelopment {
		switch {
		case k.IsDigit() && k != '0':
			fx.merge(d.recallStep(k.Digit() - 1))
		case k == KeyA:
			d.mode = ModeDeveloping
			d.state = StateRunning
			fx.StartRun = true
			fx.BeepMS = beepShortMS
			fx.Render = true
		case k == KeyB:
			d.state = StateEditMinutes
			d.entry = newDigitBuffer(2)
			fx.Render = true
		case k == KeyC:
			d.state = StateEditSeconds
			d.entry = newDigitBuffer(2)
			fx.Render = true
		case k == KeyD:
			d.stepStore.arm()
		case k == KeyStar:
			d.backlight.arm(now)
		case k == KeyHash:
			d.page = PageTemperature
			fx.Render = true
		}
		return fx
	}

	// Temperature page.
	switch k {
	case KeyA:
		d.mode = ModePreheating
		d.state = StatePreheating
		fx.StartPreheat = true
		fx.BeepMS = beepShortMS
		fx.Render = true
	case KeyC:
		d.page = PageDevelopment
		fx.Render = true
	case KeyD:
		d.jump.arm()
	case KeyHash:
		d.combo.arm(now)
	case KeyStar:
		d.backlight.arm(now)
	}
	return fx
}

func (d *Dispatcher) handleRunning(k Key) Effects {
	var fx Effects
	switch k {
	case KeyStar:
		if d.mode == ModeDeveloping {
			d.mode = ModeIdle
			fx.StopRun = true
			fx.BeepMS = beepShortMS
		} else {
			// Completion grace screen: dismiss it early.
			d.grace.Cancel()
		}
		d.state = StateHub
		fx.Render = true
	case KeyHash:
		if d.page == PageDevelopment {
			d.page = PageTemperature
		} else {
			d.page = PageDevelopment
		}
		fx.Render = true
	}
	return fx
}

func (d *Dispatcher) handlePreheating(k Key, now clock.Ticks) Effects {
	var fx Effects
	switch k {
	case KeyA, KeyStar:
		d.mode = ModeIdle
		d.state = StateHub
		fx.StopPreheat = true
		fx.BeepMS = beepShortMS
		fx.Render = true
	case KeyD:
		// Profile selection stays available while warming up.
		d.jump.arm()
	case KeyHash:
		d.combo.arm(now)
	}
	return fx
}

// handleEntry is the numeric entry resolver shared by the minutes and
// seconds states: digits accumulate, one key commits, one cancels. An
// empty commit keeps the previous value.
func (d *Dispatcher) handleEntry(k Key) Effects {
	var fx Effects
	switch {
	case k.IsDigit():
		d.entry.push(k)
		fx.Render = true
	case k == KeyA:
		if v, ok := d.entry.value(); ok {
			minutes := d.state == StateEditMinutes
			if err := d.store.Update(func(s *settings.Settings) {
				// Both fields take the parse verbatim; the two-digit
				// buffer is the only bound, so 75 seconds is legal here.
				if minutes {
					s.Minutes = uint16(v)
				} else {
					s.Seconds = uint16(v)
				}
			}); err != nil {
				logrus.WithError(err).Error("failed to persist timing")
			}
		}
		d.state = StateHub
		fx.BeepMS = beepShortMS
		fx.Render = true
	case k == KeyStar:
		d.state = StateHub
		fx.Render = true
	}
	return fx
}

// handleCalibration edits the staged offsets one channel at a time. The
// staged values are live for the thermal path immediately, but only a
// commit makes them permanent.
func (d *Dispatcher) handleCalibration(k Key) Effects {
	fx := Effects{Render: true}
	switch k {
	case KeyB:
		d.calibChannel = (d.calibChannel + 1) % CalibChannelCount
	case KeyC:
		d.calibChannel = (d.calibChannel + CalibChannelCount - 1) % CalibChannelCount
	case KeyA:
		d.adjustOffset(+1)
	case KeyD:
		d.adjustOffset(-1)
	case KeyHash:
		if err := d.store.CommitOffsets(); err != nil {
			logrus.WithError(err).Error("failed to persist calibration offsets")
		}
		d.state = StateHub
		fx.BeepMS = beepShortMS
	case KeyStar:
		d.store.DiscardOffsets()
		d.state = StateHub
	default:
		fx.Render = false
	}
	return fx
}

func (d *Dispatcher) adjustOffset(delta int16) {
	o := d.store.WorkingOffsets()
	switch d.calibChannel {
	case 0:
		o.Heater += delta
	case 1:
		o.Bath += delta
	case 2:
		o.Tank += delta
	case 3:
		o.Bottle += delta
	}
	d.store.SetWorkingOffsets(o)
}

func (d *Dispatcher) enterCalibration() Effects {
	d.state = StateCalibrating
	d.calibChannel = 0
	logrus.Info("entering calibration")
	return Effects{Render: true, BeepMS: beepShortMS}
}

// stepProfile moves the active profile by catalog position.
func (d *Dispatcher) stepProfile(dir int) Effects {
	cur := int(d.store.Get().ActiveProfile)
	var next int
	if dir > 0 {
		next = d.catalog.Next(cur)
	} else {
		next = d.catalog.Prev(cur)
	}
	return d.setProfile(next)
}

// jumpToProfile selects by profile ID. An unknown ID leaves the selection
// unchanged.
func (d *Dispatcher) jumpToProfile(id int) Effects {
	idx, ok := d.catalog.ByID(id)
	if !ok {
		logrus.WithField("id", id).Debug("no profile with that id")
		return Effects{}
	}
	return d.setProfile(idx)
}

func (d *Dispatcher) setProfile(idx int) Effects {
	if err := d.store.Update(func(s *settings.Settings) {
		s.ActiveProfile = uint8(idx)
	}); err != nil {
		logrus.WithError(err).Error("failed to persist active profile")
	}
	p := d.catalog.ByIndex(idx)
	logrus.WithFields(logrus.Fields{"index": idx, "id": p.ID, "process": p.Process}).
		Info("active profile changed")
	return Effects{ProfileChanged: true, Render: true, BeepMS: beepShortMS}
}

func (d *Dispatcher) storeStep(slot int) Effects {
	if slot < 0 || slot >= settings.StepCount {
		return Effects{}
	}
	if err := d.store.Update(func(s *settings.Settings) {
		s.Steps[slot] = settings.Step{
			Minutes: uint8(s.Minutes),
			Seconds: uint8(s.Seconds),
			Defined: true,
		}
	}); err != nil {
		logrus.WithError(err).Error("failed to persist step")
	}
	return Effects{Render: true, BeepMS: beepShortMS}
}

func (d *Dispatcher) recallStep(slot int) Effects {
	if slot < 0 || slot >= settings.StepCount {
		return Effects{}
	}
	st := d.store.Get().Steps[slot]
	if !st.Defined {
		return Effects{}
	}
	if err := d.store.Update(func(s *settings.Settings) {
		s.Minutes = uint16(st.Minutes)
		s.Seconds = uint16(st.Seconds)
	}); err != nil {
		logrus.WithError(err).Error("failed to persist timing")
	}
	return Effects{Render: true, BeepMS: beepShortMS}
}
