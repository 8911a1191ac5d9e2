package daemon

import (
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rotolab/roto/pkg/clock"
	"github.com/rotolab/roto/pkg/dispatch"
	"github.com/rotolab/roto/pkg/events"
	"github.com/rotolab/roto/pkg/hw"
	"github.com/rotolab/roto/pkg/motor"
	"github.com/rotolab/roto/pkg/preheat"
	"github.com/rotolab/roto/pkg/profile"
	"github.com/rotolab/roto/pkg/settings"
	"github.com/rotolab/roto/pkg/speed"
	"github.com/rotolab/roto/pkg/thermal"
)

const (
	// TickMS is the control loop period.
	TickMS = 10
	// SplashMS holds the boot splash before the UI starts taking keys.
	SplashMS = 1500

	commandTimeout = 2 * time.Second
)

// Core is the machine brain: one instance, stepped from a single
// goroutine. Everything outside that goroutine (HTTP handlers, the
// scheduler) reaches it through Do.
type Core struct {
	board   hw.Board
	store   *settings.Store
	catalog *profile.Catalog
	disp    *dispatch.Dispatcher
	drum    *motor.Controller
	speed   *speed.Adapter
	est     *thermal.Estimator
	drive   preheat.Drive
	ready   preheat.Readiness
	hub     *events.Hub
	buzzer  *hw.Buzzer // optional host piezo; nil uses the board beeper

	splash     clock.Deadline
	splashDone bool
	startedAt  clock.Ticks

	lastMode  dispatch.OpMode
	wasReady  bool
	lastCW    uint8
	lastCCW   uint8
	wroteOnce bool
	backlight bool

	cmds chan func(now clock.Ticks)
}

func NewCore(board hw.Board, store *settings.Store, catalog *profile.Catalog, hub *events.Hub, buzzer *hw.Buzzer, now clock.Ticks) *Core {
	c := &Core{
		board:     board,
		store:     store,
		catalog:   catalog,
		disp:      dispatch.New(store, catalog),
		drum:      motor.NewController(),
		speed:     speed.NewAdapter(),
		est:       thermal.NewEstimator(),
		hub:       hub,
		buzzer:    buzzer,
		startedAt: now,
		backlight: true,
		cmds:      make(chan func(clock.Ticks), 8),
	}
	c.splash.Arm(now + SplashMS)
	return c
}

// Do runs fn on the control goroutine and waits for it, so external
// callers never race the loop.
func (c *Core) Do(fn func(now clock.Ticks)) error {
	done := make(chan struct{})
	wrapped := func(now clock.Ticks) {
		fn(now)
		close(done)
	}
	select {
	case c.cmds <- wrapped:
	case <-time.After(commandTimeout):
		return pkgerrors.New("control loop not accepting commands")
	}
	select {
	case <-done:
		return nil
	case <-time.After(commandTimeout):
		return pkgerrors.New("control loop did not run command in time")
	}
}

// Step advances the machine by one tick. Order matters: inputs are
// sampled, then the drive states advance, then derived temperatures, then
// the operator event, so a keypress always sees this tick's world.
func (c *Core) Step(now clock.Ticks) {
	if !c.splashDone {
		if !c.splash.Expired(now) {
			// Keys pressed during the splash are dropped, not queued.
			for {
				if _, ok := c.board.PollKey(); !ok {
					break
				}
			}
			c.speed.Update(now, c.board.Dial())
			c.updateThermal(now)
			return
		}
		c.splashDone = true
	}

	dial := c.board.Dial()

	if c.speed.Update(now, dial) && c.drum.Running() {
		c.drum.Retarget(c.speed.RPM())
	}

	c.drum.Continue(now)
	if c.drum.TakeCompleted() {
		c.est.ClearSeed()
		c.hub.Publish(events.RunCompleted, events.RunCompletedEvent{
			DurationMS: c.store.Get().DurationMS(),
			Ts:         time.Now().Unix(),
		})
		c.applyEffects(c.disp.OnRunCompleted(now), now)
	}

	c.updateThermal(now)
	c.updateReadiness(now)

	if k, ok := c.board.PollKey(); ok {
		c.applyEffects(c.disp.HandleEvent(dispatch.Key(k), now), now)
	}
	c.applyEffects(c.disp.Tick(now), now)

	c.writeOutputs(now, dial)
	c.publishModeChange()
}

func (c *Core) updateThermal(now clock.Ticks) {
	_, prof := c.disp.ActiveProfile()
	mode := thermal.ModeDevelopment
	if c.disp.Mode() == dispatch.ModePreheating {
		mode = thermal.ModePreheat
	}
	c.est.Update(now, thermal.Inputs{
		Readings:   c.board.Readings(),
		Offsets:    c.store.WorkingOffsets(),
		Mode:       mode,
		Profile:    prof,
		RPM:        c.speed.MeanRPM(),
		DevRunning: c.drum.Running(),
	})
}

func (c *Core) updateReadiness(now clock.Ticks) {
	if c.disp.Mode() != dispatch.ModePreheating {
		return
	}
	_, prof := c.disp.ActiveProfile()
	c.ready.Update(now, c.est.DriverReading(), prof.TargetTenths)
	if c.ready.Ready() && !c.wasReady {
		c.beep(300)
		c.hub.Publish(events.PreheatReady, events.PreheatReadyEvent{
			Fallback: !c.est.DriverReading().Valid,
			Ts:       time.Now().Unix(),
		})
	}
	c.wasReady = c.ready.Ready()
}

func (c *Core) applyEffects(fx dispatch.Effects, now clock.Ticks) {
	if fx.StartRun {
		_, prof := c.disp.ActiveProfile()
		c.est.ClearSeed()
		c.est.SeedRunStart(c.board.Readings(), c.store.WorkingOffsets(), prof)
		c.drum.Start(now, c.speed.RPM(), c.store.Get().DurationMS())
	}
	if fx.StopRun {
		c.drum.ForceStop()
		c.silence()
	}
	if fx.StartPreheat {
		_, prof := c.disp.ActiveProfile()
		c.drive.Begin(now)
		c.ready.Begin(now, prof.MinPreheatSec)
		c.wasReady = false
	}
	if fx.StopPreheat {
		c.drive.Stop()
		// The latch must not outlive the preheat it was judged for.
		c.ready = preheat.Readiness{}
		c.wasReady = false
	}
	if fx.ProfileChanged {
		idx, prof := c.disp.ActiveProfile()
		c.hub.Publish(events.ProfileChange, events.ProfileChangeEvent{
			Index:   idx,
			ID:      prof.ID,
			Process: prof.Process,
			Ts:      time.Now().Unix(),
		})
		// A profile change during preheat restarts the readiness dwell.
		if c.disp.Mode() == dispatch.ModePreheating {
			c.ready.Begin(now, prof.MinPreheatSec)
			c.wasReady = false
		}
	}
	if fx.ToggleBacklight {
		c.backlight = !c.backlight
		if err := c.board.SetBacklight(c.backlight); err != nil {
			logrus.WithError(err).Warn("failed to set backlight")
		}
	}
	if fx.BeepMS > 0 {
		c.beep(fx.BeepMS)
	}
	if fx.Render {
		c.publishRender()
	}
}

// publishRender pushes a display delta to the event hub; SSE subscribers
// are the render sink, there is no local display.
func (c *Core) publishRender() {
	_, prof := c.disp.ActiveProfile()
	s := c.store.Get()
	c.hub.Publish(events.Render, events.RenderEvent{
		Page:    c.disp.Page().String(),
		State:   c.disp.State().String(),
		Mode:    c.disp.Mode().String(),
		Minutes: s.Minutes,
		Seconds: s.Seconds,
		Profile: prof.Process,
		Ts:      time.Now().Unix(),
	})
}

// silence cuts any active audible signal immediately.
func (c *Core) silence() {
	if err := c.buzzer.Stop(); err != nil {
		logrus.WithError(err).Warn("buzzer stop failed")
	}
	if err := c.board.Beep(0); err != nil {
		logrus.WithError(err).Warn("board beep cancel failed")
	}
}

func (c *Core) beep(ms int) {
	if c.buzzer != nil {
		if err := c.buzzer.Pulse(ms); err != nil {
			logrus.WithError(err).Warn("buzzer pulse failed")
		}
		return
	}
	if err := c.board.Beep(ms); err != nil {
		logrus.WithError(err).Warn("board beep failed")
	}
}

// writeOutputs drives the H-bridge, preferring the preheat drive when it
// is active. Values only go to the board when they change.
func (c *Core) writeOutputs(now clock.Ticks, dial int) {
	var cw, ccw uint8
	if c.drive.Active() {
		cw = c.drive.Duty(now, dial)
	} else {
		cw, ccw = c.drum.Outputs()
	}
	if c.wroteOnce && cw == c.lastCW && ccw == c.lastCCW {
		return
	}
	if err := c.board.SetMotor(cw, ccw); err != nil {
		logrus.WithError(err).Error("failed to drive motor")
		return
	}
	c.lastCW, c.lastCCW = cw, ccw
	c.wroteOnce = true
}

func (c *Core) publishModeChange() {
	mode := c.disp.Mode()
	if mode == c.lastMode {
		return
	}
	logrus.WithFields(logrus.Fields{"from": c.lastMode.String(), "to": mode.String()}).
		Info("operating mode changed")
	c.hub.Publish(events.ModeChange, events.ModeChangeEvent{
		From: c.lastMode.String(),
		To:   mode.String(),
		Ts:   time.Now().Unix(),
	})
	c.lastMode = mode
}

// Shutdown stops every drive output. Called once on daemon exit.
func (c *Core) Shutdown() {
	c.drive.Stop()
	c.drum.ForceStop()
	if err := c.board.SetMotor(0, 0); err != nil {
		logrus.WithError(err).Error("failed to stop motor on shutdown")
	}
}
