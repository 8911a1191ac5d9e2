// Package motor implements the drum drive: a ramp-phase state machine
// producing H-bridge duty outputs with periodic direction reversal and a
// total-run-time stop. It is pure control logic; the daemon loop maps its
// outputs onto the board.
package motor

import (
	"github.com/sirupsen/logrus"

	"github.com/rotolab/roto/pkg/clock"
)

// Phase is the position inside one rotation cycle.
type Phase int

const (
	PhaseStopped Phase = iota
	PhaseAccelerating
	PhaseConstant
	PhaseBraking
)

func (p Phase) String() string {
	switch p {
	case PhaseAccelerating:
		return "accelerating"
	case PhaseConstant:
		return "constant"
	case PhaseBraking:
		return "braking"
	default:
		return "stopped"
	}
}

// Direction selects which H-bridge leg is driven.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

const (
	// MinRPM is the floor enforced before any division; it guarantees a
	// positive cycle length.
	MinRPM = 30
	// MaxRPM is the mechanical ceiling of the drive.
	MaxRPM = 120
	// MaxDuty is the full-scale PWM value.
	MaxDuty = 255

	// revolutionsPerCycle rotations in one direction before reversing.
	revolutionsPerCycle = 3
	// AccelWindowMS is the length of each ramp (up and down).
	AccelWindowMS = 300
)

// ClampRPM forces rpm into the drivable band.
func ClampRPM(rpm int) int {
	if rpm < MinRPM {
		return MinRPM
	}
	if rpm > MaxRPM {
		return MaxRPM
	}
	return rpm
}

// CycleLengthMS returns the duration of one single-direction rotation
// interval for the given speed. The rpm floor keeps it positive and the
// result always exceeds both ramp windows.
func CycleLengthMS(rpm int) clock.Ticks {
	rpm = ClampRPM(rpm)
	return clock.Ticks(revolutionsPerCycle * 60000 / rpm)
}

// BrakeThresholdMS returns the tick within a cycle at which ramp-down
// starts.
func BrakeThresholdMS(cycleLen clock.Ticks) clock.Ticks {
	return cycleLen - AccelWindowMS
}

// dutyCurve is the measured rpm -> duty transfer of the drive train,
// interpolated linearly between points and clamped at the ends.
var dutyCurve = []struct {
	rpm  int
	duty int
}{
	{30, 90},
	{60, 140},
	{90, 190},
	{120, 255},
}

// RPMToDuty maps a target speed to the steady-state PWM duty.
func RPMToDuty(rpm int) uint8 {
	rpm = ClampRPM(rpm)
	if rpm <= dutyCurve[0].rpm {
		return uint8(dutyCurve[0].duty)
	}
	for i := 1; i < len(dutyCurve); i++ {
		if rpm <= dutyCurve[i].rpm {
			lo, hi := dutyCurve[i-1], dutyCurve[i]
			d := lo.duty + (hi.duty-lo.duty)*(rpm-lo.rpm)/(hi.rpm-lo.rpm)
			return clampDuty(d)
		}
	}
	return uint8(dutyCurve[len(dutyCurve)-1].duty)
}

func clampDuty(d int) uint8 {
	if d < 0 {
		return 0
	}
	if d > MaxDuty {
		return MaxDuty
	}
	return uint8(d)
}

// Controller owns the motor phase, direction and run-start timestamp.
type Controller struct {
	running    bool
	phase      Phase
	direction  Direction
	targetDuty uint8
	cycleLen   clock.Ticks
	brakeAt    clock.Ticks

	runStart   clock.Ticks
	cycleStart clock.Ticks
	durationMS int64

	outCW  uint8
	outCCW uint8

	completed bool
}

func NewController() *Controller {
	return &Controller{}
}

// Start begins a development run. It is ignored if a run is already in
// progress.
func (c *Controller) Start(now clock.Ticks, rpm int, durationMS int64) {
	if c.running {
		return
	}
	rpm = ClampRPM(rpm)

	c.running = true
	c.phase = PhaseAccelerating
	c.direction = Forward
	c.targetDuty = RPMToDuty(rpm)
	c.cycleLen = CycleLengthMS(rpm)
	c.brakeAt = BrakeThresholdMS(c.cycleLen)
	c.runStart = now
	c.cycleStart = now
	c.durationMS = durationMS
	c.completed = false

	logrus.WithFields(logrus.Fields{
		"rpm":        rpm,
		"targetDuty": c.targetDuty,
		"cycleLen":   c.cycleLen,
		"durationMS": durationMS,
	}).Info("motor run started")
}

// ForceStop unconditionally zeroes both outputs and clears the run-start
// timestamp. It is idempotent. The caller is responsible for silencing the
// buzzer alongside it.
func (c *Controller) ForceStop() {
	c.running = false
	c.phase = PhaseStopped
	c.outCW = 0
	c.outCCW = 0
	c.durationMS = 0
}

// Retarget recomputes duty and cycle geometry for a new accepted speed.
// It only changes the drive while a run is active.
func (c *Controller) Retarget(rpm int) {
	if !c.running {
		return
	}
	rpm = ClampRPM(rpm)
	c.targetDuty = RPMToDuty(rpm)
	c.cycleLen = CycleLengthMS(rpm)
	c.brakeAt = BrakeThresholdMS(c.cycleLen)
}

// Continue advances the drive by one loop tick. It tolerates being called
// on every iteration regardless of state.
func (c *Controller) Continue(now clock.Ticks) {
	if !c.running {
		c.outCW = 0
		c.outCCW = 0
		return
	}

	// Total-duration stop behaves exactly like ForceStop, plus the
	// completion latch.
	if c.durationMS > 0 && int64(now-c.runStart) >= c.durationMS {
		logrus.Info("programmed run time elapsed, stopping motor")
		c.ForceStop()
		c.completed = true
		return
	}

	el := now - c.cycleStart
	if el >= c.cycleLen {
		// Brief all-stop at every reversal; protects the H-bridge and the
		// drive linkage.
		c.outCW = 0
		c.outCCW = 0
		if c.direction == Forward {
			c.direction = Reverse
		} else {
			c.direction = Forward
		}
		c.cycleStart = now
		c.phase = PhaseAccelerating
		return
	}

	var duty int
	switch {
	case el <= AccelWindowMS:
		c.phase = PhaseAccelerating
		duty = int(c.targetDuty) * int(el) / AccelWindowMS
	case el <= c.brakeAt:
		c.phase = PhaseConstant
		duty = int(c.targetDuty)
	default:
		c.phase = PhaseBraking
		window := int(c.cycleLen - c.brakeAt)
		if window <= 0 {
			window = 1
		}
		duty = int(c.targetDuty) * int(c.cycleLen-el) / window
	}

	d := clampDuty(duty)
	if c.direction == Forward {
		c.outCW, c.outCCW = d, 0
	} else {
		c.outCW, c.outCCW = 0, d
	}
}

// Outputs returns the two H-bridge duty values. Both zero means stopped.
func (c *Controller) Outputs() (cw, ccw uint8) {
	return c.outCW, c.outCCW
}

func (c *Controller) Running() bool { return c.running }

func (c *Controller) Phase() Phase { return c.phase }

func (c *Controller) Direction() Direction { return c.direction }

// RemainingMS returns the run time left, clamped to zero.
func (c *Controller) RemainingMS(now clock.Ticks) int64 {
	if !c.running || c.durationMS == 0 {
		return 0
	}
	el := int64(now - c.runStart)
	if el >= c.durationMS {
		return 0
	}
	return c.durationMS - el
}

// ElapsedMS returns the run time so far, zero when stopped.
func (c *Controller) ElapsedMS(now clock.Ticks) int64 {
	if !c.running {
		return 0
	}
	return int64(now - c.runStart)
}

// TakeCompleted reports the run-completed latch and clears it, so the
// dispatcher observes each completion exactly once.
func (c *Controller) TakeCompleted() bool {
	if !c.completed {
		return false
	}
	c.completed = false
	return true
}
