package dispatch

// Key is one discrete keypad event from the 16-symbol pad: digits 0-9,
// command keys A-D and the two punctuation keys. KeyNone means no event
// this iteration.
type Key byte

const (
	KeyNone   Key = 0
	KeyA      Key = 'A'
	KeyB      Key = 'B'
	KeyC      Key = 'C'
	KeyD      Key = 'D'
	KeyStar   Key = '*'
	KeyHash   Key = '#'
)

// IsDigit reports whether k is '0'..'9'.
func (k Key) IsDigit() bool { return k >= '0' && k <= '9' }

// Digit returns the numeric value of a digit key.
func (k Key) Digit() int { return int(k - '0') }

// Valid reports whether k belongs to the keypad symbol set.
func (k Key) Valid() bool {
	switch {
	case k.IsDigit():
		return true
	case k == KeyA, k == KeyB, k == KeyC, k == KeyD, k == KeyStar, k == KeyHash:
		return true
	}
	return false
}

// Page is the operator-facing screen the event stream is classified
// against.
type Page int

const (
	PageDevelopment Page = iota
	PageTemperature
)

func (p Page) String() string {
	if p == PageTemperature {
		return "temperature"
	}
	return "development"
}

// OpMode is the machine's operating mode. Exactly one is active and only
// the dispatcher transitions it.
type OpMode int

const (
	ModeIdle OpMode = iota
	ModeDeveloping
	ModePreheating
)

func (m OpMode) String() string {
	switch m {
	case ModeDeveloping:
		return "developing"
	case ModePreheating:
		return "preheating"
	default:
		return "idle"
	}
}

// State is the application state machine position.
type State int

const (
	// StateMenu is the landing state; it advances to StateHub on the
	// next tick.
	StateMenu State = iota
	// StateHub classifies incoming events against page and mode.
	StateHub
	// StateEditMinutes and StateEditSeconds are the numeric entry states.
	StateEditMinutes
	StateEditSeconds
	// StateRunning is active development drive.
	StateRunning
	// StatePreheating is active preheat drive.
	StatePreheating
	// StateCalibrating is the offset editing mode.
	StateCalibrating
)

func (s State) String() string {
	switch s {
	case StateHub:
		return "hub"
	case StateEditMinutes:
		return "edit-minutes"
	case StateEditSeconds:
		return "edit-seconds"
	case StateRunning:
		return "running"
	case StatePreheating:
		return "preheating"
	case StateCalibrating:
		return "calibrating"
	default:
		return "menu"
	}
}
