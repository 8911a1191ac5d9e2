package events

import "encoding/json"

// Event name constants
const (
	ModeChange      = "mode.change"
	RunCompleted    = "run.completed"
	PreheatReady    = "preheat.ready"
	ProfileChange   = "profile.change"
	PreheatUpcoming = "preheat.upcoming"
	ScheduleError   = "schedule.error"
	Render          = "render"
)

// Event is a generic SSE event from the daemon.
type Event struct {
	Name string          // SSE event name
	Data json.RawMessage // Raw JSON payload
}

// ModeChangeEvent is the typed payload for mode.change.
type ModeChangeEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
	Ts   int64  `json:"ts"`
}

// RunCompletedEvent is the typed payload for run.completed.
type RunCompletedEvent struct {
	DurationMS int64 `json:"durationMs"`
	Ts         int64 `json:"ts"`
}

// PreheatReadyEvent is the typed payload for preheat.ready.
type PreheatReadyEvent struct {
	// Fallback is true when readiness came from the blind timer instead
	// of the sensor.
	Fallback bool  `json:"fallback"`
	Ts       int64 `json:"ts"`
}

// ProfileChangeEvent is the typed payload for profile.change.
type ProfileChangeEvent struct {
	Index   int    `json:"index"`
	ID      int    `json:"id"`
	Process string `json:"process"`
	Ts      int64  `json:"ts"`
}

// PreheatUpcomingEvent is the typed payload for preheat.upcoming.
type PreheatUpcomingEvent struct {
	RunAt int64 `json:"runAt"` // unix seconds
	Ts    int64 `json:"ts"`
}

// ScheduleErrorEvent is the typed payload for schedule.error.
type ScheduleErrorEvent struct {
	Message string `json:"message"`
	Ts      int64  `json:"ts"`
}

// RenderEvent is the typed payload for render: the display-facing state
// delta a front end needs to redraw. Character layout is the client's
// business.
type RenderEvent struct {
	Page    string `json:"page"`
	State   string `json:"state"`
	Mode    string `json:"mode"`
	Minutes uint16 `json:"minutes"`
	Seconds uint16 `json:"seconds"`
	Profile string `json:"profile"`
	Ts      int64  `json:"ts"`
}

// DecodeAs decodes the event payload into the caller-specified generic
// type T. It ignores the event name and simply unmarshals Data into T.
// If Data is empty, it returns the zero value of T with a nil error.
func DecodeAs[T any](e Event) (T, error) {
	var zero T
	if len(e.Data) == 0 {
		return zero, nil
	}
	var v T
	if err := json.Unmarshal(e.Data, &v); err != nil {
		return zero, err
	}
	return v, nil
}
