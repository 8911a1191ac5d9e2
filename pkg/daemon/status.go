package daemon

import (
	"github.com/rotolab/roto/pkg/clock"
	"github.com/rotolab/roto/pkg/profile"
	"github.com/rotolab/roto/pkg/settings"
	"github.com/rotolab/roto/pkg/thermal"
)

// Status is the full machine snapshot served by the API.
type Status struct {
	Mode  string `json:"mode"`
	Page  string `json:"page"`
	State string `json:"state"`

	Minutes uint16 `json:"minutes"`
	Seconds uint16 `json:"seconds"`

	Running     bool   `json:"running"`
	Phase       string `json:"phase"`
	Direction   string `json:"direction"`
	RemainingMS int64  `json:"remainingMs"`
	ElapsedMS   int64  `json:"elapsedMs"`

	RPM     int `json:"rpm"`
	MeanRPM int `json:"meanRpm"`
	Dial    int `json:"dial"`

	Readings         thermal.Readings `json:"readings"`
	MeanTenths       thermal.Reading  `json:"mean"`
	EstimateTenths   int              `json:"estimateTenths"`
	SuggestionTenths int              `json:"suggestionTenths"`

	PreheatReady     bool  `json:"preheatReady"`
	PreheatElapsedMS int64 `json:"preheatElapsedMs,omitempty"`

	ProfileIndex int             `json:"profileIndex"`
	Profile      profile.Profile `json:"profile"`

	Offsets settings.Offsets `json:"offsets"`

	UptimeMS int64 `json:"uptimeMs"`
}

// snapshot must run on the control goroutine.
func (c *Core) snapshot(now clock.Ticks) Status {
	idx, prof := c.disp.ActiveProfile()
	s := c.store.Get()

	st := Status{
		Mode:  c.disp.Mode().String(),
		Page:  c.disp.Page().String(),
		State: c.disp.State().String(),

		Minutes: s.Minutes,
		Seconds: s.Seconds,

		Running:     c.drum.Running(),
		Phase:       c.drum.Phase().String(),
		Direction:   c.drum.Direction().String(),
		RemainingMS: c.drum.RemainingMS(now),
		ElapsedMS:   c.drum.ElapsedMS(now),

		RPM:     c.speed.RPM(),
		MeanRPM: c.speed.MeanRPM(),
		Dial:    c.board.Dial(),

		Readings:         thermal.Calibrate(c.board.Readings(), c.store.WorkingOffsets()),
		MeanTenths:       c.est.MeanReading(),
		EstimateTenths:   c.est.EstimateTenths(),
		SuggestionTenths: c.est.SuggestionTenths(),

		PreheatReady: c.ready.Ready(),

		ProfileIndex: idx,
		Profile:      prof,

		Offsets: c.store.WorkingOffsets(),

		UptimeMS: int64(now - c.startedAt),
	}
	if c.drive.Active() {
		st.PreheatElapsedMS = c.ready.ElapsedMS(now)
	}
	return st
}

// Snapshot fetches a Status through the control goroutine.
func (c *Core) Snapshot() (Status, error) {
	var st Status
	err := c.Do(func(now clock.Ticks) {
		st = c.snapshot(now)
	})
	return st, err
}
