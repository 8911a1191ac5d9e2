package dispatch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotolab/roto/pkg/clock"
	"github.com/rotolab/roto/pkg/profile"
	"github.com/rotolab/roto/pkg/settings"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *settings.Store) {
	t.Helper()
	st, err := settings.NewStore(filepath.Join(t.TempDir(), "settings.bin"))
	require.NoError(t, err)
	d := New(st, profile.Builtin())
	d.Tick(0) // leave the landing screen
	return d, st
}

// press feeds a key string at a fixed instant and merges the effects.
func press(d *Dispatcher, now clock.Ticks, keys string) Effects {
	var fx Effects
	for _, r := range keys {
		fx.merge(d.HandleEvent(Key(r), now))
	}
	return fx
}

func TestTimingEntryCommitKeepAndCancel(t *testing.T) {
	d, st := newTestDispatcher(t)

	press(d, 0, "B12A")
	press(d, 0, "C30A")
	s := st.Get()
	assert.Equal(t, uint16(12), s.Minutes)
	assert.Equal(t, uint16(30), s.Seconds)

	// Committing an empty buffer keeps the previous value.
	press(d, 0, "BA")
	assert.Equal(t, uint16(12), st.Get().Minutes)

	// Cancel discards the buffer.
	press(d, 0, "B9*")
	assert.Equal(t, uint16(12), st.Get().Minutes)
	assert.Equal(t, StateHub, d.State())

	// Seconds commit verbatim, not modulo a minute.
	press(d, 0, "C75A")
	assert.Equal(t, uint16(75), st.Get().Seconds)
}

func TestStepStoreRecallAndCancel(t *testing.T) {
	d, st := newTestDispatcher(t)

	press(d, 0, "B8A")
	press(d, 0, "C30A")
	press(d, 0, "D3") // store into slot 3
	require.True(t, st.Get().Steps[2].Defined)

	press(d, 0, "B5A")
	press(d, 0, "C0A")
	require.Equal(t, uint16(5), st.Get().Minutes)

	// Recall brings the stored timing back.
	press(d, 0, "3")
	assert.Equal(t, uint16(8), st.Get().Minutes)
	assert.Equal(t, uint16(30), st.Get().Seconds)

	// A non-digit after arming cancels without storing, and the key is
	// consumed rather than acted on.
	fx := press(d, 0, "DA")
	assert.False(t, fx.StartRun)
	for i, s := range st.Get().Steps {
		if i != 2 {
			assert.False(t, s.Defined, "slot %d", i+1)
		}
	}

	// Recalling an undefined slot is a no-op.
	press(d, 0, "7")
	assert.Equal(t, uint16(8), st.Get().Minutes)
}

func TestRunStartAndStop(t *testing.T) {
	d, _ := newTestDispatcher(t)

	fx := press(d, 0, "A")
	assert.True(t, fx.StartRun)
	assert.Equal(t, ModeDeveloping, d.Mode())
	assert.Equal(t, StateRunning, d.State())

	fx = press(d, 1000, "*")
	assert.True(t, fx.StopRun)
	assert.Equal(t, ModeIdle, d.Mode())
	assert.Equal(t, StateHub, d.State())
}

func TestRunCompletionGrace(t *testing.T) {
	d, _ := newTestDispatcher(t)
	press(d, 0, "A")

	fx := d.OnRunCompleted(10000)
	assert.Equal(t, ModeIdle, d.Mode())
	assert.Equal(t, beepLongMS, fx.BeepMS)

	// Completion screen stays up through the grace period.
	d.Tick(10000 + graceMS - 1)
	assert.Equal(t, StateRunning, d.State())
	d.Tick(10000 + graceMS)
	assert.Equal(t, StateMenu, d.State())
	d.Tick(10001 + graceMS)
	assert.Equal(t, StateHub, d.State())
}

func TestPreheatToggle(t *testing.T) {
	d, _ := newTestDispatcher(t)
	press(d, 0, "#") // temperature page

	fx := press(d, 0, "A")
	assert.True(t, fx.StartPreheat)
	assert.Equal(t, ModePreheating, d.Mode())

	fx = press(d, 1000, "A")
	assert.True(t, fx.StopPreheat)
	assert.Equal(t, ModeIdle, d.Mode())
}

func TestProfileJumpByID(t *testing.T) {
	d, st := newTestDispatcher(t)
	press(d, 0, "#") // temperature page

	cat := profile.Builtin()
	wantIdx, ok := cat.ByID(15)
	require.True(t, ok)
	require.NotEqual(t, 15, wantIdx, "the id is not the catalog position")

	fx := press(d, 0, "D15#")
	assert.True(t, fx.ProfileChanged)
	assert.Equal(t, uint8(wantIdx), st.Get().ActiveProfile)

	// An unknown id leaves the selection unchanged.
	fx = press(d, 0, "D99#")
	assert.False(t, fx.ProfileChanged)
	assert.Equal(t, uint8(wantIdx), st.Get().ActiveProfile)

	// A third digit is swallowed, not wrapped.
	press(d, 0, "D150#")
	assert.Equal(t, uint8(wantIdx), st.Get().ActiveProfile)
}

func TestComboThreeWayOutcomes(t *testing.T) {
	// Second arming key inside the window: calibration.
	d, _ := newTestDispatcher(t)
	press(d, 0, "#")
	press(d, 0, "#")
	press(d, comboWindowMS-1, "#")
	assert.Equal(t, StateCalibrating, d.State())

	// A different key inside the window: profile retreat (wraps).
	d, st := newTestDispatcher(t)
	press(d, 0, "#")
	press(d, 0, "#")
	fx := press(d, 100, "*")
	assert.True(t, fx.ProfileChanged)
	assert.Equal(t, uint8(profile.Builtin().Len()-1), st.Get().ActiveProfile)
	assert.NotEqual(t, StateCalibrating, d.State())

	// Window lapse: profile advance.
	d, st = newTestDispatcher(t)
	press(d, 0, "#")
	press(d, 0, "#")
	fx = d.Tick(comboWindowMS)
	assert.True(t, fx.ProfileChanged)
	assert.Equal(t, uint8(1), st.Get().ActiveProfile)
}

func TestCalibrationEditCommitAndDiscard(t *testing.T) {
	d, st := newTestDispatcher(t)
	press(d, 0, "###") // page, then combo

	press(d, 0, "AA") // heater +2
	press(d, 0, "B")  // bath channel
	press(d, 0, "D")  // bath -1
	w := st.WorkingOffsets()
	assert.Equal(t, int16(2), w.Heater)
	assert.Equal(t, int16(-1), w.Bath)
	// Staged values are not committed yet.
	assert.Equal(t, int16(0), st.Get().Offsets.Heater)

	press(d, 0, "#") // save
	assert.Equal(t, StateHub, d.State())
	assert.Equal(t, int16(2), st.Get().Offsets.Heater)
	assert.Equal(t, int16(-1), st.Get().Offsets.Bath)

	// Discard path: edits evaporate.
	press(d, 0, "##")
	require.Equal(t, StateCalibrating, d.State())
	press(d, 0, "AAA")
	press(d, 0, "*")
	assert.Equal(t, int16(2), st.WorkingOffsets().Heater)
	assert.Equal(t, int16(2), st.Get().Offsets.Heater)
}

func TestBacklightPairWindow(t *testing.T) {
	d, _ := newTestDispatcher(t)

	press(d, 0, "*")
	fx := press(d, pairWindowMS-1, "0")
	assert.True(t, fx.ToggleBacklight)

	// Any other key retires the window and is consumed.
	press(d, 2000, "*")
	fx = press(d, 2100, "A")
	assert.False(t, fx.ToggleBacklight)
	assert.False(t, fx.StartRun, "the second key must not act on its own")

	// After expiry the paired key is an ordinary (ignored) digit.
	press(d, 5000, "*")
	d.Tick(5000 + pairWindowMS)
	fx = press(d, 5000+pairWindowMS+1, "0")
	assert.False(t, fx.ToggleBacklight)
}

func TestPageFlip(t *testing.T) {
	d, _ := newTestDispatcher(t)
	require.Equal(t, PageDevelopment, d.Page())

	press(d, 0, "#")
	assert.Equal(t, PageTemperature, d.Page())
	press(d, 0, "C")
	assert.Equal(t, PageDevelopment, d.Page())
}
