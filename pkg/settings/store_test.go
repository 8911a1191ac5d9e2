package settings

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "machine.bin")
	st, err := NewStore(path)
	require.NoError(t, err)
	return st, path
}

func TestRoundTrip(t *testing.T) {
	st, path := tempStore(t)

	require.NoError(t, st.Update(func(s *Settings) {
		s.Minutes = 12
		s.Seconds = 34
		s.ActiveProfile = 4
		s.Steps[0] = Step{Minutes: 3, Seconds: 15, Defined: true}
		s.Steps[8] = Step{Minutes: 9, Seconds: 59, Defined: true}
	}))
	st.SetWorkingOffsets(Offsets{Heater: -5, Bath: 3, Tank: -2, Bottle: 7})
	require.NoError(t, st.Save())

	// Fresh store from the same file must see every field.
	st2, err := NewStore(path)
	require.NoError(t, err)
	got := st2.Get()
	assert.Equal(t, uint16(12), got.Minutes)
	assert.Equal(t, uint16(34), got.Seconds)
	assert.Equal(t, uint8(4), got.ActiveProfile)
	assert.Equal(t, Step{Minutes: 3, Seconds: 15, Defined: true}, got.Steps[0])
	assert.Equal(t, Step{Minutes: 9, Seconds: 59, Defined: true}, got.Steps[8])
	assert.Equal(t, Offsets{Heater: -5, Bath: 3, Tank: -2, Bottle: 7}, got.Offsets)
}

func TestVersionMismatchResetsToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.bin")

	// Write a correctly sized record under a future version, stuffed with
	// garbage.
	b := make([]byte, RecordSize)
	for i := range b {
		b[i] = 0xA5
	}
	binary.LittleEndian.PutUint16(b[0:2], SchemaVersion+1)
	require.NoError(t, os.WriteFile(path, b, 0644))

	st, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), st.Get())

	// The file itself must have been rewritten with the defaults.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, Default(), got)
}

func TestShortRecordResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.bin")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0644))

	st, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), st.Get())
}

func TestMissingFileWritesDefaults(t *testing.T) {
	st, path := tempStore(t)
	assert.Equal(t, Default(), st.Get())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestOffsetsStagedUntilCommit(t *testing.T) {
	st, path := tempStore(t)

	// Three increments on the bath channel, then discard: committed value
	// stays at zero.
	w := st.WorkingOffsets()
	for i := 0; i < 3; i++ {
		w.Bath++
		st.SetWorkingOffsets(w)
	}
	st.DiscardOffsets()
	assert.Equal(t, int16(0), st.WorkingOffsets().Bath)
	assert.Equal(t, int16(0), st.Get().Offsets.Bath)

	// Same edit followed by commit lands +3 tenths on disk.
	w = st.WorkingOffsets()
	w.Bath += 3
	st.SetWorkingOffsets(w)
	require.NoError(t, st.CommitOffsets())

	st2, err := NewStore(path)
	require.NoError(t, err)
	assert.Equal(t, int16(3), st2.Get().Offsets.Bath)
}

func TestDurationMS(t *testing.T) {
	s := Settings{Minutes: 0, Seconds: 10}
	assert.Equal(t, int64(10000), s.DurationMS())
	s = Settings{Minutes: 2, Seconds: 30}
	assert.Equal(t, int64(150000), s.DurationMS())
}

func TestEncodeSize(t *testing.T) {
	assert.Len(t, Encode(Default()), RecordSize)
}
