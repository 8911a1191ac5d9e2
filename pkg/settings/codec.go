package settings

import (
	"bytes"
	"encoding/binary"

	pkgerrors "github.com/pkg/errors"
)

// RecordSize is the fixed length of the persisted block:
// version(2) + minutes(2) + seconds(2) + 9*step(3) + profile(1) + 4*offset(2).
const RecordSize = 2 + 2 + 2 + StepCount*3 + 1 + 4*2

// Encode serializes the aggregate under the current schema version. The
// layout is little-endian and exactly RecordSize bytes.
func Encode(s Settings) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, RecordSize))
	le := binary.LittleEndian

	b2 := make([]byte, 2)
	put16 := func(v uint16) {
		le.PutUint16(b2, v)
		buf.Write(b2)
	}

	put16(SchemaVersion)
	put16(s.Minutes)
	put16(s.Seconds)
	for _, st := range s.Steps {
		defined := byte(0)
		if st.Defined {
			defined = 1
		}
		buf.Write([]byte{st.Minutes, st.Seconds, defined})
	}
	buf.WriteByte(s.ActiveProfile)
	put16(uint16(s.Offsets.Heater))
	put16(uint16(s.Offsets.Bath))
	put16(uint16(s.Offsets.Tank))
	put16(uint16(s.Offsets.Bottle))

	return buf.Bytes()
}

// ErrVersionMismatch marks a record written under a different schema
// version. The caller must discard the whole record.
var ErrVersionMismatch = pkgerrors.New("settings record schema version mismatch")

// Decode parses a persisted block. Short records and version mismatches
// are errors; callers handle both by resetting to defaults.
func Decode(b []byte) (Settings, error) {
	if len(b) != RecordSize {
		return Settings{}, pkgerrors.Errorf("settings record is %d bytes, want %d", len(b), RecordSize)
	}
	le := binary.LittleEndian

	if v := le.Uint16(b[0:2]); v != SchemaVersion {
		return Settings{}, pkgerrors.Wrapf(ErrVersionMismatch, "record version %d, schema version %d", v, SchemaVersion)
	}

	var s Settings
	s.Minutes = le.Uint16(b[2:4])
	s.Seconds = le.Uint16(b[4:6])
	off := 6
	for i := 0; i < StepCount; i++ {
		s.Steps[i] = Step{
			Minutes: b[off],
			Seconds: b[off+1],
			Defined: b[off+2] != 0,
		}
		off += 3
	}
	s.ActiveProfile = b[off]
	off++
	s.Offsets.Heater = int16(le.Uint16(b[off : off+2]))
	s.Offsets.Bath = int16(le.Uint16(b[off+2 : off+4]))
	s.Offsets.Tank = int16(le.Uint16(b[off+4 : off+6]))
	s.Offsets.Bottle = int16(le.Uint16(b[off+6 : off+8]))

	return s, nil
}
