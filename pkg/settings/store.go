package settings

import (
	"os"
	"path/filepath"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Store mediates every commit of the persisted aggregate. Calibration
// offsets are edited on a staged working copy and only reach the aggregate
// on an explicit Commit.
type Store struct {
	mu       sync.RWMutex
	filepath string

	committed Settings
	working   Offsets
}

// NewStore loads (or initializes) the record at path.
func NewStore(path string) (*Store, error) {
	st := &Store{filepath: path}
	if err := st.Load(); err != nil {
		return nil, err
	}
	return st, nil
}

// Load reads the persisted aggregate. A missing file, a short or corrupt
// record, or a version mismatch all reset the aggregate to the documented
// defaults and rewrite the file before returning.
func (st *Store) Load() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	b, err := os.ReadFile(st.filepath)
	if err != nil {
		if !os.IsNotExist(err) {
			return pkgerrors.Wrapf(err, "failed to read settings %s", st.filepath)
		}
		logrus.WithField("path", st.filepath).Info("no settings record, writing defaults")
		return st.resetLocked()
	}

	s, err := Decode(b)
	if err != nil {
		logrus.WithError(err).Warn("settings record invalid, resetting to defaults")
		return st.resetLocked()
	}

	st.committed = s
	st.working = s.Offsets
	return nil
}

// Save writes the full aggregate, including whichever calibration offsets
// are currently live (the working values), under the current schema
// version. The write is atomic: temp file then rename.
func (st *Store) Save() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.committed.Offsets = st.working
	return st.writeLocked()
}

// Reset discards the stored record and returns to defaults.
func (st *Store) Reset() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.resetLocked()
}

func (st *Store) resetLocked() error {
	st.committed = Default()
	st.working = st.committed.Offsets
	return st.writeLocked()
}

func (st *Store) writeLocked() error {
	tmp := st.filepath + ".tmp"
	if err := os.MkdirAll(filepath.Dir(st.filepath), 0755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create settings dir for %s", st.filepath)
	}
	if err := os.WriteFile(tmp, Encode(st.committed), 0644); err != nil {
		return pkgerrors.Wrapf(err, "failed to write settings %s", tmp)
	}
	if err := os.Rename(tmp, st.filepath); err != nil {
		return pkgerrors.Wrapf(err, "failed to replace settings %s", st.filepath)
	}
	return nil
}

// Get returns a copy of the committed aggregate.
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.committed
}

// Update mutates the aggregate through fn and persists it. fn runs under
// the store lock and must not call back into the store.
func (st *Store) Update(fn func(*Settings)) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	fn(&st.committed)
	st.committed.Offsets = st.working
	return st.writeLocked()
}

// WorkingOffsets returns the staged calibration offsets.
func (st *Store) WorkingOffsets() Offsets {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.working
}

// SetWorkingOffsets stages new calibration offsets without persisting.
func (st *Store) SetWorkingOffsets(o Offsets) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.working = o
}

// CommitOffsets folds the working offsets into the aggregate and saves.
func (st *Store) CommitOffsets() error {
	return st.Save()
}

// DiscardOffsets restores the working offsets from the last committed
// aggregate.
func (st *Store) DiscardOffsets() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.working = st.committed.Offsets
}
