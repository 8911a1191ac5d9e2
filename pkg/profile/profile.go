// Package profile holds the chemistry profile catalog. Profiles are
// immutable at runtime: the built-in catalog is append-only, and a user
// catalog file may only add entries after it.
package profile

import (
	"os"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Profile is one catalog entry. Temperatures and offsets are in tenths of
// a degree (integer = degrees x 10).
type Profile struct {
	// ID is the catalog identifier used by the profile-jump input
	// sequence. It is distinct from the entry's index in the catalog and
	// the two must never be conflated.
	ID int `yaml:"id" json:"id"`
	// Process is the label shown to the operator, e.g. "C-41".
	Process string `yaml:"process" json:"process"`
	// TargetTenths is the process temperature target.
	TargetTenths int `yaml:"target_tenths" json:"targetTenths"`
	// Tank is the drum/tank code the profile was timed for.
	Tank string `yaml:"tank" json:"tank"`
	// VolumeML is the chemistry volume per bath.
	VolumeML int `yaml:"volume_ml" json:"volumeMl"`
	// PourCoolTenths compensates the initial cooling when chemistry is
	// poured into a colder drum.
	PourCoolTenths int `yaml:"pour_cool_tenths" json:"pourCoolTenths"`
	// MinPreheatSec is the minimum preheat hold before readiness may latch.
	MinPreheatSec int `yaml:"min_preheat_sec" json:"minPreheatSec"`
	// BoostTenths is an optional additive offset for push processing.
	BoostTenths int `yaml:"boost_tenths,omitempty" json:"boostTenths,omitempty"`
}

// builtin is the factory catalog. Order matters: the active profile is
// persisted by index.
var builtin = []Profile{
	{ID: 1, Process: "B&W 20C", TargetTenths: 200, Tank: "1510", VolumeML: 250, PourCoolTenths: 4, MinPreheatSec: 120},
	{ID: 2, Process: "B&W 24C", TargetTenths: 240, Tank: "1510", VolumeML: 250, PourCoolTenths: 5, MinPreheatSec: 180},
	{ID: 3, Process: "C-41", TargetTenths: 378, Tank: "1520", VolumeML: 500, PourCoolTenths: 12, MinPreheatSec: 600, BoostTenths: 2},
	{ID: 4, Process: "E-6 FD", TargetTenths: 380, Tank: "1520", VolumeML: 500, PourCoolTenths: 12, MinPreheatSec: 600, BoostTenths: 3},
	{ID: 5, Process: "E-6 CD", TargetTenths: 380, Tank: "1520", VolumeML: 500, PourCoolTenths: 10, MinPreheatSec: 600},
	{ID: 8, Process: "RA-4", TargetTenths: 350, Tank: "2830", VolumeML: 100, PourCoolTenths: 8, MinPreheatSec: 300},
	{ID: 11, Process: "B&W paper", TargetTenths: 200, Tank: "2830", VolumeML: 100, PourCoolTenths: 3, MinPreheatSec: 60},
	{ID: 14, Process: "ECN-2", TargetTenths: 413, Tank: "1520", VolumeML: 500, PourCoolTenths: 14, MinPreheatSec: 600},
	{ID: 15, Process: "C-41 press", TargetTenths: 378, Tank: "2520", VolumeML: 600, PourCoolTenths: 13, MinPreheatSec: 600, BoostTenths: 2},
}

// Catalog is an ordered, read-only set of profiles.
type Catalog struct {
	entries []Profile
}

// Builtin returns the factory catalog.
func Builtin() *Catalog {
	return &Catalog{entries: builtin}
}

// LoadWithUser returns the factory catalog with the entries from the given
// YAML file appended. A missing file is not an error; the factory catalog
// is returned as-is.
func LoadWithUser(path string) (*Catalog, error) {
	c := Builtin()
	if path == "" {
		return c, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, pkgerrors.Wrapf(err, "failed to read profile catalog %s", path)
	}

	var user struct {
		Profiles []Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(b, &user); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to parse profile catalog %s", path)
	}

	out := make([]Profile, 0, len(builtin)+len(user.Profiles))
	out = append(out, builtin...)
	for _, p := range user.Profiles {
		if p.ID <= 0 {
			return nil, pkgerrors.Errorf("profile %q has invalid id %d", p.Process, p.ID)
		}
		if _, ok := (&Catalog{entries: out}).ByID(p.ID); ok {
			return nil, pkgerrors.Errorf("profile id %d already exists in catalog", p.ID)
		}
		out = append(out, p)
	}
	return &Catalog{entries: out}, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }

// ByIndex returns the entry at the given catalog position. Out-of-range
// indices fall back to entry 0 so a stale persisted index can never leave
// the system without an active profile.
func (c *Catalog) ByIndex(i int) Profile {
	if i < 0 || i >= len(c.entries) {
		return c.entries[0]
	}
	return c.entries[i]
}

// ByID looks an entry up by its catalog identifier and returns its index.
// This is the addressing scheme used by the profile-jump sequence; it is
// intentionally separate from index addressing.
func (c *Catalog) ByID(id int) (int, bool) {
	for i, p := range c.entries {
		if p.ID == id {
			return i, true
		}
	}
	return 0, false
}

// All returns a copy of the entries for listing.
func (c *Catalog) All() []Profile {
	out := make([]Profile, len(c.entries))
	copy(out, c.entries)
	return out
}

// Next returns the index after i, wrapping around.
func (c *Catalog) Next(i int) int {
	if len(c.entries) == 0 {
		return 0
	}
	return (i + 1) % len(c.entries)
}

// Prev returns the index before i, wrapping around.
func (c *Catalog) Prev(i int) int {
	if len(c.entries) == 0 {
		return 0
	}
	return (i - 1 + len(c.entries)) % len(c.entries)
}
