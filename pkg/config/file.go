package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rotolab/roto/pkg/utils/ptr"
)

var defaultFileConfig = &RawFileConfig{
	SerialPort:         ptr.To("/dev/ttyUSB0"),
	BaudRate:           ptr.To(115200),
	SettingsPath:       ptr.To("/var/lib/roto/settings.bin"),
	ProfilesPath:       ptr.To("/etc/roto/profiles.yaml"),
	AllowNonRootAccess: ptr.To(false),
	PreheatSchedule:    ptr.To(""),
	BuzzerPin:          ptr.To(0),
	Simulate:           ptr.To(false),
}

var _ Config = &File{}

// File is the JSON-file backed Config. Absent fields fall back to the
// defaults, so a partial (or empty, or missing) file is always usable.
type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	if err := f.Load(); err != nil {
		return nil, err
	}
	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = defaultFileConfig
	}
	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

type RawFileConfig struct {
	SerialPort         *string `json:"serialPort,omitempty"`
	BaudRate           *int    `json:"baudRate,omitempty"`
	SettingsPath       *string `json:"settingsPath,omitempty"`
	ProfilesPath       *string `json:"profilesPath,omitempty"`
	AllowNonRootAccess *bool   `json:"allowNonRootAccess,omitempty"`
	PreheatSchedule    *string `json:"preheatSchedule,omitempty"`
	BuzzerPin          *int    `json:"buzzerPin,omitempty"`
	Simulate           *bool   `json:"simulate,omitempty"`
}

// value reads a pointer field under the lock, falling back to def when the
// file did not set it. The accessor runs after the lock is taken so a
// concurrent Load swapping f.c can never hand out a stale field.
func value[T any](f *File, field func(*RawFileConfig) *T, def *T) T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.c == nil {
		panic("config is nil")
	}
	if p := field(f.c); p != nil {
		return *p
	}
	return *def
}

// set mutates the current config under the lock, for the same reason.
func (f *File) set(mutate func(*RawFileConfig)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.c == nil {
		panic("config is nil")
	}
	mutate(f.c)
}

func (f *File) SerialPort() string {
	return value(f, func(c *RawFileConfig) *string { return c.SerialPort }, defaultFileConfig.SerialPort)
}

func (f *File) BaudRate() int {
	return value(f, func(c *RawFileConfig) *int { return c.BaudRate }, defaultFileConfig.BaudRate)
}

func (f *File) SettingsPath() string {
	return value(f, func(c *RawFileConfig) *string { return c.SettingsPath }, defaultFileConfig.SettingsPath)
}

func (f *File) ProfilesPath() string {
	return value(f, func(c *RawFileConfig) *string { return c.ProfilesPath }, defaultFileConfig.ProfilesPath)
}

func (f *File) AllowNonRootAccess() bool {
	return value(f, func(c *RawFileConfig) *bool { return c.AllowNonRootAccess }, defaultFileConfig.AllowNonRootAccess)
}

func (f *File) PreheatSchedule() string {
	return value(f, func(c *RawFileConfig) *string { return c.PreheatSchedule }, defaultFileConfig.PreheatSchedule)
}

func (f *File) BuzzerPin() int {
	return value(f, func(c *RawFileConfig) *int { return c.BuzzerPin }, defaultFileConfig.BuzzerPin)
}

func (f *File) Simulate() bool {
	return value(f, func(c *RawFileConfig) *bool { return c.Simulate }, defaultFileConfig.Simulate)
}

func (f *File) SetSerialPort(s string)   { f.set(func(c *RawFileConfig) { c.SerialPort = &s }) }
func (f *File) SetBaudRate(i int)        { f.set(func(c *RawFileConfig) { c.BaudRate = &i }) }
func (f *File) SetSettingsPath(s string) { f.set(func(c *RawFileConfig) { c.SettingsPath = &s }) }
func (f *File) SetProfilesPath(s string) { f.set(func(c *RawFileConfig) { c.ProfilesPath = &s }) }
func (f *File) SetAllowNonRootAccess(b bool) {
	f.set(func(c *RawFileConfig) { c.AllowNonRootAccess = &b })
}
func (f *File) SetPreheatSchedule(s string) { f.set(func(c *RawFileConfig) { c.PreheatSchedule = &s }) }
func (f *File) SetBuzzerPin(i int)          { f.set(func(c *RawFileConfig) { c.BuzzerPin = &i }) }
func (f *File) SetSimulate(b bool)          { f.set(func(c *RawFileConfig) { c.Simulate = &b }) }

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using json.Decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}
	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	if err := json.Unmarshal(b, &conf); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf
	return nil
}

func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f.c); err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}
	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"serialPort":         f.SerialPort(),
		"baudRate":           f.BaudRate(),
		"settingsPath":       f.SettingsPath(),
		"profilesPath":       f.ProfilesPath(),
		"allowNonRootAccess": f.AllowNonRootAccess(),
		"preheatSchedule":    f.PreheatSchedule(),
		"buzzerPin":          f.BuzzerPin(),
		"simulate":           f.Simulate(),
	}
}
