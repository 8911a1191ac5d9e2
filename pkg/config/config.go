// Package config holds the daemon host configuration: where the machine
// hardware lives, where state files go, and which optional features are
// on. Machine settings edited from the keypad live in pkg/settings, not
// here; this file is written by the administrator, not the operator.
package config

type Config interface {
	// SerialPort is the front-panel MCU device. Ignored in sim mode.
	SerialPort() string
	BaudRate() int

	// SettingsPath is the persisted machine-settings record.
	SettingsPath() string
	// ProfilesPath is the optional user profile catalog (YAML). A missing
	// file is not an error.
	ProfilesPath() string

	AllowNonRootAccess() bool

	// PreheatSchedule is a cron expression for scheduled preheat starts.
	// Empty disables the scheduler.
	PreheatSchedule() string

	// BuzzerPin is the BCM GPIO of a host-attached piezo; 0 means the
	// front-panel beeper is used instead.
	BuzzerPin() int

	// Simulate replaces the hardware with the built-in simulator.
	Simulate() bool

	SetSerialPort(string)
	SetBaudRate(int)
	SetSettingsPath(string)
	SetProfilesPath(string)
	SetAllowNonRootAccess(bool)
	SetPreheatSchedule(string)
	SetBuzzerPin(int)
	SetSimulate(bool)

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error
}
