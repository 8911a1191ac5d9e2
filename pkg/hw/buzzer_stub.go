//go:build !linux

package hw

import pkgerrors "github.com/pkg/errors"

// Stub for platforms without the Linux GPIO character device.
func openBuzzerLine(pin int) (buzzerLine, error) {
	return nil, pkgerrors.New("gpio buzzer unsupported on this platform")
}
