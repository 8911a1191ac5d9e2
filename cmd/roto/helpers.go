package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotolab/roto/pkg/version"
)

// parseTiming accepts "m:ss" or a bare minute count.
func parseTiming(arg string) (minutes, seconds int, err error) {
	m, s, found := strings.Cut(arg, ":")
	minutes, err = strconv.Atoi(m)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minutes %q: %v", m, err)
	}
	if found {
		seconds, err = strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid seconds %q: %v", s, err)
		}
	}

	if minutes < 0 || minutes > 99 {
		return 0, 0, fmt.Errorf("minutes must be 0-99, got %d", minutes)
	}
	if seconds < 0 || seconds > 59 {
		return 0, 0, fmt.Errorf("seconds must be 0-59, got %d", seconds)
	}

	return minutes, seconds, nil
}

// getVersion returns the client version and the daemon version.
func getVersion() (string, string, error) {
	daemonVersion, err := apiClient.GetVersion()
	if err != nil {
		return version.Version, "", err
	}
	return version.Version, daemonVersion, nil
}
