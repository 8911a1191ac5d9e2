//go:build linux

package hw

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

// openBuzzerLine claims the named BCM GPIO as a digital output through the
// Linux GPIO character device. Line names are "GPIO<n>" on the Pi family;
// every gpiochip present is tried, since kernel variants move the header
// GPIOs between chips.
func openBuzzerLine(pin int) (buzzerLine, error) {
	if pin <= 0 {
		return nil, pkgerrors.Errorf("invalid gpio pin %d", pin)
	}
	lineName := "GPIO" + strconv.Itoa(pin)

	chips := []string{"/dev/gpiochip0"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			chips = append(chips, filepath.Join("/dev", e.Name()))
		}
	}

	for _, chipPath := range chips {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("roto-buzzer"))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpiodLine{chip: chip, line: line}, nil
	}
	return nil, pkgerrors.Errorf("gpio line %q not found (or busy)", lineName)
}

type gpiodLine struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

func (g *gpiodLine) Set(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return g.line.SetValue(v)
}

func (g *gpiodLine) Close() error {
	_ = g.line.SetValue(0)
	err := g.line.Close()
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
