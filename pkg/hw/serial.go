package hw

import (
	"bufio"
	"context"
	"strconv"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"

	"github.com/rotolab/roto/pkg/thermal"
)

const (
	// DefaultBaudRate matches the front-panel MCU firmware.
	DefaultBaudRate = 115200

	keyQueueSize = 16
)

// SerialBoard talks to the front-panel MCU over a line protocol.
//
// MCU to host, one sample line per firmware poll cycle:
//
//	dial,bath,tank,bottle,keys
//
// dial is the raw 10-bit pot reading; each temperature is tenths of a
// degree or "x" for an absent/faulted probe; keys is the run of keypad
// symbols pressed since the previous line, "-" when none. Example:
//
//	512,381,x,375,5#
//
// Host to MCU, one command per line: "M<cw>,<ccw>" for the H-bridge
// duty pair, "L0"/"L1" for the backlight, "B<ms>" for the beeper.
type SerialBoard struct {
	port string
	baud int

	conn serial.Port

	// writeMu serializes command writes; stateMu guards the sampled
	// inputs.
	writeMu sync.Mutex
	stateMu sync.RWMutex

	readings thermal.Readings
	dial     int
	keys     chan byte

	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// NewSerialBoard prepares a board on the named port. Connect must be
// called before use.
func NewSerialBoard(port string, baud int) *SerialBoard {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SerialBoard{
		port:   port,
		baud:   baud,
		keys:   make(chan byte, keyQueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Ports lists the serial ports visible on the host.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list serial ports")
	}
	return ports, nil
}

// Connect opens the port and starts the sample reader.
func (b *SerialBoard) Connect() error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	if b.connected {
		return pkgerrors.New("already connected")
	}

	conn, err := serial.Open(b.port, &serial.Mode{BaudRate: b.baud})
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open serial port %s", b.port)
	}
	b.conn = conn
	b.connected = true

	go b.readLoop()

	logrus.WithFields(logrus.Fields{"port": b.port, "baud": b.baud}).
		Info("front-panel board connected")
	return nil
}

func (b *SerialBoard) Close() error {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	if !b.connected {
		return nil
	}
	b.cancel()
	if b.conn != nil {
		if err := b.conn.Close(); err != nil {
			logrus.WithError(err).Warn("error closing serial port")
		}
		b.conn = nil
	}
	b.connected = false
	return nil
}

func (b *SerialBoard) PollKey() (byte, bool) {
	select {
	case k := <-b.keys:
		return k, true
	default:
		return 0, false
	}
}

func (b *SerialBoard) Readings() thermal.Readings {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.readings
}

func (b *SerialBoard) Dial() int {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.dial
}

func (b *SerialBoard) SetMotor(cw, ccw uint8) error {
	return b.writeCmd("M" + strconv.Itoa(int(cw)) + "," + strconv.Itoa(int(ccw)))
}

func (b *SerialBoard) SetBacklight(on bool) error {
	if on {
		return b.writeCmd("L1")
	}
	return b.writeCmd("L0")
}

func (b *SerialBoard) Beep(ms int) error {
	if ms < 0 {
		ms = 0
	}
	// B0 tells the MCU to silence an active beep.
	return b.writeCmd("B" + strconv.Itoa(ms))
}

func (b *SerialBoard) writeCmd(cmd string) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if b.conn == nil {
		return pkgerrors.New("not connected")
	}
	if _, err := b.conn.Write([]byte(cmd + "\n")); err != nil {
		return pkgerrors.Wrapf(err, "failed to send command %q", cmd)
	}
	return nil
}

func (b *SerialBoard) readLoop() {
	scanner := bufio.NewScanner(b.conn)
	for scanner.Scan() {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s, err := parseSample(line)
		if err != nil {
			logrus.WithError(err).WithField("line", line).Debug("bad sample line")
			continue
		}

		b.stateMu.Lock()
		b.readings = s.readings
		b.dial = s.dial
		b.stateMu.Unlock()

		for _, k := range s.keys {
			select {
			case b.keys <- k:
			default:
				logrus.Warn("key queue full, dropping keypress")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		logrus.WithError(err).Warn("serial read stopped")
	}
}

type sample struct {
	dial     int
	readings thermal.Readings
	keys     []byte
}

func parseSample(line string) (sample, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 5 {
		return sample{}, pkgerrors.Errorf("expected 5 fields, got %d", len(parts))
	}

	dial, err := strconv.Atoi(parts[0])
	if err != nil || dial < 0 || dial > 1023 {
		return sample{}, pkgerrors.Errorf("bad dial value %q", parts[0])
	}

	var r thermal.Readings
	for i, dst := range []*thermal.Reading{&r.Bath, &r.Tank, &r.Bottle} {
		f := parts[1+i]
		if f == "x" {
			continue
		}
		t, err := strconv.Atoi(f)
		if err != nil {
			return sample{}, pkgerrors.Errorf("bad temperature %q", f)
		}
		*dst = thermal.Reading{Tenths: t, Valid: true}
	}

	var keys []byte
	if parts[4] != "-" {
		for i := 0; i < len(parts[4]); i++ {
			keys = append(keys, parts[4][i])
		}
	}
	return sample{dial: dial, readings: r, keys: keys}, nil
}
