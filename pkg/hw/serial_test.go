package hw

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSample(t *testing.T) {
	s, err := parseSample("512,381,x,375,5#")
	require.NoError(t, err)
	assert.Equal(t, 512, s.dial)
	assert.Equal(t, 381, s.readings.Bath.Tenths)
	assert.True(t, s.readings.Bath.Valid)
	assert.False(t, s.readings.Tank.Valid, "x marks an absent probe")
	assert.Equal(t, 375, s.readings.Bottle.Tenths)
	assert.Equal(t, []byte("5#"), s.keys)
}

func TestParseSampleNoKeys(t *testing.T) {
	s, err := parseSample("0,x,x,x,-")
	require.NoError(t, err)
	assert.Empty(t, s.keys)
	assert.False(t, s.readings.Bath.Valid)
}

func TestParseSampleRejectsGarbage(t *testing.T) {
	for _, line := range []string{
		"",
		"512,381,375",        // too few fields
		"2000,381,x,375,-",   // dial out of range
		"-1,381,x,375,-",     // negative dial
		"512,abc,x,375,-",    // non-numeric temperature
		"512,381,x,375,-,extra",
	} {
		_, err := parseSample(line)
		assert.Error(t, err, "line %q", line)
	}
}

func TestSimBoardKeyQueueAndOutputs(t *testing.T) {
	s := NewSimBoard(200)

	_, ok := s.PollKey()
	assert.False(t, ok)

	s.InjectKey('A')
	s.InjectKey('#')
	k, ok := s.PollKey()
	require.True(t, ok)
	assert.Equal(t, byte('A'), k)
	k, _ = s.PollKey()
	assert.Equal(t, byte('#'), k)

	require.NoError(t, s.SetMotor(190, 0))
	cw, ccw := s.MotorOutputs()
	assert.Equal(t, uint8(190), cw)
	assert.Equal(t, uint8(0), ccw)

	require.NoError(t, s.Beep(40))
	assert.Equal(t, []int{40}, s.Beeps())
	assert.Empty(t, s.Beeps(), "reading clears the record")
}

func TestSimBoardPlantWarmsTowardDial(t *testing.T) {
	s := NewSimBoard(200)
	s.SetDial(1023) // setpoint 45.0

	before := s.Readings().Bath.Tenths
	for i := 0; i < 600; i++ { // one simulated minute
		s.StepPlant(100)
	}
	after := s.Readings().Bath.Tenths
	assert.Greater(t, after, before)
	assert.LessOrEqual(t, after, 450)

	// Probes stay ordered: tank and bottle trail the bath.
	r := s.Readings()
	assert.Equal(t, r.Bath.Tenths-2, r.Tank.Tenths)
	assert.Equal(t, r.Bath.Tenths-5, r.Bottle.Tenths)
}
