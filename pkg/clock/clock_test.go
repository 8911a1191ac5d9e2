package clock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeadlineFiresOnce(t *testing.T) {
	var d Deadline
	d.Arm(100)

	assert.False(t, d.Expired(99))
	assert.True(t, d.Expired(100))
	assert.False(t, d.Expired(101), "one-shot: second query must not fire")
}

func TestDeadlineCancel(t *testing.T) {
	var d Deadline
	d.Arm(50)
	d.Cancel()
	assert.False(t, d.Expired(1000))
}

func TestDeadlineZeroValueDisarmed(t *testing.T) {
	var d Deadline
	assert.False(t, d.Armed())
	assert.False(t, d.Expired(0))
}

func TestIntervalRateLimits(t *testing.T) {
	iv := NewInterval(200)

	require.True(t, iv.Due(0), "first call primes and fires")
	assert.False(t, iv.Due(100))
	assert.False(t, iv.Due(199))
	assert.True(t, iv.Due(200))
	assert.False(t, iv.Due(399))
	assert.True(t, iv.Due(400))
}

func TestIntervalNoCatchUpBurst(t *testing.T) {
	iv := NewInterval(100)
	require.True(t, iv.Due(0))

	// Loop stalls for a whole second: exactly one fire, then the schedule
	// restarts from the current tick.
	assert.True(t, iv.Due(1000))
	assert.False(t, iv.Due(1050))
	assert.True(t, iv.Due(1100))
}

func TestIntervalReset(t *testing.T) {
	iv := NewInterval(500)
	require.True(t, iv.Due(0))
	iv.Reset()
	assert.True(t, iv.Due(1))
}

func TestRemainingClampsToZero(t *testing.T) {
	assert.Equal(t, Ticks(40), Remaining(100, 60))
	assert.Equal(t, Ticks(0), Remaining(100, 100))
	assert.Equal(t, Ticks(0), Remaining(100, 500))
}

func TestManualNeverMovesBackwards(t *testing.T) {
	m := NewManual(100)
	m.Set(50)
	assert.Equal(t, Ticks(100), m.Now())
	m.Advance(25)
	assert.Equal(t, Ticks(125), m.Now())
}
