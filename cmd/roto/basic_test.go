package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rotolab/roto/pkg/events"
)

func mustEvent(t *testing.T, name string, payload any) events.Event {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return events.Event{Name: name, Data: b}
}

func TestEventText(t *testing.T) {
	assert.Equal(t, "idle -> developing",
		eventText(mustEvent(t, events.ModeChange, events.ModeChangeEvent{From: "idle", To: "developing"})))
	assert.Equal(t, "7m30s",
		eventText(mustEvent(t, events.RunCompleted, events.RunCompletedEvent{DurationMS: 450000})))
	assert.Equal(t, "3 C-41",
		eventText(mustEvent(t, events.ProfileChange, events.ProfileChangeEvent{ID: 3, Process: "C-41"})))
	assert.Equal(t, "(held at target)",
		eventText(mustEvent(t, events.PreheatReady, events.PreheatReadyEvent{})))
	assert.Equal(t, "(fallback timer, sensor invalid)",
		eventText(mustEvent(t, events.PreheatReady, events.PreheatReadyEvent{Fallback: true})))

	// Unknown names fall back to the raw payload.
	raw := events.Event{Name: "something.else", Data: []byte(`{"x":1}`)}
	assert.Equal(t, `{"x":1}`, eventText(raw))
}

func TestParseTiming(t *testing.T) {
	m, s, err := parseTiming("7:30")
	require.NoError(t, err)
	assert.Equal(t, 7, m)
	assert.Equal(t, 30, s)

	m, s, err = parseTiming("12")
	require.NoError(t, err)
	assert.Equal(t, 12, m)
	assert.Equal(t, 0, s)

	_, _, err = parseTiming("7:75")
	assert.Error(t, err)
	_, _, err = parseTiming("100:00")
	assert.Error(t, err)
	_, _, err = parseTiming("x:10")
	assert.Error(t, err)
}
