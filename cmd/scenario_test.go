package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/attune/internal/config"
)

const gradientScenario = `
user_id: u1
start: 2026-03-01T10:00:00Z
steps:
  - at: 0s
    snapshot:
      topic: Gradient Descent
      help_requested: true
      user_message: why does the learning rate matter?
  - at: 20s
    reply: it controls how big each step is
  - at: 40s
    close: true
`

func TestParseScenario(t *testing.T) {
	sc, err := parseScenario([]byte(gradientScenario))
	require.NoError(t, err)

	assert.Equal(t, "u1", sc.UserID)
	require.Len(t, sc.Steps, 3)
	assert.Equal(t, []string{"snapshot", "reply", "close"},
		[]string{sc.Steps[0].kind(), sc.Steps[1].kind(), sc.Steps[2].kind()})

	snap := sc.Steps[0].Snapshot
	require.NotNil(t, snap)
	assert.Equal(t, "u1", snap.UserID)
	assert.Equal(t, 1.0, snap.TypingSpeedRatio, "omitted fields keep the neutral baseline")
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), snap.Timestamp)
	assert.Equal(t, 20*time.Second, sc.Steps[1].At)
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"no steps", "user_id: u1\n", "no steps"},
		{"two actions", "steps:\n  - reply: hi\n    close: true\n", "exactly one"},
		{"no action", "steps:\n  - at: 1s\n", "exactly one"},
		{"out of order", "steps:\n  - at: 5s\n    close: true\n  - at: 1s\n    close: true\n", "before the previous"},
		{"unknown field", "steps:\n  - shout: hi\n", "shout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseScenario([]byte(tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSimulate(t *testing.T) {
	sc, err := parseScenario([]byte(gradientScenario))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, simulate(context.Background(), &out, config.Default(), sc, nil, nil))

	got := out.String()
	assert.Contains(t, got, "intervene (explicit_request)")
	assert.Contains(t, got, "user_closed")
	assert.Contains(t, got, "gradient_descent")
	assert.Equal(t, 1, strings.Count(got, "Scenario"))
}

const cooldownScenario = `
user_id: u1
start: 2026-03-01T10:00:00Z
steps:
  - at: 0s
    snapshot: &struggling
      screen_content: Minimise the loss with gradient descent and a learning rate of 0.1
      typing_speed_ratio: 0.3
      deletion_rate: 0.7
      pause_duration: 25
      scroll_back_count: 5
  - at: 10s
    snapshot: *struggling
  - at: 45s
    snapshot: *struggling
`

func TestSimulate_ReplaysScenarioTime(t *testing.T) {
	sc, err := parseScenario([]byte(cooldownScenario))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, simulate(context.Background(), &out, config.Default(), sc, nil, nil))

	got := out.String()
	assert.Equal(t, 2, strings.Count(got, "intervene (confusion)"), got)
	assert.Equal(t, 1, strings.Count(got, "hold (cooldown)"), got)
}
