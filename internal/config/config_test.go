package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// The genai client's dependencies start an opencensus worker at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	eng := Default().Engine()
	assert.Equal(t, 30*time.Second, eng.Scheduler.Cooldown)
	assert.Equal(t, 12, eng.Limits.MaxTurns)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attune.yaml")
	writeFile(t, path, `
server:
  addr: ":9090"
scheduler:
  cooldown: 45s
  stuck_count: 4
fusion:
  threshold: 0.6
dialogue:
  limits:
    max_turns: 8
feed:
  url: http://localhost:8000/context/latest
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 45*time.Second, cfg.Scheduler.Cooldown)
	assert.Equal(t, 4, cfg.Scheduler.StuckCount)
	assert.Equal(t, 0.6, cfg.Fusion.Threshold)
	assert.Equal(t, 8, cfg.Dialogue.Limits.MaxTurns)
	assert.Equal(t, 8*time.Second, cfg.Feed.Interval, "unset fields keep defaults")
	assert.Equal(t, 0.30, cfg.Fusion.Weights.Content)
}

func TestLoad_RejectsUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attune.yaml")
	writeFile(t, path, "scheduler:\n  cooldwn: 10s\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "cooldwn")
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attune.yaml")
	writeFile(t, path, "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Scheduler, cfg.Scheduler)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ATTUNE_SCHEDULER_COOLDOWN", "10s")
	t.Setenv("ATTUNE_FUSION_WEIGHTS_TYPING", "0.12")
	t.Setenv("ATTUNE_DIALOGUE_LIMITS_STREAK_THRESHOLD", "0.75")
	t.Setenv("ATTUNE_SERVER_ALLOWED_ORIGINS", "[http://a.test, http://b.test]")
	t.Setenv("ATTUNE_DB", "/tmp/attune-test.db")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Scheduler.Cooldown)
	assert.Equal(t, 0.75, cfg.Dialogue.Limits.StreakThreshold)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "/tmp/attune-test.db", cfg.DB)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("ATTUNE_SCHEDULER_COOLDOWN", "soon")
	_, err := Load("")
	assert.ErrorContains(t, err, "ATTUNE_SCHEDULER_COOLDOWN")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Server.Addr = ""
	cfg.Scheduler.StuckCount = 0
	cfg.Fusion.Threshold = 1.5
	cfg.Dialogue.Limits.MaxTurns = 1

	err := cfg.Validate()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 4)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attune.yaml")
	writeFile(t, path, "scheduler:\n  cooldown: 30s\n")

	got := make(chan Config, 4)
	w := NewWatcher(path, func(_ context.Context, cfg Config) error {
		got <- cfg
		return nil
	}, nil)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	// An invalid edit is rejected; the following valid one is applied.
	require.Eventually(t, func() bool {
		writeFile(t, path, "scheduler:\n  stuck_count: 0\n")
		time.Sleep(30 * time.Millisecond)
		writeFile(t, path, "scheduler:\n  cooldown: 5s\n")
		select {
		case cfg := <-got:
			return cfg.Scheduler.Cooldown == 5*time.Second
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "x.yaml", Path("x.yaml"))
	t.Setenv("ATTUNE_CONFIG", "/etc/attune.yaml")
	assert.Equal(t, "/etc/attune.yaml", Path(""))
}

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.LLM.Anthropic.APIKey = "sk-ant-secret"
	red := cfg.Redacted()
	assert.Equal(t, "<redacted>", red.LLM.Anthropic.APIKey)
	assert.Empty(t, red.LLM.OpenAI.APIKey)
	assert.Equal(t, "sk-ant-secret", cfg.LLM.Anthropic.APIKey, "original must be untouched")
}
