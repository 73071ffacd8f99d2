package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.Level = "loud"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Format = "xml"
	assert.Error(t, bad.Validate())
}

func TestNew_WritesJSONFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.File = filepath.Join(t.TempDir(), "attune.log")
	cfg.Compress = false

	log, err := New(cfg)
	require.NoError(t, err)
	log.Named("engine").Info("intervening", zap.String("topic", "calculus"))
	log.Debug("dropped below level")
	_ = log.Sync()

	f, err := os.Open(cfg.File)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 1)
	assert.Equal(t, "intervening", lines[0]["msg"])
	assert.Equal(t, "engine", lines[0]["logger"])
	assert.Equal(t, "calculus", lines[0]["topic"])
	assert.Contains(t, lines[0], "timestamp")
}

func TestNew_RejectsBadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "nope"
	_, err := New(cfg)
	assert.Error(t, err)
}
