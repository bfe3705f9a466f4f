package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.LogDir)
	assert.Equal(t, 500*time.Millisecond, cfg.Monitor.UpdateFrequency.Std())
	assert.Equal(t, 5*time.Second, cfg.Monitor.SaveFrequency.Std())
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
log_dir: /data/runs
machine_name: trainbox
monitor:
  update_frequency: 250ms
  save_frequency: 10s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/runs", cfg.LogDir)
	assert.Equal(t, "trainbox", cfg.MachineName)
	assert.Equal(t, 250*time.Millisecond, cfg.Monitor.UpdateFrequency.Std())
	assert.Equal(t, 10*time.Second, cfg.Monitor.SaveFrequency.Std())
}

func TestLoad_NumericFrequenciesAreSeconds(t *testing.T) {
	path := writeConfig(t, `
monitor:
  update_frequency: 0.5
  save_frequency: 5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Monitor.UpdateFrequency.Std())
	assert.Equal(t, 5*time.Second, cfg.Monitor.SaveFrequency.Std())
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `log_dir: runs`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "runs", cfg.LogDir)
	assert.Equal(t, 500*time.Millisecond, cfg.Monitor.UpdateFrequency.Std())
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
monitor:
  update_frequency: soon
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_NonPositiveFrequency(t *testing.T) {
	path := writeConfig(t, `
monitor:
  update_frequency: -1s
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLobbyDir(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.LobbyDir(), "no log dir means no lobby, persistence disabled")

	cfg.LogDir = filepath.Join("data", "runs")
	assert.Equal(t, filepath.Join("data", "runs", "lobby"), cfg.LobbyDir())
}
