package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	var cfg *Config

	assert.Equal(t, 100.0, cfg.GetPulseStart())
	assert.Equal(t, 3.0, cfg.GetPulseDuration())
	assert.Equal(t, 0.0, cfg.GetPulseBaseline())
	assert.Equal(t, 1.0, cfg.GetPulseMagnitude())
	assert.False(t, cfg.GetPulseSensitive())
	assert.Equal(t, 400.0, cfg.GetSimulationDuration())
	assert.Equal(t, 1.0, cfg.GetDT())
	assert.Equal(t, 1.0, cfg.GetTimescale())
}

func TestLoadConfigPartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pulse_duration": 5, "dt": 0.5}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5.0, cfg.GetPulseDuration())
	assert.Equal(t, 0.5, cfg.GetDT())
	// Omitted fields fall back to defaults.
	assert.Equal(t, 100.0, cfg.GetPulseStart())
	assert.Equal(t, 400.0, cfg.GetSimulationDuration())
}

func TestLoadConfigRejectsNonJSON(t *testing.T) {
	_, err := LoadConfig("config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".json")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
