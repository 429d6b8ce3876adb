package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "hysteresis", cfg.Program)
	assert.Equal(t, "llg-heun", cfg.Integrator)
	assert.Positive(t, cfg.System.Dt)
	assert.Equal(t, -cfg.Sweep.HMax, cfg.Sweep.HMin)
	require.NoError(t, cfg.Validate())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
program: hysteresis
integrator: midpoint
sweep:
  h_min: -0.5
  h_max: 0.5
  h_inc: 0.05
checkpoint:
  store: sqlite
  path: ckpt.db
  load: true
  continue: true
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "midpoint", cfg.Integrator)
	assert.Equal(t, 0.05, cfg.Sweep.HInc)
	assert.Equal(t, uint64(DefaultLoopTime), cfg.Sweep.LoopTime)
	assert.Equal(t, DefaultSpins, cfg.System.Spins)
	assert.Equal(t, "sqlite", cfg.Checkpoint.Store)
	assert.True(t, cfg.Checkpoint.Continue)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("system: [1, 2"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	cfg := GetPreset("hysteresis", "thermal")
	require.NotNil(t, cfg)

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"one spin", func(c *Config) { c.System.Spins = 1 }},
		{"zero moment", func(c *Config) { c.System.Moment = 0 }},
		{"zero dt", func(c *Config) { c.System.Dt = 0 }},
		{"negative temperature", func(c *Config) { c.System.Temperature = -1 }},
		{"fraction above one", func(c *Config) { c.System.ConstrainedFraction = 1.5 }},
		{"negative workers", func(c *Config) { c.Backend.Workers = -2 }},
		{"demag without rate", func(c *Config) { c.Hooks.Demag.Enabled = true; c.Hooks.Demag.Rate = 0 }},
		{"unknown store", func(c *Config) { c.Checkpoint.Store = "s3" }},
		{"continue without load", func(c *Config) { c.Checkpoint.Continue = true }},
		{"continuous without rate", func(c *Config) { c.Checkpoint.Continuous = true; c.Checkpoint.SaveRate = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mut(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestGetPreset(t *testing.T) {
	cfg := GetPreset("hysteresis", "quick")
	require.NotNil(t, cfg)
	assert.Equal(t, 16, cfg.System.Spins)
	require.NoError(t, cfg.Validate())

	cfg.System.Spins = 3
	assert.Equal(t, 16, GetPreset("hysteresis", "quick").System.Spins, "presets are copied")
}

func TestGetPreset_NotFound(t *testing.T) {
	assert.Nil(t, GetPreset("hysteresis", "nonexistent"))
	assert.Nil(t, GetPreset("nonexistent", "quick"))
}

func TestListPresets(t *testing.T) {
	assert.Equal(t, []string{"demag", "fine", "monte-carlo", "quick", "thermal"}, ListPresets("hysteresis"))
	assert.Nil(t, ListPresets("nonexistent"))
	assert.Equal(t, []string{"benchmark", "hysteresis", "time-series"}, ListPrograms())
}

func TestPresets_AllValid(t *testing.T) {
	for program, presets := range Presets {
		for name, cfg := range presets {
			assert.NoError(t, cfg.Validate(), "%s/%s", program, name)
		}
	}
}
