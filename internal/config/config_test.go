package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 100*time.Millisecond, cfg.ScanInterval())
	assert.Equal(t, 600, cfg.CycleLengthScans)
	assert.Zero(t, cfg.FaultProbability)
	assert.True(t, cfg.AutoEnable)
	assert.Equal(t, 5*time.Second, cfg.CoordinatorPoll())
	assert.Equal(t, 10*time.Second, cfg.ArchiverPoll())
	assert.Equal(t, "device_diagnostics", cfg.HistorianMeasurement)
	assert.Equal(t, time.Hour, cfg.ReadingsLookback())
	assert.Equal(t, 100, cfg.ReadingsDefaultLimit)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("SCAN_INTERVAL_MS", "250")
	t.Setenv("FAULT_PROBABILITY", "0.001")
	t.Setenv("AUTO_ENABLE", "false")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.ScanInterval())
	assert.InDelta(t, 0.001, cfg.FaultProbability, 1e-9)
	assert.False(t, cfg.AutoEnable)
}
