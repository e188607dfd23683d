package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultDerivesFromBoardSize(t *testing.T) {
	cfg := Default(5)
	require.NoError(t, cfg.Validate())
	require.Equal(t, 5, cfg.BoardSize)
	require.Equal(t, ModelValue, cfg.Model)
	require.Equal(t, 25, cfg.TempSteps)
	require.Equal(t, 1024*2*25, cfg.ReplaySize)
	require.Contains(t, cfg.CheckpointPath, "checkpoint_5x5.onnx")
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
board_size: 5
model: ac
workers: 2
episodes: 16
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 5, cfg.BoardSize)
	require.Equal(t, ModelActorCritic, cfg.Model)
	require.Equal(t, 2, cfg.Workers)
	require.Equal(t, 16, cfg.Episodes)

	// Size-derived defaults follow the configured board, not the fallback.
	require.Equal(t, 25, cfg.TempSteps)
	require.Equal(t, 1024*2*25, cfg.ReplaySize)
	require.Contains(t, cfg.CheckpointPath, "5x5")

	// Untouched fields keep their defaults.
	require.Equal(t, 256, cfg.Iterations)
	require.Equal(t, "http://127.0.0.1:8421", cfg.TrainerURL)
}

func TestLoadExplicitWinsOverDerived(t *testing.T) {
	path := writeConfig(t, `
board_size: 5
temp_steps: 9
replay_size: 100
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9, cfg.TempSteps)
	require.Equal(t, 100, cfg.ReplaySize)
}

func TestLoadRejectsUnknownModel(t *testing.T) {
	path := writeConfig(t, "model: transformer\n")
	_, err := Load(path)
	require.ErrorContains(t, err, "unknown model kind")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	for _, tc := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"tiny board", func(c *Config) { c.BoardSize = 1 }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"no iterations", func(c *Config) { c.Iterations = 0 }},
		{"no eval interval", func(c *Config) { c.EvalInterval = 0 }},
		{"no batch size", func(c *Config) { c.BatchSize = 0 }},
		{"negative searches", func(c *Config) { c.Searches = -1 }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default(7)
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
