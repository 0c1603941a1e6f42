package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 50, cfg.MaxCheckpoints)
	require.Equal(t, 50, cfg.Workflow.MaxIterations)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\ncheckpoint_dir: /tmp/cp\nworkflow:\n  maxiterations: 10\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "/tmp/cp", cfg.CheckpointDir)
	require.Equal(t, 10, cfg.Workflow.MaxIterations)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o600))

	t.Setenv("ORCH_LOG_LEVEL", "error")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "error", cfg.LogLevel)
}
