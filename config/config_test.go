package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bufmgr.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
page_size: 4096
buffer_pool:
  num_frames: 8
disk:
  sync_writes: true
  write_bytes_per_sec: 1048576
logger:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 4096, cfg.PageSize)
	require.Equal(t, 8, cfg.BufferPool.NumFrames)
	require.True(t, cfg.Disk.SyncWrites)
	require.Equal(t, int64(1<<20), cfg.Disk.WriteBytesPerSec)
	require.Equal(t, "debug", cfg.Logger.Level)
	// untouched keys keep their defaults
	require.Equal(t, "console", cfg.Logger.Format)
	require.Equal(t, "data", cfg.DataDir)
	require.Equal(t, "bufmgr", cfg.Telemetry.ServiceName)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "page_size: [1, 2]"))
	require.ErrorContains(t, err, "failed to parse config")

	_, err = Load(writeConfig(t, "page_size: 0\nbuffer_pool:\n  num_frames: -1\n"))
	require.ErrorContains(t, err, "page_size must be positive")
	require.ErrorContains(t, err, "num_frames must be positive")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Disk.WriteBytesPerSec = -1
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.ServiceName = ""

	err := cfg.Validate()
	require.Len(t, multierr.Errors(err), 2)
}
