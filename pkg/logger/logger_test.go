package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bufmgr.log")
	log, err := New(Config{Level: "warn", Format: "json", OutputFile: path})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept")
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "kept", entry["msg"])
	require.Equal(t, "WARN", entry["level"])
	require.Equal(t, "bufmgr", entry["service"])
}

func TestNew_CustomServiceAndBadLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shell.log")
	log, err := New(Config{Level: "loud", Format: "console", OutputFile: path, Service: "shell"})
	require.NoError(t, err)

	log.Debug("below info")
	log.Info("at info")
	require.NoError(t, log.Sync())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "below info")
	require.Contains(t, string(raw), "at info")
	require.Contains(t, string(raw), `"service": "shell"`)
}

func TestNew_UnwritableOutput(t *testing.T) {
	_, err := New(Config{OutputFile: filepath.Join(t.TempDir(), "missing", "x.log")})
	require.Error(t, err)
}
