package common

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"
)

func TestCopyThrottled(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.db")
	dst := filepath.Join(dir, "dst.db")

	// spans more than one chunk
	payload := bytes.Repeat([]byte("page"), chunkSize/2)
	require.NoError(t, os.WriteFile(src, payload, 0o644))
	require.NoError(t, os.WriteFile(dst, []byte("stale contents that must be truncated"), 0o644))

	sum, err := CopyThrottled(context.Background(), src, dst, 0)
	require.NoError(t, err)
	require.Equal(t, xxhash.Sum64(payload), sum)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestCopyThrottled_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := CopyThrottled(context.Background(), filepath.Join(dir, "missing"), filepath.Join(dir, "out"), 0)
	require.ErrorIs(t, err, os.ErrNotExist)

	src := filepath.Join(dir, "src.db")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = CopyThrottled(ctx, src, filepath.Join(dir, "out"), 1)
	require.ErrorIs(t, err, context.Canceled)
}
