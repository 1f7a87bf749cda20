package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	buffermanager "github.com/sushant-115/bufmgr/core/storage_engine/buffer_manager"
	diskmanager "github.com/sushant-115/bufmgr/core/storage_engine/disk_manager"
)

// setupShell returns a shell over a small pool plus the buffer it prints to and
// the recorder collecting its spans.
func setupShell(t *testing.T, numFrames int) (*shell, *bytes.Buffer, *tracetest.SpanRecorder) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	bm, err := buffermanager.New(buffermanager.Config{NumFrames: numFrames, PageSize: 64}, logger, nil)
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	var out bytes.Buffer
	sh := newShell(bm, filepath.Join(t.TempDir(), "data"), diskmanager.Options{}, logger, tp.Tracer("shell-test"), &out)
	return sh, &out, recorder
}

func run(t *testing.T, sh *shell, line string) error {
	t.Helper()
	return sh.processCommand(context.Background(), strings.Fields(line))
}

func TestShell_InMemoryRoundTrip(t *testing.T) {
	sh, out, _ := setupShell(t, 2)

	require.NoError(t, run(t, sh, "mem t"))
	require.NoError(t, run(t, sh, "alloc t"))
	require.Contains(t, out.String(), "allocated page 1 in frame 0")
	require.NoError(t, run(t, sh, "unpin t 1"))

	require.NoError(t, run(t, sh, "write t 1 hello buffer"))
	require.NoError(t, run(t, sh, "flush t"))

	out.Reset()
	require.NoError(t, run(t, sh, "read t 1"))
	require.Contains(t, out.String(), `"hello buffer"`)

	out.Reset()
	require.NoError(t, run(t, sh, "stats"))
	require.Equal(t, "frames:2 valid:1 pinned:1 dirty:0 directory:1 clockHand:1\n", out.String())

	out.Reset()
	require.NoError(t, run(t, sh, "print"))
	require.Contains(t, out.String(), "Total Number of Valid Frames:1")

	require.NoError(t, run(t, sh, "dispose t 1"))
	require.ErrorIs(t, run(t, sh, "read t 1"), diskmanager.ErrPageNotFound)
}

func TestShell_DiskFileBackup(t *testing.T) {
	sh, out, _ := setupShell(t, 2)

	require.NoError(t, run(t, sh, "open pages"))
	require.NoError(t, run(t, sh, "alloc pages"))
	require.NoError(t, run(t, sh, "unpin pages 1 dirty"))
	require.NoError(t, run(t, sh, "write pages 1 durable"))
	require.NoError(t, run(t, sh, "flushall"))

	backup := filepath.Join(t.TempDir(), "pages.db")
	require.NoError(t, run(t, sh, "backup pages "+backup))
	require.Zero(t, sh.bm.Stats().ValidFrames)
	require.NoError(t, sh.close())

	again, out2, _ := setupShell(t, 2)
	again.dataDir = filepath.Dir(backup)
	require.NoError(t, run(t, again, "open pages"))
	require.Contains(t, out2.String(), "(1 pages)")
	require.NoError(t, run(t, again, "read pages 1"))
	require.Contains(t, out2.String(), `"durable"`)
	require.NoError(t, again.close())
	require.Contains(t, out.String(), "backed up pages")
}

func TestShell_Errors(t *testing.T) {
	sh, _, recorder := setupShell(t, 1)

	require.ErrorContains(t, run(t, sh, "read nope 1"), "not open")
	require.ErrorContains(t, run(t, sh, "bogus"), "unknown command")
	require.NoError(t, run(t, sh, "mem t"))
	require.ErrorContains(t, run(t, sh, "mem t"), "already open")
	require.ErrorContains(t, run(t, sh, "read t x"), "invalid page number")
	require.ErrorContains(t, run(t, sh, "write t 1"), "usage")
	require.ErrorContains(t, run(t, sh, "backup t out.db"), "not on disk")

	require.NoError(t, run(t, sh, "alloc t"))
	require.ErrorIs(t, run(t, sh, "alloc t"), buffermanager.ErrBufferExceeded)
	require.ErrorIs(t, run(t, sh, "flush t"), buffermanager.ErrPagePinned)
	require.NoError(t, run(t, sh, "unpin t 1"))
	require.ErrorIs(t, run(t, sh, "unpin t 1"), buffermanager.ErrPageNotPinned)

	require.ErrorIs(t, run(t, sh, "quit"), errExit)

	var failed int
	for _, span := range recorder.Ended() {
		if len(span.Events()) > 0 {
			failed++
		}
	}
	require.Equal(t, 9, failed)
}

func TestShell_Help(t *testing.T) {
	sh, out, recorder := setupShell(t, 1)
	require.NoError(t, run(t, sh, "help"))
	require.Contains(t, out.String(), "flushall")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, "bufmgr.shell.help", spans[0].Name())
}
