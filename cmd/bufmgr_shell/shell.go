package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	buffermanager "github.com/sushant-115/bufmgr/core/storage_engine/buffer_manager"
	"github.com/sushant-115/bufmgr/core/storage_engine/common"
	diskmanager "github.com/sushant-115/bufmgr/core/storage_engine/disk_manager"
	pagemanager "github.com/sushant-115/bufmgr/core/storage_engine/page_manager"
)

// errExit is returned by processCommand when the user asks to leave.
var errExit = errors.New("exit requested")

// shell drives one buffer manager from text commands. Files are referred to by
// the name they were opened under.
type shell struct {
	bm       *buffermanager.BufMgr
	dataDir  string
	diskOpts diskmanager.Options
	logger   *zap.Logger
	tracer   trace.Tracer
	out      io.Writer

	files map[string]diskmanager.File
	disks []*diskmanager.DiskFile
}

func newShell(bm *buffermanager.BufMgr, dataDir string, diskOpts diskmanager.Options, logger *zap.Logger, tracer trace.Tracer, out io.Writer) *shell {
	return &shell{
		bm:       bm,
		dataDir:  dataDir,
		diskOpts: diskOpts,
		logger:   logger,
		tracer:   tracer,
		out:      out,
		files:    make(map[string]diskmanager.File),
	}
}

// processCommand runs a single command inside its own span.
func (s *shell) processCommand(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("no command provided")
	}
	command := strings.ToLower(args[0])

	ctx, span := s.tracer.Start(ctx, "bufmgr.shell."+command,
		trace.WithAttributes(attribute.StringSlice("bufmgr.args", args[1:])))
	defer span.End()

	err := s.dispatch(ctx, command, args[1:])
	if err != nil && !errors.Is(err, errExit) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *shell) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "open":
		if len(args) != 1 {
			return errors.New("usage: open <name>")
		}
		return s.openDisk(args[0])
	case "mem":
		if len(args) != 1 {
			return errors.New("usage: mem <name>")
		}
		if _, ok := s.files[args[0]]; ok {
			return fmt.Errorf("file %q is already open", args[0])
		}
		s.files[args[0]] = diskmanager.NewMemFile(args[0], s.bm.PageSize())
		fmt.Fprintf(s.out, "opened in-memory file %s\n", args[0])
		return nil
	case "alloc":
		if len(args) != 1 {
			return errors.New("usage: alloc <name>")
		}
		f, err := s.file(args[0])
		if err != nil {
			return err
		}
		pageNo, h, err := s.bm.AllocPage(f)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "allocated page %d in frame %d (pinned)\n", pageNo, h.Frame())
		return nil
	case "read":
		if len(args) != 2 {
			return errors.New("usage: read <name> <page>")
		}
		f, pageNo, err := s.filePage(args[0], args[1])
		if err != nil {
			return err
		}
		h, err := s.bm.ReadPage(f, pageNo)
		if err != nil {
			return err
		}
		p, err := h.Page()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "page %d frame %d (pinned): %q\n", pageNo, h.Frame(), printable(p.GetData()))
		return nil
	case "write":
		if len(args) < 3 {
			return errors.New("usage: write <name> <page> <text>")
		}
		f, pageNo, err := s.filePage(args[0], args[1])
		if err != nil {
			return err
		}
		h, err := s.bm.ReadPage(f, pageNo)
		if err != nil {
			return err
		}
		p, err := h.Page()
		if err != nil {
			return err
		}
		n := p.SetData([]byte(strings.Join(args[2:], " ")))
		if err := h.Release(true); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "wrote %d bytes to page %d\n", n, pageNo)
		return nil
	case "unpin":
		if len(args) < 2 || len(args) > 3 {
			return errors.New("usage: unpin <name> <page> [dirty]")
		}
		f, pageNo, err := s.filePage(args[0], args[1])
		if err != nil {
			return err
		}
		dirty := len(args) == 3 && strings.EqualFold(args[2], "dirty")
		if err := s.bm.UnpinPage(f, pageNo, dirty); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "unpinned page %d\n", pageNo)
		return nil
	case "flush":
		if len(args) != 1 {
			return errors.New("usage: flush <name>")
		}
		f, err := s.file(args[0])
		if err != nil {
			return err
		}
		if err := s.bm.FlushFile(f); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "flushed %s\n", args[0])
		return nil
	case "flushall":
		if err := s.bm.FlushAll(); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "flushed all dirty pages")
		return nil
	case "dispose":
		if len(args) != 2 {
			return errors.New("usage: dispose <name> <page>")
		}
		f, pageNo, err := s.filePage(args[0], args[1])
		if err != nil {
			return err
		}
		if err := s.bm.DisposePage(f, pageNo); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "disposed page %d\n", pageNo)
		return nil
	case "backup":
		if len(args) != 2 {
			return errors.New("usage: backup <name> <dest>")
		}
		return s.backup(ctx, args[0], args[1])
	case "stats":
		st := s.bm.Stats()
		fmt.Fprintf(s.out, "frames:%d valid:%d pinned:%d dirty:%d directory:%d clockHand:%d\n",
			st.NumFrames, st.ValidFrames, st.PinnedFrames, st.DirtyFrames, st.DirectoryEntries, st.ClockHand)
		return nil
	case "print":
		s.bm.PrintSelf(s.out)
		return nil
	case "help":
		fmt.Fprintln(s.out, "Commands:")
		fmt.Fprintln(s.out, "  open <name>                  open or create <data_dir>/<name>.db")
		fmt.Fprintln(s.out, "  mem <name>                   create an in-memory file")
		fmt.Fprintln(s.out, "  alloc <name>                 allocate a page, left pinned")
		fmt.Fprintln(s.out, "  read <name> <page>           pin a page and show its contents")
		fmt.Fprintln(s.out, "  write <name> <page> <text>   store text in a page")
		fmt.Fprintln(s.out, "  unpin <name> <page> [dirty]")
		fmt.Fprintln(s.out, "  flush <name>")
		fmt.Fprintln(s.out, "  flushall")
		fmt.Fprintln(s.out, "  dispose <name> <page>")
		fmt.Fprintln(s.out, "  backup <name> <dest>         flush a disk file and copy it")
		fmt.Fprintln(s.out, "  stats")
		fmt.Fprintln(s.out, "  print")
		fmt.Fprintln(s.out, "  help")
		fmt.Fprintln(s.out, "  exit / quit")
		return nil
	case "exit", "quit":
		return errExit
	default:
		return fmt.Errorf("unknown command %q, type 'help' for a list of commands", command)
	}
}

func (s *shell) openDisk(name string) error {
	if _, ok := s.files[name]; ok {
		return fmt.Errorf("file %q is already open", name)
	}
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir %s: %w", s.dataDir, err)
	}
	path := filepath.Join(s.dataDir, name+".db")
	df := diskmanager.NewDiskFile(path, s.bm.PageSize(), s.diskOpts, s.logger)
	err := df.OpenOrCreate(false)
	if errors.Is(err, diskmanager.ErrDBFileNotFound) {
		err = df.OpenOrCreate(true)
	}
	if err != nil {
		return err
	}
	s.files[name] = df
	s.disks = append(s.disks, df)
	fmt.Fprintf(s.out, "opened %s (%d pages)\n", path, df.NumPages())
	return nil
}

// backup evicts the file's pages from the pool and copies the synced file to dest
// at the configured write rate.
func (s *shell) backup(ctx context.Context, name, dest string) error {
	f, err := s.file(name)
	if err != nil {
		return err
	}
	df, ok := f.(*diskmanager.DiskFile)
	if !ok {
		return fmt.Errorf("file %q is not on disk", name)
	}
	if err := s.bm.FlushFile(df); err != nil {
		return err
	}
	if err := df.Sync(); err != nil {
		return err
	}
	sum, err := common.CopyThrottled(ctx, df.Filename(), dest, s.diskOpts.WriteBytesPerSec)
	if err != nil {
		return fmt.Errorf("failed to back up %s: %w", name, err)
	}
	s.logger.Info("file backed up", zap.String("file", df.Filename()), zap.String("dest", dest), zap.Uint64("xxhash", sum))
	fmt.Fprintf(s.out, "backed up %s to %s (xxhash %016x)\n", name, dest, sum)
	return nil
}

func (s *shell) file(name string) (diskmanager.File, error) {
	f, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("file %q is not open", name)
	}
	return f, nil
}

func (s *shell) filePage(name, page string) (diskmanager.File, pagemanager.PageID, error) {
	f, err := s.file(name)
	if err != nil {
		return nil, 0, err
	}
	n, err := strconv.ParseUint(page, 10, 32)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid page number %q: %w", page, err)
	}
	return f, pagemanager.PageID(n), nil
}

// close writes back the pool and closes every disk file.
func (s *shell) close() error {
	err := s.bm.Close()
	for _, df := range s.disks {
		err = multierr.Append(err, df.Close())
	}
	return err
}

// printable trims the zero padding of a page payload.
func printable(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data)
}
