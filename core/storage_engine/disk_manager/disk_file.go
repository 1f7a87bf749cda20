package diskmanager

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	pagemanager "github.com/sushant-115/bufmgr/core/storage_engine/page_manager"
)

const (
	DBMagic          uint32 = 0x42554647 // "BUFG"
	dbFileVersion    uint32 = 1
	dbFileHeaderSize        = 64
	slotHeaderSize          = 16

	slotUsed uint32 = 1 << 0
)

// DBFileHeader is stored at offset 0 of every DiskFile.
// All fields have fixed sizes so binary.Read/Write produce exactly dbFileHeaderSize bytes.
type DBFileHeader struct {
	Magic    uint32
	Version  uint32
	PageSize uint32
	NumSlots uint32 // pages ever allocated, deleted ones included
	FileID   [16]byte
	_        [dbFileHeaderSize - (4*4 + 16)]byte
}

// Options tunes a DiskFile.
type Options struct {
	// SyncWrites fsyncs the file after every page write.
	SyncWrites bool `yaml:"sync_writes"`
	// WriteBytesPerSec throttles page writes. Zero disables throttling.
	WriteBytesPerSec int64 `yaml:"write_bytes_per_sec"`
}

// DiskFile is a File stored in a single OS file: a header block followed by one slot
// per allocated page. Each slot is a 16 byte slot header (page number, flags, xxhash64
// of the payload) followed by the payload. Deleted slots are never reused.
type DiskFile struct {
	filePath string
	file     *os.File
	pageSize int
	opts     Options
	logger   *zap.Logger
	limiter  *rate.Limiter

	id       uuid.UUID
	numSlots uint32
	used     []bool // indexed by pageNo-1
	counters ioCounters
	mu       sync.Mutex
}

// NewDiskFile prepares a DiskFile. Call OpenOrCreate before using it.
func NewDiskFile(filePath string, pageSize int, opts Options, logger *zap.Logger) *DiskFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	df := &DiskFile{
		filePath: filePath,
		pageSize: pageSize,
		opts:     opts,
		logger:   logger.With(zap.String("file", filePath)),
	}
	if opts.WriteBytesPerSec > 0 {
		burst := max(int(opts.WriteBytesPerSec), df.slotSize())
		df.limiter = rate.NewLimiter(rate.Limit(opts.WriteBytesPerSec), burst)
	}
	return df
}

// OpenOrCreate opens an existing file or creates a new one.
// The 'create' flag determines behavior if the file doesn't exist or already exists.
func (df *DiskFile) OpenOrCreate(create bool) error {
	df.mu.Lock()
	defer df.mu.Unlock()

	_, statErr := os.Stat(df.filePath)
	switch {
	case os.IsNotExist(statErr):
		if !create {
			return fmt.Errorf("%w: %s", ErrDBFileNotFound, df.filePath)
		}
		file, err := os.OpenFile(df.filePath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
		if err != nil {
			return fmt.Errorf("%w: creating file %s: %v", ErrIO, df.filePath, err)
		}
		df.file = file
		df.id = uuid.New()
		df.numSlots = 0
		df.used = nil
		if err := df.writeHeader(); err != nil {
			_ = file.Close()
			df.file = nil
			_ = os.Remove(df.filePath)
			return fmt.Errorf("failed to write initial header: %w", err)
		}
		if err := file.Sync(); err != nil {
			return fmt.Errorf("%w: syncing new file %s: %v", ErrIO, df.filePath, err)
		}
		df.logger.Debug("created database file", zap.String("fileID", df.id.String()), zap.Int("pageSize", df.pageSize))
		return nil

	case statErr == nil:
		if create {
			return fmt.Errorf("%w: %s", ErrDBFileExists, df.filePath)
		}
		file, err := os.OpenFile(df.filePath, os.O_RDWR, 0o666)
		if err != nil {
			return fmt.Errorf("%w: opening file %s: %v", ErrIO, df.filePath, err)
		}
		df.file = file
		if err := df.loadHeader(); err != nil {
			_ = file.Close()
			df.file = nil
			return err
		}
		if err := df.scanSlots(); err != nil {
			_ = file.Close()
			df.file = nil
			return err
		}
		df.logger.Debug("opened database file",
			zap.String("fileID", df.id.String()),
			zap.Uint32("slots", df.numSlots),
		)
		return nil

	default:
		return fmt.Errorf("%w: stating file %s: %v", ErrIO, df.filePath, statErr)
	}
}

func (df *DiskFile) writeHeader() error {
	header := DBFileHeader{
		Magic:    DBMagic,
		Version:  dbFileVersion,
		PageSize: uint32(df.pageSize),
		NumSlots: df.numSlots,
		FileID:   df.id,
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("serializing header: %w", err)
	}
	if _, err := df.file.WriteAt(buf.Bytes(), 0); err != nil {
		return fmt.Errorf("%w: writing header: %v", ErrIO, err)
	}
	return nil
}

func (df *DiskFile) loadHeader() error {
	data := make([]byte, dbFileHeaderSize)
	n, err := df.file.ReadAt(data, 0)
	if err != nil && !(errors.Is(err, io.EOF) && n == dbFileHeaderSize) {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: header too short (%d bytes)", ErrInvalidFileHeader, n)
		}
		return fmt.Errorf("%w: reading header: %v", ErrIO, err)
	}
	var header DBFileHeader
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFileHeader, err)
	}
	if header.Magic != DBMagic {
		return fmt.Errorf("%w: magic 0x%x", ErrInvalidFileHeader, header.Magic)
	}
	if header.PageSize != uint32(df.pageSize) {
		return fmt.Errorf("%w: file uses %d byte pages, configured %d", ErrPageSizeMismatch, header.PageSize, df.pageSize)
	}
	df.id = header.FileID
	df.numSlots = header.NumSlots
	return nil
}

func (df *DiskFile) scanSlots() error {
	df.used = make([]bool, df.numSlots)
	hdr := make([]byte, slotHeaderSize)
	for i := uint32(0); i < df.numSlots; i++ {
		pageNo := pagemanager.PageID(i + 1)
		if _, err := df.file.ReadAt(hdr, df.slotOffset(pageNo)); err != nil {
			return fmt.Errorf("%w: reading slot header %d: %v", ErrIO, pageNo, err)
		}
		df.used[i] = binary.LittleEndian.Uint32(hdr[4:8])&slotUsed != 0
	}
	return nil
}

func (df *DiskFile) slotSize() int { return slotHeaderSize + df.pageSize }

func (df *DiskFile) slotOffset(pageNo pagemanager.PageID) int64 {
	return dbFileHeaderSize + int64(pageNo-1)*int64(df.slotSize())
}

func (df *DiskFile) exists(pageNo pagemanager.PageID) bool {
	return pageNo != pagemanager.InvalidPageID && uint32(pageNo) <= df.numSlots && df.used[pageNo-1]
}

func (df *DiskFile) throttle(n int) error {
	if df.limiter == nil {
		return nil
	}
	if err := df.limiter.WaitN(context.Background(), n); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	return nil
}

func (df *DiskFile) writeSlot(pageNo pagemanager.PageID, flags uint32, data []byte) error {
	slot := make([]byte, df.slotSize())
	binary.LittleEndian.PutUint32(slot[0:4], uint32(pageNo))
	binary.LittleEndian.PutUint32(slot[4:8], flags)
	binary.LittleEndian.PutUint64(slot[8:16], xxhash.Sum64(data))
	copy(slot[slotHeaderSize:], data)

	if err := df.throttle(len(slot)); err != nil {
		return err
	}
	if _, err := df.file.WriteAt(slot, df.slotOffset(pageNo)); err != nil {
		return fmt.Errorf("%w: writing page %d: %v", ErrIO, pageNo, err)
	}
	if df.opts.SyncWrites {
		if err := df.file.Sync(); err != nil {
			return fmt.Errorf("%w: syncing page %d: %v", ErrIO, pageNo, err)
		}
	}
	return nil
}

func (df *DiskFile) ID() uuid.UUID    { return df.id }
func (df *DiskFile) Filename() string { return df.filePath }
func (df *DiskFile) PageSize() int    { return df.pageSize }

// Stats returns the number of successful backing-store calls since the file was opened.
func (df *DiskFile) Stats() IOStats { return df.counters.snapshot() }

// NumPages returns the number of live (allocated and not deleted) pages.
func (df *DiskFile) NumPages() int {
	df.mu.Lock()
	defer df.mu.Unlock()
	n := 0
	for _, u := range df.used {
		if u {
			n++
		}
	}
	return n
}

// ReadPage reads a page and verifies its checksum.
func (df *DiskFile) ReadPage(pageNo pagemanager.PageID) (*pagemanager.Page, error) {
	df.mu.Lock()
	defer df.mu.Unlock()
	if df.file == nil {
		return nil, ErrFileNotOpen
	}
	if !df.exists(pageNo) {
		return nil, fmt.Errorf("%w: %s page %d", ErrPageNotFound, df.filePath, pageNo)
	}
	slot := make([]byte, df.slotSize())
	n, err := df.file.ReadAt(slot, df.slotOffset(pageNo))
	if err != nil && !(errors.Is(err, io.EOF) && n == len(slot)) {
		return nil, fmt.Errorf("%w: reading page %d: %v", ErrIO, pageNo, err)
	}
	if stored := pagemanager.PageID(binary.LittleEndian.Uint32(slot[0:4])); stored != pageNo {
		return nil, fmt.Errorf("%w: slot %d holds page %d", ErrCorruptPage, pageNo, stored)
	}
	data := slot[slotHeaderSize:]
	if sum := binary.LittleEndian.Uint64(slot[8:16]); sum != xxhash.Sum64(data) {
		return nil, fmt.Errorf("%w: page %d", ErrChecksumMismatch, pageNo)
	}
	p := pagemanager.NewPage(pageNo, df.pageSize)
	p.SetData(data)
	df.counters.reads.Add(1)
	return p, nil
}

// WritePage writes p to the slot of its own page number.
func (df *DiskFile) WritePage(p *pagemanager.Page) error {
	df.mu.Lock()
	defer df.mu.Unlock()
	if df.file == nil {
		return ErrFileNotOpen
	}
	if p.Size() != df.pageSize {
		return fmt.Errorf("%w: page %d has %d bytes, file uses %d", ErrPageSizeMismatch, p.GetPageID(), p.Size(), df.pageSize)
	}
	if !df.exists(p.GetPageID()) {
		return fmt.Errorf("%w: %s page %d", ErrPageNotFound, df.filePath, p.GetPageID())
	}
	if err := df.writeSlot(p.GetPageID(), slotUsed, p.GetData()); err != nil {
		return err
	}
	df.counters.writes.Add(1)
	return nil
}

// AllocatePage extends the file by one zeroed page.
func (df *DiskFile) AllocatePage() (*pagemanager.Page, error) {
	df.mu.Lock()
	defer df.mu.Unlock()
	if df.file == nil {
		return nil, ErrFileNotOpen
	}
	p := pagemanager.NewPage(pagemanager.PageID(df.numSlots+1), df.pageSize)
	if err := df.writeSlot(p.GetPageID(), slotUsed, p.GetData()); err != nil {
		return nil, fmt.Errorf("extending file for new page %d: %w", p.GetPageID(), err)
	}
	df.numSlots++
	df.used = append(df.used, true)
	if err := df.writeHeader(); err != nil {
		return nil, err
	}
	df.counters.allocs.Add(1)
	return p, nil
}

// DeletePage clears the used flag of the page's slot. The slot is not reused.
func (df *DiskFile) DeletePage(pageNo pagemanager.PageID) error {
	df.mu.Lock()
	defer df.mu.Unlock()
	if df.file == nil {
		return ErrFileNotOpen
	}
	if !df.exists(pageNo) {
		return fmt.Errorf("%w: %s page %d", ErrPageNotFound, df.filePath, pageNo)
	}
	flags := make([]byte, 4)
	if _, err := df.file.WriteAt(flags, df.slotOffset(pageNo)+4); err != nil {
		return fmt.Errorf("%w: deleting page %d: %v", ErrIO, pageNo, err)
	}
	df.used[pageNo-1] = false
	df.counters.deletes.Add(1)
	return nil
}

// Sync flushes all buffered data to disk.
func (df *DiskFile) Sync() error {
	df.mu.Lock()
	defer df.mu.Unlock()
	if df.file != nil {
		return df.file.Sync()
	}
	return nil
}

// Close syncs and closes the underlying file handle.
func (df *DiskFile) Close() error {
	df.mu.Lock()
	defer df.mu.Unlock()
	if df.file == nil {
		return nil
	}
	if err := df.file.Sync(); err != nil {
		df.logger.Warn("sync on close failed", zap.Error(err))
	}
	closeErr := df.file.Close()
	df.file = nil
	return closeErr
}
