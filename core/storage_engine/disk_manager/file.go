package diskmanager

import (
	"errors"
	"sync/atomic"

	"github.com/google/uuid"

	pagemanager "github.com/sushant-115/bufmgr/core/storage_engine/page_manager"
)

// --- Error Definitions ---

var (
	ErrIO                = errors.New("i/o error")
	ErrPageNotFound      = errors.New("page does not exist in file")
	ErrChecksumMismatch  = errors.New("page checksum mismatch, data corruption suspected")
	ErrCorruptPage       = errors.New("page slot is corrupted")
	ErrDBFileExists      = errors.New("database file already exists")
	ErrDBFileNotFound    = errors.New("database file not found")
	ErrInvalidFileHeader = errors.New("invalid database file header")
	ErrPageSizeMismatch  = errors.New("page size mismatch")
	ErrFileNotOpen       = errors.New("file not open")
)

// File is the backing store the buffer manager reads pages from and writes them back to.
// Implementations must make WritePage durable before returning when the caller relies on
// dirty pages surviving eviction.
type File interface {
	// ID is the stable identity of the file. It is part of the page directory key.
	ID() uuid.UUID
	// Filename is used for reporting.
	Filename() string
	PageSize() int
	// ReadPage returns a copy of the page. It fails with ErrPageNotFound when the page
	// was never allocated or has been deleted.
	ReadPage(pageNo pagemanager.PageID) (*pagemanager.Page, error)
	// WritePage overwrites the page stored under p's own page number.
	WritePage(p *pagemanager.Page) error
	// AllocatePage creates a zeroed page and returns it with its assigned number.
	AllocatePage() (*pagemanager.Page, error)
	DeletePage(pageNo pagemanager.PageID) error
}

// IOStats counts the backing-store calls that completed successfully.
type IOStats struct {
	Reads   uint64
	Writes  uint64
	Allocs  uint64
	Deletes uint64
}

type ioCounters struct {
	reads   atomic.Uint64
	writes  atomic.Uint64
	allocs  atomic.Uint64
	deletes atomic.Uint64
}

func (c *ioCounters) snapshot() IOStats {
	return IOStats{
		Reads:   c.reads.Load(),
		Writes:  c.writes.Load(),
		Allocs:  c.allocs.Load(),
		Deletes: c.deletes.Load(),
	}
}
