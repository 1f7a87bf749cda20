package diskmanager

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	pagemanager "github.com/sushant-115/bufmgr/core/storage_engine/page_manager"
)

// MemFile is a File kept entirely in memory. Page numbers are assigned from 1 and are
// never reused after DeletePage.
type MemFile struct {
	id       uuid.UUID
	name     string
	pageSize int

	mu       sync.Mutex
	pages    map[pagemanager.PageID][]byte
	nextPage pagemanager.PageID
	writeErr error
	counters ioCounters
}

// NewMemFile creates an empty in-memory file.
func NewMemFile(name string, pageSize int) *MemFile {
	return &MemFile{
		id:       uuid.New(),
		name:     name,
		pageSize: pageSize,
		pages:    make(map[pagemanager.PageID][]byte),
		nextPage: 1,
	}
}

func (f *MemFile) ID() uuid.UUID    { return f.id }
func (f *MemFile) Filename() string { return f.name }
func (f *MemFile) PageSize() int    { return f.pageSize }

// Stats returns the number of successful backing-store calls so far.
func (f *MemFile) Stats() IOStats { return f.counters.snapshot() }

// SetWriteError makes every following WritePage fail with err. A nil err restores
// normal behaviour.
func (f *MemFile) SetWriteError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// PageData returns a copy of what is currently stored for pageNo.
func (f *MemFile) PageData(pageNo pagemanager.PageID) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.pages[pageNo]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

func (f *MemFile) ReadPage(pageNo pagemanager.PageID) (*pagemanager.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.pages[pageNo]
	if !ok {
		return nil, fmt.Errorf("%w: %s page %d", ErrPageNotFound, f.name, pageNo)
	}
	p := pagemanager.NewPage(pageNo, f.pageSize)
	p.SetData(data)
	f.counters.reads.Add(1)
	return p, nil
}

func (f *MemFile) WritePage(p *pagemanager.Page) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return fmt.Errorf("%w: writing %s page %d: %v", ErrIO, f.name, p.GetPageID(), f.writeErr)
	}
	if p.Size() != f.pageSize {
		return fmt.Errorf("%w: page %d has %d bytes, file uses %d", ErrPageSizeMismatch, p.GetPageID(), p.Size(), f.pageSize)
	}
	data, ok := f.pages[p.GetPageID()]
	if !ok {
		return fmt.Errorf("%w: %s page %d", ErrPageNotFound, f.name, p.GetPageID())
	}
	copy(data, p.GetData())
	f.counters.writes.Add(1)
	return nil
}

func (f *MemFile) AllocatePage() (*pagemanager.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pageNo := f.nextPage
	f.nextPage++
	f.pages[pageNo] = make([]byte, f.pageSize)
	f.counters.allocs.Add(1)
	return pagemanager.NewPage(pageNo, f.pageSize), nil
}

func (f *MemFile) DeletePage(pageNo pagemanager.PageID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pages[pageNo]; !ok {
		return fmt.Errorf("%w: %s page %d", ErrPageNotFound, f.name, pageNo)
	}
	delete(f.pages, pageNo)
	f.counters.deletes.Add(1)
	return nil
}
