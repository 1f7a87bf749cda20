package buffermanager

import (
	"fmt"

	diskmanager "github.com/sushant-115/bufmgr/core/storage_engine/disk_manager"
	pagemanager "github.com/sushant-115/bufmgr/core/storage_engine/page_manager"
)

// PageHandle is a borrowed reference to a pinned page. It is valid until it is
// released or the frame is cleared (DisposePage, Close). A handle is owned by a
// single caller and is not safe for concurrent use.
type PageHandle struct {
	bm       *BufMgr
	file     diskmanager.File
	pageNo   pagemanager.PageID
	frame    FrameID
	epoch    uint64
	released bool
}

func (h *PageHandle) PageNo() pagemanager.PageID { return h.pageNo }
func (h *PageHandle) Frame() FrameID              { return h.frame }
func (h *PageHandle) File() diskmanager.File      { return h.file }

// Page returns the payload held in the frame. The returned page must not be used
// after the handle is released.
func (h *PageHandle) Page() (*pagemanager.Page, error) {
	h.bm.mu.Lock()
	defer h.bm.mu.Unlock()
	if err := h.checkLocked(); err != nil {
		return nil, err
	}
	return h.bm.bufPool[h.frame], nil
}

// Release unpins the page once. dirty marks the page as modified.
func (h *PageHandle) Release(dirty bool) error {
	h.bm.mu.Lock()
	defer h.bm.mu.Unlock()
	if err := h.checkLocked(); err != nil {
		return err
	}
	if err := h.bm.unpinLocked(h.file, h.pageNo, dirty); err != nil {
		return err
	}
	h.released = true
	return nil
}

func (h *PageHandle) checkLocked() error {
	if h.bm.closed {
		return ErrBufMgrClosed
	}
	if h.released {
		return fmt.Errorf("%w: page %d already released", ErrStaleHandle, h.pageNo)
	}
	if h.bm.descTable[h.frame].epoch != h.epoch {
		return fmt.Errorf("%w: frame %d was reused", ErrStaleHandle, h.frame)
	}
	return nil
}
