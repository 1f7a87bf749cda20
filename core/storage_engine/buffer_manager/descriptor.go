package buffermanager

import (
	"fmt"

	diskmanager "github.com/sushant-115/bufmgr/core/storage_engine/disk_manager"
	pagemanager "github.com/sushant-115/bufmgr/core/storage_engine/page_manager"
)

// FrameID is the index of a frame in the buffer pool. It never changes for the
// lifetime of the pool.
type FrameID uint32

// frameDesc is the metadata of one frame.
// Invariants: pinCnt > 0 implies valid, dirty implies valid.
type frameDesc struct {
	frameNo FrameID
	// identity of the resident page, nil/InvalidPageID when the frame is invalid
	file   diskmanager.File
	pageNo pagemanager.PageID

	valid  bool
	dirty  bool
	refbit bool // second chance bit, cleared by the clock sweep
	pinCnt uint32

	// bumped on every clear so handles taken before can detect reuse
	epoch uint64
}

// clear resets the frame to invalid. frameNo is left alone.
func (d *frameDesc) clear() {
	d.file = nil
	d.pageNo = pagemanager.InvalidPageID
	d.valid = false
	d.dirty = false
	d.refbit = false
	d.pinCnt = 0
	d.epoch++
}

// set makes the frame hold (file, pageNo), pinned once and referenced.
func (d *frameDesc) set(file diskmanager.File, pageNo pagemanager.PageID) {
	d.file = file
	d.pageNo = pageNo
	d.valid = true
	d.dirty = false
	d.refbit = true
	d.pinCnt = 1
}

// owns reports whether the frame claims to hold a page of file.
func (d *frameDesc) owns(file diskmanager.File) bool {
	return d.file != nil && d.file.ID() == file.ID()
}

func (d *frameDesc) info() FrameInfo {
	fi := FrameInfo{
		Frame:    d.frameNo,
		PageNo:   d.pageNo,
		Valid:    d.valid,
		Dirty:    d.dirty,
		Refbit:   d.refbit,
		PinCount: d.pinCnt,
	}
	if d.file != nil {
		fi.Filename = d.file.Filename()
	}
	return fi
}

// FrameInfo is a read-only snapshot of one frame descriptor.
type FrameInfo struct {
	Frame    FrameID
	Filename string
	PageNo   pagemanager.PageID
	Valid    bool
	Dirty    bool
	Refbit   bool
	PinCount uint32
}

func (fi FrameInfo) String() string {
	if !fi.Valid {
		return "valid:false"
	}
	return fmt.Sprintf("file:%s pageNo:%d valid:%t pinCnt:%d dirty:%t refbit:%t",
		fi.Filename, fi.PageNo, fi.Valid, fi.PinCount, fi.Dirty, fi.Refbit)
}
