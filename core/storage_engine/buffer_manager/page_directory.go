package buffermanager

import (
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	pagemanager "github.com/sushant-115/bufmgr/core/storage_engine/page_manager"
)

// pageKey identifies a page on disk.
type pageKey struct {
	fileID uuid.UUID
	pageNo pagemanager.PageID
}

// pageDirectory maps resident pages to the frame holding them.
// It holds exactly one entry per valid frame.
type pageDirectory struct {
	table *xsync.MapOf[pageKey, FrameID]
}

// newPageDirectory sizes the table once so it never grows while the pool runs.
func newPageDirectory(numFrames int) *pageDirectory {
	presize := int(float64(numFrames)*1.2) + 1
	return &pageDirectory{
		table: xsync.NewMapOf[pageKey, FrameID](xsync.WithPresize(presize)),
	}
}

func (d *pageDirectory) insert(fileID uuid.UUID, pageNo pagemanager.PageID, frame FrameID) error {
	if _, loaded := d.table.LoadOrStore(pageKey{fileID, pageNo}, frame); loaded {
		return ErrDuplicateEntry
	}
	return nil
}

// remove reports whether an entry was present.
func (d *pageDirectory) remove(fileID uuid.UUID, pageNo pagemanager.PageID) bool {
	_, loaded := d.table.LoadAndDelete(pageKey{fileID, pageNo})
	return loaded
}

func (d *pageDirectory) lookup(fileID uuid.UUID, pageNo pagemanager.PageID) (FrameID, bool) {
	return d.table.Load(pageKey{fileID, pageNo})
}

func (d *pageDirectory) size() int {
	return d.table.Size()
}

func (d *pageDirectory) reset() {
	d.table.Clear()
}
