package buffermanager

import (
	"fmt"
	"io"
)

// BufferStats summarises the pool.
type BufferStats struct {
	NumFrames        int
	ValidFrames      int
	PinnedFrames     int
	DirtyFrames      int
	DirectoryEntries int
	ClockHand        FrameID
}

// Frames returns a snapshot of every frame descriptor in frame order.
func (bm *BufMgr) Frames() []FrameInfo {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	frames := make([]FrameInfo, len(bm.descTable))
	for i := range bm.descTable {
		frames[i] = bm.descTable[i].info()
	}
	return frames
}

// Stats returns current buffer pool statistics.
func (bm *BufMgr) Stats() BufferStats {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	stats := BufferStats{
		NumFrames:        bm.numBufs,
		DirectoryEntries: bm.directory.size(),
		ClockHand:        bm.clockHand,
	}
	for i := range bm.descTable {
		d := &bm.descTable[i]
		if d.valid {
			stats.ValidFrames++
		}
		if d.pinCnt > 0 {
			stats.PinnedFrames++
		}
		if d.dirty {
			stats.DirtyFrames++
		}
	}
	return stats
}

// PrintSelf writes one line per frame followed by the number of valid frames.
func (bm *BufMgr) PrintSelf(w io.Writer) {
	validFrames := 0
	for _, fi := range bm.Frames() {
		fmt.Fprintf(w, "FrameNo:%d %s\n", fi.Frame, fi)
		if fi.Valid {
			validFrames++
		}
	}
	fmt.Fprintf(w, "Total Number of Valid Frames:%d\n", validFrames)
}
