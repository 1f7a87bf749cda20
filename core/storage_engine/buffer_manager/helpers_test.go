package buffermanager

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	diskmanager "github.com/sushant-115/bufmgr/core/storage_engine/disk_manager"
	pagemanager "github.com/sushant-115/bufmgr/core/storage_engine/page_manager"
)

const testPageSize = 64

// setupBufMgr creates a buffer manager with numFrames frames and a memory file
// holding numPages allocated pages (numbered 1..numPages).
func setupBufMgr(t *testing.T, numFrames, numPages int) (*BufMgr, *diskmanager.MemFile) {
	t.Helper()
	bm, err := New(Config{NumFrames: numFrames, PageSize: testPageSize}, zaptest.NewLogger(t), nil)
	require.NoError(t, err)
	return bm, newTestFile(t, "test.db", numPages)
}

func newTestFile(t *testing.T, name string, numPages int) *diskmanager.MemFile {
	t.Helper()
	f := diskmanager.NewMemFile(name, testPageSize)
	for i := 0; i < numPages; i++ {
		_, err := f.AllocatePage()
		require.NoError(t, err)
	}
	return f
}

// readAndUnpin loads the page and drops the pin right away.
func readAndUnpin(t *testing.T, bm *BufMgr, f diskmanager.File, pageNo pagemanager.PageID) FrameID {
	t.Helper()
	h, err := bm.ReadPage(f, pageNo)
	require.NoError(t, err)
	require.NoError(t, h.Release(false))
	return h.Frame()
}

func frameOf(t *testing.T, bm *BufMgr, f diskmanager.File, pageNo pagemanager.PageID) (FrameID, bool) {
	t.Helper()
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.directory.lookup(f.ID(), pageNo)
}

// requireConsistent checks the descriptor invariants and that the page directory is
// exactly the inverse of the valid frames.
func requireConsistent(t *testing.T, bm *BufMgr) {
	t.Helper()
	bm.mu.Lock()
	defer bm.mu.Unlock()
	valid := 0
	for i := range bm.descTable {
		d := &bm.descTable[i]
		require.Equal(t, FrameID(i), d.frameNo)
		if d.pinCnt > 0 {
			require.True(t, d.valid, "pinned frame %d is invalid", i)
		}
		if d.dirty {
			require.True(t, d.valid, "dirty frame %d is invalid", i)
		}
		if !d.valid {
			require.Nil(t, d.file)
			continue
		}
		valid++
		frame, ok := bm.directory.lookup(d.file.ID(), d.pageNo)
		require.True(t, ok, "valid frame %d has no directory entry", i)
		require.Equal(t, d.frameNo, frame)
		require.Equal(t, d.pageNo, bm.bufPool[i].GetPageID())
	}
	require.Equal(t, valid, bm.directory.size())
}
