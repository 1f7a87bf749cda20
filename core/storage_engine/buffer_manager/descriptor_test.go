package buffermanager

import (
	"testing"

	"github.com/stretchr/testify/require"

	diskmanager "github.com/sushant-115/bufmgr/core/storage_engine/disk_manager"
)

func TestFrameDesc_SetAndClear(t *testing.T) {
	f := diskmanager.NewMemFile("desc.db", testPageSize)
	d := frameDesc{frameNo: 5}

	d.set(f, 9)
	require.True(t, d.valid)
	require.True(t, d.refbit)
	require.False(t, d.dirty)
	require.Equal(t, uint32(1), d.pinCnt)
	require.True(t, d.owns(f))
	require.False(t, d.owns(diskmanager.NewMemFile("desc.db", testPageSize)))

	d.dirty = true
	epoch := d.epoch
	d.clear()
	require.Equal(t, FrameID(5), d.frameNo)
	require.Nil(t, d.file)
	require.False(t, d.valid)
	require.False(t, d.dirty)
	require.False(t, d.refbit)
	require.Zero(t, d.pinCnt)
	require.Equal(t, epoch+1, d.epoch)
	require.False(t, d.owns(f))
}

func TestFrameInfo_String(t *testing.T) {
	f := diskmanager.NewMemFile("info.db", testPageSize)
	d := frameDesc{frameNo: 2}
	require.Equal(t, "valid:false", d.info().String())

	d.set(f, 4)
	require.Equal(t, "file:info.db pageNo:4 valid:true pinCnt:1 dirty:false refbit:true", d.info().String())
}
