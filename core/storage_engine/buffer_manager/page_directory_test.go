package buffermanager

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestPageDirectory_InsertLookupRemove(t *testing.T) {
	dir := newPageDirectory(4)
	fileA, fileB := uuid.New(), uuid.New()

	_, ok := dir.lookup(fileA, 1)
	require.False(t, ok)

	require.NoError(t, dir.insert(fileA, 1, 3))
	require.NoError(t, dir.insert(fileB, 1, 0))
	require.ErrorIs(t, dir.insert(fileA, 1, 2), ErrDuplicateEntry)

	frame, ok := dir.lookup(fileA, 1)
	require.True(t, ok)
	require.Equal(t, FrameID(3), frame)
	require.Equal(t, 2, dir.size())

	require.True(t, dir.remove(fileA, 1))
	require.False(t, dir.remove(fileA, 1))
	_, ok = dir.lookup(fileA, 1)
	require.False(t, ok)

	frame, ok = dir.lookup(fileB, 1)
	require.True(t, ok)
	require.Equal(t, FrameID(0), frame)

	dir.reset()
	require.Zero(t, dir.size())
}
