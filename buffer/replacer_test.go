package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gojodb/storagecore/internal/kernelerrors"
)

func TestLRUKReplacer_EvictsInfiniteDistanceFirst(t *testing.T) {
	r := NewLRUKReplacer(6, 2, nil, nil)

	require.NoError(t, r.RecordAccess(1))
	require.NoError(t, r.RecordAccess(2))
	require.NoError(t, r.RecordAccess(3))
	require.NoError(t, r.RecordAccess(4))
	require.NoError(t, r.RecordAccess(5))
	require.NoError(t, r.RecordAccess(1))

	for _, id := range []FrameID{1, 2, 3, 4} {
		require.NoError(t, r.SetEvictable(id, true))
	}
	require.NoError(t, r.SetEvictable(5, false))

	// frames 2, 3, 4 have only one access each (+infinite distance);
	// among them 2 has the earliest timestamp, so it goes first.
	victim, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(2), victim)
}

func TestLRUKReplacer_BackwardKDistanceOrdering(t *testing.T) {
	r := NewLRUKReplacer(3, 2, nil, nil)

	require.NoError(t, r.RecordAccess(1))
	require.NoError(t, r.RecordAccess(2))
	require.NoError(t, r.RecordAccess(1))
	require.NoError(t, r.RecordAccess(2))
	require.NoError(t, r.RecordAccess(1))

	require.NoError(t, r.SetEvictable(1, true))
	require.NoError(t, r.SetEvictable(2, true))

	// frame 1's last two accesses are at t=3,t=5 (k-distance 2);
	// frame 2's last two accesses are at t=2,t=4 (k-distance 3), so 2
	// is furthest back and evicted first.
	victim, ok := r.Evict()
	require.True(t, ok)
	assert.Equal(t, FrameID(2), victim)
}

func TestLRUKReplacer_SetEvictableTracksSize(t *testing.T) {
	r := NewLRUKReplacer(2, 1, nil, nil)
	require.NoError(t, r.RecordAccess(0))
	require.NoError(t, r.RecordAccess(1))
	assert.Equal(t, 0, r.Size())

	require.NoError(t, r.SetEvictable(0, true))
	assert.Equal(t, 1, r.Size())

	require.NoError(t, r.SetEvictable(0, false))
	assert.Equal(t, 0, r.Size())
}

func TestLRUKReplacer_RemoveRejectsPinnedFrame(t *testing.T) {
	r := NewLRUKReplacer(2, 1, nil, nil)
	require.NoError(t, r.RecordAccess(0))
	err := r.Remove(0)
	assert.ErrorIs(t, err, kernelerrors.ErrBusyFrame)
}

func TestLRUKReplacer_OutOfRangeFrame(t *testing.T) {
	r := NewLRUKReplacer(2, 2, nil, nil)
	err := r.RecordAccess(7)
	assert.Error(t, err)
}

func TestLRUKReplacer_EvictReturnsFalseWhenEmpty(t *testing.T) {
	r := NewLRUKReplacer(4, 2, nil, nil)
	_, ok := r.Evict()
	assert.False(t, ok)
}
