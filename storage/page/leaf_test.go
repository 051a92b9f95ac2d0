package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gojodb/storagecore/buffer"
	"github.com/gojodb/storagecore/internal/kernelerrors"
)

func int64Cmp(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func TestLeafNode_InsertFindRemove(t *testing.T) {
	n := NewLeafNode[int64, int64](buffer.PageID(1), 8)
	n.InsertSorted(5, 50, int64Cmp)
	n.InsertSorted(1, 10, int64Cmp)
	n.InsertSorted(3, 30, int64Cmp)

	assert.Equal(t, []int64{1, 3, 5}, n.Keys)

	v, ok := n.Find(3, int64Cmp)
	require.True(t, ok)
	assert.Equal(t, int64(30), v)

	_, ok = n.Find(4, int64Cmp)
	assert.False(t, ok)

	assert.True(t, n.RemoveKey(3, int64Cmp))
	assert.False(t, n.RemoveKey(3, int64Cmp))
	assert.Equal(t, []int64{1, 5}, n.Keys)
}

func TestLeafNode_SplitTo(t *testing.T) {
	n := NewLeafNode[int64, int64](buffer.PageID(1), 8)
	for i := int64(0); i < 6; i++ {
		n.InsertSorted(i, i*10, int64Cmp)
	}
	sibling := NewLeafNode[int64, int64](buffer.PageID(2), 8)
	mid := n.SplitTo(sibling)

	assert.Equal(t, []int64{0, 1, 2}, n.Keys)
	assert.Equal(t, []int64{3, 4, 5}, sibling.Keys)
	assert.Equal(t, int64(3), mid)
	assert.Equal(t, buffer.PageID(2), n.NextLeafID)
}

func TestLeafNode_MergeFrom(t *testing.T) {
	left := NewLeafNode[int64, int64](buffer.PageID(1), 8)
	left.InsertSorted(1, 10, int64Cmp)
	right := NewLeafNode[int64, int64](buffer.PageID(2), 8)
	right.InsertSorted(2, 20, int64Cmp)
	right.NextLeafID = buffer.PageID(99)

	left.MergeFrom(right)
	assert.Equal(t, []int64{1, 2}, left.Keys)
	assert.Equal(t, buffer.PageID(99), left.NextLeafID)
}

func TestLeafNode_BorrowLeftAndRight(t *testing.T) {
	left := NewLeafNode[int64, int64](buffer.PageID(1), 8)
	left.InsertSorted(1, 10, int64Cmp)
	left.InsertSorted(2, 20, int64Cmp)

	mid := NewLeafNode[int64, int64](buffer.PageID(2), 8)
	mid.InsertSorted(5, 50, int64Cmp)

	newSep := mid.BorrowLeft(left)
	assert.Equal(t, int64(2), newSep)
	assert.Equal(t, []int64{2, 5}, mid.Keys)
	assert.Equal(t, []int64{1}, left.Keys)

	right := NewLeafNode[int64, int64](buffer.PageID(3), 8)
	right.InsertSorted(8, 80, int64Cmp)
	right.InsertSorted(9, 90, int64Cmp)

	newSep2 := mid.BorrowRight(right)
	assert.Equal(t, int64(9), newSep2)
	assert.Equal(t, []int64{2, 5, 8}, mid.Keys)
	assert.Equal(t, []int64{9}, right.Keys)
}

func TestLeafNode_SerializeRoundTrip(t *testing.T) {
	n := NewLeafNode[int64, int64](buffer.PageID(7), 16)
	for i := int64(0); i < 5; i++ {
		n.InsertSorted(i, i*100, int64Cmp)
	}
	n.NextLeafID = buffer.PageID(8)

	raw := make([]byte, 128)
	require.NoError(t, n.Serialize(raw, Int64Codec{}, Int64Codec{}))

	got, err := DeserializeLeaf[int64, int64](raw, Int64Codec{}, Int64Codec{})
	require.NoError(t, err)
	assert.Equal(t, n.Keys, got.Keys)
	assert.Equal(t, n.Values, got.Values)
	assert.Equal(t, n.NextLeafID, got.NextLeafID)
	assert.Equal(t, n.PageID, got.PageID)
}

func TestDeserializeLeaf_RejectsInternalPage(t *testing.T) {
	n := NewInternalNode[int64](buffer.PageID(7), 16)
	n.Children = []buffer.PageID{1, 2}
	n.Keys = []int64{5}
	n.Size = 2

	raw := make([]byte, 128)
	require.NoError(t, n.Serialize(raw, Int64Codec{}))

	_, err := DeserializeLeaf[int64, int64](raw, Int64Codec{}, Int64Codec{})
	assert.ErrorIs(t, err, kernelerrors.ErrNotLeaf)
}

func TestLeafNode_SafetyPredicates(t *testing.T) {
	n := NewLeafNode[int64, int64](buffer.PageID(1), 4)
	assert.True(t, n.IsInsertSafe())
	for i := int64(0); i < 4; i++ {
		n.InsertSorted(i, i, int64Cmp)
	}
	assert.False(t, n.IsInsertSafe())

	assert.True(t, n.IsDeleteSafe(true)) // root exempt
	assert.True(t, n.IsDeleteSafe(false))
	n.RemoveKey(0, int64Cmp)
	n.RemoveKey(1, int64Cmp)
	assert.False(t, n.IsDeleteSafe(false)) // at MinSize (4/2=2), size==2 not > 2
}
