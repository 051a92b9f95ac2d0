package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gojodb/storagecore/buffer"
	"github.com/gojodb/storagecore/internal/kernelerrors"
)

func TestInternalNode_ChildForAndInsertAfter(t *testing.T) {
	n := NewInternalNode[int64](buffer.PageID(1), 8)
	n.Children = []buffer.PageID{100}
	n.Size = 1

	// -inf..+inf all routes to the sole child.
	assert.Equal(t, buffer.PageID(100), n.ChildFor(5, int64Cmp))

	n.InsertAfter(10, 200, int64Cmp)
	assert.Equal(t, []int64{10}, n.Keys)
	assert.Equal(t, []buffer.PageID{100, 200}, n.Children)

	assert.Equal(t, buffer.PageID(100), n.ChildFor(5, int64Cmp))
	assert.Equal(t, buffer.PageID(200), n.ChildFor(10, int64Cmp))
	assert.Equal(t, buffer.PageID(200), n.ChildFor(15, int64Cmp))

	n.InsertAfter(3, 50, int64Cmp)
	assert.Equal(t, []int64{3, 10}, n.Keys)
	assert.Equal(t, []buffer.PageID{100, 50, 200}, n.Children)
	assert.Equal(t, buffer.PageID(100), n.ChildFor(1, int64Cmp))
	assert.Equal(t, buffer.PageID(50), n.ChildFor(3, int64Cmp))
	assert.Equal(t, buffer.PageID(200), n.ChildFor(10, int64Cmp))
}

func buildInternal(children []buffer.PageID, keys []int64) *InternalNode[int64] {
	n := NewInternalNode[int64](buffer.PageID(1), 8)
	n.Children = children
	n.Keys = keys
	n.Size = len(children)
	return n
}

func TestInternalNode_SplitTo(t *testing.T) {
	n := buildInternal([]buffer.PageID{1, 2, 3, 4}, []int64{10, 20, 30})
	sibling := NewInternalNode[int64](buffer.PageID(9), 8)

	mid := n.SplitTo(sibling)
	assert.Equal(t, int64(20), mid)
	assert.Equal(t, []buffer.PageID{1, 2}, n.Children)
	assert.Equal(t, []int64{10}, n.Keys)
	assert.Equal(t, []buffer.PageID{3, 4}, sibling.Children)
	assert.Equal(t, []int64{30}, sibling.Keys)
}

func TestInternalNode_MergeFrom(t *testing.T) {
	left := buildInternal([]buffer.PageID{1, 2}, []int64{10})
	right := buildInternal([]buffer.PageID{3, 4}, []int64{30})
	left.MergeFrom(right, 20)
	assert.Equal(t, []buffer.PageID{1, 2, 3, 4}, left.Children)
	assert.Equal(t, []int64{10, 20, 30}, left.Keys)
}

func TestInternalNode_BorrowLeftAndRight(t *testing.T) {
	left := buildInternal([]buffer.PageID{1, 2, 3}, []int64{10, 20})
	mid := buildInternal([]buffer.PageID{5}, nil)
	right := buildInternal([]buffer.PageID{8, 9}, []int64{90})

	newSepLeft := mid.BorrowLeft(left, 40)
	assert.Equal(t, int64(20), newSepLeft)
	assert.Equal(t, []buffer.PageID{1, 2}, left.Children)
	assert.Equal(t, []int64{10}, left.Keys)
	assert.Equal(t, []buffer.PageID{3, 5}, mid.Children)
	assert.Equal(t, []int64{40}, mid.Keys)

	newSepRight := mid.BorrowRight(right, 60)
	assert.Equal(t, int64(90), newSepRight)
	assert.Equal(t, []buffer.PageID{9}, right.Children)
	assert.Empty(t, right.Keys)
	assert.Equal(t, []buffer.PageID{3, 5, 8}, mid.Children)
	assert.Equal(t, []int64{40, 60}, mid.Keys)
}

func TestInternalNode_SerializeRoundTrip(t *testing.T) {
	n := buildInternal([]buffer.PageID{1, 2, 3}, []int64{10, 20})
	raw := make([]byte, 64)
	require.NoError(t, n.Serialize(raw, Int64Codec{}))

	got, err := DeserializeInternal[int64](raw, Int64Codec{})
	require.NoError(t, err)
	assert.Equal(t, n.Children, got.Children)
	assert.Equal(t, n.Keys, got.Keys)
	assert.Equal(t, n.Size, got.Size)
}

func TestDeserializeInternal_RejectsLeafPage(t *testing.T) {
	n := NewLeafNode[int64, int64](buffer.PageID(1), 16)
	n.InsertSorted(1, 10, int64Cmp)
	n.InsertSorted(2, 20, int64Cmp)

	raw := make([]byte, 64)
	require.NoError(t, n.Serialize(raw, Int64Codec{}, Int64Codec{}))

	_, err := DeserializeInternal[int64](raw, Int64Codec{})
	assert.ErrorIs(t, err, kernelerrors.ErrNotInternal)
}
