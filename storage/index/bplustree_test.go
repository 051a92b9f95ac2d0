package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gojodb/storagecore/buffer"
	"github.com/gojodb/storagecore/storage/page"
	"github.com/gojodb/storagecore/storage/table"
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

func newTestTree(t *testing.T, leafMax, internalMax int) (*BPlusTree[int64, table.RecordID], *table.FakeTableHeap) {
	cache := buffer.NewInMemoryPageCache(buffer.Config{PoolSize: 64, PageSize: 256, K: 2}, nil, nil)
	t.Cleanup(cache.Close)
	heap := table.NewFakeTableHeap()
	tree, err := NewBPlusTree[int64, table.RecordID](cache, int64Cmp, page.Int64Codec{}, page.RecordIDCodec{},
		Config{LeafMaxSize: leafMax, InternalMaxSize: internalMax, Name: "test"}, nil, nil)
	require.NoError(t, err)
	return tree, heap
}

func rid(n int64) table.RecordID {
	return table.RecordID{PageID: buffer.PageID(n), SlotNumber: 0}
}

func TestBPlusTree_EmptyTree(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	assert.True(t, tree.IsEmpty())
	_, ok, err := tree.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBPlusTree_InsertAndGet(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	ctx := context.Background()

	for i := int64(0); i < 20; i++ {
		ok, err := tree.Insert(ctx, i, rid(i))
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.False(t, tree.IsEmpty())

	for i := int64(0); i < 20; i++ {
		v, ok, err := tree.Get(ctx, i)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, rid(i), v)
	}

	_, ok, err := tree.Get(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBPlusTree_RejectsDuplicateInsert(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	ctx := context.Background()

	ok, err := tree.Insert(ctx, 1, rid(1))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tree.Insert(ctx, 1, rid(2))
	require.NoError(t, err)
	assert.False(t, ok)

	v, _, err := tree.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, rid(1), v)
}

func TestBPlusTree_RemoveCausesMergeAndContraction(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	ctx := context.Background()

	const n = 30
	for i := int64(0); i < n; i++ {
		ok, err := tree.Insert(ctx, i, rid(i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	for i := int64(0); i < n; i++ {
		ok, err := tree.Remove(ctx, i)
		require.NoError(t, err)
		assert.True(t, ok, "removing %d", i)
	}
	assert.True(t, tree.IsEmpty())

	for i := int64(0); i < n; i++ {
		_, ok, err := tree.Get(ctx, i)
		require.NoError(t, err)
		assert.False(t, ok)
	}
}

func TestBPlusTree_RemoveAbsentKeyIsNoop(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	ctx := context.Background()
	_, err := tree.Insert(ctx, 1, rid(1))
	require.NoError(t, err)

	ok, err := tree.Remove(ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBPlusTree_IteratorYieldsAscendingOrder(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	ctx := context.Background()

	keys := []int64{5, 3, 9, 1, 7, 2, 8, 4, 6, 0}
	for _, k := range keys {
		_, err := tree.Insert(ctx, k, rid(k))
		require.NoError(t, err)
	}

	it, err := tree.Begin()
	require.NoError(t, err)
	defer it.Close()

	var seen []int64
	for it.Valid() {
		seen = append(seen, it.Key())
		require.NoError(t, it.Next())
	}
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}

func TestBPlusTree_BeginAtSkipsLowerKeys(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4)
	ctx := context.Background()
	for i := int64(0); i < 10; i++ {
		_, err := tree.Insert(ctx, i, rid(i))
		require.NoError(t, err)
	}

	it, err := tree.BeginAt(5)
	require.NoError(t, err)
	defer it.Close()

	var seen []int64
	for it.Valid() {
		seen = append(seen, it.Key())
		require.NoError(t, it.Next())
	}
	assert.Equal(t, []int64{5, 6, 7, 8, 9}, seen)
}

func TestBPlusTree_HeightGrowsWithInserts(t *testing.T) {
	tree, _ := newTestTree(t, 3, 3)
	ctx := context.Background()
	assert.Equal(t, 0, tree.Height())

	for i := int64(0); i < 2; i++ {
		_, err := tree.Insert(ctx, i, rid(i))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tree.Height())

	for i := int64(2); i < 40; i++ {
		_, err := tree.Insert(ctx, i, rid(i))
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, tree.Height(), 2)
}
