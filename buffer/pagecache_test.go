package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, poolSize int) *InMemoryPageCache {
	c := NewInMemoryPageCache(Config{PoolSize: poolSize, PageSize: 64, K: 2}, nil, nil)
	t.Cleanup(c.Close)
	return c
}

func TestInMemoryPageCache_NewPageRoundTrip(t *testing.T) {
	c := newTestCache(t, 2)

	wg, err := c.NewPage()
	require.NoError(t, err)
	copy(wg.Data(), []byte("hello"))
	id := wg.PageID()
	wg.Done()

	rg, err := c.FetchPageRead(id)
	require.NoError(t, err)
	assert.Equal(t, byte('h'), rg.Data()[0])
	rg.Done()
}

func TestInMemoryPageCache_EvictsWhenFull(t *testing.T) {
	c := newTestCache(t, 1)

	wg1, err := c.NewPage()
	require.NoError(t, err)
	id1 := wg1.PageID()
	copy(wg1.Data(), []byte("first"))
	wg1.Done() // unpinned, evictable

	wg2, err := c.NewPage()
	require.NoError(t, err)
	id2 := wg2.PageID()
	copy(wg2.Data(), []byte("second"))
	wg2.Done()

	rg, err := c.FetchPageRead(id1)
	require.NoError(t, err)
	assert.Equal(t, byte('f'), rg.Data()[0])
	rg.Done()

	rg2, err := c.FetchPageRead(id2)
	require.NoError(t, err)
	assert.Equal(t, byte('s'), rg2.Data()[0])
	rg2.Done()
}

func TestInMemoryPageCache_ExhaustedWhenAllPinned(t *testing.T) {
	c := newTestCache(t, 1)

	wg1, err := c.NewPage()
	require.NoError(t, err)
	defer wg1.Done()

	_, err = c.NewPage()
	assert.Error(t, err)
}

func TestInMemoryPageCache_DeletePageRejectsPinned(t *testing.T) {
	c := newTestCache(t, 2)

	wg, err := c.NewPage()
	require.NoError(t, err)
	id := wg.PageID()

	assert.Error(t, c.DeletePage(id))
	wg.Done()
	assert.NoError(t, c.DeletePage(id))
}

func TestInMemoryPageCache_FlushAllClearsDirtyBit(t *testing.T) {
	c := newTestCache(t, 2)

	wg, err := c.NewPage()
	require.NoError(t, err)
	copy(wg.Data(), []byte("dirty"))
	id := wg.PageID()
	wg.Done()

	require.NoError(t, c.FlushAll())
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.False(t, c.frames[c.pageTable[id]].dirty)
}
