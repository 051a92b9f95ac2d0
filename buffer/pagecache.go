// Package buffer implements the two lowest layers of the storage core:
// the LRU-K replacement policy (spec.md §4.1) and a concrete PageCache
// (spec.md §6) that the B+tree borrows latched page handles from.
//
// Real disk I/O is explicitly out of scope (spec.md §1: "we assume a
// PageCache service that loans us latched page handles"), so
// InMemoryPageCache backs its frames with an in-process map rather than
// a file — but it still exercises the pinning, latching, and eviction
// contract a disk-backed implementation would have to honor.
package buffer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gojodb/storagecore/internal/kernelerrors"
)

// PageCache is the interface the storage/index and storage/page
// packages consume. spec.md §6 specifies it purely as an external
// collaborator; InMemoryPageCache below is the one implementation
// shipped in this module.
type PageCache interface {
	// NewPage allocates a fresh page and returns it already pinned and
	// write-latched to the caller via the returned guard.
	NewPage() (*WritePageGuard, error)
	// FetchPageRead loans a read-latched handle to an existing page.
	FetchPageRead(id PageID) (*ReadPageGuard, error)
	// FetchPageWrite loans a write-latched handle to an existing page.
	FetchPageWrite(id PageID) (*WritePageGuard, error)
	// DeletePage returns a page's frame to the free list. The page must
	// be unpinned.
	DeletePage(id PageID) error
	// FlushPage writes a page back to the backing store if dirty.
	FlushPage(id PageID) error
	// FlushAll flushes every dirty, resident page.
	FlushAll() error
	// PageSize reports the fixed page size frames are sized to.
	PageSize() int
	// Close stops the background flusher.
	Close()
}

// Config tunes an InMemoryPageCache.
type Config struct {
	PoolSize int // number of frames
	PageSize int // bytes per frame
	K        uint64
	// FlushRatePerSecond throttles the background dirty-page flusher, so
	// a write-heavy workload cannot monopolize the simulated disk.
	FlushRatePerSecond float64
}

// InMemoryPageCache implements PageCache over a fixed pool of frames,
// evicting via an LRUKReplacer, grounded on the teacher's
// core/write_engine/memtable.BufferPoolManager and
// core/indexing/btree.BufferPoolManager — generalized from their
// container/list LRU to the LRU-K policy spec.md requires.
type InMemoryPageCache struct {
	mu        sync.Mutex
	frames    []*frameState
	pageTable map[PageID]FrameID
	freeList  []FrameID
	replacer  *LRUKReplacer
	nextID    PageID
	pageSize  int

	backingMu sync.Mutex
	backing   map[PageID][]byte

	logger  *zap.Logger
	limiter *rate.Limiter
	cancel  context.CancelFunc

	hits   metric.Int64Counter
	misses metric.Int64Counter
}

// NewInMemoryPageCache builds a page cache with cfg.PoolSize frames of
// cfg.PageSize bytes each, replaced under an LRU-K(cfg.K) policy.
func NewInMemoryPageCache(cfg Config, logger *zap.Logger, meter metric.Meter) *InMemoryPageCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FlushRatePerSecond <= 0 {
		cfg.FlushRatePerSecond = 200
	}
	c := &InMemoryPageCache{
		frames:    make([]*frameState, cfg.PoolSize),
		pageTable: make(map[PageID]FrameID, cfg.PoolSize),
		freeList:  make([]FrameID, 0, cfg.PoolSize),
		replacer:  NewLRUKReplacer(cfg.PoolSize, cfg.K, logger, meter),
		pageSize:  cfg.PageSize,
		backing:   make(map[PageID][]byte),
		logger:    logger.Named("pagecache"),
		limiter:   rate.NewLimiter(rate.Limit(cfg.FlushRatePerSecond), 1),
	}
	for i := 0; i < cfg.PoolSize; i++ {
		c.frames[i] = newFrameState(FrameID(i), cfg.PageSize)
		c.freeList = append(c.freeList, FrameID(i))
	}
	if meter != nil {
		if h, err := meter.Int64Counter("buffer_pagecache_hits_total"); err == nil {
			c.hits = h
		}
		if m, err := meter.Int64Counter("buffer_pagecache_misses_total"); err == nil {
			c.misses = m
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.backgroundFlusher(ctx)
	return c
}

func (c *InMemoryPageCache) PageSize() int { return c.pageSize }

// Close stops the background flusher goroutine. It does not flush
// remaining dirty pages; call FlushAll first if that's desired.
func (c *InMemoryPageCache) Close() { c.cancel() }

// backgroundFlusher opportunistically flushes dirty, unpinned pages so
// eviction rarely has to flush synchronously. It is throttled by a
// token-bucket limiter to bound how much "disk bandwidth" it consumes.
func (c *InMemoryPageCache) backgroundFlusher(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			var candidate *frameState
			for _, f := range c.frames {
				if f.pageID != InvalidPageID && f.dirty && f.pinCount == 0 {
					candidate = f
					break
				}
			}
			c.mu.Unlock()
			if candidate == nil {
				continue
			}
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
			_ = c.FlushPage(candidate.pageID)
		}
	}
}

// getFrame returns a free frame, evicting via the replacer if the pool
// is full. Must be called with mu held.
func (c *InMemoryPageCache) getFrame() (FrameID, error) {
	if n := len(c.freeList); n > 0 {
		id := c.freeList[n-1]
		c.freeList = c.freeList[:n-1]
		return id, nil
	}
	victim, ok := c.replacer.Evict()
	if !ok {
		return 0, fmt.Errorf("%w", kernelerrors.ErrResourceExhausted)
	}
	f := c.frames[victim]
	if f.dirty {
		c.writeBack(f)
	}
	delete(c.pageTable, f.pageID)
	return victim, nil
}

// writeBack persists a frame's bytes to the backing store. Must be
// called with mu held (or with the caller otherwise certain no other
// goroutine can mutate f.data, i.e. pinCount == 0).
func (c *InMemoryPageCache) writeBack(f *frameState) {
	buf := make([]byte, len(f.data))
	copy(buf, f.data)
	c.backingMu.Lock()
	c.backing[f.pageID] = buf
	c.backingMu.Unlock()
	f.dirty = false
}

func (c *InMemoryPageCache) pin(f *frameState) {
	f.pinCount++
	_ = c.replacer.RecordAccess(FrameID(f.id))
	_ = c.replacer.SetEvictable(FrameID(f.id), false)
}

func (c *InMemoryPageCache) unpin(f *frameState, dirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dirty {
		f.dirty = true
	}
	if f.pinCount > 0 {
		f.pinCount--
	}
	if f.pinCount == 0 {
		_ = c.replacer.SetEvictable(FrameID(f.id), true)
	}
}

// NewPage allocates a page identifier and a fresh, zeroed, pinned,
// write-latched frame for it.
func (c *InMemoryPageCache) NewPage() (*WritePageGuard, error) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	frameID, err := c.getFrame()
	if err != nil {
		c.nextID--
		c.mu.Unlock()
		return nil, err
	}
	f := c.frames[frameID]
	f.reset(id)
	c.pageTable[id] = frameID
	c.pin(f)
	f.dirty = true
	c.mu.Unlock()

	f.latch.Lock()
	c.logger.Debug("new page", zap.Int32("page_id", int32(id)))
	return &WritePageGuard{cache: c, frame: f}, nil
}

// FetchPageRead loans a read latch on id, pulling it from the backing
// store into a frame if it is not already resident.
func (c *InMemoryPageCache) FetchPageRead(id PageID) (*ReadPageGuard, error) {
	f, err := c.resident(id)
	if err != nil {
		return nil, err
	}
	f.latch.RLock()
	return &ReadPageGuard{cache: c, frame: f}, nil
}

// FetchPageWrite loans a write latch on id, pulling it from the backing
// store into a frame if it is not already resident.
func (c *InMemoryPageCache) FetchPageWrite(id PageID) (*WritePageGuard, error) {
	f, err := c.resident(id)
	if err != nil {
		return nil, err
	}
	f.latch.Lock()
	return &WritePageGuard{cache: c, frame: f}, nil
}

// resident ensures id is loaded into a frame, pins it, and returns the
// frame without having acquired its content latch yet.
func (c *InMemoryPageCache) resident(id PageID) (*frameState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if frameID, ok := c.pageTable[id]; ok {
		f := c.frames[frameID]
		c.pin(f)
		if c.hits != nil {
			c.hits.Add(context.Background(), 1)
		}
		return f, nil
	}
	if c.misses != nil {
		c.misses.Add(context.Background(), 1)
	}

	frameID, err := c.getFrame()
	if err != nil {
		return nil, err
	}
	f := c.frames[frameID]
	f.reset(id)

	c.backingMu.Lock()
	stored, ok := c.backing[id]
	c.backingMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: page %d", kernelerrors.ErrPageNotFound, id)
	}
	copy(f.data, stored)

	c.pageTable[id] = frameID
	c.pin(f)
	return f, nil
}

// DeletePage evicts id from the cache and drops its backing bytes. The
// page must currently be unpinned.
func (c *InMemoryPageCache) DeletePage(id PageID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	frameID, ok := c.pageTable[id]
	if !ok {
		c.backingMu.Lock()
		delete(c.backing, id)
		c.backingMu.Unlock()
		return nil
	}
	f := c.frames[frameID]
	if f.pinCount > 0 {
		return fmt.Errorf("page %d is pinned, cannot delete", id)
	}
	_ = c.replacer.Remove(frameID)
	delete(c.pageTable, id)
	f.reset(InvalidPageID)
	c.freeList = append(c.freeList, frameID)

	c.backingMu.Lock()
	delete(c.backing, id)
	c.backingMu.Unlock()
	return nil
}

// FlushPage writes id's bytes to the backing store if dirty.
func (c *InMemoryPageCache) FlushPage(id PageID) error {
	c.mu.Lock()
	frameID, ok := c.pageTable[id]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	f := c.frames[frameID]
	f.latch.RLock()
	if f.dirty {
		c.writeBack(f)
	}
	f.latch.RUnlock()
	c.mu.Unlock()
	return nil
}

// FlushAll flushes every resident dirty page.
func (c *InMemoryPageCache) FlushAll() error {
	c.mu.Lock()
	ids := make([]PageID, 0, len(c.pageTable))
	for id := range c.pageTable {
		ids = append(ids, id)
	}
	c.mu.Unlock()
	for _, id := range ids {
		if err := c.FlushPage(id); err != nil {
			return err
		}
	}
	return nil
}
