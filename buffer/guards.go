package buffer

// ReadPageGuard owns a shared (read) latch on a page's frame. Its
// lifetime is the region between FetchPageRead returning it and Done
// being called; dereferencing Data after Done is a use-after-drop bug
// the guard cannot itself detect, mirroring the raw-pointer-like
// handles spec.md §9 asks us to replace with scoped ownership.
type ReadPageGuard struct {
	cache *InMemoryPageCache
	frame *frameState
	done  bool
}

// PageID returns the identity of the latched page.
func (g *ReadPageGuard) PageID() PageID { return g.frame.pageID }

// Data exposes the page's raw bytes for the duration of the latch.
func (g *ReadPageGuard) Data() []byte { return g.frame.data }

// Done releases the read latch and unpins the frame.
func (g *ReadPageGuard) Done() {
	if g.done {
		return
	}
	g.done = true
	g.frame.latch.RUnlock()
	g.cache.unpin(g.frame, false)
}

// WritePageGuard owns an exclusive (write) latch on a page's frame.
type WritePageGuard struct {
	cache *InMemoryPageCache
	frame *frameState
	done  bool
}

// PageID returns the identity of the latched page.
func (g *WritePageGuard) PageID() PageID { return g.frame.pageID }

// Data exposes the page's raw bytes for the duration of the latch. Any
// write through this slice marks the page dirty once Done is called.
func (g *WritePageGuard) Data() []byte { return g.frame.data }

// Done releases the write latch, marks the page dirty, and unpins the
// frame.
func (g *WritePageGuard) Done() {
	if g.done {
		return
	}
	g.done = true
	g.frame.latch.Unlock()
	g.cache.unpin(g.frame, true)
}
