package index

import (
	"context"
	"fmt"

	"github.com/gojodb/storagecore/buffer"
	"github.com/gojodb/storagecore/storage/page"
)

// Insert places key/value into the tree. It returns false without
// modifying anything if key is already present.
//
// Descent holds write latches top-down, released eagerly under the
// safety optimization: once a freshly visited node below the root is
// insert-safe (size < max_size after the visit would still leave room),
// every ancestor latch held so far — including the header page's latch
// — is released immediately, because no split can propagate past a
// safe node. The root's own safety is not tested, so the header latch
// is held until some node below the root proves safe.
func (t *BPlusTree[K, V]) Insert(ctx context.Context, key K, value V) (bool, error) {
	_, span := t.startSpan(ctx, "insert", key)
	defer span.End()

	headerGuard, err := t.cache.FetchPageWrite(t.headerPageID)
	if err != nil {
		return false, err
	}
	hdr, err := page.DecodeHeaderPage(headerGuard.Data())
	if err != nil {
		headerGuard.Done()
		return false, err
	}

	if hdr.RootPageID == buffer.InvalidPageID {
		leafGuard, err := t.cache.NewPage()
		if err != nil {
			headerGuard.Done()
			return false, err
		}
		leaf := page.NewLeafNode[K, V](leafGuard.PageID(), t.cfg.LeafMaxSize)
		leaf.InsertSorted(key, value, t.cmp)
		t.writeLeaf(leafGuard, leaf)
		rootID := leafGuard.PageID()
		leafGuard.Done()

		if err := (page.HeaderPage{RootPageID: rootID}).Encode(headerGuard.Data()); err != nil {
			headerGuard.Done()
			return false, err
		}
		headerGuard.Done()
		return true, nil
	}

	stack := []*buffer.WritePageGuard{headerGuard}
	curGuard, err := t.cache.FetchPageWrite(hdr.RootPageID)
	if err != nil {
		releaseAll(stack)
		return false, err
	}
	stack = append(stack, curGuard)

	for {
		typ, err := page.PeekType(curGuard.Data())
		if err != nil {
			releaseAll(stack)
			return false, err
		}

		if typ == page.TypeLeaf {
			leaf, err := page.DeserializeLeaf[K, V](curGuard.Data(), t.kc, t.vc)
			if err != nil {
				releaseAll(stack)
				return false, err
			}
			if _, exists := leaf.Find(key, t.cmp); exists {
				releaseAll(stack)
				return false, nil
			}
			leaf.InsertSorted(key, value, t.cmp)
			if leaf.Size <= leaf.MaxSize {
				t.writeLeaf(curGuard, leaf)
				releaseAll(stack)
				return true, nil
			}
			return t.splitLeafAndPropagate(stack, leaf)
		}

		internal, err := page.DeserializeInternal[K](curGuard.Data(), t.kc)
		if err != nil {
			releaseAll(stack)
			return false, err
		}
		childID := internal.ChildFor(key, t.cmp)
		childGuard, err := t.cache.FetchPageWrite(childID)
		if err != nil {
			releaseAll(stack)
			return false, err
		}
		stack = append(stack, childGuard)

		if safe, err := t.childIsInsertSafe(childGuard); err != nil {
			releaseAll(stack)
			return false, err
		} else if safe {
			for _, g := range stack[:len(stack)-1] {
				g.Done()
			}
			stack = stack[len(stack)-1:]
		}
		curGuard = childGuard
	}
}

func (t *BPlusTree[K, V]) childIsInsertSafe(guard *buffer.WritePageGuard) (bool, error) {
	typ, err := page.PeekType(guard.Data())
	if err != nil {
		return false, err
	}
	if typ == page.TypeLeaf {
		leaf, err := page.DeserializeLeaf[K, V](guard.Data(), t.kc, t.vc)
		if err != nil {
			return false, err
		}
		return leaf.IsInsertSafe(), nil
	}
	internal, err := page.DeserializeInternal[K](guard.Data(), t.kc)
	if err != nil {
		return false, err
	}
	return internal.IsInsertSafe(), nil
}

// splitLeafAndPropagate is called once the leaf at the top of stack has
// already overflowed (and been written back by the caller's logic is
// NOT yet done — stack's top guard still holds the overflowed leaf's
// latch). It allocates the new sibling, splits, and propagates the
// promoted separator up through ancestors, splitting them in turn as
// needed.
func (t *BPlusTree[K, V]) splitLeafAndPropagate(stack []*buffer.WritePageGuard, leaf *page.LeafNode[K, V]) (bool, error) {
	curGuard := stack[len(stack)-1]

	newGuard, err := t.cache.NewPage()
	if err != nil {
		releaseAll(stack)
		return false, err
	}
	newLeaf := page.NewLeafNode[K, V](newGuard.PageID(), leaf.MaxSize)
	midKey := leaf.SplitTo(newLeaf)

	t.writeLeaf(curGuard, leaf)
	t.writeLeaf(newGuard, newLeaf)
	newGuard.Done()

	return t.insertIntoParent(stack[:len(stack)-1], curGuard, midKey, newLeaf.PageID)
}

// insertIntoParent installs (sepKey, newChildID) into the parent of
// oldGuard (which has already been fully written and is closed by this
// call). ancestors[len-1] is that parent. When the header guard is the
// only ancestor, oldGuard was the root. A single ancestor that is not
// the header was insert-safe during descent, so it takes the separator
// without splitting.
func (t *BPlusTree[K, V]) insertIntoParent(ancestors []*buffer.WritePageGuard, oldGuard *buffer.WritePageGuard, sepKey K, newChildID buffer.PageID) (bool, error) {
	if len(ancestors) == 1 && ancestors[0].PageID() == t.headerPageID {
		headerGuard := ancestors[0]
		newRootGuard, err := t.cache.NewPage()
		if err != nil {
			oldGuard.Done()
			headerGuard.Done()
			return false, err
		}
		newRoot := page.NewInternalNode[K](newRootGuard.PageID(), t.cfg.InternalMaxSize)
		newRoot.Children = []buffer.PageID{oldGuard.PageID(), newChildID}
		newRoot.Keys = []K{sepKey}
		newRoot.Size = 2
		t.writeInternal(newRootGuard, newRoot)
		rootID := newRootGuard.PageID()
		newRootGuard.Done()
		oldGuard.Done()

		if err := (page.HeaderPage{RootPageID: rootID}).Encode(headerGuard.Data()); err != nil {
			headerGuard.Done()
			return false, err
		}
		headerGuard.Done()
		return true, nil
	}

	parentGuard := ancestors[len(ancestors)-1]
	parent, err := page.DeserializeInternal[K](parentGuard.Data(), t.kc)
	if err != nil {
		oldGuard.Done()
		releaseAll(ancestors)
		return false, err
	}
	parent.InsertAfter(sepKey, newChildID, t.cmp)
	oldGuard.Done()

	if parent.Size <= parent.MaxSize {
		t.writeInternal(parentGuard, parent)
		releaseAll(ancestors)
		return true, nil
	}

	grandGuard, err := t.cache.NewPage()
	if err != nil {
		releaseAll(ancestors)
		return false, fmt.Errorf("allocate internal split sibling: %w", err)
	}
	newInternal := page.NewInternalNode[K](grandGuard.PageID(), parent.MaxSize)
	midKey2 := parent.SplitTo(newInternal)
	t.writeInternal(parentGuard, parent)
	t.writeInternal(grandGuard, newInternal)
	grandGuard.Done()

	return t.insertIntoParent(ancestors[:len(ancestors)-1], parentGuard, midKey2, newInternal.PageID)
}
