package index

import (
	"context"

	"github.com/gojodb/storagecore/buffer"
	"github.com/gojodb/storagecore/storage/page"
)

// Remove deletes key if present; it is a no-op otherwise.
//
// Descent holds write latches with the delete-safety optimization: a
// node is delete-safe when size > min_size (size > 2 for an internal
// root); once a freshly visited node is safe, every ancestor latch held
// so far is released, because no borrow or merge can propagate past a
// safe node.
func (t *BPlusTree[K, V]) Remove(ctx context.Context, key K) (bool, error) {
	_, span := t.startSpan(ctx, "remove", key)
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
		headerGuard.Done()
		return false, nil
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
			return t.removeFromLeaf(stack, key)
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

		// The root is latched before this loop, so childGuard is never the root.
		if safe, err := t.childIsDeleteSafe(childGuard, false); err != nil {
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

func (t *BPlusTree[K, V]) childIsDeleteSafe(guard *buffer.WritePageGuard, childIsRoot bool) (bool, error) {
	typ, err := page.PeekType(guard.Data())
	if err != nil {
		return false, err
	}
	if typ == page.TypeLeaf {
		leaf, err := page.DeserializeLeaf[K, V](guard.Data(), t.kc, t.vc)
		if err != nil {
			return false, err
		}
		return leaf.IsDeleteSafe(childIsRoot), nil
	}
	internal, err := page.DeserializeInternal[K](guard.Data(), t.kc)
	if err != nil {
		return false, err
	}
	return internal.IsDeleteSafe(childIsRoot), nil
}

func (t *BPlusTree[K, V]) removeFromLeaf(stack []*buffer.WritePageGuard, key K) (bool, error) {
	curGuard := stack[len(stack)-1]
	leaf, err := page.DeserializeLeaf[K, V](curGuard.Data(), t.kc, t.vc)
	if err != nil {
		releaseAll(stack)
		return false, err
	}
	if !leaf.RemoveKey(key, t.cmp) {
		releaseAll(stack)
		return false, nil
	}

	isRoot := len(stack) == 2 && stack[0].PageID() == t.headerPageID
	if isRoot {
		headerGuard := stack[0]
		if leaf.Size == 0 {
			pageID := leaf.PageID
			curGuard.Done()
			_ = t.cache.DeletePage(pageID)
			if err := (page.HeaderPage{RootPageID: buffer.InvalidPageID}).Encode(headerGuard.Data()); err != nil {
				headerGuard.Done()
				return false, err
			}
			headerGuard.Done()
			return true, nil
		}
		t.writeLeaf(curGuard, leaf)
		releaseAll(stack)
		return true, nil
	}

	if leaf.Size >= leaf.MinSize() {
		t.writeLeaf(curGuard, leaf)
		releaseAll(stack)
		return true, nil
	}

	parentGuard := stack[len(stack)-2]
	parent, err := page.DeserializeInternal[K](parentGuard.Data(), t.kc)
	if err != nil {
		releaseAll(stack)
		return false, err
	}
	idx := parent.IndexOfChild(leaf.PageID)

	if idx > 0 {
		leftGuard, err := t.cache.FetchPageWrite(parent.Children[idx-1])
		if err == nil {
			leftLeaf, err := page.DeserializeLeaf[K, V](leftGuard.Data(), t.kc, t.vc)
			if err == nil && leftLeaf.Size > leftLeaf.MinSize() {
				newSep := leaf.BorrowLeft(leftLeaf)
				parent.Keys[idx-1] = newSep
				t.writeLeaf(leftGuard, leftLeaf)
				t.writeLeaf(curGuard, leaf)
				t.writeInternal(parentGuard, parent)
				leftGuard.Done()
				curGuard.Done()
				releaseAll(stack[:len(stack)-2])
				parentGuard.Done()
				return true, nil
			}
			leftGuard.Done()
		}
	}

	if idx < len(parent.Children)-1 {
		rightGuard, err := t.cache.FetchPageWrite(parent.Children[idx+1])
		if err == nil {
			rightLeaf, err := page.DeserializeLeaf[K, V](rightGuard.Data(), t.kc, t.vc)
			if err == nil && rightLeaf.Size > rightLeaf.MinSize() {
				newSep := leaf.BorrowRight(rightLeaf)
				parent.Keys[idx] = newSep
				t.writeLeaf(curGuard, leaf)
				t.writeLeaf(rightGuard, rightLeaf)
				t.writeInternal(parentGuard, parent)
				rightGuard.Done()
				curGuard.Done()
				releaseAll(stack[:len(stack)-2])
				parentGuard.Done()
				return true, nil
			}
			rightGuard.Done()
		}
	}

	if idx > 0 {
		leftGuard, err := t.cache.FetchPageWrite(parent.Children[idx-1])
		if err != nil {
			releaseAll(stack)
			return false, err
		}
		leftLeaf, err := page.DeserializeLeaf[K, V](leftGuard.Data(), t.kc, t.vc)
		if err != nil {
			leftGuard.Done()
			releaseAll(stack)
			return false, err
		}
		leftLeaf.MergeFrom(leaf)
		t.writeLeaf(leftGuard, leftLeaf)
		leftGuard.Done()

		emptyID := leaf.PageID
		curGuard.Done()
		_ = t.cache.DeletePage(emptyID)
		parent.RemoveChildAt(idx)
		return t.fixInternalUnderflow(stack[:len(stack)-2], parentGuard, parent)
	}

	rightGuard, err := t.cache.FetchPageWrite(parent.Children[idx+1])
	if err != nil {
		releaseAll(stack)
		return false, err
	}
	rightLeaf, err := page.DeserializeLeaf[K, V](rightGuard.Data(), t.kc, t.vc)
	if err != nil {
		rightGuard.Done()
		releaseAll(stack)
		return false, err
	}
	leaf.MergeFrom(rightLeaf)
	t.writeLeaf(curGuard, leaf)
	curGuard.Done()

	emptyID := rightLeaf.PageID
	rightGuard.Done()
	_ = t.cache.DeletePage(emptyID)
	parent.RemoveChildAt(idx + 1)
	return t.fixInternalUnderflow(stack[:len(stack)-2], parentGuard, parent)
}

// fixInternalUnderflow re-establishes size invariants on node (already
// modified by the caller) whose latch is held via nodeGuard, recursing
// upward through ancestors as merges propagate. ancestors[len-1] is
// node's parent; when ancestors holds only the header guard, node is
// the root. ancestors is empty when node was delete-safe during
// descent, in which case losing one child cannot underflow it.
func (t *BPlusTree[K, V]) fixInternalUnderflow(ancestors []*buffer.WritePageGuard, nodeGuard *buffer.WritePageGuard, node *page.InternalNode[K]) (bool, error) {
	isRoot := len(ancestors) == 1 && ancestors[0].PageID() == t.headerPageID

	if isRoot {
		headerGuard := ancestors[0]
		if node.Size == 1 {
			newRootID := node.Children[0]
			oldRootID := node.PageID
			nodeGuard.Done()
			_ = t.cache.DeletePage(oldRootID)
			if err := (page.HeaderPage{RootPageID: newRootID}).Encode(headerGuard.Data()); err != nil {
				headerGuard.Done()
				return false, err
			}
			headerGuard.Done()
			return true, nil
		}
		t.writeInternal(nodeGuard, node)
		nodeGuard.Done()
		headerGuard.Done()
		return true, nil
	}

	if node.Size >= node.MinSize() {
		t.writeInternal(nodeGuard, node)
		nodeGuard.Done()
		releaseAll(ancestors)
		return true, nil
	}

	parentGuard := ancestors[len(ancestors)-1]
	parent, err := page.DeserializeInternal[K](parentGuard.Data(), t.kc)
	if err != nil {
		nodeGuard.Done()
		releaseAll(ancestors)
		return false, err
	}
	idx := parent.IndexOfChild(node.PageID)

	if idx > 0 {
		leftGuard, err := t.cache.FetchPageWrite(parent.Children[idx-1])
		if err == nil {
			leftInternal, err := page.DeserializeInternal[K](leftGuard.Data(), t.kc)
			if err == nil && leftInternal.Size > leftInternal.MinSize() {
				newSep := node.BorrowLeft(leftInternal, parent.Keys[idx-1])
				parent.Keys[idx-1] = newSep
				t.writeInternal(leftGuard, leftInternal)
				t.writeInternal(nodeGuard, node)
				t.writeInternal(parentGuard, parent)
				leftGuard.Done()
				nodeGuard.Done()
				releaseAll(ancestors[:len(ancestors)-1])
				parentGuard.Done()
				return true, nil
			}
			leftGuard.Done()
		}
	}

	if idx < len(parent.Children)-1 {
		rightGuard, err := t.cache.FetchPageWrite(parent.Children[idx+1])
		if err == nil {
			rightInternal, err := page.DeserializeInternal[K](rightGuard.Data(), t.kc)
			if err == nil && rightInternal.Size > rightInternal.MinSize() {
				newSep := node.BorrowRight(rightInternal, parent.Keys[idx])
				parent.Keys[idx] = newSep
				t.writeInternal(nodeGuard, node)
				t.writeInternal(rightGuard, rightInternal)
				t.writeInternal(parentGuard, parent)
				rightGuard.Done()
				nodeGuard.Done()
				releaseAll(ancestors[:len(ancestors)-1])
				parentGuard.Done()
				return true, nil
			}
			rightGuard.Done()
		}
	}

	if idx > 0 {
		leftGuard, err := t.cache.FetchPageWrite(parent.Children[idx-1])
		if err != nil {
			nodeGuard.Done()
			releaseAll(ancestors)
			return false, err
		}
		leftInternal, err := page.DeserializeInternal[K](leftGuard.Data(), t.kc)
		if err != nil {
			leftGuard.Done()
			nodeGuard.Done()
			releaseAll(ancestors)
			return false, err
		}
		leftInternal.MergeFrom(node, parent.Keys[idx-1])
		t.writeInternal(leftGuard, leftInternal)
		leftGuard.Done()

		emptyID := node.PageID
		nodeGuard.Done()
		_ = t.cache.DeletePage(emptyID)
		parent.RemoveChildAt(idx)
		return t.fixInternalUnderflow(ancestors[:len(ancestors)-1], parentGuard, parent)
	}

	rightGuard, err := t.cache.FetchPageWrite(parent.Children[idx+1])
	if err != nil {
		nodeGuard.Done()
		releaseAll(ancestors)
		return false, err
	}
	rightInternal, err := page.DeserializeInternal[K](rightGuard.Data(), t.kc)
	if err != nil {
		rightGuard.Done()
		nodeGuard.Done()
		releaseAll(ancestors)
		return false, err
	}
	node.MergeFrom(rightInternal, parent.Keys[idx])
	t.writeInternal(nodeGuard, node)
	nodeGuard.Done()

	emptyID := rightInternal.PageID
	rightGuard.Done()
	_ = t.cache.DeletePage(emptyID)
	parent.RemoveChildAt(idx + 1)
	return t.fixInternalUnderflow(ancestors[:len(ancestors)-1], parentGuard, parent)
}
