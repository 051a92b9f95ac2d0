package index

import (
	"github.com/gojodb/storagecore/buffer"
	"github.com/gojodb/storagecore/storage/page"
)

// IndexIterator is a forward iterator over the tree's leaf chain,
// holding a read latch on exactly one leaf at a time. Grounded on
// original_source/src/storage/index/index_iterator.cpp: advancing past
// the last slot follows next_leaf_id, acquiring its latch before
// dropping the current one.
type IndexIterator[K any, V any] struct {
	tree  *BPlusTree[K, V]
	guard *buffer.ReadPageGuard
	leaf  *page.LeafNode[K, V]
	idx   int
	done  bool
}

// Begin returns an iterator positioned at the first entry of the
// leftmost leaf.
func (t *BPlusTree[K, V]) Begin() (*IndexIterator[K, V], error) {
	root, err := t.readRootID()
	if err != nil {
		return nil, err
	}
	if root == buffer.InvalidPageID {
		return &IndexIterator[K, V]{tree: t, done: true}, nil
	}
	guard, err := t.cache.FetchPageRead(root)
	if err != nil {
		return nil, err
	}
	for {
		typ, err := page.PeekType(guard.Data())
		if err != nil {
			guard.Done()
			return nil, err
		}
		if typ == page.TypeLeaf {
			leaf, err := page.DeserializeLeaf[K, V](guard.Data(), t.kc, t.vc)
			if err != nil {
				guard.Done()
				return nil, err
			}
			return &IndexIterator[K, V]{tree: t, guard: guard, leaf: leaf, idx: 0, done: leaf.Size == 0}, nil
		}
		internal, err := page.DeserializeInternal[K](guard.Data(), t.kc)
		if err != nil {
			guard.Done()
			return nil, err
		}
		next := internal.Children[0]
		guard.Done()
		guard, err = t.cache.FetchPageRead(next)
		if err != nil {
			return nil, err
		}
	}
}

// BeginAt returns an iterator positioned at the first entry >= key.
func (t *BPlusTree[K, V]) BeginAt(key K) (*IndexIterator[K, V], error) {
	root, err := t.readRootID()
	if err != nil {
		return nil, err
	}
	if root == buffer.InvalidPageID {
		return &IndexIterator[K, V]{tree: t, done: true}, nil
	}
	guard, err := t.cache.FetchPageRead(root)
	if err != nil {
		return nil, err
	}
	for {
		typ, err := page.PeekType(guard.Data())
		if err != nil {
			guard.Done()
			return nil, err
		}
		if typ == page.TypeLeaf {
			leaf, err := page.DeserializeLeaf[K, V](guard.Data(), t.kc, t.vc)
			if err != nil {
				guard.Done()
				return nil, err
			}
			idx := 0
			for idx < leaf.Size && t.cmp(leaf.Keys[idx], key) < 0 {
				idx++
			}
			it := &IndexIterator[K, V]{tree: t, guard: guard, leaf: leaf, idx: idx}
			if idx >= leaf.Size {
				// Every entry here is below key; the first entry >= key,
				// if any, starts the next leaf.
				it.idx = leaf.Size - 1
				if err := it.Next(); err != nil {
					return nil, err
				}
			}
			return it, nil
		}
		internal, err := page.DeserializeInternal[K](guard.Data(), t.kc)
		if err != nil {
			guard.Done()
			return nil, err
		}
		childID := internal.ChildFor(key, t.cmp)
		next, err := t.cache.FetchPageRead(childID)
		guard.Done()
		if err != nil {
			return nil, err
		}
		guard = next
	}
}

// End returns an exhausted iterator: Valid reports false, the same
// state an iterator reaches once advanced past the rightmost leaf's
// last slot. IndexIterator defines no equality method.
func (t *BPlusTree[K, V]) End() *IndexIterator[K, V] {
	return &IndexIterator[K, V]{tree: t, done: true}
}

// Valid reports whether the iterator currently refers to an entry.
func (it *IndexIterator[K, V]) Valid() bool { return !it.done }

// Key returns the entry's key. Only valid when Valid() is true.
func (it *IndexIterator[K, V]) Key() K { return it.leaf.Keys[it.idx] }

// Value returns the entry's value. Only valid when Valid() is true.
func (it *IndexIterator[K, V]) Value() V { return it.leaf.Values[it.idx] }

// Next advances the iterator by one entry, crossing into the next leaf
// via next_leaf_id when the current leaf is exhausted.
func (it *IndexIterator[K, V]) Next() error {
	if it.done {
		return nil
	}
	it.idx++
	if it.idx < it.leaf.Size {
		return nil
	}
	nextID := it.leaf.NextLeafID
	if nextID == buffer.InvalidPageID {
		it.guard.Done()
		it.guard, it.leaf = nil, nil
		it.done = true
		return nil
	}
	guard, err := it.tree.cache.FetchPageRead(nextID)
	it.guard.Done()
	it.guard, it.leaf = nil, nil
	if err != nil {
		it.done = true
		return err
	}
	leaf, err := page.DeserializeLeaf[K, V](guard.Data(), it.tree.kc, it.tree.vc)
	if err != nil {
		guard.Done()
		it.done = true
		return err
	}
	it.guard, it.leaf, it.idx = guard, leaf, 0
	it.done = leaf.Size == 0
	return nil
}

// Close releases the iterator's held latch, if any. Safe to call
// multiple times and on an exhausted iterator.
func (it *IndexIterator[K, V]) Close() {
	if it.guard != nil {
		it.guard.Done()
		it.guard = nil
	}
	it.done = true
}
