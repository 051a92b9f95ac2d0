package page

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gojodb/storagecore/buffer"
	"github.com/gojodb/storagecore/internal/kernelerrors"
)

// LeafNode holds an ascending run of keys and their RecordID values,
// plus the pointer stitching leaves together in key order. Grounded on
// the teacher's Node[K,V] (core/indexing/btree/node.go), specialized
// into a leaf-only shape per the data model's split of leaf vs.
// internal pages.
type LeafNode[K any, V any] struct {
	Header
	Keys       []K
	Values     []V
	NextLeafID buffer.PageID
}

// NewLeafNode builds an empty leaf with the given capacity.
func NewLeafNode[K any, V any](id buffer.PageID, maxSize int) *LeafNode[K, V] {
	return &LeafNode[K, V]{
		Header:     Header{Type: TypeLeaf, MaxSize: maxSize, PageID: id, ParentID: buffer.InvalidPageID},
		NextLeafID: buffer.InvalidPageID,
	}
}

// MinSize is the lower occupancy bound for a non-root leaf:
// ⌊max_size/2⌋.
func (n *LeafNode[K, V]) MinSize() int { return n.MaxSize / 2 }

// IsInsertSafe reports whether this leaf can absorb one more entry
// without needing to split.
func (n *LeafNode[K, V]) IsInsertSafe() bool { return n.Size < n.MaxSize }

// IsDeleteSafe reports whether this leaf can lose one entry without
// underflowing. The root is exempt from the lower bound.
func (n *LeafNode[K, V]) IsDeleteSafe(isRoot bool) bool {
	if isRoot {
		return true
	}
	return n.Size > n.MinSize()
}

// Find performs a binary search for key, returning its value if present.
func (n *LeafNode[K, V]) Find(key K, cmp Comparator[K]) (V, bool) {
	idx := lowerBound(n.Size, func(i int) int { return cmp(n.Keys[i], key) })
	if idx < n.Size && cmp(n.Keys[idx], key) == 0 {
		return n.Values[idx], true
	}
	var zero V
	return zero, false
}

// InsertSorted places key/value at its sorted position. The caller
// guarantees key is not already present.
func (n *LeafNode[K, V]) InsertSorted(key K, value V, cmp Comparator[K]) {
	idx := lowerBound(n.Size, func(i int) int { return cmp(n.Keys[i], key) })
	n.Keys = append(n.Keys, key)
	n.Values = append(n.Values, value)
	copy(n.Keys[idx+1:], n.Keys[idx:n.Size])
	copy(n.Values[idx+1:], n.Values[idx:n.Size])
	n.Keys[idx] = key
	n.Values[idx] = value
	n.Size++
}

// RemoveKey deletes key if present, shifting later entries down to
// close the gap. Reports whether anything was removed.
func (n *LeafNode[K, V]) RemoveKey(key K, cmp Comparator[K]) bool {
	idx := lowerBound(n.Size, func(i int) int { return cmp(n.Keys[i], key) })
	if idx >= n.Size || cmp(n.Keys[idx], key) != 0 {
		return false
	}
	copy(n.Keys[idx:], n.Keys[idx+1:n.Size])
	copy(n.Values[idx:], n.Values[idx+1:n.Size])
	n.Size--
	n.Keys = n.Keys[:n.Size]
	n.Values = n.Values[:n.Size]
	return true
}

// SplitTo moves this leaf's upper half into newLeaf, links newLeaf
// after it in the sibling chain, and returns newLeaf's first key as the
// separator to promote to the parent (leaf splits copy the key up).
func (n *LeafNode[K, V]) SplitTo(newLeaf *LeafNode[K, V]) K {
	mid := n.Size / 2
	newLeaf.Keys = append(newLeaf.Keys, n.Keys[mid:]...)
	newLeaf.Values = append(newLeaf.Values, n.Values[mid:]...)
	newLeaf.Size = n.Size - mid
	newLeaf.NextLeafID = n.NextLeafID
	newLeaf.ParentID = n.ParentID

	n.Keys = n.Keys[:mid]
	n.Values = n.Values[:mid]
	n.Size = mid
	n.NextLeafID = newLeaf.PageID

	return newLeaf.Keys[0]
}

// MergeFrom appends sibling's entries onto the end of n and adopts
// sibling's next-leaf pointer. Used when n is the left survivor of a
// merge.
func (n *LeafNode[K, V]) MergeFrom(sibling *LeafNode[K, V]) {
	n.Keys = append(n.Keys, sibling.Keys...)
	n.Values = append(n.Values, sibling.Values...)
	n.Size += sibling.Size
	n.NextLeafID = sibling.NextLeafID
}

// BorrowLeft takes the last entry of the left sibling and prepends it
// to n, returning n's new minimum key to install as the parent's
// updated separator.
func (n *LeafNode[K, V]) BorrowLeft(left *LeafNode[K, V]) K {
	lastIdx := left.Size - 1
	k, v := left.Keys[lastIdx], left.Values[lastIdx]
	left.Keys = left.Keys[:lastIdx]
	left.Values = left.Values[:lastIdx]
	left.Size--

	n.Keys = append([]K{k}, n.Keys...)
	n.Values = append([]V{v}, n.Values...)
	n.Size++
	return n.Keys[0]
}

// BorrowRight takes the first entry of the right sibling and appends it
// to n, returning right's new minimum key to install as the parent's
// updated separator.
func (n *LeafNode[K, V]) BorrowRight(right *LeafNode[K, V]) K {
	k, v := right.Keys[0], right.Values[0]
	right.Keys = right.Keys[1:]
	right.Values = right.Values[1:]
	right.Size--

	n.Keys = append(n.Keys, k)
	n.Values = append(n.Values, v)
	n.Size++
	return right.Keys[0]
}

// Serialize marshals the leaf into raw, a PageCache frame's bytes.
func (n *LeafNode[K, V]) Serialize(raw []byte, kc KeyCodec[K], vc ValueCodec[V]) error {
	buf := new(bytes.Buffer)
	if err := n.Header.encode(buf); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, n.NextLeafID); err != nil {
		return err
	}
	for i := 0; i < n.Size; i++ {
		kb := make([]byte, kc.Size())
		kc.Encode(n.Keys[i], kb)
		buf.Write(kb)
		vb := make([]byte, vc.Size())
		vc.Encode(n.Values[i], vb)
		buf.Write(vb)
	}
	if err := checkCapacity(len(raw), buf.Len()); err != nil {
		return err
	}
	n.sizeInvariant()
	copy(raw, buf.Bytes())
	for i := buf.Len(); i < len(raw); i++ {
		raw[i] = 0
	}
	return nil
}

func (n *LeafNode[K, V]) sizeInvariant() {
	if len(n.Keys) != n.Size || len(n.Values) != n.Size {
		panic(fmt.Sprintf("leaf page %d: size %d inconsistent with %d keys / %d values", n.PageID, n.Size, len(n.Keys), len(n.Values)))
	}
}

// DeserializeLeaf reconstructs a leaf node from raw page bytes.
func DeserializeLeaf[K any, V any](raw []byte, kc KeyCodec[K], vc ValueCodec[V]) (*LeafNode[K, V], error) {
	r := bytes.NewReader(raw)
	hdr, err := decodeHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Type != TypeLeaf {
		return nil, kernelerrors.ErrNotLeaf
	}
	n := &LeafNode[K, V]{Header: hdr}
	if err := binary.Read(r, binary.LittleEndian, &n.NextLeafID); err != nil {
		return nil, fmt.Errorf("decode next leaf id: %w", err)
	}
	n.Keys = make([]K, n.Size)
	n.Values = make([]V, n.Size)
	entrySize := kc.Size() + vc.Size()
	entry := make([]byte, entrySize)
	for i := 0; i < n.Size; i++ {
		if _, err := io.ReadFull(r, entry); err != nil {
			return nil, fmt.Errorf("decode leaf entry %d: %w", i, err)
		}
		n.Keys[i] = kc.Decode(entry[:kc.Size()])
		n.Values[i] = vc.Decode(entry[kc.Size():])
	}
	return n, nil
}
