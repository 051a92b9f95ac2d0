package page

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/gojodb/storagecore/buffer"
	"github.com/gojodb/storagecore/internal/kernelerrors"
)

// InternalNode routes searches down to the right child. Size counts
// children; Keys holds Size-1 separators, so Children[i] covers keys in
// [Keys[i-1], Keys[i]) with -∞/+∞ at the ends — equivalent to the data
// model's keys[1..n)/children[0..n) with the unused slot-0 sentinel
// simply omitted rather than stored.
type InternalNode[K any] struct {
	Header
	Keys     []K
	Children []buffer.PageID
}

// NewInternalNode builds an empty internal node with the given child
// capacity.
func NewInternalNode[K any](id buffer.PageID, maxSize int) *InternalNode[K] {
	return &InternalNode[K]{
		Header: Header{Type: TypeInternal, MaxSize: maxSize, PageID: id, ParentID: buffer.InvalidPageID},
	}
}

// MinSize is the lower child-count bound for a non-root internal node:
// ⌈max_size/2⌉.
func (n *InternalNode[K]) MinSize() int { return (n.MaxSize + 1) / 2 }

// IsInsertSafe reports whether this node can absorb one more child
// without needing to split.
func (n *InternalNode[K]) IsInsertSafe() bool { return n.Size < n.MaxSize }

// IsDeleteSafe reports whether this node can lose one child without
// underflowing. A root is safe so long as it keeps more than two
// children (per the root's own rule).
func (n *InternalNode[K]) IsDeleteSafe(isRoot bool) bool {
	if isRoot {
		return n.Size > 2
	}
	return n.Size > n.MinSize()
}

// ChildFor returns the child pointer to descend into for key: the
// largest index i with Keys[i-1] <= key (Children[0] covers -∞).
func (n *InternalNode[K]) ChildFor(key K, cmp Comparator[K]) buffer.PageID {
	idx := upperBound(len(n.Keys), func(i int) int { return cmp(n.Keys[i], key) })
	return n.Children[idx]
}

// IndexOfChild returns the slot holding childID, or -1 if absent.
func (n *InternalNode[K]) IndexOfChild(childID buffer.PageID) int {
	for i, c := range n.Children {
		if c == childID {
			return i
		}
	}
	return -1
}

// InsertAfter inserts a new separator key and the child it routes to,
// in sorted position.
func (n *InternalNode[K]) InsertAfter(key K, childID buffer.PageID, cmp Comparator[K]) {
	idx := lowerBound(len(n.Keys), func(i int) int { return cmp(n.Keys[i], key) })
	n.Keys = append(n.Keys, key)
	copy(n.Keys[idx+1:], n.Keys[idx:len(n.Keys)-1])
	n.Keys[idx] = key

	n.Children = append(n.Children, buffer.InvalidPageID)
	copy(n.Children[idx+2:], n.Children[idx+1:len(n.Children)-1])
	n.Children[idx+1] = childID
	n.Size++
}

// RemoveChildAt drops the child at idx and the separator that routes to
// it (Keys[idx-1] if idx > 0, else Keys[0]).
func (n *InternalNode[K]) RemoveChildAt(idx int) {
	keyIdx := idx
	if keyIdx > 0 {
		keyIdx = idx - 1
	}
	if len(n.Keys) > 0 {
		n.Keys = append(n.Keys[:keyIdx], n.Keys[keyIdx+1:]...)
	}
	n.Children = append(n.Children[:idx], n.Children[idx+1:]...)
	n.Size--
}

// SplitTo moves this node's upper half of (keys, children) to newNode
// and returns the middle key, which is pushed up to the parent rather
// than copied into either sibling.
func (n *InternalNode[K]) SplitTo(newNode *InternalNode[K]) K {
	mid := n.Size / 2
	midKey := n.Keys[mid-1]

	newNode.Children = append(newNode.Children, n.Children[mid:]...)
	newNode.Keys = append(newNode.Keys, n.Keys[mid:]...)
	newNode.Size = len(newNode.Children)
	newNode.ParentID = n.ParentID

	n.Children = n.Children[:mid]
	n.Keys = n.Keys[:mid-1]
	n.Size = mid

	return midKey
}

// MergeFrom appends sibling's run onto n, splicing parentSepKey (the
// separator the parent held between n and sibling) back in between the
// two runs.
func (n *InternalNode[K]) MergeFrom(sibling *InternalNode[K], parentSepKey K) {
	n.Keys = append(n.Keys, parentSepKey)
	n.Keys = append(n.Keys, sibling.Keys...)
	n.Children = append(n.Children, sibling.Children...)
	n.Size += sibling.Size
}

// BorrowLeft rotates the left sibling's last child through the parent
// separator into n, returning the new separator to install between
// left and n.
func (n *InternalNode[K]) BorrowLeft(left *InternalNode[K], parentSepKey K) K {
	lastChildIdx := len(left.Children) - 1
	lastKeyIdx := len(left.Keys) - 1
	movedChild := left.Children[lastChildIdx]
	newSep := left.Keys[lastKeyIdx]

	left.Children = left.Children[:lastChildIdx]
	left.Keys = left.Keys[:lastKeyIdx]
	left.Size--

	n.Children = append([]buffer.PageID{movedChild}, n.Children...)
	n.Keys = append([]K{parentSepKey}, n.Keys...)
	n.Size++

	return newSep
}

// BorrowRight rotates the right sibling's first child through the
// parent separator into n, returning the new separator to install
// between n and right.
func (n *InternalNode[K]) BorrowRight(right *InternalNode[K], parentSepKey K) K {
	movedChild := right.Children[0]
	newSep := right.Keys[0]

	right.Children = right.Children[1:]
	right.Keys = right.Keys[1:]
	right.Size--

	n.Children = append(n.Children, movedChild)
	n.Keys = append(n.Keys, parentSepKey)
	n.Size++

	return newSep
}

// Serialize marshals the internal node into raw, a PageCache frame's
// bytes.
func (n *InternalNode[K]) Serialize(raw []byte, kc KeyCodec[K]) error {
	buf := new(bytes.Buffer)
	if err := n.Header.encode(buf); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := binary.Write(buf, binary.LittleEndian, c); err != nil {
			return err
		}
	}
	for _, k := range n.Keys {
		kb := make([]byte, kc.Size())
		kc.Encode(k, kb)
		buf.Write(kb)
	}
	if err := checkCapacity(len(raw), buf.Len()); err != nil {
		return err
	}
	copy(raw, buf.Bytes())
	for i := buf.Len(); i < len(raw); i++ {
		raw[i] = 0
	}
	return nil
}

// DeserializeInternal reconstructs an internal node from raw page
// bytes.
func DeserializeInternal[K any](raw []byte, kc KeyCodec[K]) (*InternalNode[K], error) {
	r := bytes.NewReader(raw)
	hdr, err := decodeHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Type != TypeInternal {
		return nil, kernelerrors.ErrNotInternal
	}
	n := &InternalNode[K]{Header: hdr}
	n.Children = make([]buffer.PageID, n.Size)
	for i := 0; i < n.Size; i++ {
		if err := binary.Read(r, binary.LittleEndian, &n.Children[i]); err != nil {
			return nil, fmt.Errorf("decode child %d: %w", i, err)
		}
	}
	numKeys := n.Size - 1
	if numKeys < 0 {
		numKeys = 0
	}
	n.Keys = make([]K, numKeys)
	entry := make([]byte, kc.Size())
	for i := 0; i < numKeys; i++ {
		if _, err := io.ReadFull(r, entry); err != nil {
			return nil, fmt.Errorf("decode key %d: %w", i, err)
		}
		n.Keys[i] = kc.Decode(entry)
	}
	return n, nil
}
