// Package table defines the narrow contract the B+tree's leaf values
// point into: a RecordID locating a tuple within a heap file. The heap
// itself is an external collaborator — the SQL execution layer and its
// table-heap implementation are out of scope here — so this package
// only carries the identifier type and the interface a real
// implementation would satisfy, plus a fake used by tests that want to
// exercise an index end to end against something tuple-shaped.
package table

import "github.com/gojodb/storagecore/buffer"

// RecordID locates a tuple: the page holding it and its slot within
// that page's slot array.
type RecordID struct {
	PageID     buffer.PageID
	SlotNumber int32
}

// TupleMeta carries per-tuple bookkeeping a heap tracks alongside the
// bytes themselves; Deleted marks a tombstoned slot still occupying
// space until compaction.
type TupleMeta struct {
	Deleted bool
}

// TableHeap is the contract an index-bearing table exposes to index
// consumers. The B+tree in this module never calls it directly — it
// only carries RecordID values as opaque leaf payloads — but callers
// wiring an index to real tuple storage implement it.
type TableHeap interface {
	InsertTuple(meta TupleMeta, tuple []byte) (RecordID, error)
	GetTuple(rid RecordID) (TupleMeta, []byte, error)
	UpdateTupleInPlace(meta TupleMeta, tuple []byte, rid RecordID) error
	UpdateTupleMeta(meta TupleMeta, rid RecordID) error
	MakeIterator() Iterator
}

// Iterator walks a TableHeap's tuples in storage order.
type Iterator interface {
	Valid() bool
	Next()
	Current() (RecordID, TupleMeta, []byte)
}

// FakeTableHeap is an in-memory TableHeap double for tests that need a
// complete index-to-storage round trip without a real heap
// implementation.
type FakeTableHeap struct {
	order []RecordID
	rows  map[RecordID][]byte
	metas map[RecordID]TupleMeta
	next  RecordID
}

// NewFakeTableHeap constructs an empty FakeTableHeap.
func NewFakeTableHeap() *FakeTableHeap {
	return &FakeTableHeap{
		rows:  make(map[RecordID][]byte),
		metas: make(map[RecordID]TupleMeta),
	}
}

func (h *FakeTableHeap) InsertTuple(meta TupleMeta, tuple []byte) (RecordID, error) {
	id := h.next
	h.next.SlotNumber++
	if h.next.SlotNumber >= 64 {
		h.next.SlotNumber = 0
		h.next.PageID++
	}
	buf := make([]byte, len(tuple))
	copy(buf, tuple)
	h.rows[id] = buf
	h.metas[id] = meta
	h.order = append(h.order, id)
	return id, nil
}

func (h *FakeTableHeap) GetTuple(rid RecordID) (TupleMeta, []byte, error) {
	return h.metas[rid], h.rows[rid], nil
}

func (h *FakeTableHeap) UpdateTupleInPlace(meta TupleMeta, tuple []byte, rid RecordID) error {
	if _, ok := h.rows[rid]; !ok {
		return nil
	}
	buf := make([]byte, len(tuple))
	copy(buf, tuple)
	h.rows[rid] = buf
	h.metas[rid] = meta
	return nil
}

func (h *FakeTableHeap) UpdateTupleMeta(meta TupleMeta, rid RecordID) error {
	h.metas[rid] = meta
	return nil
}

func (h *FakeTableHeap) MakeIterator() Iterator {
	return &fakeIterator{heap: h}
}

type fakeIterator struct {
	heap *FakeTableHeap
	pos  int
}

func (it *fakeIterator) Valid() bool { return it.pos < len(it.heap.order) }
func (it *fakeIterator) Next()       { it.pos++ }
func (it *fakeIterator) Current() (RecordID, TupleMeta, []byte) {
	id := it.heap.order[it.pos]
	return id, it.heap.metas[id], it.heap.rows[id]
}
