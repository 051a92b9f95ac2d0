// Package page holds the disk-page layout and node primitives the
// B+tree is built from: a fixed header common to every page, a leaf
// node (sorted keys + RecordID values + sibling link), and an internal
// node (sorted separators + child pointers). Every node knows how to
// marshal itself to and from a PageCache frame's raw bytes, following
// the teacher's core/indexing/btree.Node[K,V] split of in-memory struct
// vs. on-page byte layout.
package page

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/gojodb/storagecore/buffer"
)

// Type distinguishes a leaf page from an internal page.
type Type uint8

const (
	TypeLeaf Type = iota
	TypeInternal
)

// Header is the fixed-layout prefix common to leaf and internal pages:
// type, current size, max size, own id, and a parent hint. The tree
// never reads the hint: new nodes start with INVALID_PAGE_ID and split
// siblings copy it, while split propagation and sibling lookups use the
// latch stack held during descent.
type Header struct {
	Type      Type
	Size      int
	MaxSize   int
	PageID    buffer.PageID
	ParentID  buffer.PageID
}

// headerEncodedSize matches the data model's bit-exact layout:
// [page_type:u8][reserved:u8x3][size:i32][max_size:i32][page_id:i32][parent_id:i32].
// The three reserved bytes carry no field today; they exist purely to
// keep size/max_size 4-byte aligned, matching the named layout exactly.
const headerEncodedSize = 1 + 3 + 4 + 4 + 4 + 4

var headerReserved = [3]byte{}

func (h Header) encode(buf *bytes.Buffer) error {
	if err := binary.Write(buf, binary.LittleEndian, h.Type); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, headerReserved); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, int32(h.Size)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, int32(h.MaxSize)); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, h.PageID); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.LittleEndian, h.ParentID); err != nil {
		return err
	}
	return nil
}

func decodeHeader(r *bytes.Reader) (Header, error) {
	var h Header
	var reserved [3]byte
	var size, maxSize int32
	if err := binary.Read(r, binary.LittleEndian, &h.Type); err != nil {
		return h, fmt.Errorf("decode header type: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &reserved); err != nil {
		return h, fmt.Errorf("decode header reserved: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return h, fmt.Errorf("decode header size: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &maxSize); err != nil {
		return h, fmt.Errorf("decode header maxSize: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.PageID); err != nil {
		return h, fmt.Errorf("decode header pageID: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.ParentID); err != nil {
		return h, fmt.Errorf("decode header parentID: %w", err)
	}
	h.Size, h.MaxSize = int(size), int(maxSize)
	return h, nil
}

// PeekType reads just enough of a raw page to learn whether it is a
// leaf or internal page, without committing to a key/value type.
func PeekType(raw []byte) (Type, error) {
	if len(raw) < 1 {
		return 0, fmt.Errorf("page too short to contain a header")
	}
	return Type(raw[0]), nil
}

// HeaderPage is the distinguished page holding the tree's root
// pointer, per the data model: a single field, never deleted, with
// root_page_id == InvalidPageID denoting an empty tree.
type HeaderPage struct {
	RootPageID buffer.PageID
}

// Encode writes the header page's single field into raw.
func (h HeaderPage) Encode(raw []byte) error {
	if len(raw) < 4 {
		return fmt.Errorf("page too short for header page")
	}
	binary.LittleEndian.PutUint32(raw, uint32(h.RootPageID))
	return nil
}

// DecodeHeaderPage reads the root pointer back out of raw.
func DecodeHeaderPage(raw []byte) (HeaderPage, error) {
	if len(raw) < 4 {
		return HeaderPage{}, fmt.Errorf("page too short for header page")
	}
	return HeaderPage{RootPageID: buffer.PageID(int32(binary.LittleEndian.Uint32(raw)))}, nil
}
