package index

import "errors"

// ErrInvalidDegree is returned by NewBPlusTree when a configured page
// capacity is too small to support splitting, grounded on the
// teacher's ErrInvalidDegree check in core/indexing/btree.NewBTreeFile.
var ErrInvalidDegree = errors.New("invalid degree: page capacity too small")
