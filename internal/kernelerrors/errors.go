// Package kernelerrors collects the sentinel errors shared across the
// storage core. Recoverable conditions (key not found, duplicate insert)
// are not represented here — they are communicated through ordinary
// return values, per the error taxonomy this kernel follows.
package kernelerrors

import "errors"

var (
	// ErrOutOfRange is returned when a FrameID presented to the replacer
	// is not within [0, capacity).
	ErrOutOfRange = errors.New("frame id out of range")

	// ErrBusyFrame is returned by Remove when the target frame is known
	// but not marked evictable.
	ErrBusyFrame = errors.New("frame is not evictable")

	// ErrResourceExhausted is returned when the page cache cannot find a
	// frame to serve a request (all frames pinned, none evictable).
	ErrResourceExhausted = errors.New("page cache exhausted: no evictable frame")

	// ErrDuplicateKey names the duplicate-key condition. No operation in
	// this module returns it: a duplicate insert is reported as a false
	// return instead.
	ErrDuplicateKey = errors.New("key already exists")

	// ErrInvariantViolation marks a broken structural invariant. Per the
	// kernel's failure policy, discovering one of these is fatal: the
	// caller should abort rather than attempt to continue operating on
	// a tree that might be corrupt.
	ErrInvariantViolation = errors.New("storage invariant violation")

	// ErrPageNotFound is returned when a PageID is not resident and the
	// cache's backing store has no record of it either.
	ErrPageNotFound = errors.New("page not found")

	// ErrNotLeaf and ErrNotInternal guard the page downcast helpers.
	ErrNotLeaf     = errors.New("page is not a leaf page")
	ErrNotInternal = errors.New("page is not an internal page")
)
