// Package index implements the concurrent disk-page-backed B+tree:
// latch-coupled point lookup, write-latch-crabbed insert and delete
// with the safety-optimization early-release rule, and a forward range
// iterator that chains across leaves. Grounded throughout on
// original_source/src/storage/index/b_plus_tree.cpp and the sibling
// page implementation files, generalized from BusTub's buffer-pool
// pointer API to this module's buffer.PageCache guard types.
package index

import (
	"fmt"

	"github.com/google/uuid"
)

// Config tunes a BPlusTree's page capacities and identity tags used in
// logs and trace spans.
type Config struct {
	LeafMaxSize     int
	InternalMaxSize int
	Name            string
	ID              uuid.UUID
}

func (c *Config) validate() error {
	if c.LeafMaxSize < 2 {
		return fmt.Errorf("%w: leaf max size %d, must be >= 2", ErrInvalidDegree, c.LeafMaxSize)
	}
	if c.InternalMaxSize < 3 {
		return fmt.Errorf("%w: internal max size %d, must be >= 3", ErrInvalidDegree, c.InternalMaxSize)
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Name == "" {
		c.Name = c.ID.String()
	}
	return nil
}
