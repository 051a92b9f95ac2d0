// Package primer implements a concurrent in-memory ordered set: a skip
// list with probabilistic node heights, guarded by a single
// readers/writer lock. Grounded on
// original_source/src/primer/skiplist.cpp, kept as a standalone
// collaborator with no shared state with the buffer or storage/index
// packages.
package primer

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Comparator imposes the list's total order: negative if a < b, zero
// if equal, positive if a > b.
type Comparator[K any] func(a, b K) int

const branchingFactor = 4

const defaultMaxHeight = 32

// Config tunes a SkipList's maximum height and PRNG seed. The same
// seed always yields the same sequence of node heights, so two lists
// built with identical config and insert order have identical shape.
type Config struct {
	MaxHeight int
	Seed      uint64
	// ID tags this instance's log records, so that a process holding
	// several skip lists open at once (e.g. one per secondary index)
	// can still tell their records apart. Defaults to a fresh uuid.New()
	// if left uuid.Nil, mirroring storage/index.Config.ID.
	ID uuid.UUID
}

func (c Config) withDefaults() Config {
	if c.MaxHeight <= 0 {
		c.MaxHeight = defaultMaxHeight
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return c
}

type skipNode[K any] struct {
	key  K
	next []*skipNode[K]
}

func (n *skipNode[K]) height() int { return len(n.next) }

// SkipList is a concurrent ordered set over keys of type K. A single
// sync.RWMutex guards the whole structure: Contains/Size/Empty/ForEach
// take a shared lock, Insert/Erase/Clear take an exclusive one.
type SkipList[K any] struct {
	mu        sync.RWMutex
	cmp       Comparator[K]
	header    *skipNode[K]
	maxHeight int
	rng       *rand.Rand
	size      int
	id        uuid.UUID

	logger *zap.Logger
}

// NewSkipList constructs an empty skip list ordered by cmp.
func NewSkipList[K any](cmp Comparator[K], cfg Config, logger *zap.Logger) *SkipList[K] {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SkipList[K]{
		cmp:       cmp,
		header:    &skipNode[K]{next: make([]*skipNode[K], cfg.MaxHeight)},
		maxHeight: cfg.MaxHeight,
		rng:       rand.New(rand.NewSource(int64(cfg.Seed))),
		id:        cfg.ID,
		logger:    logger.Named("skiplist").With(zap.String("list_id", cfg.ID.String())),
	}
}

// randomHeight simulates a geometric distribution with branching factor
// 4 (1-in-4 chance per level), capped at maxHeight, so results are
// reproducible given a fixed seed regardless of platform.
func (l *SkipList[K]) randomHeight() int {
	height := 1
	for height < l.maxHeight && l.rng.Intn(branchingFactor) == 0 {
		height++
	}
	return height
}

// findPredecessors walks from the header down through every level,
// filling update[i] with the rightmost node at level i whose key is
// strictly less than key. Must be called with the lock held (either
// mode — it only reads).
func (l *SkipList[K]) findPredecessors(key K) []*skipNode[K] {
	update := make([]*skipNode[K], l.maxHeight)
	curr := l.header
	for i := l.maxHeight - 1; i >= 0; i-- {
		for curr.next[i] != nil && l.cmp(curr.next[i].key, key) < 0 {
			curr = curr.next[i]
		}
		update[i] = curr
	}
	return update
}

// Insert adds key to the list. Returns false without modifying
// anything if an equivalent key is already present.
func (l *SkipList[K]) Insert(key K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	update := l.findPredecessors(key)
	if existing := update[0].next[0]; existing != nil && l.cmp(existing.key, key) == 0 {
		return false
	}

	height := l.randomHeight()
	node := &skipNode[K]{key: key, next: make([]*skipNode[K], height)}
	for i := 0; i < height; i++ {
		node.next[i] = update[i].next[i]
		update[i].next[i] = node
	}
	l.size++
	return true
}

// Erase removes key if present, reporting whether it was found.
func (l *SkipList[K]) Erase(key K) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	update := l.findPredecessors(key)
	target := update[0].next[0]
	if target == nil || l.cmp(target.key, key) != 0 {
		return false
	}
	for i := 0; i < target.height(); i++ {
		update[i].next[i] = target.next[i]
	}
	l.size--
	return true
}

// Contains reports whether key is present, per the comparator's
// equality rule !less(a,b) && !less(b,a).
func (l *SkipList[K]) Contains(key K) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	curr := l.header
	for i := l.maxHeight - 1; i >= 0; i-- {
		for curr.next[i] != nil && l.cmp(curr.next[i].key, key) < 0 {
			curr = curr.next[i]
		}
	}
	next := curr.next[0]
	return next != nil && l.cmp(next.key, key) == 0
}

// ID returns this instance's identity tag.
func (l *SkipList[K]) ID() uuid.UUID { return l.id }

// Size returns the number of elements currently in the list.
func (l *SkipList[K]) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// Empty reports whether the list has no elements.
func (l *SkipList[K]) Empty() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.header.next[0] == nil
}

// Clear removes every element. Nodes are unlinked iteratively, level by
// level, rather than left to recursive destruction, so dropping a very
// large list cannot blow the stack.
func (l *SkipList[K]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := 0; i < l.maxHeight; i++ {
		curr := l.header.next[i]
		for curr != nil {
			next := curr.next[i]
			curr.next[i] = nil
			curr = next
		}
		l.header.next[i] = nil
	}
	l.size = 0
}

// ForEach visits every key in ascending order under the shared lock,
// stopping early if fn returns false. Safe for concurrent readers; it
// must not be called from inside another SkipList method on the same
// list (the lock is not reentrant).
func (l *SkipList[K]) ForEach(fn func(K) bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for n := l.header.next[0]; n != nil; n = n.next[0] {
		if !fn(n.key) {
			return
		}
	}
}
