package buffer

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/gojodb/storagecore/internal/kernelerrors"
)

// node tracks one frame's access history for the LRU-K policy.
type node struct {
	history   []uint64 // oldest first, trimmed to at most k entries
	evictable bool
}

// LRUKReplacer selects which of a fixed number of frames to evict next,
// using the backward k-distance rule: the frame whose k-th most recent
// access is furthest in the past is evicted first; frames with fewer
// than k accesses are treated as having infinite distance and are
// broken by earliest-oldest-access among themselves. See spec.md §4.1.
//
// A single mutex serializes every operation; none of them block on
// anything else, so the critical section is always O(capacity).
type LRUKReplacer struct {
	mu sync.Mutex

	k        uint64
	capacity int
	nodes    map[FrameID]*node
	currTime uint64
	currSize int

	logger    *zap.Logger
	evictions metric.Int64Counter
	sizeGauge metric.Int64ObservableGauge
}

// NewLRUKReplacer constructs a replacer tracking up to capacity frames,
// each weighing backward k-distance over its last k accesses.
func NewLRUKReplacer(capacity int, k uint64, logger *zap.Logger, meter metric.Meter) *LRUKReplacer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &LRUKReplacer{
		k:        k,
		capacity: capacity,
		nodes:    make(map[FrameID]*node, capacity),
		logger:   logger.Named("lruk_replacer"),
	}
	if meter != nil {
		if c, err := meter.Int64Counter("buffer_replacer_evictions_total"); err == nil {
			r.evictions = c
		}
		_, _ = meter.Int64ObservableGauge("buffer_replacer_size",
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				r.mu.Lock()
				defer r.mu.Unlock()
				o.Observe(int64(r.currSize))
				return nil
			}))
	}
	return r
}

func (r *LRUKReplacer) checkRange(id FrameID) error {
	if id < 0 || int(id) >= r.capacity {
		return fmt.Errorf("%w: frame %d (capacity %d)", kernelerrors.ErrOutOfRange, id, r.capacity)
	}
	return nil
}

// RecordAccess notes that frame_id was accessed at the current logical
// timestamp, advancing the clock by one tick. Unknown frames are
// created non-evictable.
func (r *LRUKReplacer) RecordAccess(id FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRange(id); err != nil {
		return err
	}
	r.currTime++

	n, ok := r.nodes[id]
	if !ok {
		n = &node{}
		r.nodes[id] = n
	}
	n.history = append(n.history, r.currTime)
	if uint64(len(n.history)) > r.k {
		n.history = n.history[1:]
	}
	return nil
}

// SetEvictable toggles whether a frame may be chosen by Evict, updating
// the evictable count. A no-op on unknown frames.
func (r *LRUKReplacer) SetEvictable(id FrameID, evictable bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRange(id); err != nil {
		return err
	}
	n, ok := r.nodes[id]
	if !ok {
		return nil
	}
	switch {
	case !n.evictable && evictable:
		r.currSize++
	case n.evictable && !evictable:
		r.currSize--
	}
	n.evictable = evictable
	return nil
}

// Remove drops a frame's access history outright, independent of its
// k-distance. The frame must be evictable; it is a programmer error to
// remove a pinned (non-evictable) frame.
func (r *LRUKReplacer) Remove(id FrameID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkRange(id); err != nil {
		return err
	}
	n, ok := r.nodes[id]
	if !ok {
		return nil
	}
	if !n.evictable {
		return fmt.Errorf("%w: frame %d", kernelerrors.ErrBusyFrame, id)
	}
	delete(r.nodes, id)
	r.currSize--
	return nil
}

// Evict picks the evictable frame with the largest backward k-distance,
// breaking ties by earliest oldest-retained timestamp, erases its
// history, and returns it. It reports false when no frame is evictable.
func (r *LRUKReplacer) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	const infinite = ^uint64(0)
	var (
		victim    FrameID
		found     bool
		victimDis uint64
		victimOld uint64
	)

	for id, n := range r.nodes {
		if !n.evictable {
			continue
		}
		var dis uint64
		if uint64(len(n.history)) < r.k {
			dis = infinite
		} else {
			dis = r.currTime - n.history[0]
		}
		oldest := n.history[0]

		switch {
		case !found:
			victim, victimDis, victimOld, found = id, dis, oldest, true
		case dis > victimDis, dis == victimDis && oldest < victimOld:
			victim, victimDis, victimOld = id, dis, oldest
		}
	}

	if !found {
		return 0, false
	}
	delete(r.nodes, victim)
	r.currSize--
	if r.evictions != nil {
		r.evictions.Add(context.Background(), 1)
	}
	r.logger.Debug("evicted frame", zap.Int("frame_id", int(victim)))
	return victim, true
}

// Size reports the number of frames currently marked evictable.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.currSize
}
