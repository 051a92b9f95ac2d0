package index

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/gojodb/storagecore/buffer"
	"github.com/gojodb/storagecore/internal/kernelerrors"
	"github.com/gojodb/storagecore/storage/page"
)

// BPlusTree is a concurrent, disk-page-backed B+tree over unique keys
// of type K mapping to values of type V (for this module, always a
// table.RecordID). Every operation borrows latched page handles from a
// buffer.PageCache and never holds more than the latches the crabbing
// protocol requires.
type BPlusTree[K any, V any] struct {
	cache        buffer.PageCache
	cmp          page.Comparator[K]
	kc           page.KeyCodec[K]
	vc           page.ValueCodec[V]
	cfg          Config
	headerPageID buffer.PageID

	logger *zap.Logger
	tracer trace.Tracer
}

// NewBPlusTree allocates the tree's header page (root_page_id starts
// at InvalidPageID, denoting an empty tree) and returns a ready-to-use
// tree.
func NewBPlusTree[K any, V any](
	cache buffer.PageCache,
	cmp page.Comparator[K],
	kc page.KeyCodec[K],
	vc page.ValueCodec[V],
	cfg Config,
	logger *zap.Logger,
	tracer trace.Tracer,
) (*BPlusTree[K, V], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	headerGuard, err := cache.NewPage()
	if err != nil {
		return nil, fmt.Errorf("allocate header page: %w", err)
	}
	if err := (page.HeaderPage{RootPageID: buffer.InvalidPageID}).Encode(headerGuard.Data()); err != nil {
		headerGuard.Done()
		return nil, err
	}
	headerPageID := headerGuard.PageID()
	headerGuard.Done()

	return &BPlusTree[K, V]{
		cache:        cache,
		cmp:          cmp,
		kc:           kc,
		vc:           vc,
		cfg:          cfg,
		headerPageID: headerPageID,
		logger:       logger.Named("bplustree").With(zap.String("tree_id", cfg.ID.String()), zap.String("tree_name", cfg.Name)),
		tracer:       tracer,
	}, nil
}

func (t *BPlusTree[K, V]) readRootID() (buffer.PageID, error) {
	guard, err := t.cache.FetchPageRead(t.headerPageID)
	if err != nil {
		return buffer.InvalidPageID, err
	}
	defer guard.Done()
	hdr, err := page.DecodeHeaderPage(guard.Data())
	if err != nil {
		return buffer.InvalidPageID, err
	}
	return hdr.RootPageID, nil
}

// IsEmpty reports whether the tree currently has no root.
func (t *BPlusTree[K, V]) IsEmpty() bool {
	root, err := t.readRootID()
	return err == nil && root == buffer.InvalidPageID
}

// RootID returns the current root page id, or InvalidPageID for an
// empty tree.
func (t *BPlusTree[K, V]) RootID() buffer.PageID {
	root, err := t.readRootID()
	if err != nil {
		return buffer.InvalidPageID
	}
	return root
}

// Height walks from the root to the leftmost leaf under read latches,
// counting the number of levels (a one-leaf tree has height 1).
func (t *BPlusTree[K, V]) Height() int {
	root, err := t.readRootID()
	if err != nil || root == buffer.InvalidPageID {
		return 0
	}
	height := 0
	guard, err := t.cache.FetchPageRead(root)
	if err != nil {
		return 0
	}
	for {
		height++
		typ, err := page.PeekType(guard.Data())
		if err != nil {
			guard.Done()
			return height
		}
		if typ == page.TypeLeaf {
			guard.Done()
			return height
		}
		internal, err := page.DeserializeInternal[K](guard.Data(), t.kc)
		if err != nil || len(internal.Children) == 0 {
			guard.Done()
			return height
		}
		next := internal.Children[0]
		guard.Done()
		guard, err = t.cache.FetchPageRead(next)
		if err != nil {
			return height
		}
	}
}

func (t *BPlusTree[K, V]) startSpan(ctx context.Context, op string, key K) (context.Context, trace.Span) {
	if t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "bplustree."+op, trace.WithAttributes(
		attribute.String("tree_name", t.cfg.Name),
		attribute.String("tree_id", t.cfg.ID.String()),
	))
}

// Get performs latch-coupled read descent to the leaf that would hold
// key, returning its value if present.
func (t *BPlusTree[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	_, span := t.startSpan(ctx, "get", key)
	defer span.End()

	var zero V
	root, err := t.readRootID()
	if err != nil {
		return zero, false, err
	}
	if root == buffer.InvalidPageID {
		return zero, false, nil
	}

	guard, err := t.cache.FetchPageRead(root)
	if err != nil {
		return zero, false, err
	}
	for {
		typ, err := page.PeekType(guard.Data())
		if err != nil {
			guard.Done()
			return zero, false, err
		}
		if typ == page.TypeLeaf {
			leaf, err := page.DeserializeLeaf[K, V](guard.Data(), t.kc, t.vc)
			guard.Done()
			if err != nil {
				return zero, false, err
			}
			v, ok := leaf.Find(key, t.cmp)
			return v, ok, nil
		}
		internal, err := page.DeserializeInternal[K](guard.Data(), t.kc)
		if err != nil {
			guard.Done()
			return zero, false, err
		}
		childID := internal.ChildFor(key, t.cmp)
		childGuard, err := t.cache.FetchPageRead(childID)
		guard.Done() // read latch coupling: release parent once child is latched
		if err != nil {
			return zero, false, err
		}
		guard = childGuard
	}
}

func (t *BPlusTree[K, V]) writeLeaf(guard *buffer.WritePageGuard, leaf *page.LeafNode[K, V]) {
	if err := leaf.Serialize(guard.Data(), t.kc, t.vc); err != nil {
		panic(fmt.Sprintf("%v: %v", kernelerrors.ErrInvariantViolation, err))
	}
}

func (t *BPlusTree[K, V]) writeInternal(guard *buffer.WritePageGuard, n *page.InternalNode[K]) {
	if err := n.Serialize(guard.Data(), t.kc); err != nil {
		panic(fmt.Sprintf("%v: %v", kernelerrors.ErrInvariantViolation, err))
	}
}

func releaseAll(stack []*buffer.WritePageGuard) {
	for _, g := range stack {
		g.Done()
	}
}
