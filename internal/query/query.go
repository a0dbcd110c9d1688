// Package query implements predicate-filtered subtree enumeration and
// parent-path resolution over an object store client.
package query

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/agentic-research/dirgraph/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine traverses subtrees through a store client.
//
// Traversal is logically a pre-order depth-first walk, implemented as
// explicit per-worker stacks with bounded sibling fan-out: when a free
// worker slot exists a child subtree is handed to a new goroutine, otherwise
// it is pushed onto the local stack. Depth is therefore never bounded by the
// call stack, and sibling store-call latency overlaps.
type Engine struct {
	client  store.Client
	log     *zap.Logger
	workers int

	// Consistency split: topology reads (children) happen right after the
	// build phase and use Serializable; facet/attribute reads tolerate
	// staleness and use Eventual.
	topologyLevel store.ConsistencyLevel
	detailLevel   store.ConsistencyLevel
}

type Option func(*Engine)

// WithLogger attaches a structured logger; default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithWorkers bounds concurrent subtree fan-out. n < 1 means sequential.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

// WithConsistency overrides the per-call consistency split.
func WithConsistency(topology, detail store.ConsistencyLevel) Option {
	return func(e *Engine) {
		e.topologyLevel = topology
		e.detailLevel = detail
	}
}

func New(client store.Client, opts ...Option) *Engine {
	e := &Engine{
		client:        client,
		log:           zap.NewNop(),
		workers:       8,
		topologyLevel: store.Serializable,
		detailLevel:   store.Eventual,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	return e
}

// resultSet is a concurrency-safe set of object references keyed by selector.
// The visited set deduplicates traversal; matches holds predicate hits.
type resultSet struct {
	mu      sync.Mutex
	visited map[string]bool
	matches map[string]store.ObjectRef
}

func newResultSet() *resultSet {
	return &resultSet{
		visited: make(map[string]bool),
		matches: make(map[string]store.ObjectRef),
	}
}

// visit marks a reference as seen; reports false if it already was.
func (r *resultSet) visit(ref store.ObjectRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.visited[ref.Selector] {
		return false
	}
	r.visited[ref.Selector] = true
	return true
}

func (r *resultSet) add(ref store.ObjectRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[ref.Selector] = ref
}

func (r *resultSet) sorted() []store.ObjectRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]store.ObjectRef, 0, len(r.matches))
	for _, ref := range r.matches {
		out = append(out, ref)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Selector < out[j].Selector })
	return out
}

// RecursiveList returns every object in the subtree rooted at root that
// satisfies pred, root included. A nil predicate matches everything.
// ErrNotTraversable from a child is the expected leaf terminal and is
// absorbed as zero children. A cancelled traversal returns the context
// error, never a partial set posing as a complete result.
func (e *Engine) RecursiveList(ctx context.Context, root store.ObjectRef, pred Predicate) ([]store.ObjectRef, error) {
	res := newResultSet()
	res.visit(root)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	var walk func(stack []store.ObjectRef) error
	walk = func(stack []store.ObjectRef) error {
		for len(stack) > 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			ref := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			matched := pred == nil
			if !matched {
				facets, err := e.client.AppliedFacets(ctx, ref, e.detailLevel)
				if err != nil {
					return err
				}
				attrs, err := e.client.ListAttributes(ctx, ref, e.detailLevel)
				if err != nil {
					return err
				}
				matched = pred(facets, attrs)
			}
			if matched {
				res.add(ref)
			}

			children, err := e.client.ListChildren(ctx, ref, e.topologyLevel)
			if errors.Is(err, store.ErrNotTraversable) {
				// Leaf object: terminal by construction.
				continue
			}
			if err != nil {
				return err
			}
			for _, childID := range children {
				child := store.IDRef(childID)
				if !res.visit(child) {
					continue
				}
				if !g.TryGo(func() error { return walk([]store.ObjectRef{child}) }) {
					// Pool saturated: keep the subtree on the local stack.
					stack = append(stack, child)
				}
			}
		}
		return nil
	}

	g.Go(func() error { return walk([]store.ObjectRef{root}) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := res.sorted()
	e.log.Debug("recursive list complete",
		zap.String("root", root.Selector), zap.Int("matches", len(out)))
	return out, nil
}

// ListByFacet returns every object in the directory with the named facet
// applied, sorted by selector. It is the alternate lookup path for a bare
// facet match over the whole directory: served from the store's facet index
// instead of walking the tree, so it is equivalent to RecursiveList from the
// root with a HasFacet predicate but costs one store call.
func (e *Engine) ListByFacet(ctx context.Context, facetName string) ([]store.ObjectRef, error) {
	refs, err := e.client.ObjectsWithFacet(ctx, facetName)
	if err != nil {
		return nil, err
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Selector < refs[j].Selector })
	e.log.Debug("facet list complete",
		zap.String("facet", facetName), zap.Int("matches", len(refs)))
	return refs, nil
}

// FindParentPathsWithPrefix resolves every materialized path of the given
// objects and retains those starting with pathPrefix. Projects object
// identities back into locations, and picks out which of a multi-parent
// leaf's paths matter to the caller's context. The result is a sorted set;
// prefix "/" keeps every path.
func (e *Engine) FindParentPathsWithPrefix(ctx context.Context, pathPrefix string, objects []store.ObjectRef) ([]string, error) {
	set := make(map[string]struct{})
	for _, obj := range objects {
		paths, err := e.client.ListParentPaths(ctx, obj)
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			if strings.HasPrefix(p, pathPrefix) {
				set[p] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
