// Package index manages secondary indexes: unique ordered index creation,
// batched attachment and exact-match lookup expressed as a degenerate range.
package index

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/agentic-research/dirgraph/api"
	"github.com/agentic-research/dirgraph/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// AttachError reports one failed index attachment. Batch attachment never
// collapses per-item failures into a single opaque error.
type AttachError struct {
	Target store.ObjectRef
	Err    error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("attach %s: %v", e.Target.Selector, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// Engine issues index operations through a store client.
type Engine struct {
	client  store.Client
	log     *zap.Logger
	workers int
}

type Option func(*Engine)

// WithLogger attaches a structured logger; default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithWorkers bounds concurrent attachments in AttachAll.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

func New(client store.Client, opts ...Option) *Engine {
	e := &Engine{client: client, log: zap.NewNop(), workers: 8}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	return e
}

// Create creates a unique ordered index under parentPath. The index's
// lifecycle is independent of the objects it covers; attach them explicitly
// with AttachAll.
func (e *Engine) Create(ctx context.Context, parentPath, linkName string, keys ...api.AttributeKey) (store.ObjectRef, error) {
	e.log.Info("creating index",
		zap.String("parent", parentPath), zap.String("name", linkName), zap.Int("keys", len(keys)))
	return e.client.CreateIndex(ctx, parentPath, linkName, true, keys)
}

// AttachAll attaches each object to the index. Attachments run concurrently
// with no ordering guarantee; every uniqueness conflict is surfaced as its
// own AttachError, joined into the returned error. Objects that attached
// cleanly stay attached even when others fail.
func (e *Engine) AttachAll(ctx context.Context, index store.ObjectRef, objects []store.ObjectRef) error {
	var (
		mu       sync.Mutex
		failures []error
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, obj := range objects {
		obj := obj
		g.Go(func() error {
			if err := e.client.AttachToIndex(ctx, index, obj); err != nil {
				if errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrAttribute) {
					mu.Lock()
					failures = append(failures, &AttachError{Target: obj, Err: err})
					mu.Unlock()
					return nil
				}
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errors.Join(failures...)
}

// FindByExactValue looks up attachments whose indexed value equals value:
// a range query with start = end, both bounds inclusive. A missing value
// yields an empty sequence, not an error.
func (e *Engine) FindByExactValue(ctx context.Context, index store.ObjectRef, key api.AttributeKey, value string) ([]store.IndexAttachment, error) {
	return e.client.ListIndex(ctx, index, key, store.ExactRange(value))
}
