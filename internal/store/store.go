// Package store defines the object store client contract: the only boundary
// between the directory engine and persisted state. Two in-process backends
// implement it (MemoryStore, SQLiteStore); any service exposing the same
// create/list/attach/index primitives can be substituted.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/agentic-research/dirgraph/api"
)

// Sentinel errors for store operations. Callers match with errors.Is.
var (
	// ErrSchema is returned for malformed or duplicate facet/attribute
	// definitions. Fatal during a build: the population step aborts.
	ErrSchema = errors.New("schema error")

	// ErrConflict is returned on a duplicate link name under a parent or a
	// unique-index value collision. Never retried by the store.
	ErrConflict = errors.New("link name or indexed value conflict")

	// ErrCardinality is returned when attaching a NODE-kind object that
	// already has a parent. Fatal for that attachment only.
	ErrCardinality = errors.New("node-kind object already has a parent")

	// ErrNotTraversable is returned when listing children of a LEAF_NODE
	// object. Leaf objects have no children by construction; the query
	// engine absorbs this as zero children.
	ErrNotTraversable = errors.New("object is not traversable")

	// ErrNotFound is returned for references to nonexistent paths, objects
	// or index entries.
	ErrNotFound = errors.New("object not found")

	// ErrAttribute is returned when a required attribute is missing, or an
	// assignment references an attribute the facet does not declare.
	ErrAttribute = errors.New("attribute violates facet contract")
)

// ConsistencyLevel selects the per-call read guarantee.
type ConsistencyLevel int

const (
	// Serializable gives read-after-write consistency at higher latency.
	// Used for topology reads immediately after writes.
	Serializable ConsistencyLevel = iota
	// Eventual gives lower latency with no read-after-write guarantee.
	// Used for attribute and facet reads during the query phase.
	Eventual
)

func (c ConsistencyLevel) String() string {
	if c == Eventual {
		return "EVENTUAL"
	}
	return "SERIALIZABLE"
}

// ObjectRef addresses an object either by a materialized path ("/a/b") or by
// its store-assigned identifier ("$id"). The zero value is invalid.
type ObjectRef struct {
	Selector string
}

// PathRef addresses an object by a materialized path.
func PathRef(path string) ObjectRef {
	return ObjectRef{Selector: path}
}

// IDRef addresses an object by its store-assigned identifier.
func IDRef(objectID string) ObjectRef {
	return ObjectRef{Selector: "$" + objectID}
}

// IsID reports whether the reference carries an object identifier selector.
func (r ObjectRef) IsID() bool {
	return strings.HasPrefix(r.Selector, "$")
}

// ID returns the object identifier for an identifier selector, or "".
func (r ObjectRef) ID() string {
	if r.IsID() {
		return r.Selector[1:]
	}
	return ""
}

// RangeMode controls whether a range bound includes its endpoint.
type RangeMode int

const (
	Inclusive RangeMode = iota
	Exclusive
)

// ValueRange bounds an index query over indexed string values.
// An exact-match lookup is the degenerate range Start == End, both inclusive.
type ValueRange struct {
	Start     string
	End       string
	StartMode RangeMode
	EndMode   RangeMode
}

// ExactRange builds the degenerate inclusive range matching exactly value.
func ExactRange(value string) ValueRange {
	return ValueRange{Start: value, End: value, StartMode: Inclusive, EndMode: Inclusive}
}

// Contains reports whether value falls within the range.
func (r ValueRange) Contains(value string) bool {
	if r.StartMode == Inclusive {
		if value < r.Start {
			return false
		}
	} else if value <= r.Start {
		return false
	}
	if r.EndMode == Inclusive {
		if value > r.End {
			return false
		}
	} else if value >= r.End {
		return false
	}
	return true
}

// IndexAttachment associates an indexed attribute value with a target object.
type IndexAttachment struct {
	ObjectID string
	Value    string
}

// Client is the set of operations the engine issues to the backing directory
// service, independent of transport.
//
// All reference-taking operations accept path or identifier selectors.
// Consistency levels apply to reads only; writes are always durable before
// the call returns.
type Client interface {
	// CreateObject creates an object under parentPath with the given link
	// name, applies the named facet and assigns its attributes. Fails with
	// ErrConflict if linkName already exists under parentPath, ErrAttribute
	// if a required attribute is missing or an assignment is undeclared,
	// ErrNotTraversable if the parent is a leaf object.
	CreateObject(ctx context.Context, parentPath, linkName, facetName string, attrs []api.AttributeValue) (ObjectRef, error)

	// AttachObject attaches an existing object under a parent. Fails with
	// ErrConflict on a duplicate link name, ErrCardinality when the child is
	// NODE-kind and already has a parent.
	AttachObject(ctx context.Context, parentPath, linkName string, child ObjectRef) error

	// DetachObject removes the edge (parentPath, linkName) and returns a
	// reference to the detached object.
	DetachObject(ctx context.Context, parentPath, linkName string) (ObjectRef, error)

	// ListChildren returns linkName → objectID for the object's children.
	// Fails with ErrNotTraversable for LEAF_NODE objects.
	ListChildren(ctx context.Context, ref ObjectRef, level ConsistencyLevel) (map[string]string, error)

	// ListAttributes returns the object's attribute assignments in
	// declaration order of their facets.
	ListAttributes(ctx context.Context, ref ObjectRef, level ConsistencyLevel) ([]api.AttributeValue, error)

	// AppliedFacets returns the names of the facets applied to the object,
	// in application order.
	AppliedFacets(ctx context.Context, ref ObjectRef, level ConsistencyLevel) ([]string, error)

	// ListParentPaths returns every materialized path of the object,
	// one per rooted route through attachments.
	ListParentPaths(ctx context.Context, ref ObjectRef) ([]string, error)

	// ObjectsWithFacet returns a reference for every object in the directory
	// with the named facet applied, in no particular order. An unknown facet
	// yields an empty result, not an error.
	ObjectsWithFacet(ctx context.Context, facetName string) ([]ObjectRef, error)

	// CreateIndex creates an index object under parentPath. The index has a
	// lifecycle independent of the objects it covers; targets must be
	// attached explicitly.
	CreateIndex(ctx context.Context, parentPath, linkName string, unique bool, keys []api.AttributeKey) (ObjectRef, error)

	// AttachToIndex attaches target to the index, recording its indexed
	// attribute value. Fails with ErrConflict on a uniqueness violation.
	AttachToIndex(ctx context.Context, index ObjectRef, target ObjectRef) error

	// ListIndex returns attachments whose indexed value for key falls in the
	// range, ordered by value. An empty result is not an error.
	ListIndex(ctx context.Context, index ObjectRef, key api.AttributeKey, rng ValueRange) ([]IndexAttachment, error)
}

// SchemaApplier is implemented by backends that accept a published schema.
// Application scopes the schema's facets to one directory instance.
type SchemaApplier interface {
	ApplySchema(ctx context.Context, facets []api.Facet) error
}
