package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/dirgraph/api"
	"github.com/agentic-research/dirgraph/internal/dirpath"
	"github.com/google/uuid"
)

// memObject is one node in the graph. Facets and attributes are stored in
// application order; the engine's single-facet invariant means facets holds
// exactly one entry for every object created through CreateObject.
type memObject struct {
	id     string
	facets []string
	attrs  []api.AttributeValue
}

// edge is one incoming attachment of a child object.
type edge struct {
	parentID string
	linkName string
}

// memIndex holds the attachments of one index object.
type memIndex struct {
	unique   bool
	keys     []api.AttributeKey
	byValue  map[string][]string // indexed value → object IDs
	byObject map[string]string   // object ID → indexed value
}

// MemoryStore is an in-process Client backed by plain maps.
//
// Both consistency levels behave identically here: every read observes every
// prior write. The parameter is accepted so callers exercise the same API
// they would against a remote backend.
//
// A roaring bitmap index (facet name → set of interned object IDs) backs
// ObjectsWithFacet, so facet-scoped scans avoid a full object sweep.
type MemoryStore struct {
	mu      sync.RWMutex
	facets  map[string]api.Facet
	objects map[string]*memObject
	// children: parent object ID → link name → child object ID.
	// The virtual root has object ID "".
	children map[string]map[string]string
	parents  map[string][]edge
	indexes  map[string]*memIndex

	// Roaring bitmap index: facet name → bitmap of interned object IDs.
	facetObjects map[string]*roaring.Bitmap
	objectIntID  map[string]uint32
	intToObject  []string
	nextIntID    uint32
}

var _ Client = (*MemoryStore)(nil)
var _ SchemaApplier = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects:      map[string]*memObject{"": {id: ""}},
		children:     map[string]map[string]string{"": {}},
		parents:      make(map[string][]edge),
		indexes:      make(map[string]*memIndex),
		facetObjects: make(map[string]*roaring.Bitmap),
		objectIntID:  make(map[string]uint32),
	}
}

// ApplySchema implements SchemaApplier. A directory accepts exactly one
// applied schema; a second application fails with ErrSchema.
func (s *MemoryStore) ApplySchema(_ context.Context, facets []api.Facet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.facets != nil {
		return fmt.Errorf("apply schema: directory already has an applied schema: %w", ErrSchema)
	}
	s.facets = make(map[string]api.Facet, len(facets))
	for _, f := range facets {
		s.facets[f.Name] = f
	}
	return nil
}

// resolve maps a selector to an object. Must be called with s.mu held.
func (s *MemoryStore) resolve(ref ObjectRef) (*memObject, error) {
	if ref.IsID() {
		if obj, ok := s.objects[ref.ID()]; ok {
			return obj, nil
		}
		return nil, fmt.Errorf("resolve %s: %w", ref.Selector, ErrNotFound)
	}
	return s.resolvePath(ref.Selector)
}

func (s *MemoryStore) resolvePath(path string) (*memObject, error) {
	id := ""
	for _, seg := range dirpath.Split(path) {
		kids, ok := s.children[id]
		if !ok {
			return nil, fmt.Errorf("resolve %s: %w", path, ErrNotFound)
		}
		childID, ok := kids[seg]
		if !ok {
			return nil, fmt.Errorf("resolve %s: %w", path, ErrNotFound)
		}
		id = childID
	}
	return s.objects[id], nil
}

// kindOf returns the object kind derived from the first applied facet.
// The virtual root and index objects have no facet and traverse as nodes,
// except indexes, which are terminal.
func (s *MemoryStore) kindOf(obj *memObject) api.ObjectKind {
	if len(obj.facets) == 0 {
		return api.KindNode
	}
	if f, ok := s.facets[obj.facets[0]]; ok {
		return f.Kind
	}
	return api.KindNode
}

func (s *MemoryStore) intern(objectID string) uint32 {
	if intID, ok := s.objectIntID[objectID]; ok {
		return intID
	}
	intID := s.nextIntID
	s.nextIntID++
	s.objectIntID[objectID] = intID
	s.intToObject = append(s.intToObject, objectID)
	return intID
}

// CreateObject implements Client.
func (s *MemoryStore) CreateObject(_ context.Context, parentPath, linkName, facetName string, attrs []api.AttributeValue) (ObjectRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.resolvePath(parentPath)
	if err != nil {
		return ObjectRef{}, err
	}
	if err := s.checkAttachable(parent); err != nil {
		return ObjectRef{}, fmt.Errorf("create under %s: %w", parentPath, err)
	}

	facet, ok := s.facets[facetName]
	if !ok {
		return ObjectRef{}, fmt.Errorf("create %s: facet %q not in applied schema: %w", linkName, facetName, ErrSchema)
	}
	if err := validateAttributes(facet, attrs); err != nil {
		return ObjectRef{}, fmt.Errorf("create %s: %w", linkName, err)
	}
	if _, exists := s.children[parent.id][linkName]; exists {
		return ObjectRef{}, fmt.Errorf("create %s under %s: %w", linkName, parentPath, ErrConflict)
	}

	obj := &memObject{
		id:     uuid.NewString(),
		facets: []string{facetName},
		attrs:  append([]api.AttributeValue(nil), attrs...),
	}
	s.objects[obj.id] = obj
	s.children[parent.id][linkName] = obj.id
	s.parents[obj.id] = []edge{{parentID: parent.id, linkName: linkName}}
	if facet.Kind == api.KindNode {
		s.children[obj.id] = map[string]string{}
	}

	bm, ok := s.facetObjects[facetName]
	if !ok {
		bm = roaring.New()
		s.facetObjects[facetName] = bm
	}
	bm.Add(s.intern(obj.id))

	return IDRef(obj.id), nil
}

// checkAttachable rejects leaf objects and indexes as attachment parents.
func (s *MemoryStore) checkAttachable(parent *memObject) error {
	if _, isIndex := s.indexes[parent.id]; isIndex {
		return ErrNotTraversable
	}
	if s.kindOf(parent) == api.KindLeafNode {
		return ErrNotTraversable
	}
	return nil
}

// AttachObject implements Client.
func (s *MemoryStore) AttachObject(_ context.Context, parentPath, linkName string, child ObjectRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.resolvePath(parentPath)
	if err != nil {
		return err
	}
	if err := s.checkAttachable(parent); err != nil {
		return fmt.Errorf("attach under %s: %w", parentPath, err)
	}
	obj, err := s.resolve(child)
	if err != nil {
		return err
	}
	if s.kindOf(obj) == api.KindNode && len(s.parents[obj.id]) > 0 {
		return fmt.Errorf("attach %s under %s: %w", child.Selector, parentPath, ErrCardinality)
	}
	if _, exists := s.children[parent.id][linkName]; exists {
		return fmt.Errorf("attach %s under %s: %w", linkName, parentPath, ErrConflict)
	}

	s.children[parent.id][linkName] = obj.id
	s.parents[obj.id] = append(s.parents[obj.id], edge{parentID: parent.id, linkName: linkName})
	return nil
}

// DetachObject implements Client.
func (s *MemoryStore) DetachObject(_ context.Context, parentPath, linkName string) (ObjectRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.resolvePath(parentPath)
	if err != nil {
		return ObjectRef{}, err
	}
	childID, ok := s.children[parent.id][linkName]
	if !ok {
		return ObjectRef{}, fmt.Errorf("detach %s under %s: %w", linkName, parentPath, ErrNotFound)
	}
	delete(s.children[parent.id], linkName)

	edges := s.parents[childID]
	for i, e := range edges {
		if e.parentID == parent.id && e.linkName == linkName {
			s.parents[childID] = append(edges[:i], edges[i+1:]...)
			break
		}
	}
	return IDRef(childID), nil
}

// ListChildren implements Client.
func (s *MemoryStore) ListChildren(_ context.Context, ref ObjectRef, _ ConsistencyLevel) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	if _, isIndex := s.indexes[obj.id]; isIndex {
		return nil, fmt.Errorf("list children of %s: %w", ref.Selector, ErrNotTraversable)
	}
	if s.kindOf(obj) == api.KindLeafNode {
		return nil, fmt.Errorf("list children of %s: %w", ref.Selector, ErrNotTraversable)
	}

	out := make(map[string]string, len(s.children[obj.id]))
	for link, childID := range s.children[obj.id] {
		out[link] = childID
	}
	return out, nil
}

// ListAttributes implements Client.
func (s *MemoryStore) ListAttributes(_ context.Context, ref ObjectRef, _ ConsistencyLevel) ([]api.AttributeValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return append([]api.AttributeValue(nil), obj.attrs...), nil
}

// AppliedFacets implements Client.
func (s *MemoryStore) AppliedFacets(_ context.Context, ref ObjectRef, _ ConsistencyLevel) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), obj.facets...), nil
}

// ListParentPaths implements Client. Every rooted route through attachments
// yields one materialized path; node-kind objects have exactly one, leaf
// objects one per incoming edge.
func (s *MemoryStore) ListParentPaths(_ context.Context, ref ObjectRef) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	paths := s.pathsOf(obj.id)
	sort.Strings(paths)
	return paths, nil
}

func (s *MemoryStore) pathsOf(objectID string) []string {
	if objectID == "" {
		return []string{"/"}
	}
	var out []string
	for _, e := range s.parents[objectID] {
		for _, pp := range s.pathsOf(e.parentID) {
			out = append(out, dirpath.Join(pp, e.linkName))
		}
	}
	return out
}

// CreateIndex implements Client. The index materializes as a child object
// under parentPath; it has no facet and is not traversable.
func (s *MemoryStore) CreateIndex(_ context.Context, parentPath, linkName string, unique bool, keys []api.AttributeKey) (ObjectRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(keys) == 0 {
		return ObjectRef{}, fmt.Errorf("create index %s: no indexed attribute keys: %w", linkName, ErrSchema)
	}
	parent, err := s.resolvePath(parentPath)
	if err != nil {
		return ObjectRef{}, err
	}
	if err := s.checkAttachable(parent); err != nil {
		return ObjectRef{}, fmt.Errorf("create index under %s: %w", parentPath, err)
	}
	if _, exists := s.children[parent.id][linkName]; exists {
		return ObjectRef{}, fmt.Errorf("create index %s under %s: %w", linkName, parentPath, ErrConflict)
	}

	obj := &memObject{id: uuid.NewString()}
	s.objects[obj.id] = obj
	s.children[parent.id][linkName] = obj.id
	s.parents[obj.id] = []edge{{parentID: parent.id, linkName: linkName}}
	s.indexes[obj.id] = &memIndex{
		unique:   unique,
		keys:     append([]api.AttributeKey(nil), keys...),
		byValue:  make(map[string][]string),
		byObject: make(map[string]string),
	}
	return IDRef(obj.id), nil
}

// AttachToIndex implements Client.
func (s *MemoryStore) AttachToIndex(_ context.Context, index ObjectRef, target ObjectRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idxObj, err := s.resolve(index)
	if err != nil {
		return err
	}
	idx, ok := s.indexes[idxObj.id]
	if !ok {
		return fmt.Errorf("attach to index %s: not an index: %w", index.Selector, ErrNotFound)
	}
	obj, err := s.resolve(target)
	if err != nil {
		return err
	}

	value, ok := attributeValue(obj.attrs, idx.keys[0])
	if !ok {
		return fmt.Errorf("attach %s to index: object has no value for %s.%s: %w",
			target.Selector, idx.keys[0].FacetName, idx.keys[0].Name, ErrAttribute)
	}
	if idx.unique {
		if others := idx.byValue[value]; len(others) > 0 && others[0] != obj.id {
			return fmt.Errorf("attach %s to index: value %q already indexed: %w", target.Selector, value, ErrConflict)
		}
	}
	if prev, attached := idx.byObject[obj.id]; attached {
		if prev == value {
			return fmt.Errorf("attach %s to index: already attached: %w", target.Selector, ErrConflict)
		}
	}
	idx.byObject[obj.id] = value
	idx.byValue[value] = append(idx.byValue[value], obj.id)
	return nil
}

// ListIndex implements Client. Attachments come back ordered by indexed
// value, then object ID for equal values.
func (s *MemoryStore) ListIndex(_ context.Context, index ObjectRef, key api.AttributeKey, rng ValueRange) ([]IndexAttachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idxObj, err := s.resolve(index)
	if err != nil {
		return nil, err
	}
	idx, ok := s.indexes[idxObj.id]
	if !ok {
		return nil, fmt.Errorf("list index %s: not an index: %w", index.Selector, ErrNotFound)
	}
	if idx.keys[0] != key {
		return nil, fmt.Errorf("list index %s: key %s.%s is not indexed: %w",
			index.Selector, key.FacetName, key.Name, ErrSchema)
	}

	var out []IndexAttachment
	for value, ids := range idx.byValue {
		if !rng.Contains(value) {
			continue
		}
		for _, id := range ids {
			out = append(out, IndexAttachment{ObjectID: id, Value: value})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value < out[j].Value
		}
		return out[i].ObjectID < out[j].ObjectID
	})
	return out, nil
}

// ObjectsWithFacet implements Client. Served from the roaring bitmap index,
// not a full object scan.
func (s *MemoryStore) ObjectsWithFacet(_ context.Context, facetName string) ([]ObjectRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bm, ok := s.facetObjects[facetName]
	if !ok {
		return nil, nil
	}
	var out []ObjectRef
	it := bm.Iterator()
	for it.HasNext() {
		intID := it.Next()
		if int(intID) < len(s.intToObject) {
			out = append(out, IDRef(s.intToObject[intID]))
		}
	}
	return out, nil
}

// validateAttributes enforces the facet-attribute contract: every assignment
// must reference a declared attribute of the applied facet, and every
// REQUIRED_ALWAYS attribute must be assigned.
func validateAttributes(facet api.Facet, attrs []api.AttributeValue) error {
	declared := make(map[string]api.AttributeDefinition, len(facet.Attributes))
	for _, def := range facet.Attributes {
		declared[def.Name] = def
	}
	assigned := make(map[string]bool, len(attrs))
	for _, av := range attrs {
		if av.Key.FacetName != facet.Name {
			return fmt.Errorf("attribute %s.%s not scoped to applied facet %s: %w",
				av.Key.FacetName, av.Key.Name, facet.Name, ErrAttribute)
		}
		if _, ok := declared[av.Key.Name]; !ok {
			return fmt.Errorf("attribute %s not declared on facet %s: %w", av.Key.Name, facet.Name, ErrAttribute)
		}
		assigned[av.Key.Name] = true
	}
	for _, def := range facet.Attributes {
		if def.Required == api.RequiredAlways && !assigned[def.Name] {
			return fmt.Errorf("required attribute %s.%s missing: %w", facet.Name, def.Name, ErrAttribute)
		}
	}
	return nil
}

func attributeValue(attrs []api.AttributeValue, key api.AttributeKey) (string, bool) {
	for _, av := range attrs {
		if av.Key == key {
			return av.Value, true
		}
	}
	return "", false
}
