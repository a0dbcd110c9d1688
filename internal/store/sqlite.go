package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/agentic-research/dirgraph/api"
	"github.com/agentic-research/dirgraph/internal/dirpath"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a Client backed by a single SQLite database file.
//
// The store is process-local, so both consistency levels observe the same
// committed state; the parameter is carried so callers keep the per-call
// choice they would make against a remote directory service.
//
// Multi-statement writes run in transactions; the mutex only guards the
// in-memory facet cache.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string

	mu sync.RWMutex
	// facet definitions of the applied schema, loaded at open and refreshed
	// by ApplySchema.
	facets map[string]api.Facet
}

var _ Client = (*SQLiteStore)(nil)
var _ SchemaApplier = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS facets (
	name TEXT PRIMARY KEY,
	kind TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS facet_attributes (
	facet TEXT NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	required TEXT NOT NULL,
	immutable INTEGER NOT NULL,
	pos INTEGER NOT NULL,
	PRIMARY KEY (facet, name)
);
CREATE TABLE IF NOT EXISTS objects (
	id TEXT PRIMARY KEY,
	facet TEXT,
	is_index INTEGER NOT NULL DEFAULT 0,
	idx_unique INTEGER NOT NULL DEFAULT 0,
	idx_key_facet TEXT,
	idx_key_name TEXT
);
CREATE TABLE IF NOT EXISTS edges (
	parent_id TEXT NOT NULL,
	link_name TEXT NOT NULL,
	child_id TEXT NOT NULL,
	PRIMARY KEY (parent_id, link_name)
);
CREATE INDEX IF NOT EXISTS edges_by_child ON edges(child_id);
CREATE TABLE IF NOT EXISTS object_attributes (
	object_id TEXT NOT NULL,
	facet TEXT NOT NULL,
	name TEXT NOT NULL,
	value TEXT NOT NULL,
	pos INTEGER NOT NULL,
	PRIMARY KEY (object_id, facet, name)
);
CREATE TABLE IF NOT EXISTS index_entries (
	index_id TEXT NOT NULL,
	object_id TEXT NOT NULL,
	value TEXT NOT NULL,
	uniq_value TEXT,
	PRIMARY KEY (index_id, object_id)
);
CREATE INDEX IF NOT EXISTS index_entries_by_value ON index_entries(index_id, value);
CREATE UNIQUE INDEX IF NOT EXISTS index_entries_unique ON index_entries(index_id, uniq_value);
`

// OpenSQLiteStore opens (creating if necessary) a directory database.
// A previously applied schema is loaded back from the facets tables.
func OpenSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(4)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close() // ignore close error
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		_ = db.Close() // ignore close error
		return nil, fmt.Errorf("set synchronous: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close() // ignore close error
		return nil, fmt.Errorf("create graph tables: %w", err)
	}
	// Virtual root object. id '' is the anchor of every materialized path.
	if _, err := db.Exec("INSERT OR IGNORE INTO objects (id) VALUES ('')"); err != nil {
		_ = db.Close() // ignore close error
		return nil, fmt.Errorf("seed root object: %w", err)
	}

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.loadFacets(); err != nil {
		_ = db.Close() // ignore close error
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) loadFacets() error {
	rows, err := s.db.Query("SELECT name, kind FROM facets")
	if err != nil {
		return fmt.Errorf("load facets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	facets := make(map[string]api.Facet)
	for rows.Next() {
		var f api.Facet
		if err := rows.Scan(&f.Name, (*string)(&f.Kind)); err != nil {
			return fmt.Errorf("scan facet: %w", err)
		}
		facets[f.Name] = f
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load facets: %w", err)
	}

	for name, f := range facets {
		attrRows, err := s.db.Query(
			"SELECT name, type, required, immutable FROM facet_attributes WHERE facet = ? ORDER BY pos", name)
		if err != nil {
			return fmt.Errorf("load facet attributes: %w", err)
		}
		for attrRows.Next() {
			var def api.AttributeDefinition
			var immutable int
			if err := attrRows.Scan(&def.Name, (*string)(&def.Type), (*string)(&def.Required), &immutable); err != nil {
				_ = attrRows.Close()
				return fmt.Errorf("scan facet attribute: %w", err)
			}
			def.Immutable = immutable != 0
			f.Attributes = append(f.Attributes, def)
		}
		if err := attrRows.Err(); err != nil {
			_ = attrRows.Close()
			return fmt.Errorf("load facet attributes: %w", err)
		}
		_ = attrRows.Close()
		facets[name] = f
	}

	s.mu.Lock()
	if len(facets) > 0 {
		s.facets = facets
	}
	s.mu.Unlock()
	return nil
}

// ApplySchema implements SchemaApplier.
func (s *SQLiteStore) ApplySchema(ctx context.Context, facets []api.Facet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.facets != nil {
		return fmt.Errorf("apply schema: directory already has an applied schema: %w", ErrSchema)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op if committed

	for _, f := range facets {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO facets (name, kind) VALUES (?, ?)", f.Name, string(f.Kind)); err != nil {
			return fmt.Errorf("apply facet %s: %w", f.Name, err)
		}
		for pos, def := range f.Attributes {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO facet_attributes (facet, name, type, required, immutable, pos) VALUES (?, ?, ?, ?, ?, ?)",
				f.Name, def.Name, string(def.Type), string(def.Required), boolInt(def.Immutable), pos); err != nil {
				return fmt.Errorf("apply attribute %s.%s: %w", f.Name, def.Name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	s.facets = make(map[string]api.Facet, len(facets))
	for _, f := range facets {
		s.facets[f.Name] = f
	}
	return nil
}

// sqlObject is the objects-table row for one graph node.
type sqlObject struct {
	id          string
	facet       sql.NullString
	isIndex     bool
	idxUnique   bool
	idxKeyFacet sql.NullString
	idxKeyName  sql.NullString
}

func (s *SQLiteStore) getObject(ctx context.Context, id string) (*sqlObject, error) {
	var o sqlObject
	var isIndex, idxUnique int
	err := s.db.QueryRowContext(ctx,
		"SELECT id, facet, is_index, idx_unique, idx_key_facet, idx_key_name FROM objects WHERE id = ?", id).
		Scan(&o.id, &o.facet, &isIndex, &idxUnique, &o.idxKeyFacet, &o.idxKeyName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("object %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load object %s: %w", id, err)
	}
	o.isIndex = isIndex != 0
	o.idxUnique = idxUnique != 0
	return &o, nil
}

// resolve maps a selector to an objects-table row.
func (s *SQLiteStore) resolve(ctx context.Context, ref ObjectRef) (*sqlObject, error) {
	if ref.IsID() {
		return s.getObject(ctx, ref.ID())
	}
	id := ""
	for _, seg := range dirpath.Split(ref.Selector) {
		var childID string
		err := s.db.QueryRowContext(ctx,
			"SELECT child_id FROM edges WHERE parent_id = ? AND link_name = ?", id, seg).Scan(&childID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("resolve %s: %w", ref.Selector, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", ref.Selector, err)
		}
		id = childID
	}
	return s.getObject(ctx, id)
}

func (s *SQLiteStore) kindOf(o *sqlObject) api.ObjectKind {
	if !o.facet.Valid {
		return api.KindNode
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.facets[o.facet.String]; ok {
		return f.Kind
	}
	return api.KindNode
}

func (s *SQLiteStore) checkAttachable(o *sqlObject) error {
	if o.isIndex {
		return ErrNotTraversable
	}
	if s.kindOf(o) == api.KindLeafNode {
		return ErrNotTraversable
	}
	return nil
}

func (s *SQLiteStore) hasEdge(ctx context.Context, parentID, linkName string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM edges WHERE parent_id = ? AND link_name = ?", parentID, linkName).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check edge %s: %w", linkName, err)
	}
	return n > 0, nil
}

// CreateObject implements Client.
func (s *SQLiteStore) CreateObject(ctx context.Context, parentPath, linkName, facetName string, attrs []api.AttributeValue) (ObjectRef, error) {
	s.mu.RLock()
	facet, ok := s.facets[facetName]
	s.mu.RUnlock()
	if !ok {
		return ObjectRef{}, fmt.Errorf("create %s: facet %q not in applied schema: %w", linkName, facetName, ErrSchema)
	}
	if err := validateAttributes(facet, attrs); err != nil {
		return ObjectRef{}, fmt.Errorf("create %s: %w", linkName, err)
	}

	parent, err := s.resolve(ctx, PathRef(parentPath))
	if err != nil {
		return ObjectRef{}, err
	}
	if err := s.checkAttachable(parent); err != nil {
		return ObjectRef{}, fmt.Errorf("create under %s: %w", parentPath, err)
	}
	if exists, err := s.hasEdge(ctx, parent.id, linkName); err != nil {
		return ObjectRef{}, err
	} else if exists {
		return ObjectRef{}, fmt.Errorf("create %s under %s: %w", linkName, parentPath, ErrConflict)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("create %s: %w", linkName, err)
	}
	defer func() { _ = tx.Rollback() }() // no-op if committed

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, "INSERT INTO objects (id, facet) VALUES (?, ?)", id, facetName); err != nil {
		return ObjectRef{}, fmt.Errorf("create %s: %w", linkName, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO edges (parent_id, link_name, child_id) VALUES (?, ?, ?)", parent.id, linkName, id); err != nil {
		return ObjectRef{}, fmt.Errorf("link %s: %w", linkName, err)
	}
	for pos, av := range attrs {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO object_attributes (object_id, facet, name, value, pos) VALUES (?, ?, ?, ?, ?)",
			id, av.Key.FacetName, av.Key.Name, av.Value, pos); err != nil {
			return ObjectRef{}, fmt.Errorf("assign %s.%s: %w", av.Key.FacetName, av.Key.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ObjectRef{}, fmt.Errorf("create %s: %w", linkName, err)
	}
	return IDRef(id), nil
}

// AttachObject implements Client.
func (s *SQLiteStore) AttachObject(ctx context.Context, parentPath, linkName string, child ObjectRef) error {
	parent, err := s.resolve(ctx, PathRef(parentPath))
	if err != nil {
		return err
	}
	if err := s.checkAttachable(parent); err != nil {
		return fmt.Errorf("attach under %s: %w", parentPath, err)
	}
	obj, err := s.resolve(ctx, child)
	if err != nil {
		return err
	}

	// Cardinality check and insert run in one transaction so a concurrent
	// attach of the same node-kind child cannot slip between them.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("attach %s: %w", child.Selector, err)
	}
	defer func() { _ = tx.Rollback() }() // no-op if committed

	if s.kindOf(obj) == api.KindNode {
		var n int
		if err := tx.QueryRowContext(ctx,
			"SELECT count(*) FROM edges WHERE child_id = ?", obj.id).Scan(&n); err != nil {
			return fmt.Errorf("attach %s: %w", child.Selector, err)
		}
		if n > 0 {
			return fmt.Errorf("attach %s under %s: %w", child.Selector, parentPath, ErrCardinality)
		}
	}
	var n int
	if err := tx.QueryRowContext(ctx,
		"SELECT count(*) FROM edges WHERE parent_id = ? AND link_name = ?", parent.id, linkName).Scan(&n); err != nil {
		return fmt.Errorf("attach %s: %w", linkName, err)
	}
	if n > 0 {
		return fmt.Errorf("attach %s under %s: %w", linkName, parentPath, ErrConflict)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO edges (parent_id, link_name, child_id) VALUES (?, ?, ?)", parent.id, linkName, obj.id); err != nil {
		return fmt.Errorf("attach %s under %s: %w", linkName, parentPath, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("attach %s under %s: %w", linkName, parentPath, err)
	}
	return nil
}

// DetachObject implements Client.
func (s *SQLiteStore) DetachObject(ctx context.Context, parentPath, linkName string) (ObjectRef, error) {
	parent, err := s.resolve(ctx, PathRef(parentPath))
	if err != nil {
		return ObjectRef{}, err
	}
	var childID string
	err = s.db.QueryRowContext(ctx,
		"SELECT child_id FROM edges WHERE parent_id = ? AND link_name = ?", parent.id, linkName).Scan(&childID)
	if errors.Is(err, sql.ErrNoRows) {
		return ObjectRef{}, fmt.Errorf("detach %s under %s: %w", linkName, parentPath, ErrNotFound)
	}
	if err != nil {
		return ObjectRef{}, fmt.Errorf("detach %s: %w", linkName, err)
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM edges WHERE parent_id = ? AND link_name = ?", parent.id, linkName); err != nil {
		return ObjectRef{}, fmt.Errorf("detach %s: %w", linkName, err)
	}
	return IDRef(childID), nil
}

// ListChildren implements Client.
func (s *SQLiteStore) ListChildren(ctx context.Context, ref ObjectRef, _ ConsistencyLevel) (map[string]string, error) {
	obj, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if obj.isIndex || s.kindOf(obj) == api.KindLeafNode {
		return nil, fmt.Errorf("list children of %s: %w", ref.Selector, ErrNotTraversable)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT link_name, child_id FROM edges WHERE parent_id = ?", obj.id)
	if err != nil {
		return nil, fmt.Errorf("list children of %s: %w", ref.Selector, err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var link, childID string
		if err := rows.Scan(&link, &childID); err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		out[link] = childID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list children of %s: %w", ref.Selector, err)
	}
	return out, nil
}

// ListAttributes implements Client.
func (s *SQLiteStore) ListAttributes(ctx context.Context, ref ObjectRef, _ ConsistencyLevel) ([]api.AttributeValue, error) {
	obj, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT facet, name, value FROM object_attributes WHERE object_id = ? ORDER BY pos", obj.id)
	if err != nil {
		return nil, fmt.Errorf("list attributes of %s: %w", ref.Selector, err)
	}
	defer func() { _ = rows.Close() }()

	var out []api.AttributeValue
	for rows.Next() {
		var av api.AttributeValue
		if err := rows.Scan(&av.Key.FacetName, &av.Key.Name, &av.Value); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		out = append(out, av)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list attributes of %s: %w", ref.Selector, err)
	}
	return out, nil
}

// AppliedFacets implements Client.
func (s *SQLiteStore) AppliedFacets(ctx context.Context, ref ObjectRef, _ ConsistencyLevel) ([]string, error) {
	obj, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !obj.facet.Valid {
		return nil, nil
	}
	return []string{obj.facet.String}, nil
}

// ListParentPaths implements Client.
func (s *SQLiteStore) ListParentPaths(ctx context.Context, ref ObjectRef) ([]string, error) {
	obj, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	paths, err := s.pathsOf(ctx, obj.id)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *SQLiteStore) pathsOf(ctx context.Context, objectID string) ([]string, error) {
	if objectID == "" {
		return []string{"/"}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT parent_id, link_name FROM edges WHERE child_id = ?", objectID)
	if err != nil {
		return nil, fmt.Errorf("parent edges of %s: %w", objectID, err)
	}
	var edges []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.parentID, &e.linkName); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan parent edge: %w", err)
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("parent edges of %s: %w", objectID, err)
	}
	_ = rows.Close()

	var out []string
	for _, e := range edges {
		parentPaths, err := s.pathsOf(ctx, e.parentID)
		if err != nil {
			return nil, err
		}
		for _, pp := range parentPaths {
			out = append(out, dirpath.Join(pp, e.linkName))
		}
	}
	return out, nil
}

// ObjectsWithFacet implements Client. Served by a scan over the objects
// table restricted to the facet column.
func (s *SQLiteStore) ObjectsWithFacet(ctx context.Context, facetName string) ([]ObjectRef, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM objects WHERE facet = ? ORDER BY id", facetName)
	if err != nil {
		return nil, fmt.Errorf("objects with facet %s: %w", facetName, err)
	}
	defer func() { _ = rows.Close() }()

	var out []ObjectRef
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan object id: %w", err)
		}
		out = append(out, IDRef(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("objects with facet %s: %w", facetName, err)
	}
	return out, nil
}

// CreateIndex implements Client.
func (s *SQLiteStore) CreateIndex(ctx context.Context, parentPath, linkName string, unique bool, keys []api.AttributeKey) (ObjectRef, error) {
	if len(keys) == 0 {
		return ObjectRef{}, fmt.Errorf("create index %s: no indexed attribute keys: %w", linkName, ErrSchema)
	}
	parent, err := s.resolve(ctx, PathRef(parentPath))
	if err != nil {
		return ObjectRef{}, err
	}
	if err := s.checkAttachable(parent); err != nil {
		return ObjectRef{}, fmt.Errorf("create index under %s: %w", parentPath, err)
	}
	if exists, err := s.hasEdge(ctx, parent.id, linkName); err != nil {
		return ObjectRef{}, err
	} else if exists {
		return ObjectRef{}, fmt.Errorf("create index %s under %s: %w", linkName, parentPath, ErrConflict)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ObjectRef{}, fmt.Errorf("create index %s: %w", linkName, err)
	}
	defer func() { _ = tx.Rollback() }() // no-op if committed

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO objects (id, is_index, idx_unique, idx_key_facet, idx_key_name) VALUES (?, 1, ?, ?, ?)",
		id, boolInt(unique), keys[0].FacetName, keys[0].Name); err != nil {
		return ObjectRef{}, fmt.Errorf("create index %s: %w", linkName, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO edges (parent_id, link_name, child_id) VALUES (?, ?, ?)", parent.id, linkName, id); err != nil {
		return ObjectRef{}, fmt.Errorf("link index %s: %w", linkName, err)
	}
	if err := tx.Commit(); err != nil {
		return ObjectRef{}, fmt.Errorf("create index %s: %w", linkName, err)
	}
	return IDRef(id), nil
}

// AttachToIndex implements Client. Uniqueness is enforced by the schema: a
// unique-index attachment writes its value into the uniq_value column, which
// carries a DB-level unique constraint per index, so a concurrent duplicate
// fails on insert regardless of check timing.
func (s *SQLiteStore) AttachToIndex(ctx context.Context, index ObjectRef, target ObjectRef) error {
	idx, err := s.resolve(ctx, index)
	if err != nil {
		return err
	}
	if !idx.isIndex {
		return fmt.Errorf("attach to index %s: not an index: %w", index.Selector, ErrNotFound)
	}
	obj, err := s.resolve(ctx, target)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("attach %s to index: %w", target.Selector, err)
	}
	defer func() { _ = tx.Rollback() }() // no-op if committed

	var value string
	err = tx.QueryRowContext(ctx,
		"SELECT value FROM object_attributes WHERE object_id = ? AND facet = ? AND name = ?",
		obj.id, idx.idxKeyFacet.String, idx.idxKeyName.String).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("attach %s to index: object has no value for %s.%s: %w",
			target.Selector, idx.idxKeyFacet.String, idx.idxKeyName.String, ErrAttribute)
	}
	if err != nil {
		return fmt.Errorf("attach %s to index: %w", target.Selector, err)
	}

	if idx.idxUnique {
		var n int
		if err := tx.QueryRowContext(ctx,
			"SELECT count(*) FROM index_entries WHERE index_id = ? AND value = ?", idx.id, value).Scan(&n); err != nil {
			return fmt.Errorf("attach %s to index: %w", target.Selector, err)
		}
		if n > 0 {
			return fmt.Errorf("attach %s to index: value %q already indexed: %w", target.Selector, value, ErrConflict)
		}
	}

	uniqValue := sql.NullString{}
	if idx.idxUnique {
		uniqValue = sql.NullString{String: value, Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO index_entries (index_id, object_id, value, uniq_value) VALUES (?, ?, ?, ?)",
		idx.id, obj.id, value, uniqValue); err != nil {
		// Constraint violation: same target attached twice, or a unique value
		// collision that slipped past the check.
		return fmt.Errorf("attach %s to index: %w (%v)", target.Selector, ErrConflict, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("attach %s to index: %w", target.Selector, err)
	}
	return nil
}

// ListIndex implements Client.
func (s *SQLiteStore) ListIndex(ctx context.Context, index ObjectRef, key api.AttributeKey, rng ValueRange) ([]IndexAttachment, error) {
	idx, err := s.resolve(ctx, index)
	if err != nil {
		return nil, err
	}
	if !idx.isIndex {
		return nil, fmt.Errorf("list index %s: not an index: %w", index.Selector, ErrNotFound)
	}
	if idx.idxKeyFacet.String != key.FacetName || idx.idxKeyName.String != key.Name {
		return nil, fmt.Errorf("list index %s: key %s.%s is not indexed: %w",
			index.Selector, key.FacetName, key.Name, ErrSchema)
	}

	startOp, endOp := ">=", "<="
	if rng.StartMode == Exclusive {
		startOp = ">"
	}
	if rng.EndMode == Exclusive {
		endOp = "<"
	}
	q := fmt.Sprintf(
		"SELECT object_id, value FROM index_entries WHERE index_id = ? AND value %s ? AND value %s ? ORDER BY value, object_id",
		startOp, endOp)

	rows, err := s.db.QueryContext(ctx, q, idx.id, rng.Start, rng.End)
	if err != nil {
		return nil, fmt.Errorf("list index %s: %w", index.Selector, err)
	}
	defer func() { _ = rows.Close() }()

	var out []IndexAttachment
	for rows.Next() {
		var a IndexAttachment
		if err := rows.Scan(&a.ObjectID, &a.Value); err != nil {
			return nil, fmt.Errorf("scan index attachment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list index %s: %w", index.Selector, err)
	}
	return out, nil
}

// Close releases the database handle. Safe to call more than once.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
