// Package schema models the directory schema lifecycle: a mutable development
// schema collects facet definitions, publishing freezes it under a version,
// and applying scopes the published facets to one directory instance.
package schema

import (
	"context"
	"fmt"
	"regexp"

	"github.com/agentic-research/dirgraph/api"
	"github.com/agentic-research/dirgraph/internal/store"
	"github.com/ohler55/ojg/oj"
)

// versionPattern accepts user-defined version identifiers like "1.0" or
// "2024-q3". Anything else is rejected at publish time.
var versionPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Development is a named, mutable facet registry.
type Development struct {
	name   string
	facets []api.Facet
	byName map[string]int
}

func NewDevelopment(name string) *Development {
	return &Development{name: name, byName: make(map[string]int)}
}

func (d *Development) Name() string { return d.name }

// DefineFacet registers a facet. Duplicate names and empty names fail with
// store.ErrSchema.
func (d *Development) DefineFacet(f api.Facet) error {
	if f.Name == "" {
		return fmt.Errorf("define facet: empty name: %w", store.ErrSchema)
	}
	if f.Kind != api.KindNode && f.Kind != api.KindLeafNode {
		return fmt.Errorf("define facet %s: unknown object kind %q: %w", f.Name, f.Kind, store.ErrSchema)
	}
	if _, dup := d.byName[f.Name]; dup {
		return fmt.Errorf("define facet %s: already registered: %w", f.Name, store.ErrSchema)
	}
	seen := make(map[string]bool, len(f.Attributes))
	for _, def := range f.Attributes {
		if def.Name == "" || seen[def.Name] {
			return fmt.Errorf("define facet %s: duplicate or empty attribute %q: %w", f.Name, def.Name, store.ErrSchema)
		}
		seen[def.Name] = true
	}
	d.byName[f.Name] = len(d.facets)
	d.facets = append(d.facets, f)
	return nil
}

// Publish freezes the development schema under a version. Fails with
// store.ErrSchema when the schema has no facets or the version is malformed.
func (d *Development) Publish(version string) (*Published, error) {
	if len(d.facets) == 0 {
		return nil, fmt.Errorf("publish %s: schema has no facets: %w", d.name, store.ErrSchema)
	}
	if !versionPattern.MatchString(version) {
		return nil, fmt.Errorf("publish %s: malformed version %q: %w", d.name, version, store.ErrSchema)
	}
	return &Published{
		name:    d.name,
		version: version,
		facets:  append([]api.Facet(nil), d.facets...),
	}, nil
}

// Published is an immutable, versioned schema.
type Published struct {
	name    string
	version string
	facets  []api.Facet
}

func (p *Published) Name() string    { return p.name }
func (p *Published) Version() string { return p.version }

// Facets returns the published facets in definition order.
func (p *Published) Facets() []api.Facet {
	return append([]api.Facet(nil), p.facets...)
}

// document is the serialized shape of a published schema.
type document struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Facets  []api.Facet `json:"facets"`
}

// JSON renders the published schema as an indented JSON document.
func (p *Published) JSON() (string, error) {
	out, err := oj.Marshal(document{Name: p.name, Version: p.version, Facets: p.facets}, 2)
	if err != nil {
		return "", fmt.Errorf("marshal schema %s: %w", p.name, err)
	}
	return string(out), nil
}

// Session threads the schema handles of one build explicitly, so concurrent
// or repeated builds never alias through shared instance state.
type Session struct {
	dev       *Development
	published *Published
}

func NewSession(name string) *Session {
	return &Session{dev: NewDevelopment(name)}
}

// Development returns the session's mutable schema, or nil after teardown.
func (s *Session) Development() *Development { return s.dev }

// Publish freezes the session's development schema.
func (s *Session) Publish(version string) (*Published, error) {
	if s.dev == nil {
		return nil, fmt.Errorf("publish: session torn down: %w", store.ErrSchema)
	}
	p, err := s.dev.Publish(version)
	if err != nil {
		return nil, err
	}
	s.published = p
	return p, nil
}

// Apply applies the session's published schema to a directory backend.
func (s *Session) Apply(ctx context.Context, target store.SchemaApplier) error {
	if s.published == nil {
		return fmt.Errorf("apply: schema not published: %w", store.ErrSchema)
	}
	return target.ApplySchema(ctx, s.published.Facets())
}

// Teardown releases the session's schema handles. Tolerates repeated calls:
// releasing an already-released handle is not a failure.
func (s *Session) Teardown(context.Context) error {
	s.dev = nil
	s.published = nil
	return nil
}
