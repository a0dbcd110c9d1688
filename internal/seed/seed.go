// Package seed loads a static tree specification, an ordered sequence of
// object records plus multi-parent cross-links, and replays it against an
// object store client. The spec format is HCL.
//
// Example:
//
//	object "research" {
//	  parent = "/organization"
//	  facet  = "group_facet"
//	  attributes = {
//	    group_type = "department"
//	  }
//	}
//
//	link {
//	  parent = "/locations/americas/usa/seattle"
//	  target = "/organization/development/dev_ops/sde-1"
//	}
package seed

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/agentic-research/dirgraph/api"
	"github.com/agentic-research/dirgraph/internal/dirpath"
	"github.com/agentic-research/dirgraph/internal/store"
	"github.com/hashicorp/hcl/v2/hclsimple"
)

// ObjectSpec is one object creation record. Attributes are scoped to the
// object's facet.
type ObjectSpec struct {
	Name       string            `hcl:"name,label"`
	Parent     string            `hcl:"parent"`
	Facet      string            `hcl:"facet"`
	Attributes map[string]string `hcl:"attributes,optional"`
}

// LinkSpec is one cross-link: an additional parent for an existing
// (leaf-kind) object. The target's trailing segment becomes the link name.
type LinkSpec struct {
	Parent string `hcl:"parent"`
	Target string `hcl:"target"`
}

// TreeSpec is a complete tree specification. Objects apply in file order,
// links after all objects.
type TreeSpec struct {
	Objects []ObjectSpec `hcl:"object,block"`
	Links   []LinkSpec   `hcl:"link,block"`
}

// Load reads and parses a tree specification file.
func Load(path string) (*TreeSpec, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tree spec: %w", err)
	}
	return Parse(path, src)
}

// Parse decodes a tree specification from HCL source. filename is used for
// diagnostics only.
func Parse(filename string, src []byte) (*TreeSpec, error) {
	var spec TreeSpec
	if err := hclsimple.Decode(filename, src, nil, &spec); err != nil {
		return nil, fmt.Errorf("decode tree spec: %w", err)
	}
	return &spec, nil
}

// Apply replays the specification against the client. The first failing
// record aborts the population step; partially applied state is left to the
// caller's teardown.
func (t *TreeSpec) Apply(ctx context.Context, client store.Client) error {
	for _, obj := range t.Objects {
		if err := obj.apply(ctx, client); err != nil {
			return err
		}
	}
	for _, link := range t.Links {
		linkName := dirpath.TrailingSegment(link.Target)
		if linkName == "" {
			return fmt.Errorf("link under %s: target %q has no trailing segment: %w",
				link.Parent, link.Target, store.ErrNotFound)
		}
		if err := client.AttachObject(ctx, link.Parent, linkName, store.PathRef(link.Target)); err != nil {
			return fmt.Errorf("link %s under %s: %w", link.Target, link.Parent, err)
		}
	}
	return nil
}

func (o ObjectSpec) apply(ctx context.Context, client store.Client) error {
	names := make([]string, 0, len(o.Attributes))
	for name := range o.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := make([]api.AttributeValue, 0, len(names))
	for _, name := range names {
		attrs = append(attrs, api.StringValue(o.Facet, name, o.Attributes[name]))
	}
	if _, err := client.CreateObject(ctx, o.Parent, o.Name, o.Facet, attrs); err != nil {
		return fmt.Errorf("create %s under %s: %w", o.Name, o.Parent, err)
	}
	return nil
}
