package schema

import (
	"context"
	"strings"
	"testing"

	"github.com/agentic-research/dirgraph/api"
	"github.com/agentic-research/dirgraph/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupFacet() api.Facet {
	return api.Facet{
		Name:       "group_facet",
		Kind:       api.KindNode,
		Attributes: api.RequiredMutableStringAttributes("group_type"),
	}
}

func TestDefineFacet(t *testing.T) {
	d := NewDevelopment("org")
	require.NoError(t, d.DefineFacet(groupFacet()))

	err := d.DefineFacet(groupFacet())
	assert.ErrorIs(t, err, store.ErrSchema, "duplicate facet name")

	err = d.DefineFacet(api.Facet{Name: "", Kind: api.KindNode})
	assert.ErrorIs(t, err, store.ErrSchema, "empty facet name")

	err = d.DefineFacet(api.Facet{Name: "odd", Kind: "POLICY"})
	assert.ErrorIs(t, err, store.ErrSchema, "unknown object kind")

	err = d.DefineFacet(api.Facet{
		Name:       "dup_attrs",
		Kind:       api.KindLeafNode,
		Attributes: api.RequiredMutableStringAttributes("a", "a"),
	})
	assert.ErrorIs(t, err, store.ErrSchema, "duplicate attribute name")
}

func TestPublish(t *testing.T) {
	d := NewDevelopment("org")

	_, err := d.Publish("1.0")
	assert.ErrorIs(t, err, store.ErrSchema, "publish with no facets")

	require.NoError(t, d.DefineFacet(groupFacet()))

	_, err = d.Publish("not a version!")
	assert.ErrorIs(t, err, store.ErrSchema, "malformed version")

	p, err := d.Publish("1.0")
	require.NoError(t, err)
	assert.Equal(t, "org", p.Name())
	assert.Equal(t, "1.0", p.Version())
	require.Len(t, p.Facets(), 1)

	// The published copy does not alias later development edits.
	require.NoError(t, d.DefineFacet(api.Facet{Name: "later", Kind: api.KindNode}))
	assert.Len(t, p.Facets(), 1)
}

func TestPublishedJSON(t *testing.T) {
	d := NewDevelopment("org")
	require.NoError(t, d.DefineFacet(groupFacet()))
	p, err := d.Publish("1.0")
	require.NoError(t, err)

	doc, err := p.JSON()
	require.NoError(t, err)
	assert.True(t, strings.Contains(doc, `"group_facet"`))
	assert.True(t, strings.Contains(doc, `"REQUIRED_ALWAYS"`))
	assert.True(t, strings.Contains(doc, `"version": "1.0"`))
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	sess := NewSession("org")

	err := sess.Apply(ctx, store.NewMemoryStore())
	assert.ErrorIs(t, err, store.ErrSchema, "apply before publish")

	require.NoError(t, sess.Development().DefineFacet(groupFacet()))
	_, err = sess.Publish("1.0")
	require.NoError(t, err)

	st := store.NewMemoryStore()
	require.NoError(t, sess.Apply(ctx, st))

	// The applied schema is live in the target directory.
	_, err = st.CreateObject(ctx, "/", "org", "group_facet",
		[]api.AttributeValue{api.StringValue("group_facet", "group_type", "organization")})
	require.NoError(t, err)

	require.NoError(t, sess.Teardown(ctx))
	require.NoError(t, sess.Teardown(ctx), "teardown is idempotent")
	assert.Nil(t, sess.Development())

	_, err = sess.Publish("2.0")
	assert.ErrorIs(t, err, store.ErrSchema, "publish after teardown")
}
