package query

import (
	"context"
	"sort"
	"testing"

	"github.com/agentic-research/dirgraph/api"
	"github.com/agentic-research/dirgraph/internal/builder"
	"github.com/agentic-research/dirgraph/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildOrgFixture populates a small directory:
//
//	/org                    group (organization)
//	/org/dept               group (department)
//	/org/dept/team          group (team)
//	/org/dept/team/e1       employee leaf, also linked under /loc/office1
//	/loc                    region
//	/loc/office1            office
func buildOrgFixture(t *testing.T) *store.MemoryStore {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.ApplySchema(ctx, builder.OrgFacets()))

	groupAttrs := func(gt string) []api.AttributeValue {
		return []api.AttributeValue{api.StringValue(builder.FacetGroup, builder.AttrGroupType, gt)}
	}
	_, err := st.CreateObject(ctx, "/", "org", builder.FacetGroup, groupAttrs("organization"))
	require.NoError(t, err)
	_, err = st.CreateObject(ctx, "/org", "dept", builder.FacetGroup, groupAttrs("department"))
	require.NoError(t, err)
	_, err = st.CreateObject(ctx, "/org/dept", "team", builder.FacetGroup, groupAttrs("team"))
	require.NoError(t, err)
	_, err = st.CreateObject(ctx, "/", "loc", builder.FacetRegion, nil)
	require.NoError(t, err)
	_, err = st.CreateObject(ctx, "/loc", "office1", builder.FacetOffice, []api.AttributeValue{
		api.StringValue(builder.FacetOffice, builder.AttrOfficeID, "engineering_office-1"),
		api.StringValue(builder.FacetOffice, builder.AttrOfficeLocation, "office1"),
		api.StringValue(builder.FacetOffice, builder.AttrOfficeType, "engineering_office"),
	})
	require.NoError(t, err)

	emp, err := st.CreateObject(ctx, "/org/dept/team", "e1", builder.FacetEmployee, []api.AttributeValue{
		api.StringValue(builder.FacetEmployee, builder.AttrEmployeeID, "e1"),
		api.StringValue(builder.FacetEmployee, builder.AttrEmployeeName, "edith f."),
		api.StringValue(builder.FacetEmployee, builder.AttrEmployeeRole, "sde"),
	})
	require.NoError(t, err)
	require.NoError(t, st.AttachObject(ctx, "/loc/office1", "e1", emp))

	return st
}

// facetsOf resolves each matched reference back to its applied facet names.
func facetsOf(t *testing.T, st store.Client, refs []store.ObjectRef) []string {
	t.Helper()
	var out []string
	for _, ref := range refs {
		facets, err := st.AppliedFacets(context.Background(), ref, store.Serializable)
		require.NoError(t, err)
		out = append(out, facets...)
	}
	sort.Strings(out)
	return out
}

func TestRecursiveListAll(t *testing.T) {
	st := buildOrgFixture(t)
	e := New(st)

	got, err := e.RecursiveList(context.Background(), store.PathRef("/"), nil)
	require.NoError(t, err)

	// Root plus every object, the multi-parented employee counted once.
	assert.Len(t, got, 7)
}

func TestRecursiveListFacetFilter(t *testing.T) {
	st := buildOrgFixture(t)
	e := New(st)
	ctx := context.Background()

	groups, err := e.RecursiveList(ctx, store.PathRef("/"), HasFacet(builder.FacetGroup))
	require.NoError(t, err)
	assert.Equal(t, []string{"group_facet", "group_facet", "group_facet"}, facetsOf(t, st, groups))

	employees, err := e.RecursiveList(ctx, store.PathRef("/"), HasFacet(builder.FacetEmployee))
	require.NoError(t, err)
	assert.Equal(t, []string{"employee_facet"}, facetsOf(t, st, employees))

	all, err := e.RecursiveList(ctx, store.PathRef("/"), nil)
	require.NoError(t, err)
	assert.Less(t, len(groups), len(all), "filtered result is a strict subset here")
}

func TestListByFacet(t *testing.T) {
	st := buildOrgFixture(t)
	e := New(st)
	ctx := context.Background()

	groups, err := e.ListByFacet(ctx, builder.FacetGroup)
	require.NoError(t, err)
	assert.Equal(t, []string{"group_facet", "group_facet", "group_facet"}, facetsOf(t, st, groups))

	// The facet index agrees with a full root traversal under the same filter.
	walked, err := e.RecursiveList(ctx, store.PathRef("/"), HasFacet(builder.FacetGroup))
	require.NoError(t, err)
	walkedIDs := make(map[string]bool, len(walked))
	for _, ref := range walked {
		walkedIDs[ref.ID()] = true
	}
	require.Len(t, groups, len(walked))
	for _, ref := range groups {
		assert.True(t, walkedIDs[ref.ID()], "indexed ref %s missing from traversal", ref.Selector)
	}

	none, err := e.ListByFacet(ctx, "missing_facet")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecursiveListSubtreeRoot(t *testing.T) {
	st := buildOrgFixture(t)
	e := New(st)

	got, err := e.RecursiveList(context.Background(), store.PathRef("/loc"), HasFacet(builder.FacetEmployee))
	require.NoError(t, err)
	assert.Equal(t, []string{"employee_facet"}, facetsOf(t, st, got),
		"employee reachable through its office parent")
}

func TestRecursiveListLeafRoot(t *testing.T) {
	st := buildOrgFixture(t)
	e := New(st)

	// A leaf root has no children to enumerate; the walk yields just the root.
	got, err := e.RecursiveList(context.Background(), store.PathRef("/org/dept/team/e1"), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/org/dept/team/e1", got[0].Selector)
}

func TestRecursiveListAbsorbsIndexObjects(t *testing.T) {
	st := buildOrgFixture(t)
	ctx := context.Background()

	nameKey := api.AttributeKey{FacetName: builder.FacetEmployee, Name: builder.AttrEmployeeName}
	_, err := st.CreateIndex(ctx, "/org", "name_index", true, []api.AttributeKey{nameKey})
	require.NoError(t, err)

	e := New(st)
	got, err := e.RecursiveList(ctx, store.PathRef("/org"), nil)
	require.NoError(t, err)
	// org, dept, team, e1 and the index object itself.
	assert.Len(t, got, 5)
}

func TestRecursiveListAttributePredicates(t *testing.T) {
	st := buildOrgFixture(t)
	e := New(st)
	roleKey := api.AttributeKey{FacetName: builder.FacetEmployee, Name: builder.AttrEmployeeRole}

	engineers := All(
		HasFacet(builder.FacetEmployee),
		Any(
			AttributeEquals(roleKey, "sde"),
			AttributeEquals(roleKey, "sdet"),
		),
	)
	got, err := e.RecursiveList(context.Background(), store.PathRef("/"), engineers)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	managers := All(
		HasFacet(builder.FacetEmployee),
		AttributeEquals(roleKey, "manager"),
	)
	got, err = e.RecursiveList(context.Background(), store.PathRef("/"), managers)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecursiveListSequential(t *testing.T) {
	st := buildOrgFixture(t)
	e := New(st, WithWorkers(0))

	got, err := e.RecursiveList(context.Background(), store.PathRef("/"), nil)
	require.NoError(t, err)
	assert.Len(t, got, 7)
}

func TestRecursiveListMissingRoot(t *testing.T) {
	st := buildOrgFixture(t)
	e := New(st)

	_, err := e.RecursiveList(context.Background(), store.PathRef("/nope"), nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecursiveListCancelled(t *testing.T) {
	st := buildOrgFixture(t)
	e := New(st)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := e.RecursiveList(ctx, store.PathRef("/"), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got, "a cancelled traversal never returns a partial set")
}

func TestFindParentPathsWithPrefix(t *testing.T) {
	st := buildOrgFixture(t)
	e := New(st)
	ctx := context.Background()

	emp := store.PathRef("/org/dept/team/e1")

	paths, err := e.FindParentPathsWithPrefix(ctx, "/", nil)
	require.NoError(t, err)
	assert.Empty(t, paths)

	paths, err = e.FindParentPathsWithPrefix(ctx, "/", []store.ObjectRef{emp})
	require.NoError(t, err)
	assert.Equal(t, []string{"/loc/office1/e1", "/org/dept/team/e1"}, paths)

	paths, err = e.FindParentPathsWithPrefix(ctx, "/loc", []store.ObjectRef{emp})
	require.NoError(t, err)
	assert.Equal(t, []string{"/loc/office1/e1"}, paths)

	paths, err = e.FindParentPathsWithPrefix(ctx, "/nowhere", []store.ObjectRef{emp})
	require.NoError(t, err)
	assert.Empty(t, paths)

	// Passing the same object twice does not duplicate paths.
	paths, err = e.FindParentPathsWithPrefix(ctx, "/", []store.ObjectRef{emp, emp})
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	_, err = e.FindParentPathsWithPrefix(ctx, "/", []store.ObjectRef{store.PathRef("/nope")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}
