package builder

import (
	"context"
	"fmt"
	"testing"

	"github.com/agentic-research/dirgraph/api"
	"github.com/agentic-research/dirgraph/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrgStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	s := store.NewMemoryStore()
	require.NoError(t, s.ApplySchema(context.Background(), OrgFacets()))
	return s
}

// sequentialIDs returns an IdentifierFunc that numbers identifiers per code.
func sequentialIDs() IdentifierFunc {
	counts := make(map[string]int)
	return func(code string) string {
		counts[code]++
		return fmt.Sprintf("%s-%d", code, counts[code])
	}
}

func TestBuildHierarchy(t *testing.T) {
	ctx := context.Background()
	st := newOrgStore(t)
	b := New(st, WithIdentifierFunc(sequentialIDs()))

	org, err := b.CreateGroup(ctx, "/", "organization", GroupOrganization)
	require.NoError(t, err)
	assert.Equal(t, "/organization", org)

	dept, err := b.CreateGroup(ctx, org, "engineering", GroupDepartment)
	require.NoError(t, err)
	assert.Equal(t, "/organization/engineering", dept)

	region, err := b.CreateRegion(ctx, "/", "na")
	require.NoError(t, err)
	office, err := b.CreateOffice(ctx, region, "seattle", OfficeEngineering)
	require.NoError(t, err)
	assert.Equal(t, "/na/seattle", office)

	attrs, err := st.ListAttributes(ctx, store.PathRef(office), store.Serializable)
	require.NoError(t, err)
	byName := make(map[string]string)
	for _, av := range attrs {
		byName[av.Key.Name] = av.Value
	}
	assert.Equal(t, "engineering_office-1", byName[AttrOfficeID])
	assert.Equal(t, "seattle", byName[AttrOfficeLocation])
	assert.Equal(t, "engineering_office", byName[AttrOfficeType])
}

func TestCreateEmployeeAndLink(t *testing.T) {
	ctx := context.Background()
	st := newOrgStore(t)
	b := New(st, WithIdentifierFunc(sequentialIDs()))

	team, err := b.CreateGroup(ctx, "/", "team", GroupTeam)
	require.NoError(t, err)
	region, err := b.CreateRegion(ctx, "/", "na")
	require.NoError(t, err)
	office, err := b.CreateOffice(ctx, region, "seattle", OfficeEngineering)
	require.NoError(t, err)

	emp, err := b.CreateEmployee(ctx, team, "edith f.", RoleSDE)
	require.NoError(t, err)
	assert.Equal(t, "/team/sde-1", emp)

	require.NoError(t, b.LinkEmployeeToOffice(ctx, office, emp))

	paths, err := st.ListParentPaths(ctx, store.PathRef(emp))
	require.NoError(t, err)
	assert.Equal(t, []string{"/na/seattle/sde-1", "/team/sde-1"}, paths)
}

func TestCreateEmployeeRetriesOnCollision(t *testing.T) {
	ctx := context.Background()
	st := newOrgStore(t)

	// First two draws collide with an existing link name, the third is fresh.
	draws := []string{"sde-taken", "sde-taken", "sde-free"}
	i := 0
	b := New(st, WithIdentifierFunc(func(string) string {
		id := draws[i]
		i++
		return id
	}))

	team, err := b.CreateGroup(ctx, "/", "team", GroupTeam)
	require.NoError(t, err)
	_, err = st.CreateObject(ctx, team, "sde-taken", FacetEmployee, employeeAttrValues("sde-taken", "squatter", RoleSDE))
	require.NoError(t, err)

	emp, err := b.CreateEmployee(ctx, team, "edith f.", RoleSDE)
	require.NoError(t, err)
	assert.Equal(t, "/team/sde-free", emp)
	assert.Equal(t, 3, i)
}

func TestCreateEmployeeRetriesExhausted(t *testing.T) {
	ctx := context.Background()
	st := newOrgStore(t)
	b := New(st,
		WithIdentifierFunc(func(code string) string { return code + "-taken" }),
		WithMaxIDAttempts(2))

	team, err := b.CreateGroup(ctx, "/", "team", GroupTeam)
	require.NoError(t, err)
	_, err = st.CreateObject(ctx, team, "sde-taken", FacetEmployee, employeeAttrValues("sde-taken", "squatter", RoleSDE))
	require.NoError(t, err)

	_, err = b.CreateEmployee(ctx, team, "edith f.", RoleSDE)
	assert.ErrorIs(t, err, store.ErrConflict)
}

func TestLinkOfficeToSecondParentFails(t *testing.T) {
	ctx := context.Background()
	st := newOrgStore(t)
	b := New(st, WithIdentifierFunc(sequentialIDs()))

	region, err := b.CreateRegion(ctx, "/", "na")
	require.NoError(t, err)
	other, err := b.CreateRegion(ctx, "/", "emea")
	require.NoError(t, err)
	office, err := b.CreateOffice(ctx, region, "seattle", OfficeEngineering)
	require.NoError(t, err)

	// Offices are NODE-kind, only leaves take a second parent.
	err = b.LinkEmployeeToOffice(ctx, other, office)
	assert.ErrorIs(t, err, store.ErrCardinality)
}

func employeeAttrValues(id, name string, role EmployeeRole) []api.AttributeValue {
	return []api.AttributeValue{
		api.StringValue(FacetEmployee, AttrEmployeeID, id),
		api.StringValue(FacetEmployee, AttrEmployeeName, name),
		api.StringValue(FacetEmployee, AttrEmployeeRole, string(role)),
	}
}
