package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/agentic-research/dirgraph/api"
	"github.com/agentic-research/dirgraph/internal/builder"
	"github.com/agentic-research/dirgraph/internal/index"
	"github.com/agentic-research/dirgraph/internal/query"
	"github.com/agentic-research/dirgraph/internal/schema"
	"github.com/agentic-research/dirgraph/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	rootCmd.AddCommand(demoCmd)
}

// demoCmd runs the whole engine end to end against an in-memory directory:
// schema build, org population, subtree queries and an indexed name lookup.
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Build a sample org directory in memory and query it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return runDemo(cmd.Context(), logger)
	},
}

func runDemo(ctx context.Context, logger *zap.Logger) error {
	sess := schema.NewSession("org_demo")
	defer func() { _ = sess.Teardown(ctx) }()

	for _, f := range builder.OrgFacets() {
		if err := sess.Development().DefineFacet(f); err != nil {
			return err
		}
	}
	published, err := sess.Publish("1.0")
	if err != nil {
		return err
	}
	doc, err := published.JSON()
	if err != nil {
		return err
	}
	fmt.Println(">> Schema in JSON:")
	fmt.Println(doc)

	st := store.NewMemoryStore()
	if err := sess.Apply(ctx, st); err != nil {
		return err
	}

	b := builder.New(st, builder.WithLogger(logger))
	employees, err := buildOrg(ctx, b)
	if err != nil {
		return err
	}

	engine := query.New(st, query.WithLogger(logger))

	// All offices under /locations.
	offices, err := engine.RecursiveList(ctx, store.PathRef("/locations"), query.HasFacet(builder.FacetOffice))
	if err != nil {
		return err
	}
	officePaths, err := engine.FindParentPathsWithPrefix(ctx, "/locations", offices)
	if err != nil {
		return err
	}
	fmt.Println(">> All offices:", officePaths)

	// Everyone attached under the Seattle office.
	seattle, err := engine.RecursiveList(ctx,
		store.PathRef("/locations/americas/usa/seattle"), query.HasFacet(builder.FacetEmployee))
	if err != nil {
		return err
	}
	seattlePaths, err := engine.FindParentPathsWithPrefix(ctx, "/locations", seattle)
	if err != nil {
		return err
	}
	fmt.Println(">> All employees in the seattle office:", seattlePaths)

	// Software engineers and engineers in test, then the offices they sit in.
	roleKey := api.AttributeKey{FacetName: builder.FacetEmployee, Name: builder.AttrEmployeeRole}
	engineers, err := engine.RecursiveList(ctx, store.PathRef("/organization"),
		query.All(
			query.HasFacet(builder.FacetEmployee),
			query.Any(
				query.AttributeEquals(roleKey, string(builder.RoleSDE)),
				query.AttributeEquals(roleKey, string(builder.RoleSDET)),
			),
		))
	if err != nil {
		return err
	}
	engineerPaths, err := engine.FindParentPathsWithPrefix(ctx, "/organization", engineers)
	if err != nil {
		return err
	}
	fmt.Println(">> All SDEs and SDETs:", engineerPaths)

	engineerOffices, err := engine.FindParentPathsWithPrefix(ctx, "/locations", engineers)
	if err != nil {
		return err
	}
	officeSet := make(map[string]struct{})
	for _, p := range engineerOffices {
		officeSet[p[:strings.LastIndex(p, "/")]] = struct{}{}
	}
	fmt.Println(">> All offices with SDEs or SDETs:", keys(officeSet))

	// Indexed lookup: find an employee by name.
	idx := index.New(st, index.WithLogger(logger))
	nameKey := api.AttributeKey{FacetName: builder.FacetEmployee, Name: builder.AttrEmployeeName}
	nameIndex, err := idx.Create(ctx, "/organization", "employee_name_index", nameKey)
	if err != nil {
		return err
	}
	allEmployees, err := engine.RecursiveList(ctx,
		store.PathRef("/organization"), query.HasFacet(builder.FacetEmployee))
	if err != nil {
		return err
	}
	if err := idx.AttachAll(ctx, nameIndex, allEmployees); err != nil {
		return err
	}
	herbert, err := idx.FindByExactValue(ctx, nameIndex, nameKey, "herbert i.")
	if err != nil {
		return err
	}
	if len(herbert) == 0 {
		return fmt.Errorf("employee %q: %w", "herbert i.", store.ErrNotFound)
	}
	herbertPaths, err := engine.FindParentPathsWithPrefix(ctx, "/organization",
		[]store.ObjectRef{store.IDRef(herbert[0].ObjectID)})
	if err != nil {
		return err
	}
	fmt.Println(">> Employee 'herbert i.':", herbertPaths)

	logger.Info("demo complete", zap.Int("employees", len(employees)))
	return nil
}

// buildOrg populates the sample org chart: a group hierarchy under
// /organization, a location hierarchy under /locations, and employees
// cross-linked to their offices. Returns employee paths keyed by first name.
func buildOrg(ctx context.Context, b *builder.Builder) (map[string]string, error) {
	groups := []struct {
		parent, name string
		gt           builder.GroupType
	}{
		{"/", "organization", builder.GroupOrganization},
		{"/organization", "research", builder.GroupDepartment},
		{"/organization/research", "data_mining", builder.GroupTeam},
		{"/organization", "development", builder.GroupDepartment},
		{"/organization/development", "dev_ops", builder.GroupTeam},
		{"/organization/development", "qa", builder.GroupTeam},
	}
	for _, g := range groups {
		if _, err := b.CreateGroup(ctx, g.parent, g.name, g.gt); err != nil {
			return nil, err
		}
	}

	staff := []struct {
		key, parent, name string
		role              builder.EmployeeRole
	}{
		{"gordon", "/organization", "gordon h.", builder.RoleCEO},
		{"herbert", "/organization/development", "herbert i.", builder.RoleDirector},
		{"irene", "/organization/research", "irene j.", builder.RoleDirector},
		{"john", "/organization/research/data_mining", "john k.", builder.RoleManager},
		{"abbie", "/organization/research/data_mining", "abbie b.", builder.RoleDataScientist},
		{"bobbie", "/organization/research/data_mining", "bobbie c.", builder.RoleDataScientist},
		{"carl", "/organization/development/dev_ops", "carl d.", builder.RoleManager},
		{"darryl", "/organization/development/dev_ops", "darryl e.", builder.RoleSDE},
		{"edith", "/organization/development/dev_ops", "edith f.", builder.RoleSDE},
		{"frank", "/organization/development/qa", "frank g.", builder.RoleManager},
		{"kelly", "/organization/development/qa", "kelly l.", builder.RoleSDET},
		{"lauren", "/organization/development/qa", "lauren m.", builder.RoleSDET},
	}
	employees := make(map[string]string, len(staff))
	for _, e := range staff {
		path, err := b.CreateEmployee(ctx, e.parent, e.name, e.role)
		if err != nil {
			return nil, err
		}
		employees[e.key] = path
	}

	regions := []struct{ parent, name string }{
		{"/", "locations"},
		{"/locations", "americas"},
		{"/locations/americas", "usa"},
		{"/locations", "emea"},
		{"/locations/emea", "south_africa"},
	}
	for _, r := range regions {
		if _, err := b.CreateRegion(ctx, r.parent, r.name); err != nil {
			return nil, err
		}
	}

	offices := []struct {
		parent, location string
		ot               builder.OfficeType
	}{
		{"/locations/americas/usa", "seattle", builder.OfficeEngineering},
		{"/locations/americas/usa", "houston", builder.OfficeEngineering},
		{"/locations/americas/usa", "nyc", builder.OfficeHeadquarters},
		{"/locations/emea/south_africa", "cape_town", builder.OfficeResearch},
	}
	for _, o := range offices {
		if _, err := b.CreateOffice(ctx, o.parent, o.location, o.ot); err != nil {
			return nil, err
		}
	}

	assignments := map[string][]string{
		"/locations/americas/usa/seattle":        {"carl", "darryl", "edith"},
		"/locations/americas/usa/houston":        {"frank", "kelly", "lauren"},
		"/locations/americas/usa/nyc":            {"gordon", "herbert", "irene"},
		"/locations/emea/south_africa/cape_town": {"john", "abbie", "bobbie"},
	}
	for office, names := range assignments {
		for _, name := range names {
			if err := b.LinkEmployeeToOffice(ctx, office, employees[name]); err != nil {
				return nil, err
			}
		}
	}
	return employees, nil
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
