// Package builder translates logical tree specifications into object store
// calls, enforcing the single-parent vs multi-parent attachment semantics of
// the org-chart schema.
package builder

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/agentic-research/dirgraph/api"
	"github.com/agentic-research/dirgraph/internal/dirpath"
	"github.com/agentic-research/dirgraph/internal/store"
	"go.uber.org/zap"
)

// GroupType labels the levels of the organization hierarchy.
type GroupType string

const (
	GroupOrganization GroupType = "organization"
	GroupDepartment   GroupType = "department"
	GroupTeam         GroupType = "team"
)

// EmployeeRole is a job function; its value doubles as the identifier code.
type EmployeeRole string

const (
	RoleCEO           EmployeeRole = "ceo"
	RoleDirector      EmployeeRole = "director"
	RoleManager       EmployeeRole = "manager"
	RoleSDE           EmployeeRole = "sde"
	RoleSDET          EmployeeRole = "sdet"
	RoleDataScientist EmployeeRole = "datascientist"
)

// OfficeType labels office objects; its value doubles as the identifier code.
type OfficeType string

const (
	OfficeHeadquarters OfficeType = "headquarter"
	OfficeEngineering  OfficeType = "engineering_office"
	OfficeResearch     OfficeType = "research_office"
)

// Facet and attribute names of the org-chart schema.
const (
	FacetGroup    = "group_facet"
	FacetRegion   = "region_facet"
	FacetOffice   = "office_facet"
	FacetEmployee = "employee_facet"

	AttrGroupType      = "group_type"
	AttrOfficeID       = "office_id"
	AttrOfficeLocation = "office_location"
	AttrOfficeType     = "office_type"
	AttrEmployeeID     = "employee_id"
	AttrEmployeeName   = "employee_name"
	AttrEmployeeRole   = "employee_role"
)

// OrgFacets returns the facet definitions of the org-chart domain: group,
// region and office facets are NODE-kind, employees are LEAF_NODE so one
// employee can hang under both a team and an office.
func OrgFacets() []api.Facet {
	return []api.Facet{
		{Name: FacetGroup, Kind: api.KindNode,
			Attributes: api.RequiredMutableStringAttributes(AttrGroupType)},
		{Name: FacetRegion, Kind: api.KindNode},
		{Name: FacetOffice, Kind: api.KindNode,
			Attributes: api.RequiredMutableStringAttributes(AttrOfficeID, AttrOfficeLocation, AttrOfficeType)},
		{Name: FacetEmployee, Kind: api.KindLeafNode,
			Attributes: api.RequiredMutableStringAttributes(AttrEmployeeID, AttrEmployeeName, AttrEmployeeRole)},
	}
}

// IdentifierFunc composes an object identifier from a role or type code.
type IdentifierFunc func(code string) string

// randomIdentifier is the default scheme: code plus a random non-negative
// integer below 100000. Not unique; collisions surface as ErrConflict and
// employee creation retries with a fresh draw.
func randomIdentifier(code string) string {
	return fmt.Sprintf("%s-%d", code, rand.Intn(100000))
}

// Builder populates a directory through a store client.
type Builder struct {
	client      store.Client
	log         *zap.Logger
	newID       IdentifierFunc
	maxAttempts int
}

type Option func(*Builder)

// WithLogger attaches a structured logger; default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// WithIdentifierFunc replaces the random identifier scheme, e.g. with a
// deterministic counter in tests.
func WithIdentifierFunc(fn IdentifierFunc) Option {
	return func(b *Builder) { b.newID = fn }
}

// WithMaxIDAttempts bounds identifier-collision retries for employee creation.
func WithMaxIDAttempts(n int) Option {
	return func(b *Builder) { b.maxAttempts = n }
}

func New(client store.Client, opts ...Option) *Builder {
	b := &Builder{
		client:      client,
		log:         zap.NewNop(),
		newID:       randomIdentifier,
		maxAttempts: 3,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CreateGroup creates a group object and returns its materialized path.
func (b *Builder) CreateGroup(ctx context.Context, parentPath, linkName string, gt GroupType) (string, error) {
	b.log.Info("creating group",
		zap.String("parent", parentPath), zap.String("name", linkName), zap.String("type", string(gt)))
	_, err := b.client.CreateObject(ctx, parentPath, linkName, FacetGroup,
		[]api.AttributeValue{api.StringValue(FacetGroup, AttrGroupType, string(gt))})
	if err != nil {
		return "", err
	}
	return dirpath.Join(parentPath, linkName), nil
}

// CreateRegion creates a region object and returns its materialized path.
func (b *Builder) CreateRegion(ctx context.Context, parentPath, name string) (string, error) {
	b.log.Info("creating region", zap.String("parent", parentPath), zap.String("name", name))
	_, err := b.client.CreateObject(ctx, parentPath, name, FacetRegion, nil)
	if err != nil {
		return "", err
	}
	return dirpath.Join(parentPath, name), nil
}

// CreateOffice creates an office under a region. The link name is the office
// location; the generated identifier only lives in the office_id attribute,
// so a collision there is harmless.
func (b *Builder) CreateOffice(ctx context.Context, parentPath, location string, ot OfficeType) (string, error) {
	officeID := b.newID(string(ot))
	b.log.Info("creating office",
		zap.String("parent", parentPath), zap.String("location", location),
		zap.String("type", string(ot)), zap.String("id", officeID))
	_, err := b.client.CreateObject(ctx, parentPath, location, FacetOffice,
		[]api.AttributeValue{
			api.StringValue(FacetOffice, AttrOfficeID, officeID),
			api.StringValue(FacetOffice, AttrOfficeLocation, location),
			api.StringValue(FacetOffice, AttrOfficeType, string(ot)),
		})
	if err != nil {
		return "", err
	}
	return dirpath.Join(parentPath, location), nil
}

// CreateEmployee creates a leaf employee object linked under its group. The
// generated identifier is also the link name, so a random collision comes
// back as ErrConflict; creation retries with a fresh identifier up to the
// configured attempt bound, then surfaces the conflict.
func (b *Builder) CreateEmployee(ctx context.Context, parentPath, employeeName string, role EmployeeRole) (string, error) {
	var lastErr error
	for attempt := 0; attempt < b.maxAttempts; attempt++ {
		employeeID := b.newID(string(role))
		b.log.Info("creating employee",
			zap.String("parent", parentPath), zap.String("name", employeeName),
			zap.String("role", string(role)), zap.String("id", employeeID))
		_, err := b.client.CreateObject(ctx, parentPath, employeeID, FacetEmployee,
			[]api.AttributeValue{
				api.StringValue(FacetEmployee, AttrEmployeeID, employeeID),
				api.StringValue(FacetEmployee, AttrEmployeeName, employeeName),
				api.StringValue(FacetEmployee, AttrEmployeeRole, string(role)),
			})
		if err == nil {
			return dirpath.Join(parentPath, employeeID), nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return "", err
		}
		b.log.Warn("employee identifier collision, retrying",
			zap.String("id", employeeID), zap.Int("attempt", attempt+1))
		lastErr = err
	}
	return "", fmt.Errorf("create employee %s: identifier retries exhausted: %w", employeeName, lastErr)
}

// LinkEmployeeToOffice attaches an existing employee under an office,
// multi-parenting the leaf. The employee's trailing identifier segment is
// reused as the link name. Attaching a NODE-kind object this way fails with
// ErrCardinality.
func (b *Builder) LinkEmployeeToOffice(ctx context.Context, officePath, employeePath string) error {
	linkName := dirpath.TrailingSegment(employeePath)
	if linkName == "" {
		return fmt.Errorf("link employee: %q has no identifier segment: %w", employeePath, store.ErrNotFound)
	}
	b.log.Info("assigning employee to office",
		zap.String("employee", linkName), zap.String("office", officePath))
	return b.client.AttachObject(ctx, officePath, linkName, store.PathRef(employeePath))
}
