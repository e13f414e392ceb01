// Package fixture builds the schemas, instances and mappings shared by the
// backend tests.
package fixture

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/catmig/pkg/types"
)

// Builder wraps a schema under construction; every step fails the test on
// error.
type Builder struct {
	t testing.TB
	s *types.Schema
}

// NewBuilder starts a schema over the default typeside.
func NewBuilder(t testing.TB, name string) *Builder {
	t.Helper()
	return &Builder{t: t, s: types.NewSchema(name, types.DefaultTypeside())}
}

func (b *Builder) Node(name string) *Builder {
	b.t.Helper()
	_, err := b.s.AddNode(name)
	require.NoError(b.t, err)
	return b
}

func (b *Builder) Edge(name, src, tgt string) *Builder {
	b.t.Helper()
	_, err := b.s.AddEdge(name, b.id(src), b.id(tgt))
	require.NoError(b.t, err)
	return b
}

func (b *Builder) Attr(name, src string, sort types.Sort) *Builder {
	b.t.Helper()
	_, err := b.s.AddAttribute(name, b.id(src), sort)
	require.NoError(b.t, err)
	return b
}

// Eq declares start.lhs = start.rhs; an empty side is the identity.
func (b *Builder) Eq(start string, lhs, rhs []string) *Builder {
	b.t.Helper()
	require.NoError(b.t, b.s.AddEquation(Path(b.t, b.s, start, lhs...), Path(b.t, b.s, start, rhs...)))
	return b
}

func (b *Builder) id(name string) types.NodeID {
	b.t.Helper()
	n, err := b.s.Node(name)
	require.NoError(b.t, err)
	return n
}

// Freeze freezes and returns the schema.
func (b *Builder) Freeze() *types.Schema {
	b.t.Helper()
	require.NoError(b.t, b.s.Freeze())
	return b.s
}

// Path resolves start.edges in s.
func Path(t testing.TB, s *types.Schema, start string, edges ...string) types.Path {
	t.Helper()
	p, err := s.PathOf(start, edges...)
	require.NoError(t, err)
	return p
}

// Mapping builds a complete mapping from node pairs and edge images written
// as target edge names starting at the image of the edge's source.
func Mapping(t testing.TB, name string, src, tgt *types.Schema, nodes map[string]string, edges map[string][]string) *types.Mapping {
	t.Helper()
	m, err := types.NewMapping(name, src, tgt)
	require.NoError(t, err)
	for s, d := range nodes {
		sn, err := src.Node(s)
		require.NoError(t, err)
		dn, err := tgt.Node(d)
		require.NoError(t, err)
		require.NoError(t, m.MapNode(sn, dn))
	}
	for _, ed := range src.Edges() {
		img, ok := edges[ed.Name]
		require.True(t, ok, "no image for %s", ed.Name)
		start, ok := m.NodeImage(ed.Source)
		require.True(t, ok)
		require.NoError(t, m.MapEdge(ed.ID, Path(t, tgt, tgt.NodeAt(start).Name, img...)))
	}
	require.NoError(t, m.CheckComplete())
	return m
}

// Rows fills an instance: Counts gives the carrier size per node, Links and
// Attrs give edge values as element-indexed slices (1-based ids).
type Rows struct {
	Counts map[string]int
	Links  map[string][]types.Element
	Attrs  map[string][]types.Value
}

// Instance builds an instance of s from r.
func Instance(t testing.TB, name string, s *types.Schema, r Rows) *types.Instance {
	t.Helper()
	inst, err := types.NewInstance(name, s)
	require.NoError(t, err)
	for _, n := range s.Nodes() {
		for range r.Counts[n.Name] {
			_, err := inst.Insert(n.ID)
			require.NoError(t, err)
		}
	}
	for edge, targets := range r.Links {
		e, err := s.Edge(edge)
		require.NoError(t, err)
		for i, tgt := range targets {
			require.NoError(t, inst.Set(e, types.Element(i+1), tgt))
		}
	}
	for edge, values := range r.Attrs {
		e, err := s.Edge(edge)
		require.NoError(t, err)
		for i, v := range values {
			require.NoError(t, inst.SetAttr(e, types.Element(i+1), v))
		}
	}
	return inst
}

// Company is Employee/Department with manager and secretary, closed by
// manager.worksIn = worksIn and secretary.worksIn = id.
func Company(t testing.TB) *types.Schema {
	return NewBuilder(t, "Company").
		Node("Employee").Node("Department").
		Edge("worksIn", "Employee", "Department").
		Edge("manager", "Employee", "Employee").
		Edge("secretary", "Department", "Employee").
		Attr("ename", "Employee", types.SortString).
		Attr("dname", "Department", types.SortString).
		Eq("Employee", []string{"manager", "worksIn"}, []string{"worksIn"}).
		Eq("Department", []string{"secretary", "worksIn"}, nil).
		Freeze()
}

// CompanyData has three employees across two departments.
func CompanyData(t testing.TB, s *types.Schema) *types.Instance {
	return Instance(t, "Acme", s, Rows{
		Counts: map[string]int{"Employee": 3, "Department": 2},
		Links: map[string][]types.Element{
			"worksIn":   {1, 1, 2},
			"manager":   {1, 1, 3},
			"secretary": {1, 3},
		},
		Attrs: map[string][]types.Value{
			"ename": {types.String("Ann"), types.String("Bob"), types.String("Cy")},
			"dname": {types.String("Eng"), types.String("Ops")},
		},
	})
}

// Staff is Person/Dept with a boss loop.
func Staff(t testing.TB) *types.Schema {
	return NewBuilder(t, "Staff").
		Node("Person").Node("Dept").
		Edge("dept", "Person", "Dept").
		Edge("boss", "Person", "Person").
		Attr("pname", "Person", types.SortString).
		Attr("label", "Dept", types.SortString).
		Freeze()
}

// StaffToCompany reads a person's department through their manager and
// their boss as their manager's manager.
func StaffToCompany(t testing.TB, staff, company *types.Schema) *types.Mapping {
	return Mapping(t, "G", staff, company,
		map[string]string{"Person": "Employee", "Dept": "Department"},
		map[string][]string{
			"dept":  {"manager", "worksIn"},
			"boss":  {"manager", "manager"},
			"pname": {"ename"},
			"label": {"dname"},
		})
}

// Ledger has one attribute of every built-in sort and a custom Date sort.
func Ledger(t testing.TB) *types.Schema {
	ts := types.DefaultTypeside()
	_, err := ts.Register("Date")
	require.NoError(t, err)
	s := types.NewSchema("Ledger", ts)
	entry, err := s.AddNode("Entry")
	require.NoError(t, err)
	for _, a := range []struct {
		name string
		sort types.Sort
	}{
		{"memo", types.SortString},
		{"amount", types.SortInt},
		{"rate", types.SortFloat},
		{"posted", types.SortBool},
		{"day", "Date"},
	} {
		_, err := s.AddAttribute(a.name, entry, a.sort)
		require.NoError(t, err)
	}
	require.NoError(t, s.Freeze())
	return s
}

// LedgerData has two entries; the second has null memo and rate.
func LedgerData(t testing.TB, s *types.Schema) *types.Instance {
	return Instance(t, "Books", s, Rows{
		Counts: map[string]int{"Entry": 2},
		Attrs: map[string][]types.Value{
			"memo":   {types.String("rent"), types.Null(types.SortString)},
			"amount": {types.Int(1200), types.Int(-5)},
			"rate":   {types.Float(0.5), types.Null(types.SortFloat)},
			"posted": {types.Bool(true), types.Bool(false)},
			"day":    {types.Const("Date", "2024-01-01"), types.Const("Date", int64(20240102))},
		},
	})
}

// TwoLinks has employees pointing at departments through worksIn and
// manages.
func TwoLinks(t testing.TB) *types.Schema {
	return NewBuilder(t, "TwoLinks").
		Node("Employee").Node("Department").
		Edge("worksIn", "Employee", "Department").
		Edge("manages", "Employee", "Department").
		Attr("name", "Department", types.SortString).
		Freeze()
}

// OneLink has a single dept edge.
func OneLink(t testing.TB) *types.Schema {
	return NewBuilder(t, "OneLink").
		Node("Employee").Node("Department").
		Edge("dept", "Employee", "Department").
		Attr("name", "Department", types.SortString).
		Freeze()
}

// Collapse sends worksIn and manages to dept.
func Collapse(t testing.TB, src, tgt *types.Schema) *types.Mapping {
	return Mapping(t, "Collapse", src, tgt,
		map[string]string{"Employee": "Employee", "Department": "Department"},
		map[string][]string{"worksIn": {"dept"}, "manages": {"dept"}, "name": {"name"}})
}
