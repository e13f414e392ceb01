package migrate

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/catmig/pkg/types"
)

// builder wraps a schema under construction so fixtures read top to bottom.
type builder struct {
	t *testing.T
	s *types.Schema
}

func newBuilder(t *testing.T, name string) *builder {
	t.Helper()
	return &builder{t: t, s: types.NewSchema(name, types.DefaultTypeside())}
}

func (b *builder) node(name string) *builder {
	b.t.Helper()
	_, err := b.s.AddNode(name)
	require.NoError(b.t, err)
	return b
}

func (b *builder) edge(name, src, tgt string) *builder {
	b.t.Helper()
	_, err := b.s.AddEdge(name, b.id(src), b.id(tgt))
	require.NoError(b.t, err)
	return b
}

func (b *builder) attr(name, src string, sort types.Sort) *builder {
	b.t.Helper()
	_, err := b.s.AddAttribute(name, b.id(src), sort)
	require.NoError(b.t, err)
	return b
}

// eq declares start.lhs = start.rhs; an empty side is the identity.
func (b *builder) eq(start string, lhs, rhs []string) *builder {
	b.t.Helper()
	require.NoError(b.t, b.s.AddEquation(path(b.t, b.s, start, lhs...), path(b.t, b.s, start, rhs...)))
	return b
}

func (b *builder) id(name string) types.NodeID {
	b.t.Helper()
	n, err := b.s.Node(name)
	require.NoError(b.t, err)
	return n
}

func (b *builder) freeze() *types.Schema {
	b.t.Helper()
	require.NoError(b.t, b.s.Freeze())
	return b.s
}

func path(t *testing.T, s *types.Schema, start string, edges ...string) types.Path {
	t.Helper()
	p, err := s.PathOf(start, edges...)
	require.NoError(t, err)
	return p
}

func nodeID(t *testing.T, s *types.Schema, name string) types.NodeID {
	t.Helper()
	n, err := s.Node(name)
	require.NoError(t, err)
	return n
}

func edgeID(t *testing.T, s *types.Schema, name string) types.EdgeID {
	t.Helper()
	e, err := s.Edge(name)
	require.NoError(t, err)
	return e
}

// mapping builds a complete mapping from node pairs and edge images written
// as target edge names starting at the image of the edge's source.
func mapping(t *testing.T, name string, src, tgt *types.Schema, nodes map[string]string, edges map[string][]string) *types.Mapping {
	t.Helper()
	m, err := types.NewMapping(name, src, tgt)
	require.NoError(t, err)
	for s, d := range nodes {
		require.NoError(t, m.MapNode(nodeID(t, src, s), nodeID(t, tgt, d)))
	}
	for _, ed := range src.Edges() {
		img, ok := edges[ed.Name]
		require.True(t, ok, "no image for %s", ed.Name)
		start := tgt.NodeAt(mustImage(t, m, ed.Source)).Name
		require.NoError(t, m.MapEdge(ed.ID, path(t, tgt, start, img...)))
	}
	require.NoError(t, m.CheckComplete())
	return m
}

func mustImage(t *testing.T, m *types.Mapping, n types.NodeID) types.NodeID {
	t.Helper()
	img, ok := m.NodeImage(n)
	require.True(t, ok)
	return img
}

// rows fills an instance: counts gives the carrier size per node, links and
// attrs give edge values as element-indexed slices (1-based ids).
type rows struct {
	counts map[string]int
	links  map[string][]types.Element
	attrs  map[string][]types.Value
}

func instance(t *testing.T, name string, s *types.Schema, r rows) *types.Instance {
	t.Helper()
	inst, err := types.NewInstance(name, s)
	require.NoError(t, err)
	for _, n := range s.Nodes() {
		for range r.counts[n.Name] {
			_, err := inst.Insert(n.ID)
			require.NoError(t, err)
		}
	}
	for edge, targets := range r.links {
		for i, tgt := range targets {
			require.NoError(t, inst.Set(edgeID(t, s, edge), types.Element(i+1), tgt))
		}
	}
	for edge, values := range r.attrs {
		for i, v := range values {
			require.NoError(t, inst.SetAttr(edgeID(t, s, edge), types.Element(i+1), v))
		}
	}
	return inst
}

// company is Employee/Department with manager and secretary, closed by
// manager.worksIn = worksIn and secretary.worksIn = id.
func company(t *testing.T) *types.Schema {
	return newBuilder(t, "Company").
		node("Employee").node("Department").
		edge("worksIn", "Employee", "Department").
		edge("manager", "Employee", "Employee").
		edge("secretary", "Department", "Employee").
		attr("ename", "Employee", types.SortString).
		attr("dname", "Department", types.SortString).
		eq("Employee", []string{"manager", "worksIn"}, []string{"worksIn"}).
		eq("Department", []string{"secretary", "worksIn"}, nil).
		freeze()
}

// companyData has three employees across two departments; e1 and e3 are
// secretaries and e1 manages e2.
func companyData(t *testing.T, s *types.Schema) *types.Instance {
	return instance(t, "Acme", s, rows{
		counts: map[string]int{"Employee": 3, "Department": 2},
		links: map[string][]types.Element{
			"worksIn":   {1, 1, 2},
			"manager":   {1, 1, 3},
			"secretary": {1, 3},
		},
		attrs: map[string][]types.Value{
			"ename": {types.String("Ann"), types.String("Bob"), types.String("Cy")},
			"dname": {types.String("Eng"), types.String("Ops")},
		},
	})
}
