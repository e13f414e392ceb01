package types

import (
	"fmt"
	"strings"
)

// Node is an object of the schema category (an entity or table).
type Node struct {
	ID   NodeID
	Name string
}

// Edge is a generating morphism. Foreign keys connect two nodes; attributes
// connect a node to a typeside sort and have a non-empty Sort.
type Edge struct {
	ID     EdgeID
	Name   string
	Source NodeID
	Target NodeID // meaningful only for foreign keys
	Sort   Sort   // non-empty for attributes
}

// IsAttribute reports whether e targets a typeside sort.
func (e Edge) IsAttribute() bool { return e.Sort != "" }

// Codomain returns the edge's target endpoint.
func (e Edge) Codomain() Endpoint {
	if e.IsAttribute() {
		return Endpoint{Node: -1, Sort: e.Sort}
	}
	return Endpoint{Node: e.Target}
}

// Schema is a finitely presented category over a typeside: nodes, edges and
// declared path equations. A schema is built incrementally, every call failing
// fast and leaving the schema unchanged on error, and then frozen. Instances
// and mappings require a frozen schema; a frozen schema is safe for
// concurrent reads.
type Schema struct {
	name      string
	typeside  *Typeside
	nodes     []Node
	edges     []Edge
	equations []Equation
	nodeIndex map[string]NodeID
	edgeIndex map[string]EdgeID
	frozen    bool
	base      *Congruence
}

// NewSchema returns an empty, unfrozen schema over ts.
func NewSchema(name string, ts *Typeside) *Schema {
	if ts == nil {
		ts = DefaultTypeside()
	}
	return &Schema{
		name:      name,
		typeside:  ts,
		nodeIndex: make(map[string]NodeID),
		edgeIndex: make(map[string]EdgeID),
	}
}

// Name returns the schema's name.
func (s *Schema) Name() string { return s.name }

// Typeside returns the typeside the schema is built on.
func (s *Schema) Typeside() *Typeside { return s.typeside }

// Frozen reports whether Freeze has been called.
func (s *Schema) Frozen() bool { return s.frozen }

// AddNode declares a node. Returns ErrDuplicateNode on a name collision.
func (s *Schema) AddNode(name string) (NodeID, error) {
	if s.frozen {
		return -1, ErrSchemaFrozen
	}
	if name == "" {
		return -1, ErrInvalidName
	}
	if _, ok := s.nodeIndex[name]; ok {
		return -1, fmt.Errorf("%w: %q", ErrDuplicateNode, name)
	}
	id := NodeID(len(s.nodes))
	s.nodes = append(s.nodes, Node{ID: id, Name: name})
	s.nodeIndex[name] = id
	return id, nil
}

// AddEdge declares a foreign key from src to tgt.
func (s *Schema) AddEdge(name string, src, tgt NodeID) (EdgeID, error) {
	if err := s.checkNewEdge(name, src); err != nil {
		return -1, err
	}
	if !s.hasNode(tgt) {
		return -1, fmt.Errorf("%w: target %d of edge %q", ErrUnknownNode, tgt, name)
	}
	return s.appendEdge(Edge{Name: name, Source: src, Target: tgt}), nil
}

// AddAttribute declares an attribute edge from src to a typeside sort.
func (s *Schema) AddAttribute(name string, src NodeID, sort Sort) (EdgeID, error) {
	if err := s.checkNewEdge(name, src); err != nil {
		return -1, err
	}
	if !s.typeside.Has(sort) {
		return -1, fmt.Errorf("%w: %q on attribute %q", ErrUnknownSort, sort, name)
	}
	return s.appendEdge(Edge{Name: name, Source: src, Target: -1, Sort: sort}), nil
}

func (s *Schema) checkNewEdge(name string, src NodeID) error {
	if s.frozen {
		return ErrSchemaFrozen
	}
	if name == "" {
		return ErrInvalidName
	}
	if _, ok := s.edgeIndex[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateEdge, name)
	}
	if !s.hasNode(src) {
		return fmt.Errorf("%w: source %d of edge %q", ErrUnknownNode, src, name)
	}
	return nil
}

func (s *Schema) appendEdge(e Edge) EdgeID {
	e.ID = EdgeID(len(s.edges))
	s.edges = append(s.edges, e)
	s.edgeIndex[e.Name] = e.ID
	return e.ID
}

// AddEquation declares lhs = rhs. Both paths must be well formed and share
// source and target, otherwise ErrEquationTypeMismatch.
func (s *Schema) AddEquation(lhs, rhs Path) error {
	if s.frozen {
		return ErrSchemaFrozen
	}
	if err := s.CheckPath(lhs); err != nil {
		return err
	}
	if err := s.CheckPath(rhs); err != nil {
		return err
	}
	if lhs.Start != rhs.Start || s.Target(lhs) != s.Target(rhs) {
		return fmt.Errorf("%w: %s and %s", ErrEquationTypeMismatch, s.FormatPath(lhs), s.FormatPath(rhs))
	}
	s.equations = append(s.equations, Equation{LHS: lhs.clone(), RHS: rhs.clone()})
	return nil
}

// Freeze makes the schema immutable, seals its typeside and computes the
// path congruence over the declared equations. Freeze is idempotent.
func (s *Schema) Freeze() error {
	if s.frozen {
		return nil
	}
	s.typeside.seal()
	s.base = s.Congruence()
	s.frozen = true
	return nil
}

func (s *Schema) hasNode(n NodeID) bool { return n >= 0 && int(n) < len(s.nodes) }
func (s *Schema) hasEdge(e EdgeID) bool { return e >= 0 && int(e) < len(s.edges) }

// Node returns the node with the given name.
func (s *Schema) Node(name string) (NodeID, error) {
	id, ok := s.nodeIndex[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownNode, name)
	}
	return id, nil
}

// Edge returns the edge with the given name.
func (s *Schema) Edge(name string) (EdgeID, error) {
	id, ok := s.edgeIndex[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownEdge, name)
	}
	return id, nil
}

// NodeAt returns the node with id n. It panics on an id not issued by s.
func (s *Schema) NodeAt(n NodeID) Node { return s.nodes[n] }

// EdgeAt returns the edge with id e. It panics on an id not issued by s.
func (s *Schema) EdgeAt(e EdgeID) Edge { return s.edges[e] }

// Nodes returns all nodes in declaration order.
func (s *Schema) Nodes() []Node {
	out := make([]Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// Edges returns all edges in declaration order.
func (s *Schema) Edges() []Edge {
	out := make([]Edge, len(s.edges))
	copy(out, s.edges)
	return out
}

// OutEdges returns the edges whose source is n.
func (s *Schema) OutEdges(n NodeID) []Edge {
	var out []Edge
	for _, e := range s.edges {
		if e.Source == n {
			out = append(out, e)
		}
	}
	return out
}

// Equations returns the declared equations.
func (s *Schema) Equations() []Equation {
	out := make([]Equation, len(s.equations))
	for i, eq := range s.equations {
		out[i] = Equation{LHS: eq.LHS.clone(), RHS: eq.RHS.clone()}
	}
	return out
}

// Identity returns the empty path at n.
func (s *Schema) Identity(n NodeID) Path { return Path{Start: n} }

// Extend appends e to p. Returns ErrPathTypeMismatch if p does not end at
// e's source node.
func (s *Schema) Extend(p Path, e EdgeID) (Path, error) {
	if !s.hasEdge(e) {
		return Path{}, fmt.Errorf("%w: %d", ErrUnknownEdge, e)
	}
	if err := s.CheckPath(p); err != nil {
		return Path{}, err
	}
	end := s.Target(p)
	edge := s.edges[e]
	if end.IsSort() || end.Node != edge.Source {
		return Path{}, fmt.Errorf("%w: %s cannot be followed by %s", ErrPathTypeMismatch, s.FormatPath(p), edge.Name)
	}
	q := p.clone()
	q.Edges = append(q.Edges, e)
	return q, nil
}

// PathOf builds a path from a start node name and a sequence of edge names.
func (s *Schema) PathOf(start string, edges ...string) (Path, error) {
	n, err := s.Node(start)
	if err != nil {
		return Path{}, err
	}
	p := s.Identity(n)
	for _, name := range edges {
		e, err := s.Edge(name)
		if err != nil {
			return Path{}, err
		}
		if p, err = s.Extend(p, e); err != nil {
			return Path{}, err
		}
	}
	return p, nil
}

// Concat composes p followed by q.
func (s *Schema) Concat(p, q Path) (Path, error) {
	end := s.Target(p)
	if end.IsSort() || end.Node != q.Start {
		return Path{}, fmt.Errorf("%w: %s then %s", ErrPathTypeMismatch, s.FormatPath(p), s.FormatPath(q))
	}
	edges := make([]EdgeID, 0, len(p.Edges)+len(q.Edges))
	edges = append(edges, p.Edges...)
	edges = append(edges, q.Edges...)
	return Path{Start: p.Start, Edges: edges}, nil
}

// CheckPath verifies that p starts at a declared node and that each edge
// starts where the previous one ended.
func (s *Schema) CheckPath(p Path) error {
	if !s.hasNode(p.Start) {
		return fmt.Errorf("%w: path start %d", ErrUnknownNode, p.Start)
	}
	cur := Endpoint{Node: p.Start}
	for _, e := range p.Edges {
		if !s.hasEdge(e) {
			return fmt.Errorf("%w: %d", ErrUnknownEdge, e)
		}
		edge := s.edges[e]
		if cur.IsSort() || cur.Node != edge.Source {
			return fmt.Errorf("%w: %s is not composable at %s", ErrPathTypeMismatch, edge.Name, s.endpointName(cur))
		}
		cur = edge.Codomain()
	}
	return nil
}

// Target returns where a well-formed path ends.
func (s *Schema) Target(p Path) Endpoint {
	if len(p.Edges) == 0 {
		return Endpoint{Node: p.Start}
	}
	return s.edges[p.Edges[len(p.Edges)-1]].Codomain()
}

// nodeAfter returns the node reached after the first k edges of p.
func (s *Schema) nodeAfter(p Path, k int) NodeID {
	if k == 0 {
		return p.Start
	}
	return s.edges[p.Edges[k-1]].Target
}

func (s *Schema) endpointName(e Endpoint) string {
	if e.IsSort() {
		return string(e.Sort)
	}
	if s.hasNode(e.Node) {
		return s.nodes[e.Node].Name
	}
	return fmt.Sprintf("#%d", e.Node)
}

// FormatPath renders p as "Employee.worksIn.name", or "id_Employee" for an
// identity.
func (s *Schema) FormatPath(p Path) string {
	start := fmt.Sprintf("#%d", p.Start)
	if s.hasNode(p.Start) {
		start = s.nodes[p.Start].Name
	}
	if len(p.Edges) == 0 {
		return "id_" + start
	}
	var b strings.Builder
	b.WriteString(start)
	for _, e := range p.Edges {
		b.WriteByte('.')
		if s.hasEdge(e) {
			b.WriteString(s.edges[e].Name)
		} else {
			fmt.Fprintf(&b, "#%d", e)
		}
	}
	return b.String()
}

// FormatEquation renders eq as "lhs = rhs".
func (s *Schema) FormatEquation(eq Equation) string {
	return s.FormatPath(eq.LHS) + " = " + s.FormatPath(eq.RHS)
}

// Equivalent reports whether p and q are equal under the declared equations.
// Only paths that take part in the closure are decided: equation sides plus
// p and q themselves.
func (s *Schema) Equivalent(p, q Path) bool {
	if p.Equal(q) {
		return true
	}
	if s.base != nil && s.base.Contains(p) && s.base.Contains(q) {
		return s.base.Equivalent(p, q)
	}
	return s.Congruence(p, q).Equivalent(p, q)
}

func (s *Schema) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "schema %s = literal {\n", s.name)
	b.WriteString("  entities\n")
	for _, n := range s.nodes {
		fmt.Fprintf(&b, "    %s\n", n.Name)
	}
	var fks, attrs []Edge
	for _, e := range s.edges {
		if e.IsAttribute() {
			attrs = append(attrs, e)
		} else {
			fks = append(fks, e)
		}
	}
	if len(fks) > 0 {
		b.WriteString("  foreign_keys\n")
		for _, e := range fks {
			fmt.Fprintf(&b, "    %s : %s -> %s\n", e.Name, s.nodes[e.Source].Name, s.nodes[e.Target].Name)
		}
	}
	if len(attrs) > 0 {
		b.WriteString("  attributes\n")
		for _, e := range attrs {
			fmt.Fprintf(&b, "    %s : %s -> %s\n", e.Name, s.nodes[e.Source].Name, e.Sort)
		}
	}
	if len(s.equations) > 0 {
		b.WriteString("  path_equations\n")
		for _, eq := range s.equations {
			fmt.Fprintf(&b, "    %s\n", s.FormatEquation(eq))
		}
	}
	b.WriteString("}")
	return b.String()
}
