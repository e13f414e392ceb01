package types

import (
	"fmt"
	"strings"
)

// Mapping is a schema morphism F: S → T. Each source node goes to a target
// node; each source edge goes to a path of the target. A mapping is built
// incrementally and is usable for migration once complete.
type Mapping struct {
	name   string
	source *Schema
	target *Schema
	nodes  []NodeID
	edges  []Path
	mapped []bool
}

// NewMapping returns an empty mapping from source to target. Both schemas
// must be frozen.
func NewMapping(name string, source, target *Schema) (*Mapping, error) {
	if source == nil || target == nil || !source.Frozen() || !target.Frozen() {
		return nil, ErrSchemaNotFrozen
	}
	m := &Mapping{
		name:   name,
		source: source,
		target: target,
		nodes:  make([]NodeID, len(source.nodes)),
		edges:  make([]Path, len(source.edges)),
		mapped: make([]bool, len(source.edges)),
	}
	for i := range m.nodes {
		m.nodes[i] = -1
	}
	return m, nil
}

// Name returns the mapping's name.
func (m *Mapping) Name() string { return m.name }

// Source returns the source schema S.
func (m *Mapping) Source() *Schema { return m.source }

// Target returns the target schema T.
func (m *Mapping) Target() *Schema { return m.target }

// MapNode sends source node src to target node tgt. Mapping a node twice to
// the same target is a no-op; to a different one, ErrAlreadyMapped.
func (m *Mapping) MapNode(src, tgt NodeID) error {
	if !m.source.hasNode(src) {
		return fmt.Errorf("%w: source node %d", ErrUnknownNode, src)
	}
	if !m.target.hasNode(tgt) {
		return fmt.Errorf("%w: target node %d", ErrUnknownNode, tgt)
	}
	if cur := m.nodes[src]; cur >= 0 && cur != tgt {
		return fmt.Errorf("%w: %s -> %s", ErrAlreadyMapped, m.source.nodes[src].Name, m.target.nodes[cur].Name)
	}
	m.nodes[src] = tgt
	return nil
}

// MapEdge sends source edge e to the target path img. The endpoints of e
// must already be mapped. A foreign key's image must run from F(source) to
// F(target); an attribute's image must run from F(source) to the same sort,
// otherwise a *TypeMismatchError.
func (m *Mapping) MapEdge(e EdgeID, img Path) error {
	if !m.source.hasEdge(e) {
		return fmt.Errorf("%w: source edge %d", ErrUnknownEdge, e)
	}
	ed := m.source.edges[e]
	from := m.nodes[ed.Source]
	if from < 0 {
		return fmt.Errorf("%w: %s (source of %s)", ErrUnmappedNode, m.source.nodes[ed.Source].Name, ed.Name)
	}
	if !ed.IsAttribute() && m.nodes[ed.Target] < 0 {
		return fmt.Errorf("%w: %s (target of %s)", ErrUnmappedNode, m.source.nodes[ed.Target].Name, ed.Name)
	}
	if err := m.target.CheckPath(img); err != nil {
		return err
	}
	if img.Start != from {
		return fmt.Errorf("%w: image of %s starts at %s, want %s", ErrPathTypeMismatch,
			ed.Name, m.target.FormatPath(m.target.Identity(img.Start)), m.target.nodes[from].Name)
	}
	end := m.target.Target(img)
	if ed.IsAttribute() {
		if !end.IsSort() || end.Sort != ed.Sort {
			return &TypeMismatchError{Edge: ed.Name, Want: ed.Sort, Got: m.target.endpointName(end)}
		}
	} else if end.IsSort() || end.Node != m.nodes[ed.Target] {
		return fmt.Errorf("%w: image of %s ends at %s, want %s", ErrPathTypeMismatch,
			ed.Name, m.target.endpointName(end), m.target.nodes[m.nodes[ed.Target]].Name)
	}
	m.edges[e] = img.clone()
	m.mapped[e] = true
	return nil
}

// NodeImage returns F(n).
func (m *Mapping) NodeImage(n NodeID) (NodeID, bool) {
	if !m.source.hasNode(n) || m.nodes[n] < 0 {
		return -1, false
	}
	return m.nodes[n], true
}

// EdgeImage returns F(e).
func (m *Mapping) EdgeImage(e EdgeID) (Path, bool) {
	if !m.source.hasEdge(e) || !m.mapped[e] {
		return Path{}, false
	}
	return m.edges[e].clone(), true
}

// CheckComplete reports the first unmapped node or edge.
func (m *Mapping) CheckComplete() error {
	for _, n := range m.source.nodes {
		if m.nodes[n.ID] < 0 {
			return fmt.Errorf("%w: node %s", ErrIncompleteMapping, n.Name)
		}
	}
	for _, e := range m.source.edges {
		if !m.mapped[e.ID] {
			return fmt.Errorf("%w: edge %s", ErrIncompleteMapping, e.Name)
		}
	}
	return nil
}

// Image returns F(p) by concatenating the images of p's edges. The mapping
// must cover every edge of p.
func (m *Mapping) Image(p Path) Path {
	out := Path{Start: m.nodes[p.Start]}
	for _, e := range p.Edges {
		out.Edges = append(out.Edges, m.edges[e].Edges...)
	}
	return out
}

// IdentityMapping returns the identity morphism on s.
func IdentityMapping(s *Schema) (*Mapping, error) {
	m, err := NewMapping("id_"+s.name, s, s)
	if err != nil {
		return nil, err
	}
	for _, n := range s.nodes {
		m.nodes[n.ID] = n.ID
	}
	for _, e := range s.edges {
		m.edges[e.ID] = Path{Start: e.Source, Edges: []EdgeID{e.ID}}
		m.mapped[e.ID] = true
	}
	return m, nil
}

// Compose returns g∘f, the mapping that applies f then g. f's target must be
// g's source and both must be complete.
func Compose(f, g *Mapping) (*Mapping, error) {
	if f.target != g.source {
		return nil, fmt.Errorf("%w: %s targets %s but %s starts at %s",
			ErrSchemaMismatch, f.name, f.target.name, g.name, g.source.name)
	}
	if err := f.CheckComplete(); err != nil {
		return nil, err
	}
	if err := g.CheckComplete(); err != nil {
		return nil, err
	}
	h, err := NewMapping(g.name+"∘"+f.name, f.source, g.target)
	if err != nil {
		return nil, err
	}
	for n := range f.nodes {
		h.nodes[n] = g.nodes[f.nodes[n]]
	}
	for e := range f.edges {
		h.edges[e] = g.Image(f.edges[e])
		h.mapped[e] = true
	}
	return h, nil
}

func (m *Mapping) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "mapping %s : %s -> %s = literal {\n", m.name, m.source.name, m.target.name)
	for _, n := range m.source.nodes {
		if t := m.nodes[n.ID]; t >= 0 {
			fmt.Fprintf(&b, "  %s -> %s\n", n.Name, m.target.nodes[t].Name)
		}
	}
	for _, e := range m.source.edges {
		if m.mapped[e.ID] {
			fmt.Fprintf(&b, "  %s -> %s\n", e.Name, m.target.FormatPath(m.edges[e.ID]))
		}
	}
	b.WriteString("}")
	return b.String()
}
