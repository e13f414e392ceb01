package types

import (
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// Element identifies a row of one node's carrier. Ids are issued from 1 per
// node; zero is never a valid element.
type Element uint64

// Datum is the result of applying a path to an element: an element of the
// path's target node, or a typeside value when the path ends in an attribute.
type Datum struct {
	Elem    Element
	Value   Value
	IsValue bool
}

// Equal reports whether d and o are the same element or the same value.
func (d Datum) Equal(o Datum) bool {
	if d.IsValue != o.IsValue {
		return false
	}
	if d.IsValue {
		return d.Value.Equal(o.Value)
	}
	return d.Elem == o.Elem
}

func (d Datum) String() string {
	if d.IsValue {
		return d.Value.String()
	}
	return fmt.Sprintf("#%d", d.Elem)
}

// Instance is a functor from a frozen schema to finite sets: a carrier of
// elements per node and a function per edge. It is mutable while being
// populated and immutable once sealed; a sealed instance is safe for
// concurrent reads.
type Instance struct {
	id      string
	name    string
	schema  *Schema
	members []map[Element]struct{}
	next    []Element
	links   []map[Element]Element
	attrs   []map[Element]Value
	sealed  atomic.Bool
}

// NewInstance returns an empty instance of s. Returns ErrSchemaNotFrozen if s
// is still being built.
func NewInstance(name string, s *Schema) (*Instance, error) {
	if s == nil || !s.Frozen() {
		return nil, ErrSchemaNotFrozen
	}
	inst := &Instance{
		id:      generateID(),
		name:    name,
		schema:  s,
		members: make([]map[Element]struct{}, len(s.nodes)),
		next:    make([]Element, len(s.nodes)),
		links:   make([]map[Element]Element, len(s.edges)),
		attrs:   make([]map[Element]Value, len(s.edges)),
	}
	for i := range inst.members {
		inst.members[i] = make(map[Element]struct{})
		inst.next[i] = 1
	}
	for i, e := range s.edges {
		if e.IsAttribute() {
			inst.attrs[i] = make(map[Element]Value)
		} else {
			inst.links[i] = make(map[Element]Element)
		}
	}
	return inst, nil
}

// generateID returns a UUID v7, falling back to v4.
func generateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// ID returns the instance's unique identifier.
func (i *Instance) ID() string { return i.id }

// Name returns the instance's name.
func (i *Instance) Name() string { return i.name }

// Schema returns the schema the instance is over.
func (i *Instance) Schema() *Schema { return i.schema }

// Seal makes the instance immutable.
func (i *Instance) Seal() { i.sealed.Store(true) }

// Sealed reports whether Seal has been called.
func (i *Instance) Sealed() bool { return i.sealed.Load() }

func (i *Instance) checkWritable() error {
	if i.sealed.Load() {
		return ErrInstanceSealed
	}
	return nil
}

func (i *Instance) checkNode(n NodeID) error {
	if !i.schema.hasNode(n) {
		return fmt.Errorf("%w: %d", ErrUnknownNode, n)
	}
	return nil
}

// Insert adds a fresh element to n's carrier and returns its id.
func (i *Instance) Insert(n NodeID) (Element, error) {
	if err := i.checkWritable(); err != nil {
		return 0, err
	}
	if err := i.checkNode(n); err != nil {
		return 0, err
	}
	e := i.next[n]
	for {
		if _, taken := i.members[n][e]; !taken {
			break
		}
		e++
	}
	i.members[n][e] = struct{}{}
	i.next[n] = e + 1
	return e, nil
}

// Adopt adds element e to n's carrier under a caller-chosen id. Used to keep
// element identity across migrations and loads.
func (i *Instance) Adopt(n NodeID, e Element) error {
	if err := i.checkWritable(); err != nil {
		return err
	}
	if err := i.checkNode(n); err != nil {
		return err
	}
	if e == 0 {
		return fmt.Errorf("%w: element id 0 in %s", ErrDanglingElement, i.schema.nodes[n].Name)
	}
	if _, ok := i.members[n][e]; ok {
		return fmt.Errorf("%w: %s[%d]", ErrDuplicateElement, i.schema.nodes[n].Name, e)
	}
	i.members[n][e] = struct{}{}
	if e >= i.next[n] {
		i.next[n] = e + 1
	}
	return nil
}

// Set defines the foreign key edge at src to point at tgt.
func (i *Instance) Set(edge EdgeID, src, tgt Element) error {
	ed, err := i.edgeForWrite(edge, false)
	if err != nil {
		return err
	}
	if !i.Has(ed.Source, src) {
		return fmt.Errorf("%w: %s[%d] for %s", ErrDanglingElement, i.schema.nodes[ed.Source].Name, src, ed.Name)
	}
	if !i.Has(ed.Target, tgt) {
		return fmt.Errorf("%w: %s[%d] as target of %s", ErrDanglingElement, i.schema.nodes[ed.Target].Name, tgt, ed.Name)
	}
	i.links[edge][src] = tgt
	return nil
}

// SetAttr defines the attribute edge at src. The value's sort is checked by
// the validator, not here.
func (i *Instance) SetAttr(edge EdgeID, src Element, v Value) error {
	ed, err := i.edgeForWrite(edge, true)
	if err != nil {
		return err
	}
	if !i.Has(ed.Source, src) {
		return fmt.Errorf("%w: %s[%d] for %s", ErrDanglingElement, i.schema.nodes[ed.Source].Name, src, ed.Name)
	}
	i.attrs[edge][src] = v
	return nil
}

func (i *Instance) edgeForWrite(edge EdgeID, attribute bool) (Edge, error) {
	if err := i.checkWritable(); err != nil {
		return Edge{}, err
	}
	if !i.schema.hasEdge(edge) {
		return Edge{}, fmt.Errorf("%w: %d", ErrUnknownEdge, edge)
	}
	ed := i.schema.edges[edge]
	if ed.IsAttribute() != attribute {
		return Edge{}, fmt.Errorf("%w: %s", ErrEdgeKind, ed.Name)
	}
	return ed, nil
}

// Has reports whether e is in n's carrier.
func (i *Instance) Has(n NodeID, e Element) bool {
	if !i.schema.hasNode(n) {
		return false
	}
	_, ok := i.members[n][e]
	return ok
}

// Carrier returns n's elements in ascending order.
func (i *Instance) Carrier(n NodeID) []Element {
	if !i.schema.hasNode(n) {
		return nil
	}
	out := make([]Element, 0, len(i.members[n]))
	for e := range i.members[n] {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// Size returns the total number of elements across all carriers.
func (i *Instance) Size() int {
	n := 0
	for _, m := range i.members {
		n += len(m)
	}
	return n
}

// Lookup returns the target of foreign key edge at e.
func (i *Instance) Lookup(edge EdgeID, e Element) (Element, bool) {
	if !i.schema.hasEdge(edge) || i.links[edge] == nil {
		return 0, false
	}
	t, ok := i.links[edge][e]
	return t, ok
}

// Attr returns the value of attribute edge at e.
func (i *Instance) Attr(edge EdgeID, e Element) (Value, bool) {
	if !i.schema.hasEdge(edge) || i.attrs[edge] == nil {
		return Value{}, false
	}
	v, ok := i.attrs[edge][e]
	return v, ok
}

// CheckComplete verifies that every edge function is total. Nodes, elements
// and edges are visited in order so the reported failure is deterministic.
func (i *Instance) CheckComplete() error {
	for _, n := range i.schema.nodes {
		out := i.schema.OutEdges(n.ID)
		for _, e := range i.Carrier(n.ID) {
			for _, ed := range out {
				var ok bool
				if ed.IsAttribute() {
					_, ok = i.attrs[ed.ID][e]
				} else {
					_, ok = i.links[ed.ID][e]
				}
				if !ok {
					return &IncompleteFunctionError{Node: n.Name, Element: e, Edge: ed.Name}
				}
			}
		}
	}
	return nil
}

// ApplyPath follows p from element e of p's start node.
func (i *Instance) ApplyPath(p Path, e Element) (Datum, error) {
	if !i.Has(p.Start, e) {
		return Datum{}, fmt.Errorf("%w: %d is not in %s", ErrDanglingElement, e, i.schema.FormatPath(i.schema.Identity(p.Start)))
	}
	cur := e
	node := p.Start
	for k, id := range p.Edges {
		if !i.schema.hasEdge(id) {
			return Datum{}, fmt.Errorf("%w: %d", ErrUnknownEdge, id)
		}
		ed := i.schema.edges[id]
		if ed.Source != node {
			return Datum{}, fmt.Errorf("%w: %s", ErrPathTypeMismatch, i.schema.FormatPath(p))
		}
		if ed.IsAttribute() {
			if k != len(p.Edges)-1 {
				return Datum{}, fmt.Errorf("%w: %s", ErrPathTypeMismatch, i.schema.FormatPath(p))
			}
			v, ok := i.attrs[id][cur]
			if !ok {
				return Datum{}, fmt.Errorf("%w: %s undefined at %s[%d]", ErrPathApplication, ed.Name, i.schema.nodes[node].Name, cur)
			}
			return Datum{Value: v, IsValue: true}, nil
		}
		next, ok := i.links[id][cur]
		if !ok {
			return Datum{}, fmt.Errorf("%w: %s undefined at %s[%d]", ErrPathApplication, ed.Name, i.schema.nodes[node].Name, cur)
		}
		cur, node = next, ed.Target
	}
	return Datum{Elem: cur}, nil
}

// Equal reports whether i and o are over the same schema and have identical
// carriers and edge functions, element ids included.
func (i *Instance) Equal(o *Instance) bool {
	if i.schema != o.schema {
		return false
	}
	for n := range i.members {
		if len(i.members[n]) != len(o.members[n]) {
			return false
		}
		for e := range i.members[n] {
			if _, ok := o.members[n][e]; !ok {
				return false
			}
		}
	}
	for k := range i.schema.edges {
		if i.links[k] != nil && !mapsEqual(i.links[k], o.links[k], func(x, y Element) bool { return x == y }) {
			return false
		}
		if i.attrs[k] != nil && !mapsEqual(i.attrs[k], o.attrs[k], Value.Equal) {
			return false
		}
	}
	return true
}

func mapsEqual[V any](a, b map[Element]V, eq func(V, V) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || !eq(v, w) {
			return false
		}
	}
	return true
}

// Snapshot is a name-keyed copy of an instance, suited to comparison in
// tests and to serialization.
type Snapshot struct {
	Schema   string                         `json:"schema"`
	Carriers map[string][]Element           `json:"carriers"`
	Links    map[string]map[Element]Element `json:"links,omitempty"`
	Attrs    map[string]map[Element]Value   `json:"-"`
	Rendered map[string]map[Element]string  `json:"attrs,omitempty"`
}

// Snapshot copies the instance's contents keyed by node and edge names.
func (i *Instance) Snapshot() Snapshot {
	s := Snapshot{
		Schema:   i.schema.name,
		Carriers: make(map[string][]Element),
		Links:    make(map[string]map[Element]Element),
		Attrs:    make(map[string]map[Element]Value),
		Rendered: make(map[string]map[Element]string),
	}
	for _, n := range i.schema.nodes {
		s.Carriers[n.Name] = i.Carrier(n.ID)
	}
	for _, ed := range i.schema.edges {
		if ed.IsAttribute() {
			vals := make(map[Element]Value, len(i.attrs[ed.ID]))
			rendered := make(map[Element]string, len(i.attrs[ed.ID]))
			for e, v := range i.attrs[ed.ID] {
				vals[e] = v
				rendered[e] = v.String()
			}
			s.Attrs[ed.Name] = vals
			s.Rendered[ed.Name] = rendered
			continue
		}
		links := make(map[Element]Element, len(i.links[ed.ID]))
		for e, t := range i.links[ed.ID] {
			links[e] = t
		}
		s.Links[ed.Name] = links
	}
	return s
}

func (i *Instance) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "instance %s : %s = literal {\n", i.name, i.schema.name)
	for _, n := range i.schema.nodes {
		carrier := i.Carrier(n.ID)
		fmt.Fprintf(&b, "  %s (%d)\n", n.Name, len(carrier))
		out := i.schema.OutEdges(n.ID)
		for _, e := range carrier {
			fmt.Fprintf(&b, "    %d", e)
			for _, ed := range out {
				if ed.IsAttribute() {
					if v, ok := i.attrs[ed.ID][e]; ok {
						fmt.Fprintf(&b, " %s=%s", ed.Name, v)
					}
				} else if t, ok := i.links[ed.ID][e]; ok {
					fmt.Fprintf(&b, " %s=#%d", ed.Name, t)
				}
			}
			b.WriteByte('\n')
		}
	}
	b.WriteString("}")
	return b.String()
}
