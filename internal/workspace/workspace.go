// Package workspace loads YAML documents declaring a typeside, schemas,
// instances and mappings, and builds the corresponding core values.
//
// A document looks like:
//
//	typeside:
//	  sorts: [Date]
//	schemas:
//	  - name: Company
//	    entities: [Employee, Department]
//	    foreign_keys:
//	      - {name: worksIn, from: Employee, to: Department}
//	    attributes:
//	      - {name: ename, from: Employee, sort: String}
//	    equations:
//	      - {start: Employee, lhs: [manager, worksIn], rhs: [worksIn]}
//	instances:
//	  - name: Acme
//	    schema: Company
//	    rows:
//	      Employee:
//	        - {id: 1, worksIn: 1, ename: Ann}
//	mappings:
//	  - name: F
//	    source: Staff
//	    target: Company
//	    entities: {Person: Employee}
//	    edges: {dept: [manager, worksIn]}
//
// A mapping may instead be declared as `identity: <schema>` or
// `compose: [F, G]`, meaning G after F.
package workspace

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/catmig/pkg/types"
)

// Document errors.
var (
	ErrDocument  = errors.New("workspace document error")
	ErrUndefined = fmt.Errorf("%w: undefined name", ErrDocument)
	ErrRedefined = fmt.Errorf("%w: name defined twice", ErrDocument)
	ErrBadRow    = fmt.Errorf("%w: malformed row", ErrDocument)
)

// Document is the YAML form of a workspace.
type Document struct {
	Typeside  TypesideDoc   `yaml:"typeside"`
	Schemas   []SchemaDoc   `yaml:"schemas"`
	Instances []InstanceDoc `yaml:"instances"`
	Mappings  []MappingDoc  `yaml:"mappings"`
}

// TypesideDoc lists sorts beyond the built-in String, Int, Float and Bool.
type TypesideDoc struct {
	Sorts []string `yaml:"sorts"`
}

type SchemaDoc struct {
	Name        string        `yaml:"name"`
	Entities    []string      `yaml:"entities"`
	ForeignKeys []EdgeDoc     `yaml:"foreign_keys"`
	Attributes  []EdgeDoc     `yaml:"attributes"`
	Equations   []EquationDoc `yaml:"equations"`
}

type EdgeDoc struct {
	Name string `yaml:"name"`
	From string `yaml:"from"`
	To   string `yaml:"to,omitempty"`
	Sort string `yaml:"sort,omitempty"`
}

type EquationDoc struct {
	Start string   `yaml:"start"`
	LHS   []string `yaml:"lhs"`
	RHS   []string `yaml:"rhs"`
}

// InstanceDoc gives the rows of every entity. Each row carries an id and
// one key per outgoing edge; a null attribute is a labelled null.
type InstanceDoc struct {
	Name   string                      `yaml:"name"`
	Schema string                      `yaml:"schema"`
	Rows   map[string][]map[string]any `yaml:"rows"`
}

type MappingDoc struct {
	Name     string              `yaml:"name"`
	Source   string              `yaml:"source,omitempty"`
	Target   string              `yaml:"target,omitempty"`
	Entities map[string]string   `yaml:"entities,omitempty"`
	Edges    map[string][]string `yaml:"edges,omitempty"`
	Identity string              `yaml:"identity,omitempty"`
	Compose  []string            `yaml:"compose,omitempty"`
}

// Workspace holds the built values in declaration order.
type Workspace struct {
	Typeside  *types.Typeside
	schemas   map[string]*types.Schema
	instances map[string]*types.Instance
	mappings  map[string]*types.Mapping
	order     struct{ schemas, instances, mappings []string }
}

// Load reads and builds the document at path.
func Load(path string) (*Workspace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ws, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ws, nil
}

// Parse builds a workspace from YAML. Unknown keys are rejected.
func Parse(data []byte) (*Workspace, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrDocument, err)
	}
	return Build(doc)
}

// Build constructs every declared value, failing on the first core error.
func Build(doc Document) (*Workspace, error) {
	ws := &Workspace{
		Typeside:  types.DefaultTypeside(),
		schemas:   make(map[string]*types.Schema),
		instances: make(map[string]*types.Instance),
		mappings:  make(map[string]*types.Mapping),
	}
	for _, s := range doc.Typeside.Sorts {
		if _, err := ws.Typeside.Register(s); err != nil {
			return nil, fmt.Errorf("typeside: %w", err)
		}
	}
	for _, sd := range doc.Schemas {
		if err := ws.buildSchema(sd); err != nil {
			return nil, fmt.Errorf("schema %s: %w", sd.Name, err)
		}
	}
	for _, id := range doc.Instances {
		if err := ws.buildInstance(id); err != nil {
			return nil, fmt.Errorf("instance %s: %w", id.Name, err)
		}
	}
	for _, md := range doc.Mappings {
		if err := ws.buildMapping(md); err != nil {
			return nil, fmt.Errorf("mapping %s: %w", md.Name, err)
		}
	}
	return ws, nil
}

// Schema returns the schema declared as name.
func (ws *Workspace) Schema(name string) (*types.Schema, error) {
	s, ok := ws.schemas[name]
	if !ok {
		return nil, fmt.Errorf("%w: schema %q", ErrUndefined, name)
	}
	return s, nil
}

// Instance returns the instance declared as name.
func (ws *Workspace) Instance(name string) (*types.Instance, error) {
	i, ok := ws.instances[name]
	if !ok {
		return nil, fmt.Errorf("%w: instance %q", ErrUndefined, name)
	}
	return i, nil
}

// Mapping returns the mapping declared as name.
func (ws *Workspace) Mapping(name string) (*types.Mapping, error) {
	m, ok := ws.mappings[name]
	if !ok {
		return nil, fmt.Errorf("%w: mapping %q", ErrUndefined, name)
	}
	return m, nil
}

// Schemas returns the schema names in declaration order.
func (ws *Workspace) Schemas() []string { return slices.Clone(ws.order.schemas) }

// Instances returns the instance names in declaration order.
func (ws *Workspace) Instances() []string { return slices.Clone(ws.order.instances) }

// Mappings returns the mapping names in declaration order.
func (ws *Workspace) Mappings() []string { return slices.Clone(ws.order.mappings) }

func (ws *Workspace) buildSchema(sd SchemaDoc) error {
	if _, dup := ws.schemas[sd.Name]; dup {
		return ErrRedefined
	}
	s := types.NewSchema(sd.Name, ws.Typeside)
	for _, e := range sd.Entities {
		if _, err := s.AddNode(e); err != nil {
			return fmt.Errorf("entity %s: %w", e, err)
		}
	}
	for _, fk := range sd.ForeignKeys {
		src, err := s.Node(fk.From)
		if err != nil {
			return fmt.Errorf("foreign key %s: %w", fk.Name, err)
		}
		tgt, err := s.Node(fk.To)
		if err != nil {
			return fmt.Errorf("foreign key %s: %w", fk.Name, err)
		}
		if _, err := s.AddEdge(fk.Name, src, tgt); err != nil {
			return fmt.Errorf("foreign key %s: %w", fk.Name, err)
		}
	}
	for _, at := range sd.Attributes {
		src, err := s.Node(at.From)
		if err != nil {
			return fmt.Errorf("attribute %s: %w", at.Name, err)
		}
		sort, err := ws.Typeside.Lookup(at.Sort)
		if err != nil {
			return fmt.Errorf("attribute %s: %w", at.Name, err)
		}
		if _, err := s.AddAttribute(at.Name, src, sort); err != nil {
			return fmt.Errorf("attribute %s: %w", at.Name, err)
		}
	}
	for k, eq := range sd.Equations {
		lhs, err := s.PathOf(eq.Start, eq.LHS...)
		if err != nil {
			return fmt.Errorf("equation %d: %w", k, err)
		}
		rhs, err := s.PathOf(eq.Start, eq.RHS...)
		if err != nil {
			return fmt.Errorf("equation %d: %w", k, err)
		}
		if err := s.AddEquation(lhs, rhs); err != nil {
			return fmt.Errorf("equation %d: %w", k, err)
		}
	}
	if err := s.Freeze(); err != nil {
		return err
	}
	ws.schemas[sd.Name] = s
	ws.order.schemas = append(ws.order.schemas, sd.Name)
	return nil
}

func (ws *Workspace) buildInstance(id InstanceDoc) error {
	if _, dup := ws.instances[id.Name]; dup {
		return ErrRedefined
	}
	s, err := ws.Schema(id.Schema)
	if err != nil {
		return err
	}
	inst, err := types.NewInstance(id.Name, s)
	if err != nil {
		return err
	}

	// Entities are visited in schema order so errors are reproducible.
	type cell struct {
		edge types.EdgeID
		elem types.Element
		raw  any
	}
	var cells []cell
	for entity := range id.Rows {
		if _, err := s.Node(entity); err != nil {
			return fmt.Errorf("rows: %w", err)
		}
	}
	for _, n := range s.Nodes() {
		for k, r := range id.Rows[n.Name] {
			e, err := rowID(r)
			if err != nil {
				return fmt.Errorf("%s row %d: %w", n.Name, k, err)
			}
			if err := inst.Adopt(n.ID, e); err != nil {
				return fmt.Errorf("%s row %d: %w", n.Name, k, err)
			}
			keys := make([]string, 0, len(r))
			for key := range r {
				if key != "id" {
					keys = append(keys, key)
				}
			}
			slices.Sort(keys)
			for _, key := range keys {
				edge, err := s.Edge(key)
				if err != nil {
					return fmt.Errorf("%s[%d]: %w", n.Name, e, err)
				}
				if s.EdgeAt(edge).Source != n.ID {
					return fmt.Errorf("%w: %s[%d] has no edge %s", ErrBadRow, n.Name, e, key)
				}
				cells = append(cells, cell{edge: edge, elem: e, raw: r[key]})
			}
		}
	}
	for _, c := range cells {
		ed := s.EdgeAt(c.edge)
		where := fmt.Sprintf("%s[%d].%s", s.NodeAt(ed.Source).Name, c.elem, ed.Name)
		if !ed.IsAttribute() {
			if c.raw == nil {
				continue
			}
			t, err := element(c.raw)
			if err != nil {
				return fmt.Errorf("%s: %w", where, err)
			}
			if err := inst.Set(c.edge, c.elem, t); err != nil {
				return fmt.Errorf("%s: %w", where, err)
			}
			continue
		}
		v, err := value(ed.Sort, c.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if err := inst.SetAttr(c.edge, c.elem, v); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
	}
	ws.instances[id.Name] = inst
	ws.order.instances = append(ws.order.instances, id.Name)
	return nil
}

func rowID(r map[string]any) (types.Element, error) {
	raw, ok := r["id"]
	if !ok {
		return 0, fmt.Errorf("%w: missing id", ErrBadRow)
	}
	return element(raw)
}

func element(raw any) (types.Element, error) {
	n, ok := raw.(int)
	if !ok || n <= 0 {
		return 0, fmt.Errorf("%w: element id %v is not a positive integer", ErrBadRow, raw)
	}
	return types.Element(n), nil
}

// value converts a decoded YAML scalar into a value of sort. Integers are
// widened to int64 and accepted for Float.
func value(sort types.Sort, raw any) (types.Value, error) {
	if raw == nil {
		return types.Null(sort), nil
	}
	if n, ok := raw.(int); ok {
		raw = int64(n)
	}
	var v types.Value
	switch sort {
	case types.SortFloat:
		if n, ok := raw.(int64); ok {
			raw = float64(n)
		}
		v = types.Const(sort, raw)
	case types.SortString, types.SortInt, types.SortBool:
		v = types.Const(sort, raw)
	default:
		switch raw.(type) {
		case string, int64, float64, bool:
			v = types.Const(sort, raw)
		default:
			return types.Value{}, fmt.Errorf("%w: %v is not a scalar", ErrBadRow, raw)
		}
	}
	if !v.Conforms() {
		return types.Value{}, fmt.Errorf("%w: want %s, got %T literal %v", types.ErrTypeMismatch, sort, raw, raw)
	}
	return v, nil
}

func (ws *Workspace) buildMapping(md MappingDoc) error {
	if _, dup := ws.mappings[md.Name]; dup {
		return ErrRedefined
	}
	var (
		m   *types.Mapping
		err error
	)
	switch {
	case md.Identity != "":
		m, err = ws.identity(md)
	case len(md.Compose) > 0:
		m, err = ws.compose(md)
	default:
		m, err = ws.literal(md)
	}
	if err != nil {
		return err
	}
	ws.mappings[md.Name] = m
	ws.order.mappings = append(ws.order.mappings, md.Name)
	return nil
}

func (ws *Workspace) identity(md MappingDoc) (*types.Mapping, error) {
	s, err := ws.Schema(md.Identity)
	if err != nil {
		return nil, err
	}
	id, err := types.IdentityMapping(s)
	if err != nil {
		return nil, err
	}
	return ws.rename(md.Name, id)
}

func (ws *Workspace) compose(md MappingDoc) (*types.Mapping, error) {
	if len(md.Compose) != 2 {
		return nil, fmt.Errorf("%w: compose takes two mappings, got %d", ErrDocument, len(md.Compose))
	}
	f, err := ws.Mapping(md.Compose[0])
	if err != nil {
		return nil, err
	}
	g, err := ws.Mapping(md.Compose[1])
	if err != nil {
		return nil, err
	}
	gf, err := types.Compose(f, g)
	if err != nil {
		return nil, err
	}
	return ws.rename(md.Name, gf)
}

// rename copies m under the declared name.
func (ws *Workspace) rename(name string, m *types.Mapping) (*types.Mapping, error) {
	out, err := types.NewMapping(name, m.Source(), m.Target())
	if err != nil {
		return nil, err
	}
	for _, n := range m.Source().Nodes() {
		img, _ := m.NodeImage(n.ID)
		if err := out.MapNode(n.ID, img); err != nil {
			return nil, err
		}
	}
	for _, ed := range m.Source().Edges() {
		img, _ := m.EdgeImage(ed.ID)
		if err := out.MapEdge(ed.ID, img); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (ws *Workspace) literal(md MappingDoc) (*types.Mapping, error) {
	src, err := ws.Schema(md.Source)
	if err != nil {
		return nil, err
	}
	tgt, err := ws.Schema(md.Target)
	if err != nil {
		return nil, err
	}
	m, err := types.NewMapping(md.Name, src, tgt)
	if err != nil {
		return nil, err
	}
	for _, n := range src.Nodes() {
		name, ok := md.Entities[n.Name]
		if !ok {
			continue
		}
		img, err := tgt.Node(name)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", n.Name, err)
		}
		if err := m.MapNode(n.ID, img); err != nil {
			return nil, fmt.Errorf("entity %s: %w", n.Name, err)
		}
	}
	for name := range md.Entities {
		if _, err := src.Node(name); err != nil {
			return nil, fmt.Errorf("entity %s: %w", name, err)
		}
	}
	for _, ed := range src.Edges() {
		edges, ok := md.Edges[ed.Name]
		if !ok {
			continue
		}
		start, ok := m.NodeImage(ed.Source)
		if !ok {
			return nil, fmt.Errorf("edge %s: %w", ed.Name, types.ErrUnmappedNode)
		}
		img, err := tgt.PathOf(tgt.NodeAt(start).Name, edges...)
		if err != nil {
			return nil, fmt.Errorf("edge %s: %w", ed.Name, err)
		}
		if err := m.MapEdge(ed.ID, img); err != nil {
			return nil, fmt.Errorf("edge %s: %w", ed.Name, err)
		}
	}
	for name := range md.Edges {
		if _, err := src.Edge(name); err != nil {
			return nil, fmt.Errorf("edge %s: %w", name, err)
		}
	}
	if err := m.CheckComplete(); err != nil {
		return nil, err
	}
	return m, nil
}
