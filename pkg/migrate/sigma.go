package migrate

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/catmig/pkg/types"
	"github.com/mesh-intelligence/catmig/pkg/validate"
)

// Class is one element of a Σ result: an equivalence class of tagged input
// elements, listed in arena order.
type Class struct {
	Node    types.NodeID
	Element types.Element
	Members []types.Origin
}

// Seeded returns the members that are copies of input elements.
func (c Class) Seeded() []types.Origin {
	var out []types.Origin
	for _, m := range c.Members {
		if m.Edge == "" {
			out = append(out, m)
		}
	}
	return out
}

// SigmaResult is the output of Sigma: the pushed-forward instance and the
// classes its elements were built from.
type SigmaResult struct {
	Instance *types.Instance
	Classes  []Class
}

// ClassOf returns the output element that the seeded copy of (node, e)
// belongs to.
func (r *SigmaResult) ClassOf(node string, e types.Element) (Class, bool) {
	for _, c := range r.Classes {
		for _, m := range c.Members {
			if m.Edge == "" && m.Node == node && m.Element == e {
				return c, true
			}
		}
	}
	return Class{}, false
}

// item is one arena slot: a tagged copy of an input element or an
// intermediate step of a multi-edge image path.
type item struct {
	node   types.NodeID // in T
	origin types.Origin
}

// fact says that T edge maps src to dst, or to value for attributes.
type fact struct {
	edge    types.EdgeID
	src     int
	dst     int
	value   types.Value
	isValue bool
}

type attrCell struct {
	value types.Value
	item  int
}

// sigmaState holds the closure for one Sigma call.
type sigmaState struct {
	f      *types.Mapping
	target *types.Schema
	items  []item
	facts  []fact
	sets   *disjointSet
	fk     []map[int]int
	attr   []map[int]attrCell
	log    *zap.Logger
}

// Sigma computes Σ_F(I) for F: S → T and an instance I of S.
//
// Every element of I is copied into the carrier of its image node, and
// every edge of S is replayed along its image path; inner steps of longer
// paths get their own arena slots, fixed at seeding. Copies are then merged
// to a fixed point so that each T edge is a function, T's equations hold,
// and attribute values agree. Merging never creates elements, so the loop
// terminates.
//
// Two classes forced together with different constants for an attribute
// fail with *types.SigmaUnsatisfiableError. A class that needs a foreign key
// value no input element supplies fails with *types.SigmaIncompleteError.
// Attributes without a value are filled with nulls. On error no instance is
// returned.
func Sigma(f *types.Mapping, i *types.Instance, opts ...Option) (*SigmaResult, error) {
	o := collect(opts)
	if i.Schema() != f.Source() {
		return nil, fmt.Errorf("%w: sigma %s needs an instance of %s, got %s",
			types.ErrSchemaMismatch, f.Name(), f.Source().Name(), i.Schema().Name())
	}
	if err := validate.Mapping(f); err != nil {
		return nil, fmt.Errorf("sigma %s: %w", f.Name(), err)
	}
	if err := validate.All(f.Source(), i); err != nil {
		return nil, fmt.Errorf("sigma %s: %w", f.Name(), err)
	}
	i.Seal()

	st := &sigmaState{f: f, target: f.Target(), log: o.logger}
	st.seed(i)
	o.logger.Debug("sigma seeded",
		zap.String("mapping", f.Name()),
		zap.Int("elements", len(st.items)),
		zap.Int("facts", len(st.facts)))

	if err := st.close(); err != nil {
		return nil, fmt.Errorf("sigma %s: %w", f.Name(), err)
	}
	res, err := st.output(fmt.Sprintf("sigma_%s(%s)", f.Name(), i.Name()))
	if err != nil {
		return nil, fmt.Errorf("sigma %s: %w", f.Name(), err)
	}
	o.logger.Debug("sigma done",
		zap.String("mapping", f.Name()),
		zap.Int("classes", len(res.Classes)))
	return res, nil
}

func (st *sigmaState) add(it item) int {
	st.items = append(st.items, it)
	return len(st.items) - 1
}

// seed builds the arena and the step facts. Identity images are merged
// directly.
func (st *sigmaState) seed(i *types.Instance) {
	src := st.f.Source()
	nodes := src.Nodes()
	index := make([]map[types.Element]int, len(nodes))
	for _, n := range nodes {
		img, _ := st.f.NodeImage(n.ID)
		carrier := i.Carrier(n.ID)
		index[n.ID] = make(map[types.Element]int, len(carrier))
		for _, e := range carrier {
			index[n.ID][e] = st.add(item{node: img, origin: types.Origin{Node: n.Name, Element: e}})
		}
	}

	var identities [][2]int
	for _, ed := range src.Edges() {
		path, _ := st.f.EdgeImage(ed.ID)
		source := src.NodeAt(ed.Source)
		for _, a := range i.Carrier(ed.Source) {
			cur := index[ed.Source][a]
			last := len(path.Edges) - 1
			var tail fact
			if ed.IsAttribute() {
				v, _ := i.Attr(ed.ID, a)
				tail = fact{value: v, isValue: true}
			} else {
				b, _ := i.Lookup(ed.ID, a)
				tail = fact{dst: index[ed.Target][b]}
				if last < 0 {
					identities = append(identities, [2]int{cur, tail.dst})
					continue
				}
			}
			for step, te := range path.Edges {
				if step == last {
					tail.edge, tail.src = te, cur
					st.facts = append(st.facts, tail)
					break
				}
				next := st.add(item{
					node:   st.target.EdgeAt(te).Target,
					origin: types.Origin{Node: source.Name, Element: a, Edge: ed.Name, Step: step + 1},
				})
				st.facts = append(st.facts, fact{edge: te, src: cur, dst: next})
				cur = next
			}
		}
	}

	st.sets = newDisjointSet(len(st.items))
	for _, pair := range identities {
		st.sets.union(pair[0], pair[1])
	}
}

// close merges classes until every T edge is functional on classes and
// every T equation holds wherever both sides are defined.
func (st *sigmaState) close() error {
	for round := 1; ; round++ {
		merges, err := st.tabulate()
		if err != nil {
			return err
		}
		if merges == 0 {
			more, err := st.equations()
			if err != nil {
				return err
			}
			merges = more
		}
		st.log.Debug("sigma round", zap.Int("round", round), zap.Int("merges", merges))
		if merges == 0 {
			return nil
		}
	}
}

// tabulate rebuilds the per-edge class tables from the facts, merging the
// targets of any edge that maps one class to two.
func (st *sigmaState) tabulate() (int, error) {
	edges := st.target.Edges()
	st.fk = make([]map[int]int, len(edges))
	st.attr = make([]map[int]attrCell, len(edges))
	for _, ed := range edges {
		if ed.IsAttribute() {
			st.attr[ed.ID] = make(map[int]attrCell)
		} else {
			st.fk[ed.ID] = make(map[int]int)
		}
	}

	merges := 0
	for _, ft := range st.facts {
		r := st.sets.find(ft.src)
		if ft.isValue {
			if err := st.putAttr(ft.edge, r, attrCell{value: ft.value, item: ft.src}); err != nil {
				return 0, err
			}
			continue
		}
		d, ok := st.fk[ft.edge][r]
		if !ok {
			st.fk[ft.edge][r] = ft.dst
			continue
		}
		if st.sets.union(d, ft.dst) {
			merges++
		}
	}
	return merges, nil
}

func (st *sigmaState) putAttr(edge types.EdgeID, root int, c attrCell) error {
	cur, ok := st.attr[edge][root]
	if !ok {
		st.attr[edge][root] = c
		return nil
	}
	u, ok := cur.value.Unify(c.value)
	if !ok {
		return &types.SigmaUnsatisfiableError{
			First:  st.items[cur.item].origin,
			Second: st.items[c.item].origin,
			Edge:   st.target.EdgeAt(edge).Name,
			Values: [2]types.Value{cur.value, c.value},
		}
	}
	if cur.value.IsNull() && !c.value.IsNull() {
		cur.item = c.item
	}
	cur.value = u
	st.attr[edge][root] = cur
	return nil
}

// eval follows p from class root r through the current tables. The result
// is a class root, or an attribute cell when p ends in a sort.
func (st *sigmaState) eval(p types.Path, r int) (int, attrCell, bool) {
	cur := r
	for _, e := range p.Edges {
		if st.attr[e] != nil {
			c, ok := st.attr[e][cur]
			return 0, c, ok
		}
		d, ok := st.fk[e][cur]
		if !ok {
			return 0, attrCell{}, false
		}
		cur = st.sets.find(d)
	}
	return cur, attrCell{}, true
}

// equations enforces T's equations on the tables built by tabulate. Element
// sides are merged; attribute sides are unified, and a null that unifies
// with a constant becomes a new fact so the next tabulate keeps it. A side
// missing only its last step takes the other side's value.
func (st *sigmaState) equations() (int, error) {
	changes := 0
	for _, eq := range st.target.Equations() {
		attribute := st.target.Target(eq.LHS).IsSort()
		for idx, it := range st.items {
			if it.node != eq.LHS.Start || st.sets.find(idx) != idx {
				continue
			}
			l, lc, okL := st.eval(eq.LHS, idx)
			r, rc, okR := st.eval(eq.RHS, idx)
			switch {
			case okL && !okR:
				changes += st.fill(eq.RHS, idx, l, lc)
				continue
			case okR && !okL:
				changes += st.fill(eq.LHS, idx, r, rc)
				continue
			case !okL:
				continue
			}
			if !attribute {
				if st.sets.union(l, r) {
					changes++
				}
				continue
			}
			u, ok := lc.value.Unify(rc.value)
			if !ok {
				return 0, &types.SigmaUnsatisfiableError{
					First:  st.items[lc.item].origin,
					Second: st.items[rc.item].origin,
					Edge:   st.target.FormatEquation(eq),
					Values: [2]types.Value{lc.value, rc.value},
				}
			}
			changes += st.refine(eq.LHS, idx, lc, attrCell{value: u, item: rc.item})
			changes += st.refine(eq.RHS, idx, rc, attrCell{value: u, item: lc.item})
		}
	}
	return changes, nil
}

// fill defines the last step of p from root when only that step is missing
// and the other side of the equation already evaluated to dst, or to the
// cell c for attributes. It merges nothing and creates no elements.
func (st *sigmaState) fill(p types.Path, root, dst int, c attrCell) int {
	if len(p.Edges) == 0 {
		return 0
	}
	prefix := types.Path{Start: p.Start, Edges: p.Edges[:len(p.Edges)-1]}
	holder, _, ok := st.eval(prefix, root)
	if !ok {
		return 0
	}
	edge := p.Edges[len(p.Edges)-1]
	if st.attr[edge] != nil {
		if c.value.IsNull() {
			return 0
		}
		st.facts = append(st.facts, fact{edge: edge, src: holder, value: c.value, isValue: true})
		st.attr[edge][holder] = c
		return 1
	}
	st.facts = append(st.facts, fact{edge: edge, src: holder, dst: dst})
	st.fk[edge][holder] = dst
	return 1
}

// refine records u for the attribute cell c reached by p when c held a null
// and u does not.
func (st *sigmaState) refine(p types.Path, root int, c, u attrCell) int {
	if !c.value.IsNull() || u.value.IsNull() {
		return 0
	}
	prefix := types.Path{Start: p.Start, Edges: p.Edges[:len(p.Edges)-1]}
	holder, _, ok := st.eval(prefix, root)
	if !ok {
		return 0
	}
	edge := p.Edges[len(p.Edges)-1]
	st.facts = append(st.facts, fact{edge: edge, src: holder, value: u.value, isValue: true})
	st.attr[edge][st.sets.find(holder)] = u
	return 1
}

// output numbers the classes per T node in order of their smallest member
// and builds the result instance.
func (st *sigmaState) output(name string) (*SigmaResult, error) {
	out, err := types.NewInstance(name, st.target)
	if err != nil {
		return nil, err
	}

	classOf := make(map[int]int)
	var classes []Class
	var roots []int
	for idx, it := range st.items {
		r := st.sets.find(idx)
		ci, ok := classOf[r]
		if !ok {
			e, err := out.Insert(it.node)
			if err != nil {
				return nil, err
			}
			ci = len(classes)
			classOf[r] = ci
			classes = append(classes, Class{Node: it.node, Element: e})
			roots = append(roots, r)
		}
		classes[ci].Members = append(classes[ci].Members, it.origin)
	}

	for ci, c := range classes {
		root := roots[ci]
		for _, ed := range st.target.OutEdges(c.Node) {
			if ed.IsAttribute() {
				v := types.Null(ed.Sort)
				if cell, ok := st.attr[ed.ID][root]; ok {
					v = cell.value
				}
				if err := out.SetAttr(ed.ID, c.Element, v); err != nil {
					return nil, err
				}
				continue
			}
			d, ok := st.fk[ed.ID][root]
			if !ok {
				return nil, &types.SigmaIncompleteError{
					Node:    st.target.NodeAt(c.Node).Name,
					Edge:    ed.Name,
					Members: c.Members,
				}
			}
			if err := out.Set(ed.ID, c.Element, classes[classOf[st.sets.find(d)]].Element); err != nil {
				return nil, err
			}
		}
	}
	return &SigmaResult{Instance: out, Classes: classes}, nil
}
