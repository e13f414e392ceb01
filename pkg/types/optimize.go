package types

import (
	"fmt"
	"slices"
)

// Optimization records a path rewrite.
type Optimization struct {
	Original        Path
	Optimized       Path
	Applied         []string // rules in application order, e.g. "eq0"
	JoinsEliminated int
}

type rewriteRule struct {
	name string
	lhs  []EdgeID
	rhs  []EdgeID
}

// Optimizer rewrites paths into shorter equivalent ones using a schema's
// equations as rules oriented from the greater side to the smaller in
// shortlex order over edge names. Every rewrite strictly lowers the path in
// that order, so Optimize terminates.
type Optimizer struct {
	schema *Schema
	rules  []rewriteRule
}

// NewOptimizer orients the equations of s. Equations with two identical
// sides or an empty greater side yield no rule.
func NewOptimizer(s *Schema) *Optimizer {
	o := &Optimizer{schema: s}
	for i, eq := range s.equations {
		l, r := eq.LHS.Edges, eq.RHS.Edges
		switch o.compare(l, r) {
		case 0:
			continue
		case -1:
			l, r = r, l
		}
		if len(l) == 0 {
			continue
		}
		o.rules = append(o.rules, rewriteRule{name: fmt.Sprintf("eq%d", i), lhs: l, rhs: r})
	}
	return o
}

// compare orders edge sequences by length, then lexicographically by name.
func (o *Optimizer) compare(a, b []EdgeID) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	for i := range a {
		na, nb := o.schema.edges[a[i]].Name, o.schema.edges[b[i]].Name
		if na < nb {
			return -1
		}
		if na > nb {
			return 1
		}
	}
	return 0
}

// Optimize rewrites p to a fixed point.
func (o *Optimizer) Optimize(p Path) Optimization {
	cur := slices.Clone(p.Edges)
	var applied []string
	for {
		next, rule, ok := o.step(cur)
		if !ok {
			break
		}
		cur = next
		applied = append(applied, rule)
	}
	return Optimization{
		Original:        p.clone(),
		Optimized:       Path{Start: p.Start, Edges: cur},
		Applied:         applied,
		JoinsEliminated: len(p.Edges) - len(cur),
	}
}

func (o *Optimizer) step(edges []EdgeID) ([]EdgeID, string, bool) {
	for _, r := range o.rules {
		for i := 0; i+len(r.lhs) <= len(edges); i++ {
			if !slices.Equal(edges[i:i+len(r.lhs)], r.lhs) {
				continue
			}
			out := make([]EdgeID, 0, len(edges)-len(r.lhs)+len(r.rhs))
			out = append(out, edges[:i]...)
			out = append(out, r.rhs...)
			out = append(out, edges[i+len(r.lhs):]...)
			return out, r.name, true
		}
	}
	return nil, "", false
}
