package types

import (
	"strconv"
	"strings"
)

// NodeID is the stable index of a node within its schema.
type NodeID int

// EdgeID is the stable index of an edge within its schema.
type EdgeID int

// Path is a composable sequence of edges starting at a node. The empty path
// is the identity at Start. Paths are values: two paths with the same start
// and edge sequence are equal.
type Path struct {
	Start NodeID
	Edges []EdgeID
}

// Len returns the number of edges.
func (p Path) Len() int { return len(p.Edges) }

// IsIdentity reports whether p is an empty path.
func (p Path) IsIdentity() bool { return len(p.Edges) == 0 }

// Equal reports whether p and q have the same start and edge sequence.
func (p Path) Equal(q Path) bool {
	if p.Start != q.Start || len(p.Edges) != len(q.Edges) {
		return false
	}
	for i := range p.Edges {
		if p.Edges[i] != q.Edges[i] {
			return false
		}
	}
	return true
}

// Key returns a string usable as a map key for p.
func (p Path) Key() string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(int(p.Start)))
	b.WriteByte(':')
	for i, e := range p.Edges {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(int(e)))
	}
	return b.String()
}

// clone returns a copy of p that shares no backing array with it.
func (p Path) clone() Path {
	edges := make([]EdgeID, len(p.Edges))
	copy(edges, p.Edges)
	return Path{Start: p.Start, Edges: edges}
}

// Endpoint is the target of an edge or path: a node, or a typeside sort for
// attribute edges.
type Endpoint struct {
	Node NodeID
	Sort Sort
}

// IsSort reports whether the endpoint is a typeside sort.
func (e Endpoint) IsSort() bool { return e.Sort != "" }

// Equation is a declared equality between two paths with a common source and
// target.
type Equation struct {
	LHS Path
	RHS Path
}
