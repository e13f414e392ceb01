package types

// Congruence is the equivalence on paths generated by a schema's equations
// and closed under composition. It is computed over a finite universe: the
// sides of every declared equation plus any extra paths supplied when it was
// built. Paths outside that universe are equivalent only to themselves.
type Congruence struct {
	schema *Schema
	paths  []Path
	index  map[string]int
	parent []int
}

// Congruence builds the path congruence of s over its equations and extra.
// The schema need not be frozen; the result reflects the equations declared
// so far.
func (s *Schema) Congruence(extra ...Path) *Congruence {
	c := &Congruence{schema: s, index: make(map[string]int)}
	for _, eq := range s.equations {
		c.add(eq.LHS)
		c.add(eq.RHS)
	}
	for _, p := range extra {
		c.add(p)
	}
	for _, eq := range s.equations {
		c.union(c.index[eq.LHS.Key()], c.index[eq.RHS.Key()])
	}
	c.close()
	c.flatten()
	return c
}

func (c *Congruence) add(p Path) {
	k := p.Key()
	if _, ok := c.index[k]; ok {
		return
	}
	c.index[k] = len(c.paths)
	c.paths = append(c.paths, p.clone())
	c.parent = append(c.parent, len(c.parent))
}

func (c *Congruence) find(i int) int {
	for c.parent[i] != i {
		c.parent[i] = c.parent[c.parent[i]]
		i = c.parent[i]
	}
	return i
}

func (c *Congruence) union(i, j int) bool {
	ri, rj := c.find(i), c.find(j)
	if ri == rj {
		return false
	}
	if rj < ri {
		ri, rj = rj, ri
	}
	c.parent[rj] = ri
	return true
}

// flatten points every path at its class root so that later lookups through
// root never write.
func (c *Congruence) flatten() {
	for i := range c.parent {
		c.parent[i] = c.find(i)
	}
}

// root is find without path compression. A built congruence is shared by
// concurrent readers and must not be mutated.
func (c *Congruence) root(i int) int {
	for c.parent[i] != i {
		i = c.parent[i]
	}
	return i
}

// close merges p and q whenever p = r.x.s and q = r.y.s with x and y already
// equivalent, until nothing changes.
func (c *Congruence) close() {
	for changed := true; changed; {
		changed = false
		for i := range c.paths {
			for j := i + 1; j < len(c.paths); j++ {
				if c.find(i) == c.find(j) {
					continue
				}
				if c.contextual(c.paths[i], c.paths[j]) && c.union(i, j) {
					changed = true
				}
			}
		}
	}
}

func (c *Congruence) contextual(p, q Path) bool {
	if p.Start != q.Start || c.schema.Target(p) != c.schema.Target(q) {
		return false
	}
	short := min(len(p.Edges), len(q.Edges))
	prefix := 0
	for prefix < short && p.Edges[prefix] == q.Edges[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < short && p.Edges[len(p.Edges)-1-suffix] == q.Edges[len(q.Edges)-1-suffix] {
		suffix++
	}
	for a := 0; a <= prefix; a++ {
		for b := 0; b <= suffix && a+b <= short; b++ {
			if a == 0 && b == 0 {
				continue
			}
			mid := c.schema.nodeAfter(p, a)
			x := Path{Start: mid, Edges: p.Edges[a : len(p.Edges)-b]}
			y := Path{Start: mid, Edges: q.Edges[a : len(q.Edges)-b]}
			xi, okx := c.index[x.Key()]
			yi, oky := c.index[y.Key()]
			if okx && oky && c.find(xi) == c.find(yi) {
				return true
			}
		}
	}
	return false
}

// Contains reports whether p is part of the congruence's universe.
func (c *Congruence) Contains(p Path) bool {
	_, ok := c.index[p.Key()]
	return ok
}

// Equivalent reports whether p and q fall in the same class.
func (c *Congruence) Equivalent(p, q Path) bool {
	if p.Equal(q) {
		return true
	}
	i, ok := c.index[p.Key()]
	if !ok {
		return false
	}
	j, ok := c.index[q.Key()]
	if !ok {
		return false
	}
	return c.root(i) == c.root(j)
}

// Classes returns the nontrivial classes, each listed in insertion order.
func (c *Congruence) Classes() [][]Path {
	groups := make(map[int][]Path)
	var order []int
	for i, p := range c.paths {
		r := c.root(i)
		if _, ok := groups[r]; !ok {
			order = append(order, r)
		}
		groups[r] = append(groups[r], p)
	}
	var out [][]Path
	for _, r := range order {
		if len(groups[r]) > 1 {
			out = append(out, groups[r])
		}
	}
	return out
}
