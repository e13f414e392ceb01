package migrate

// disjointSet is a union-find over a fixed arena of indices. The root of a
// set is always its smallest member, so representatives are deterministic.
type disjointSet struct {
	parent []int
}

func newDisjointSet(n int) *disjointSet {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &disjointSet{parent: parent}
}

func (d *disjointSet) find(x int) int {
	for d.parent[x] != x {
		d.parent[x] = d.parent[d.parent[x]]
		x = d.parent[x]
	}
	return x
}

// union merges the sets of x and y and reports whether they were distinct.
func (d *disjointSet) union(x, y int) bool {
	px, py := d.find(x), d.find(y)
	if px == py {
		return false
	}
	if py < px {
		px, py = py, px
	}
	d.parent[py] = px
	return true
}
