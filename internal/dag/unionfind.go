package dag

// UnionFind is a disjoint-set forest over task IDs, used to split the
// dependency graph into independently schedulable components.
type UnionFind struct {
	parent map[string]string
	size   map[string]int
}

// NewUnionFind creates an empty UnionFind.
func NewUnionFind() *UnionFind {
	return &UnionFind{
		parent: make(map[string]string),
		size:   make(map[string]int),
	}
}

// Add inserts x as a singleton set. Adding an existing element is a no-op.
func (uf *UnionFind) Add(x string) {
	if _, ok := uf.parent[x]; ok {
		return
	}
	uf.parent[x] = x
	uf.size[x] = 1
}

// Find returns the representative of the set containing x, adding x as a
// singleton if it is unknown. Paths are halved iteratively, so deep
// chains never grow the call stack.
func (uf *UnionFind) Find(x string) string {
	if _, ok := uf.parent[x]; !ok {
		uf.Add(x)
		return x
	}
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y, attaching the smaller set
// under the larger.
func (uf *UnionFind) Union(x, y string) {
	rx, ry := uf.Find(x), uf.Find(y)
	if rx == ry {
		return
	}
	if uf.size[rx] < uf.size[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
}

// Connected reports whether x and y belong to the same set.
func (uf *UnionFind) Connected(x, y string) bool {
	return uf.Find(x) == uf.Find(y)
}

// Components maps each set's representative to its members, in no
// guaranteed order.
func (uf *UnionFind) Components() map[string][]string {
	groups := make(map[string][]string)
	for x := range uf.parent {
		root := uf.Find(x)
		groups[root] = append(groups[root], x)
	}
	return groups
}
