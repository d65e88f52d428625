package graph

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// ComponentStats summarizes the weakly connected components of a graph.
type ComponentStats struct {
	Count   int
	Largest uint32
}

func unionAll(g *Graph) *UnionFind {
	uf := NewUnionFind(g.NumNodes)
	for u := uint32(0); u < g.NumNodes; u++ {
		start, end := g.EdgesFrom(u)
		for e := start; e < end; e++ {
			uf.Union(u, g.Head[e])
		}
	}
	return uf
}

// Components counts the weakly connected components of g (edges treated as
// undirected) and the size of the largest one.
func Components(g *Graph) ComponentStats {
	if g == nil || g.NumNodes == 0 {
		return ComponentStats{}
	}
	uf := unionAll(g)

	var stats ComponentStats
	for i := uint32(0); i < g.NumNodes; i++ {
		root := uf.Find(i)
		if root == i {
			stats.Count++
			if uf.size[root] > stats.Largest {
				stats.Largest = uf.size[root]
			}
		}
	}
	return stats
}

// LargestComponent returns the city ids belonging to the largest weakly
// connected component, in arena order.
func LargestComponent(g *Graph) []int64 {
	if g == nil || g.NumNodes == 0 {
		return nil
	}
	uf := unionAll(g)

	bestRoot := uint32(0)
	bestSize := uint32(0)
	for i := uint32(0); i < g.NumNodes; i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	ids := make([]int64, 0, bestSize)
	for i := uint32(0); i < g.NumNodes; i++ {
		if uf.Find(i) == bestRoot {
			ids = append(ids, g.Nodes[i].ID)
		}
	}
	return ids
}

// FilterRecords keeps only the records whose id is in keep, dropping every
// edge that leaves the kept set. The result is always a valid Build input.
func FilterRecords(records []CityRecord, keep []int64) []CityRecord {
	if len(keep) == 0 {
		return nil
	}
	kept := make(map[int64]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}

	out := make([]CityRecord, 0, len(keep))
	for _, rec := range records {
		if _, ok := kept[rec.ID]; !ok {
			continue
		}
		filtered := rec
		filtered.Edges = nil
		for _, e := range rec.Edges {
			if _, ok := kept[e.ToID]; ok {
				filtered.Edges = append(filtered.Edges, e)
			}
		}
		out = append(out, filtered)
	}
	return out
}
