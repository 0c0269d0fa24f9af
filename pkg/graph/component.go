package graph

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []int32
	rank   []byte // byte is sufficient — max rank ~30 for realistic graphs
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n int32) *UnionFind {
	parent := make([]int32, n)
	size := make([]uint32, n)
	for i := range parent {
		parent[i] = int32(i)
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x int32) int32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y int32) bool {
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

// LargestComponent returns the internal node indices of the largest weakly
// connected component of b, treating every directed edge as undirected.
// Called at ingestion time, before Finalize, since queries across
// disconnected components always report "no path" per spec and a router
// serving a fragmented extract wastes memory on unreachable nodes.
func LargestComponent(b *BuildGraph) []int32 {
	n := b.NumNodes()
	if n == 0 {
		return nil
	}

	uf := NewUnionFind(int32(n))
	for _, e := range b.pending {
		uf.Union(e.from, e.to)
	}

	bestRoot := int32(0)
	bestSize := uint32(0)
	for i := int32(0); i < int32(n); i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	nodes := make([]int32, 0, bestSize)
	for i := int32(0); i < int32(n); i++ {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// FilterToComponent builds a fresh BuildGraph containing only the given
// node subset and the edges fully within it, remapping internal indices
// to a dense [0, len(nodes)) range. The returned builder is not yet
// finalized; call Finalize (WriteBinary does this automatically) before
// writing it out.
func FilterToComponent(b *BuildGraph, nodes []int32) *BuildGraph {
	oldToNew := make(map[int32]int32, len(nodes))
	for newIdx, oldIdx := range nodes {
		oldToNew[oldIdx] = int32(newIdx)
	}

	nodeIDs := make([]int64, len(nodes))
	nodeLat := make([]float32, len(nodes))
	nodeLon := make([]float32, len(nodes))
	for newIdx, oldIdx := range nodes {
		nodeIDs[newIdx] = b.NodeIDs[oldIdx]
		nodeLat[newIdx] = b.NodeLat[oldIdx]
		nodeLon[newIdx] = b.NodeLon[oldIdx]
	}

	filtered := NewBuildGraph(nodeIDs, nodeLat, nodeLon)
	for _, e := range b.pending {
		newFrom, okFrom := oldToNew[e.from]
		newTo, okTo := oldToNew[e.to]
		if !okFrom || !okTo {
			continue
		}
		filtered.AddEdge(newFrom, newTo, e.weight, b.NameTable[e.nameIdx], b.HighwayTable[e.highwayIdx])
	}
	return filtered
}
