// Package routing implements shortest-path and novelty-route search over a
// compact graph: A* with a haversine heuristic, a penalized variant that
// favors unwalked edges, and the multi-phase novelty driver built on top
// of both.
package routing

import (
	"fmt"
	"math"
	"sync"

	"map_router/pkg/geo"
	"map_router/pkg/graph"
)

// ErrUnknownNode wraps graph.ErrUnknownNode for routing-level lookup
// failures (a caller bug, fatal for the individual query).
var ErrUnknownNode = graph.ErrUnknownNode

const noNode = int32(-1)

// PathResult is the outcome of a (possibly penalized) shortest-path
// search: the path as external node ids and its true, unpenalized
// distance in meters.
type PathResult struct {
	Path     []int64
	Distance float64
}

// pqEntry is one A* open-set entry, ordered lexicographically by
// (F, G, Counter) so that ties are broken by insertion order — this
// makes pop order, and therefore the result, deterministic across runs.
type pqEntry struct {
	F, G    float64
	Counter uint64
	Node    int32
}

func less(a, b pqEntry) bool {
	if a.F != b.F {
		return a.F < b.F
	}
	if a.G != b.G {
		return a.G < b.G
	}
	return a.Counter < b.Counter
}

// openHeap is a concrete-typed binary min-heap, avoiding the interface
// boxing overhead of container/heap.
type openHeap struct {
	items []pqEntry
}

func (h *openHeap) Len() int { return len(h.items) }

func (h *openHeap) Push(e pqEntry) {
	h.items = append(h.items, e)
	h.siftUp(len(h.items) - 1)
}

func (h *openHeap) Pop() pqEntry {
	n := len(h.items)
	top := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return top
}

func (h *openHeap) Reset() { h.items = h.items[:0] }

func (h *openHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !less(h.items[i], h.items[parent]) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *openHeap) siftDown(i int) {
	n := len(h.items)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && less(h.items[left], h.items[smallest]) {
			smallest = left
		}
		if right < n && less(h.items[right], h.items[smallest]) {
			smallest = right
		}
		if smallest == i {
			break
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}

// scratch holds per-query A* state sized to the graph's node count: best
// known cost, parent pointers, and the open-set heap. Touched records
// which indices were written this query so Reset only has to clear those,
// not the whole array.
type scratch struct {
	g       []float64
	parent  []int32
	touched []int32
	heap    openHeap
	counter uint64
}

func newScratch(n int) *scratch {
	s := &scratch{
		g:      make([]float64, n),
		parent: make([]int32, n),
	}
	for i := range s.g {
		s.g[i] = math.Inf(1)
		s.parent[i] = noNode
	}
	return s
}

func (s *scratch) touch(node int32, g float64) {
	if math.IsInf(s.g[node], 1) {
		s.touched = append(s.touched, node)
	}
	s.g[node] = g
}

func (s *scratch) reset() {
	for _, node := range s.touched {
		s.g[node] = math.Inf(1)
		s.parent[node] = noNode
	}
	s.touched = s.touched[:0]
	s.heap.Reset()
	s.counter = 0
}

// PathFinder runs shortest-path queries against a single CompactGraph,
// pooling per-query scratch arrays across calls.
type PathFinder struct {
	g    *graph.CompactGraph
	pool sync.Pool
}

// NewPathFinder creates a PathFinder over g. g must outlive the PathFinder.
func NewPathFinder(g *graph.CompactGraph) *PathFinder {
	pf := &PathFinder{g: g}
	pf.pool.New = func() any {
		return newScratch(int(g.NumNodes()))
	}
	return pf
}

func (pf *PathFinder) acquire() *scratch {
	return pf.pool.Get().(*scratch)
}

func (pf *PathFinder) release(s *scratch) {
	s.reset()
	pf.pool.Put(s)
}

// ShortestPath finds the unpenalized shortest path between two external
// node ids. found is false if no path exists (not an error); an error is
// returned only for an unknown external id.
func (pf *PathFinder) ShortestPath(srcExt, tgtExt int64) (result *PathResult, found bool, err error) {
	return pf.search(srcExt, tgtExt, nil, 1.0)
}

// PenalizedShortestPath is identical to ShortestPath except edges whose
// canonical EdgeKey is in walked are relaxed at weight*penalty. The
// returned PathResult.Distance is always the true, unpenalized sum of
// edge weights along the path.
func (pf *PathFinder) PenalizedShortestPath(srcExt, tgtExt int64, walked WalkedSet, penalty float64) (result *PathResult, found bool, err error) {
	return pf.search(srcExt, tgtExt, walked, penalty)
}

func (pf *PathFinder) search(srcExt, tgtExt int64, walked WalkedSet, penalty float64) (*PathResult, bool, error) {
	src, ok := pf.g.InternalIndex(srcExt)
	if !ok {
		return nil, false, fmt.Errorf("source %d: %w", srcExt, ErrUnknownNode)
	}
	tgt, ok := pf.g.InternalIndex(tgtExt)
	if !ok {
		return nil, false, fmt.Errorf("target %d: %w", tgtExt, ErrUnknownNode)
	}

	if src == tgt {
		return &PathResult{Path: []int64{srcExt}, Distance: 0}, true, nil
	}

	tgtLat, tgtLon := pf.g.NodeLatLon(tgt)
	heuristic := func(u int32) float64 {
		lat, lon := pf.g.NodeLatLon(u)
		return geo.Haversine(lat, lon, tgtLat, tgtLon)
	}

	sc := pf.acquire()
	defer pf.release(sc)

	sc.touch(src, 0)
	sc.heap.Push(pqEntry{F: heuristic(src), G: 0, Counter: sc.counter, Node: src})
	sc.counter++

	found := false
	for sc.heap.Len() > 0 {
		entry := sc.heap.Pop()
		u := entry.Node
		if entry.G > sc.g[u] {
			continue // stale heap entry, lazily discarded
		}
		if u == tgt {
			found = true
			break
		}

		targets, weights := pf.g.Neighbors(u)
		for i, v := range targets {
			w := float64(weights[i])
			if walked != nil && walked.Contains(NewEdgeKey(pf.g.ExternalID(u), pf.g.ExternalID(v))) {
				w *= penalty
			}
			newG := sc.g[u] + w
			if newG < sc.g[v] {
				sc.touch(v, newG)
				sc.parent[v] = u
				sc.heap.Push(pqEntry{F: newG + heuristic(v), G: newG, Counter: sc.counter, Node: v})
				sc.counter++
			}
		}
	}

	if !found {
		return nil, false, nil
	}

	path, distance := pf.reconstructPath(sc, src, tgt)
	return &PathResult{Path: path, Distance: distance}, true, nil
}

// reconstructPath walks parent pointers from tgt back to src, reversing
// into source order, and re-sums the true (unpenalized) edge weights by
// re-scanning each step's neighbor list — simpler than carrying a second
// parallel score through the penalized search.
func (pf *PathFinder) reconstructPath(sc *scratch, src, tgt int32) ([]int64, float64) {
	var internal []int32
	for n := tgt; ; {
		internal = append(internal, n)
		if n == src {
			break
		}
		n = sc.parent[n]
	}
	for i, j := 0, len(internal)-1; i < j; i, j = i+1, j-1 {
		internal[i], internal[j] = internal[j], internal[i]
	}

	path := make([]int64, len(internal))
	var distance float64
	for i, idx := range internal {
		path[i] = pf.g.ExternalID(idx)
		if i == 0 {
			continue
		}
		distance += edgeWeight(pf.g, internal[i-1], idx)
	}
	return path, distance
}

func edgeWeight(g *graph.CompactGraph, u, v int32) float64 {
	targets, weights := g.Neighbors(u)
	for i, t := range targets {
		if t == v {
			return float64(weights[i])
		}
	}
	return 0 // unreachable: v was relaxed from u during search
}
