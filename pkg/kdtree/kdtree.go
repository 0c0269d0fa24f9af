// Package kdtree implements a bulk-built, array-backed 2-D KD-tree used for
// nearest-node snapping over the projected coordinates of a compact graph.
//
// The tree is built once via recursive median splits (quickselect, not a
// full sort) and queried with a bounded max-heap for k-NN. Nodes are stored
// flat in DFS preorder so the whole tree is a single slice that can be
// serialized and memory-mapped without pointer fixups; the root is always
// at index 0.
package kdtree

import "math"

// noChild is the sentinel for an absent child.
const noChild = -1

// Point is a single input to Build: a projected (x, y) coordinate tagged
// with the index it came from in the caller's original point array.
type Point struct {
	X, Y  float64
	Index int32
}

// KDNode is a single flattened tree node. The layout is fixed so the slice
// backing a Tree can be written and read back as raw bytes.
type KDNode struct {
	X, Y  float64
	Index int32
	Left  int32
	Right int32
}

// Tree is a bulk-built KD-tree over projected 2-D points. CosLat is the
// mean-latitude cosine scalar used to project query points consistently
// with how the tree's own points were projected.
type Tree struct {
	Nodes  []KDNode
	CosLat float64
}

// Build constructs a tree from points, partitioning in place via
// quickselect median splits. points is mutated by Build; callers must pass
// a slice they do not need in its original order afterward.
func Build(points []Point, cosLat float64) *Tree {
	nodes := make([]KDNode, 0, len(points))
	buildRecursive(points, 0, &nodes)
	return &Tree{Nodes: nodes, CosLat: cosLat}
}

func buildRecursive(pts []Point, depth int, nodes *[]KDNode) int32 {
	n := len(pts)
	if n == 0 {
		return noChild
	}
	if n == 1 {
		pos := int32(len(*nodes))
		*nodes = append(*nodes, KDNode{X: pts[0].X, Y: pts[0].Y, Index: pts[0].Index, Left: noChild, Right: noChild})
		return pos
	}

	axis := depth % 2
	mid := n / 2
	quickselect(pts, mid, axis)
	median := pts[mid]

	pos := int32(len(*nodes))
	*nodes = append(*nodes, KDNode{X: median.X, Y: median.Y, Index: median.Index, Left: noChild, Right: noChild})

	left := buildRecursive(pts[:mid], depth+1, nodes)
	right := buildRecursive(pts[mid+1:], depth+1, nodes)

	(*nodes)[pos].Left = left
	(*nodes)[pos].Right = right
	return pos
}

func axisVal(p Point, axis int) float64 {
	if axis == 0 {
		return p.X
	}
	return p.Y
}

// quickselect partitions pts in place so that pts[k] holds the element that
// would occupy position k were pts fully sorted by axis, with every element
// before k less-or-equal and every element from k onward greater-or-equal.
// Median-of-three pivot selection, Lomuto partitioning; expected O(n).
func quickselect(pts []Point, k, axis int) {
	lo, hi := 0, len(pts)-1
	for lo < hi {
		pivotIdx := medianOfThree(pts, lo, hi, axis)
		pivotIdx = partition(pts, lo, hi, pivotIdx, axis)
		switch {
		case k == pivotIdx:
			return
		case k < pivotIdx:
			hi = pivotIdx - 1
		default:
			lo = pivotIdx + 1
		}
	}
}

func medianOfThree(pts []Point, lo, hi, axis int) int {
	mid := (lo + hi) / 2
	a, b, c := axisVal(pts[lo], axis), axisVal(pts[mid], axis), axisVal(pts[hi], axis)
	switch {
	case (a <= b) == (b <= c):
		return mid
	case (b <= a) == (a <= c):
		return lo
	default:
		return hi
	}
}

func partition(pts []Point, lo, hi, pivotIdx, axis int) int {
	pivotVal := axisVal(pts[pivotIdx], axis)
	pts[pivotIdx], pts[hi] = pts[hi], pts[pivotIdx]

	store := lo
	for i := lo; i < hi; i++ {
		if axisVal(pts[i], axis) < pivotVal {
			pts[i], pts[store] = pts[store], pts[i]
			store++
		}
	}
	pts[store], pts[hi] = pts[hi], pts[store]
	return store
}

// heapItem is a single (squared distance, original index) k-NN candidate.
type heapItem struct {
	distSq float64
	index  int32
}

// boundedMaxHeap keeps the k closest candidates seen so far, root = farthest.
type boundedMaxHeap struct {
	items []heapItem
	cap   int
}

func newBoundedMaxHeap(k int) boundedMaxHeap {
	return boundedMaxHeap{items: make([]heapItem, 0, k), cap: k}
}

func (h *boundedMaxHeap) maxDistSq() float64 {
	if len(h.items) < h.cap {
		return math.Inf(1)
	}
	return h.items[0].distSq
}

func (h *boundedMaxHeap) offer(it heapItem) {
	if len(h.items) < h.cap {
		h.items = append(h.items, it)
		h.siftUp(len(h.items) - 1)
		return
	}
	if it.distSq < h.items[0].distSq {
		h.items[0] = it
		h.siftDown(0)
	}
}

func (h *boundedMaxHeap) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if h.items[i].distSq <= h.items[parent].distSq {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *boundedMaxHeap) siftDown(i int) {
	n := len(h.items)
	for {
		largest := i
		left := 2*i + 1
		right := 2*i + 2
		if left < n && h.items[left].distSq > h.items[largest].distSq {
			largest = left
		}
		if right < n && h.items[right].distSq > h.items[largest].distSq {
			largest = right
		}
		if largest == i {
			break
		}
		h.items[i], h.items[largest] = h.items[largest], h.items[i]
		i = largest
	}
}

// KNN returns up to k candidate point indices nearest the query in
// projected-Euclidean terms, in heap order (unsorted). Callers rescore with
// exact haversine and take the minimum; this is why the result is left
// unsorted.
func (t *Tree) KNN(qx, qy float64, k int) []int32 {
	if len(t.Nodes) == 0 || k <= 0 {
		return nil
	}
	h := newBoundedMaxHeap(k)

	var recurse func(pos int32, depth int)
	recurse = func(pos int32, depth int) {
		if pos == noChild {
			return
		}
		node := &t.Nodes[pos]
		dx := qx - node.X
		dy := qy - node.Y
		h.offer(heapItem{distSq: dx*dx + dy*dy, index: node.Index})

		axis := depth % 2
		var qv, nv float64
		if axis == 0 {
			qv, nv = qx, node.X
		} else {
			qv, nv = qy, node.Y
		}

		near, far := node.Left, node.Right
		if qv >= nv {
			near, far = node.Right, node.Left
		}

		recurse(near, depth+1)

		diff := qv - nv
		if diff*diff < h.maxDistSq() {
			recurse(far, depth+1)
		}
	}
	recurse(0, 0)

	out := make([]int32, len(h.items))
	for i, it := range h.items {
		out[i] = it.index
	}
	return out
}
