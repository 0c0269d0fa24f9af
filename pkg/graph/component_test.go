package graph_test

import (
	"testing"

	"map_router/pkg/graph"
)

func TestUnionFind(t *testing.T) {
	uf := graph.NewUnionFind(5)

	for i := int32(0); i < 5; i++ {
		if uf.Find(i) != i {
			t.Errorf("Find(%d) = %d, want %d", i, uf.Find(i), i)
		}
	}

	uf.Union(0, 1)
	if uf.Find(0) != uf.Find(1) {
		t.Error("0 and 1 should be in same set")
	}

	uf.Union(2, 3)
	if uf.Find(2) != uf.Find(3) {
		t.Error("2 and 3 should be in same set")
	}

	if uf.Find(0) == uf.Find(2) {
		t.Error("0 and 2 should be in different sets")
	}

	uf.Union(1, 3)
	if uf.Find(0) != uf.Find(3) {
		t.Error("0 and 3 should now be in same set")
	}
}

func twoComponentBuilder() *graph.BuildGraph {
	// Component 1: 0 <-> 1 <-> 2 (3 nodes). Component 2: 3 <-> 4 (2 nodes).
	b := graph.NewBuildGraph(
		[]int64{10, 20, 30, 40, 50},
		[]float32{1.0, 1.1, 1.2, 2.0, 2.1},
		[]float32{103.0, 103.1, 103.2, 104.0, 104.1},
	)
	b.AddEdge(0, 1, 100, "", "")
	b.AddEdge(1, 0, 100, "", "")
	b.AddEdge(1, 2, 200, "", "")
	b.AddEdge(2, 1, 200, "", "")
	b.AddEdge(3, 4, 300, "", "")
	b.AddEdge(4, 3, 300, "", "")
	return b
}

func TestLargestComponent(t *testing.T) {
	b := twoComponentBuilder()
	nodes := graph.LargestComponent(b)
	if len(nodes) != 3 {
		t.Fatalf("LargestComponent has %d nodes, want 3", len(nodes))
	}
}

func TestFilterToComponent(t *testing.T) {
	b := twoComponentBuilder()
	nodes := graph.LargestComponent(b)
	filtered := graph.FilterToComponent(b, nodes)
	filtered.Finalize()

	if filtered.NumNodes() != 3 {
		t.Fatalf("filtered NumNodes = %d, want 3", filtered.NumNodes())
	}
	if len(filtered.AdjTargets) != 4 {
		t.Fatalf("filtered edge count = %d, want 4", len(filtered.AdjTargets))
	}

	for i := 1; i < len(filtered.AdjOffsets); i++ {
		if filtered.AdjOffsets[i] < filtered.AdjOffsets[i-1] {
			t.Errorf("AdjOffsets not monotonic at %d", i)
		}
	}
	for _, h := range filtered.AdjTargets {
		if h < 0 || uint32(h) >= filtered.NumNodes() {
			t.Errorf("AdjTargets entry %d out of range [0,%d)", h, filtered.NumNodes())
		}
	}

	var total float32
	for _, w := range filtered.AdjWeights {
		total += w
	}
	if total != 600 {
		t.Errorf("total weight = %v, want 600", total)
	}
}

func TestLargestComponentEmptyGraph(t *testing.T) {
	b := graph.NewBuildGraph(nil, nil, nil)
	nodes := graph.LargestComponent(b)
	if nodes != nil {
		t.Errorf("expected nil for empty graph, got %v", nodes)
	}
}
