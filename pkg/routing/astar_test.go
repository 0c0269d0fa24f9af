package routing_test

import (
	"path/filepath"
	"testing"

	"map_router/pkg/graph"
	"map_router/pkg/routing"
)

// gridGraph builds a small diamond: A-B-C along the top, A-D-C along the
// bottom, plus a direct A-C shortcut. B/D sides are longer than the direct
// route, giving shortestPath and novelty search something to choose between.
//
//	A --- B --- C
//	 \           /
//	  \--- D ---/
//	   \-------/  (direct shortcut, shortest)
func gridGraph(t *testing.T) *graph.CompactGraph {
	t.Helper()
	b := graph.NewBuildGraph(
		[]int64{1, 2, 3, 4},
		[]float32{1.000, 1.000, 1.000, 0.991},
		[]float32{103.000, 103.005, 103.010, 103.005},
	)
	// A=0 B=1 C=2 D=3
	b.AddEdge(0, 1, 500, "North Street", "residential")
	b.AddEdge(1, 0, 500, "North Street", "residential")
	b.AddEdge(1, 2, 500, "North Street", "residential")
	b.AddEdge(2, 1, 500, "North Street", "residential")

	b.AddEdge(0, 3, 500, "South Street", "residential")
	b.AddEdge(3, 0, 500, "South Street", "residential")
	b.AddEdge(3, 2, 500, "South Street", "residential")
	b.AddEdge(2, 3, 500, "South Street", "residential")

	b.AddEdge(0, 2, 700, "Shortcut Lane", "residential")
	b.AddEdge(2, 0, 700, "Shortcut Lane", "residential")

	dir := t.TempDir()
	path := filepath.Join(dir, "grid.bin")
	if err := graph.WriteBinary(path, b); err != nil {
		t.Fatalf("WriteBinary: %v", err)
	}
	g, err := graph.LoadGraph(path)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestShortestPathPicksDirectRoute(t *testing.T) {
	g := gridGraph(t)
	pf := routing.NewPathFinder(g)

	result, found, err := pf.ShortestPath(1, 3)
	if err != nil {
		t.Fatalf("ShortestPath: %v", err)
	}
	if !found {
		t.Fatal("expected a path between A and C")
	}
	if result.Distance != 700 {
		t.Errorf("distance = %v, want 700 (direct shortcut)", result.Distance)
	}
	want := []int64{1, 3}
	if !int64SliceEqual(result.Path, want) {
		t.Errorf("path = %v, want %v", result.Path, want)
	}
}

func TestShortestPathSameSourceAndTarget(t *testing.T) {
	g := gridGraph(t)
	pf := routing.NewPathFinder(g)

	result, found, err := pf.ShortestPath(1, 1)
	if err != nil || !found {
		t.Fatalf("ShortestPath(s,s): found=%v err=%v", found, err)
	}
	if len(result.Path) != 1 || result.Path[0] != 1 || result.Distance != 0 {
		t.Errorf("ShortestPath(s,s) = %+v, want path=[1] distance=0", result)
	}
}

func TestShortestPathUnknownNode(t *testing.T) {
	g := gridGraph(t)
	pf := routing.NewPathFinder(g)

	_, _, err := pf.ShortestPath(1, 999)
	if err == nil {
		t.Fatal("expected an error for an unknown external id")
	}
}

func TestPenalizedShortestPathAvoidsWalkedEdges(t *testing.T) {
	g := gridGraph(t)
	pf := routing.NewPathFinder(g)

	walked := routing.WalkedSet{
		routing.NewEdgeKey(1, 3): {},
	}

	result, found, err := pf.PenalizedShortestPath(1, 3, walked, 5.0)
	if err != nil || !found {
		t.Fatalf("PenalizedShortestPath: found=%v err=%v", found, err)
	}
	if result.Distance == 700 {
		t.Error("expected the penalized search to avoid the direct shortcut")
	}
	if result.Distance != 1000 {
		t.Errorf("distance = %v, want 1000 (route via B or D)", result.Distance)
	}
}

func TestReconstructedDistanceMatchesEdgeSum(t *testing.T) {
	g := gridGraph(t)
	pf := routing.NewPathFinder(g)

	result, found, err := pf.ShortestPath(2, 4)
	if err != nil || !found {
		t.Fatalf("ShortestPath: found=%v err=%v", found, err)
	}

	var sum float64
	for i := 0; i+1 < len(result.Path); i++ {
		u, _ := g.InternalIndex(result.Path[i])
		v, _ := g.InternalIndex(result.Path[i+1])
		targets, weights := g.Neighbors(u)
		for j, t := range targets {
			if t == v {
				sum += float64(weights[j])
			}
		}
	}
	if sum != result.Distance {
		t.Errorf("sum of edge weights = %v, reported distance = %v", sum, result.Distance)
	}
}

func int64SliceEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
