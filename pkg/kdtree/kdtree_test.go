package kdtree

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func samplePoints() []Point {
	return []Point{
		{X: 0, Y: 0, Index: 0},
		{X: 10, Y: 0, Index: 1},
		{X: 0, Y: 10, Index: 2},
		{X: 10, Y: 10, Index: 3},
		{X: 5, Y: 5, Index: 4},
		{X: -5, Y: -5, Index: 5},
		{X: 100, Y: 100, Index: 6},
	}
}

func TestBuildRootAtZero(t *testing.T) {
	tree := Build(samplePoints(), 1.0)
	if len(tree.Nodes) != 7 {
		t.Fatalf("NumNodes = %d, want 7", len(tree.Nodes))
	}
	// The root must always land at index 0 in the backing slice; this is a
	// required invariant for the cache format.
	if tree.Nodes[0].Left == 0 || tree.Nodes[0].Right == 0 {
		t.Fatalf("root node must not be its own child")
	}
}

func TestKNNFindsNearest(t *testing.T) {
	tree := Build(samplePoints(), 1.0)

	idxs := tree.KNN(0.1, 0.1, 1)
	if len(idxs) != 1 {
		t.Fatalf("KNN(k=1) returned %d results, want 1", len(idxs))
	}
	if idxs[0] != 0 {
		t.Errorf("nearest to (0.1,0.1) = index %d, want 0", idxs[0])
	}
}

func TestKNNCandidatesAreTrueKNearest(t *testing.T) {
	pts := samplePoints()
	tree := Build(samplePoints(), 1.0)

	qx, qy := 4.0, 4.0
	k := 3
	got := tree.KNN(qx, qy, k)
	if len(got) != k {
		t.Fatalf("KNN returned %d results, want %d", len(got), k)
	}

	// Brute force the true k nearest by index. Points tied with the k-th
	// nearest (indices 1 and 2 here) are equally valid answers, so a
	// returned index passes if it is no farther than the k-th distance.
	type scored struct {
		idx  int32
		dist float64
	}
	var all []scored
	distOf := map[int32]float64{}
	for _, p := range pts {
		dx, dy := qx-p.X, qy-p.Y
		all = append(all, scored{p.Index, dx*dx + dy*dy})
		distOf[p.Index] = dx*dx + dy*dy
	}
	sort.Slice(all, func(i, j int) bool { return all[i].dist < all[j].dist })
	kthDist := all[k-1].dist

	for _, idx := range got {
		if distOf[idx] > kthDist {
			t.Errorf("KNN returned index %d, not among true %d nearest", idx, k)
		}
	}
}

func TestKNNEmptyTree(t *testing.T) {
	tree := Build(nil, 1.0)
	got := tree.KNN(0, 0, 5)
	if got != nil {
		t.Errorf("KNN on empty tree = %v, want nil", got)
	}
}

func TestKNNSingleNode(t *testing.T) {
	tree := Build([]Point{{X: 1, Y: 1, Index: 42}}, 1.0)
	got := tree.KNN(0, 0, 5)
	if len(got) != 1 || got[0] != 42 {
		t.Fatalf("KNN on single-node tree = %v, want [42]", got)
	}
}

func TestKNNLargerThanMaxHeapCapacityDoesNotPanic(t *testing.T) {
	tree := Build(samplePoints(), 1.0)
	got := tree.KNN(0, 0, 1000)
	if len(got) != 7 {
		t.Errorf("KNN(k > n) returned %d, want all 7", len(got))
	}
}

func TestCacheRoundTrip(t *testing.T) {
	tree := Build(samplePoints(), 0.866)
	dir := t.TempDir()
	path := filepath.Join(dir, "index.kdtr")
	fp := "7-14-2-12345"

	if err := SaveCache(path, tree, fp); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	loaded, ok := LoadCache(path, fp)
	if !ok {
		t.Fatal("LoadCache reported not ok for a fingerprint-matching cache")
	}
	if loaded.CosLat != tree.CosLat {
		t.Errorf("CosLat = %v, want %v", loaded.CosLat, tree.CosLat)
	}
	if len(loaded.Nodes) != len(tree.Nodes) {
		t.Fatalf("node count = %d, want %d", len(loaded.Nodes), len(tree.Nodes))
	}
	for i := range tree.Nodes {
		if loaded.Nodes[i] != tree.Nodes[i] {
			t.Fatalf("node %d = %+v, want %+v", i, loaded.Nodes[i], tree.Nodes[i])
		}
	}
}

func TestCacheRejectsFingerprintMismatch(t *testing.T) {
	tree := Build(samplePoints(), 1.0)
	dir := t.TempDir()
	path := filepath.Join(dir, "index.kdtr")

	if err := SaveCache(path, tree, "7-14-2-12345"); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	_, ok := LoadCache(path, "7-14-2-99999")
	if ok {
		t.Fatal("LoadCache accepted a mismatched fingerprint")
	}
}

func TestCacheRejectsMissingFile(t *testing.T) {
	_, ok := LoadCache(filepath.Join(t.TempDir(), "missing.kdtr"), "anything")
	if ok {
		t.Fatal("LoadCache reported ok for a nonexistent file")
	}
}

func TestCacheRejectsTruncatedFile(t *testing.T) {
	tree := Build(samplePoints(), 1.0)
	dir := t.TempDir()
	path := filepath.Join(dir, "index.kdtr")
	fp := "7-14-2-12345"
	if err := SaveCache(path, tree, fp); err != nil {
		t.Fatalf("SaveCache: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	truncated := data[:len(data)-8]
	if err := os.WriteFile(path, truncated, 0o644); err != nil {
		t.Fatal(err)
	}

	_, ok := LoadCache(path, fp)
	if ok {
		t.Fatal("LoadCache accepted a truncated cache file")
	}
}

func TestQuickselectMedianInvariant(t *testing.T) {
	pts := []Point{{X: 5}, {X: 1}, {X: 9}, {X: 3}, {X: 7}, {X: 2}, {X: 8}}
	k := len(pts) / 2
	quickselect(pts, k, 0)
	medianVal := pts[k].X
	for i := 0; i < k; i++ {
		if pts[i].X >= medianVal {
			t.Errorf("element before median has X=%v >= median %v", pts[i].X, medianVal)
		}
	}
	for i := k + 1; i < len(pts); i++ {
		if pts[i].X < medianVal {
			t.Errorf("element after median has X=%v < median %v", pts[i].X, medianVal)
		}
	}
}
