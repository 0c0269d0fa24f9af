package instructions_test

import (
	"path/filepath"
	"testing"

	"map_router/pkg/graph"
	"map_router/pkg/instructions"
)

// lShapeGraph builds a three-node path: A heading east on Orchard Road,
// then a left turn north onto Bras Basah Road. Edge weights match the
// haversine lengths between the node coordinates.
func lShapeGraph(t *testing.T) *graph.CompactGraph {
	t.Helper()
	b := graph.NewBuildGraph(
		[]int64{1, 2, 3},
		[]float32{1.300, 1.300, 1.310},
		[]float32{103.800, 103.810, 103.810},
	)
	b.AddEdge(0, 1, 1111, "Orchard Road", "primary")
	b.AddEdge(1, 0, 1111, "Orchard Road", "primary")
	b.AddEdge(1, 2, 1112, "Bras Basah Road", "secondary")
	b.AddEdge(2, 1, 1112, "Bras Basah Road", "secondary")

	dir := t.TempDir()
	path := filepath.Join(dir, "lshape.bin")
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

func v1Graph(t *testing.T) *graph.CompactGraph {
	t.Helper()
	b := graph.NewBuildGraph([]int64{1, 2}, []float32{1.0, 1.1}, []float32{103.0, 103.1})
	b.AddEdge(0, 1, 100, "", "")
	b.AddEdge(1, 0, 100, "", "")

	dir := t.TempDir()
	path := filepath.Join(dir, "v1.bin")
	if err := graph.WriteBinaryV1(path, b); err != nil {
		t.Fatalf("WriteBinaryV1: %v", err)
	}
	g, err := graph.LoadGraph(path)
	if err != nil {
		t.Fatalf("LoadGraph: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}

func TestGenerateTwoStepNamedStreetRoute(t *testing.T) {
	g := lShapeGraph(t)

	steps, ok := instructions.Generate(g, []int64{1, 2})
	if !ok {
		t.Fatal("Generate returned ok=false")
	}
	if len(steps) != 2 {
		t.Fatalf("len(steps) = %d, want 2 (head + arrive)", len(steps))
	}
	if steps[0].StreetName != "Orchard Road" {
		t.Errorf("steps[0].StreetName = %q, want Orchard Road", steps[0].StreetName)
	}
	if steps[0].Direction != instructions.DirectionStart {
		t.Errorf("steps[0].Direction = %q, want %q", steps[0].Direction, instructions.DirectionStart)
	}
	if steps[0].Angle != 0 {
		t.Errorf("steps[0].Angle = %v, want 0", steps[0].Angle)
	}
	if steps[1].Instruction != "Arrive at your destination" {
		t.Errorf("final step = %q, want an arrival instruction", steps[1].Instruction)
	}
	if steps[1].Direction != instructions.DirectionArrive {
		t.Errorf("steps[1].Direction = %q, want %q", steps[1].Direction, instructions.DirectionArrive)
	}
	if steps[1].DistanceM != 0 {
		t.Errorf("arrive step distance = %v, want 0", steps[1].DistanceM)
	}
}

func TestGenerateThreeStepTurn(t *testing.T) {
	g := lShapeGraph(t)

	steps, ok := instructions.Generate(g, []int64{1, 2, 3})
	if !ok {
		t.Fatal("Generate returned ok=false")
	}
	if len(steps) != 3 {
		t.Fatalf("len(steps) = %d, want 3 (head, turn, arrive)", len(steps))
	}
	if steps[0].StreetName != "Orchard Road" {
		t.Errorf("steps[0].StreetName = %q, want Orchard Road", steps[0].StreetName)
	}
	if steps[1].StreetName != "Bras Basah Road" {
		t.Errorf("steps[1].StreetName = %q, want Bras Basah Road", steps[1].StreetName)
	}
	// A to B runs due east, B to C runs due north: a -90 degree (left) turn.
	if steps[1].Direction != instructions.DirectionLeft {
		t.Errorf("steps[1].Direction = %q, want %q", steps[1].Direction, instructions.DirectionLeft)
	}
	if steps[1].Angle < -120 || steps[1].Angle > -45 {
		t.Errorf("steps[1].Angle = %v, want in [-120, -45]", steps[1].Angle)
	}

	var total float64
	for _, s := range steps {
		total += s.DistanceM
	}
	if diff := total - 2223; diff > 1 || diff < -1 {
		t.Errorf("sum of step distances = %v, want ~2223", total)
	}
}

func TestGenerateAbsentForShortPath(t *testing.T) {
	g := lShapeGraph(t)

	if _, ok := instructions.Generate(g, []int64{1}); ok {
		t.Error("Generate should be absent for a path of length < 2")
	}
}

func TestGenerateAbsentForV1Graph(t *testing.T) {
	g := v1Graph(t)

	if _, ok := instructions.Generate(g, []int64{1, 2}); ok {
		t.Error("Generate should be absent for a v1 graph with no edge metadata")
	}
}
