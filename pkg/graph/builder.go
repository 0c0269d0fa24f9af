package graph

// BuildGraph is the mutable, in-memory graph assembled by an ingestion
// pipeline (see pkg/osmimport) before being frozen into the read-only
// compact binary via WriteBinary. It keeps edges as a flat append-only
// list until Finalize builds the CSR arrays by counting sort, the way
// the original builder turned a parsed edge list into CSR arrays.
type BuildGraph struct {
	NodeIDs []int64
	NodeLat []float32
	NodeLon []float32

	AdjOffsets []int32
	AdjTargets []int32
	AdjWeights []float32

	EdgeNameIdx    []uint16
	EdgeHighwayIdx []uint8
	NameTable      []string
	HighwayTable   []string

	nameIndex    map[string]uint16
	highwayIndex map[string]uint8
	pending      []rawEdge
	finalized    bool
}

type rawEdge struct {
	from, to   int32
	weight     float32
	nameIdx    uint16
	highwayIdx uint8
}

// NewBuildGraph starts a builder over a fixed set of nodes. Edges are
// added with AddEdge and the CSR arrays are produced by Finalize.
func NewBuildGraph(nodeIDs []int64, nodeLat, nodeLon []float32) *BuildGraph {
	return &BuildGraph{
		NodeIDs:      nodeIDs,
		NodeLat:      nodeLat,
		NodeLon:      nodeLon,
		NameTable:    []string{""},
		HighwayTable: []string{""},
		nameIndex:    map[string]uint16{"": 0},
		highwayIndex: map[string]uint8{"": 0},
	}
}

// NumNodes reports the node count fixed at construction time.
func (b *BuildGraph) NumNodes() uint32 { return uint32(len(b.NodeIDs)) }

// AddEdge appends one directed edge. Callers producing an undirected
// pedestrian network must call this twice per link, once in each
// direction, with matching weight/name/highway, per the format's
// invariant that both directions carry identical metadata.
func (b *BuildGraph) AddEdge(from, to int32, weightMeters float32, name, highway string) {
	b.pending = append(b.pending, rawEdge{
		from:       from,
		to:         to,
		weight:     weightMeters,
		nameIdx:    b.internName(name),
		highwayIdx: b.internHighway(highway),
	})
}

func (b *BuildGraph) internName(name string) uint16 {
	if name == "" {
		return 0
	}
	if idx, ok := b.nameIndex[name]; ok {
		return idx
	}
	idx := uint16(len(b.NameTable))
	b.NameTable = append(b.NameTable, name)
	b.nameIndex[name] = idx
	return idx
}

func (b *BuildGraph) internHighway(highway string) uint8 {
	if highway == "" {
		return 0
	}
	if idx, ok := b.highwayIndex[highway]; ok {
		return idx
	}
	idx := uint8(len(b.HighwayTable))
	b.HighwayTable = append(b.HighwayTable, highway)
	b.highwayIndex[highway] = idx
	return idx
}

// Finalize builds the CSR arrays from the accumulated edge list via a
// counting sort keyed by source node, then releases the pending list.
// Safe to call more than once; later calls are a no-op.
func (b *BuildGraph) Finalize() {
	if b.finalized {
		return
	}
	b.finalized = true

	n := b.NumNodes()
	numEdges := len(b.pending)

	offsets := make([]int32, n+1)
	for _, e := range b.pending {
		offsets[e.from+1]++
	}
	for i := uint32(1); i <= n; i++ {
		offsets[i] += offsets[i-1]
	}

	targets := make([]int32, numEdges)
	weights := make([]float32, numEdges)
	nameIdx := make([]uint16, numEdges)
	highwayIdx := make([]uint8, numEdges)

	cursorPos := make([]int32, n)
	copy(cursorPos, offsets[:n])
	for _, e := range b.pending {
		pos := cursorPos[e.from]
		targets[pos] = e.to
		weights[pos] = e.weight
		nameIdx[pos] = e.nameIdx
		highwayIdx[pos] = e.highwayIdx
		cursorPos[e.from]++
	}

	b.AdjOffsets = offsets
	b.AdjTargets = targets
	b.AdjWeights = weights
	b.EdgeNameIdx = nameIdx
	b.EdgeHighwayIdx = highwayIdx
	b.pending = nil
}
