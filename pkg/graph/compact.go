// Package graph implements the compact, memory-mappable CSR graph format:
// loading and validating the binary, exposing zero-copy typed views over
// node coordinates and adjacency, per-edge name/highway metadata, the
// external-id→internal-index map, and nearest-node snapping via a lazily
// built KD-tree.
package graph

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"
	"sync"
	"unicode/utf8"

	"map_router/pkg/geo"
	"map_router/pkg/kdtree"
)

const (
	magicBytes = "CSRG"
	headerSize = 32
	version1   = uint32(1)
	version2   = uint32(2)
)

// CompactGraph is a loaded, memory-mapped compact graph. It owns the
// backing mapped region and every view into it; the views are valid for
// the lifetime of the graph and become invalid after Close.
type CompactGraph struct {
	path     string
	mm       *mmapRegion
	fileSize int64

	version          uint32
	numNodes         uint32
	numDirectedEdges uint32

	nodeIDs    []int64
	nodeLats   []float32
	nodeLons   []float32
	adjOffsets []int32
	adjTargets []int32
	adjWeights []float32

	edgeNameIdx    []uint16 // v2 only
	edgeHighwayIdx []uint8  // v2 only
	nameTable      []string
	highwayTable   []string

	idIndex map[int64]int32

	kdOnce sync.Once
	kdTree *kdtree.Tree
}

// cursor walks a byte slice left to right, handing out zero-copy typed
// sub-slices and erroring on overrun instead of panicking.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 || len(c.buf)-c.off < n {
		return nil, ErrTruncated
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

// LoadGraph memory-maps path read-only and parses the compact graph
// binary. The returned error, when non-nil, is one of ErrTooSmall,
// ErrBadMagic, ErrUnsupportedVersion, ErrTruncated or ErrStringTableOverrun
// (wrapped with context), or an I/O error from opening the file.
func LoadGraph(path string) (*CompactGraph, error) {
	mm, err := openMmap(path)
	if err != nil {
		return nil, err
	}

	g, err := parseGraph(mm.data)
	if err != nil {
		mm.close()
		return nil, err
	}
	g.path = path
	g.mm = mm
	g.fileSize = int64(len(mm.data))
	return g, nil
}

func parseGraph(buf []byte) (*CompactGraph, error) {
	if len(buf) < headerSize {
		return nil, ErrTooSmall
	}
	if string(buf[0:4]) != magicBytes {
		return nil, ErrBadMagic
	}
	version := binary.LittleEndian.Uint32(buf[4:8])
	if version != version1 && version != version2 {
		return nil, ErrUnsupportedVersion
	}
	numNodes := binary.LittleEndian.Uint32(buf[8:12])
	numEdges := binary.LittleEndian.Uint32(buf[12:16])
	// buf[16:32] is reserved.

	g := &CompactGraph{
		version:          version,
		numNodes:         numNodes,
		numDirectedEdges: numEdges,
	}

	c := &cursor{buf: buf, off: headerSize}

	var err error
	if g.nodeIDs, err = takeInt64s(c, int(numNodes)); err != nil {
		return nil, fmt.Errorf("node_ids: %w", err)
	}
	if g.nodeLats, err = takeFloat32s(c, int(numNodes)); err != nil {
		return nil, fmt.Errorf("node_lats: %w", err)
	}
	if g.nodeLons, err = takeFloat32s(c, int(numNodes)); err != nil {
		return nil, fmt.Errorf("node_lons: %w", err)
	}
	if g.adjOffsets, err = takeInt32s(c, int(numNodes)+1); err != nil {
		return nil, fmt.Errorf("adj_offsets: %w", err)
	}
	if g.adjTargets, err = takeInt32s(c, int(numEdges)); err != nil {
		return nil, fmt.Errorf("adj_targets: %w", err)
	}
	if g.adjWeights, err = takeFloat32s(c, int(numEdges)); err != nil {
		return nil, fmt.Errorf("adj_weights: %w", err)
	}

	if err := validateCSR(g.adjOffsets, g.adjTargets, numNodes); err != nil {
		return nil, err
	}

	if version == version2 {
		if g.edgeNameIdx, err = takeUint16s(c, int(numEdges)); err != nil {
			return nil, fmt.Errorf("edge_name_indices: %w", err)
		}
		if g.edgeHighwayIdx, err = takeUint8s(c, int(numEdges)); err != nil {
			return nil, fmt.Errorf("edge_highway_indices: %w", err)
		}
		if g.nameTable, err = parseStringTable(c); err != nil {
			return nil, fmt.Errorf("name_table: %w", err)
		}
		if g.highwayTable, err = parseStringTable(c); err != nil {
			return nil, fmt.Errorf("highway_table: %w", err)
		}
	}

	if err := verifyTrailerCRC(buf, c.off); err != nil {
		return nil, err
	}

	g.idIndex = make(map[int64]int32, numNodes)
	for i, id := range g.nodeIDs {
		// Last-seen wins on a duplicate external id.
		g.idIndex[id] = int32(i)
	}

	return g, nil
}

// verifyTrailerCRC checks the CRC32 trailer that WriteBinary appends after
// the last section, at byte offset bodyEnd. Catches truncation or bit-rot
// anywhere in the body; it runs after the sections are sliced and the CSR
// structure is validated.
func verifyTrailerCRC(buf []byte, bodyEnd int) error {
	if len(buf)-bodyEnd < 4 {
		return fmt.Errorf("%w: missing CRC32 trailer", ErrTruncated)
	}
	want := binary.LittleEndian.Uint32(buf[bodyEnd : bodyEnd+4])
	got := crc32.ChecksumIEEE(buf[:bodyEnd])
	if want != got {
		return fmt.Errorf("%w: CRC32 mismatch (stored=%08x computed=%08x)", ErrTruncated, want, got)
	}
	return nil
}

// validateCSR checks the structural invariants required of adj_offsets and
// adj_targets: monotonic offsets bracketing exactly numEdges targets, and
// every target a valid internal index.
func validateCSR(offsets, targets []int32, numNodes uint32) error {
	if uint32(len(offsets)) != numNodes+1 {
		return fmt.Errorf("%w: adj_offsets length %d != numNodes+1 %d", ErrTruncated, len(offsets), numNodes+1)
	}
	if offsets[0] != 0 {
		return fmt.Errorf("%w: adj_offsets[0] = %d, want 0", ErrTruncated, offsets[0])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return fmt.Errorf("%w: adj_offsets not monotonic at %d", ErrTruncated, i)
		}
	}
	if int(offsets[numNodes]) != len(targets) {
		return fmt.Errorf("%w: adj_offsets[N]=%d != len(adj_targets)=%d", ErrTruncated, offsets[numNodes], len(targets))
	}
	for i, t := range targets {
		if t < 0 || uint32(t) >= numNodes {
			return fmt.Errorf("%w: adj_targets[%d]=%d out of range [0,%d)", ErrTruncated, i, t, numNodes)
		}
	}
	return nil
}

// parseStringTable reads a u32 count followed by that many
// (u16 length, UTF-8 bytes) entries. Invalid UTF-8 becomes the empty
// string rather than a hard error.
func parseStringTable(c *cursor) ([]string, error) {
	countBytes, err := c.take(4)
	if err != nil {
		return nil, err
	}
	count := binary.LittleEndian.Uint32(countBytes)

	table := make([]string, count)
	for i := range table {
		lenBytes, err := c.take(2)
		if err != nil {
			return nil, ErrStringTableOverrun
		}
		strLen := int(binary.LittleEndian.Uint16(lenBytes))
		raw, err := c.take(strLen)
		if err != nil {
			return nil, ErrStringTableOverrun
		}
		if utf8.Valid(raw) {
			table[i] = string(raw)
		}
	}
	return table, nil
}

// Close unmaps the backing file. The graph and every view derived from it
// must not be used afterward.
func (g *CompactGraph) Close() error {
	if g.mm == nil {
		return nil
	}
	return g.mm.close()
}

// NumNodes returns the number of internal node indices, [0, NumNodes).
func (g *CompactGraph) NumNodes() uint32 { return g.numNodes }

// NumDirectedEdges returns the total number of directed edge entries.
func (g *CompactGraph) NumDirectedEdges() uint32 { return g.numDirectedEdges }

// Version reports the on-disk format version (1 or 2).
func (g *CompactGraph) Version() uint32 { return g.version }

// HasMetadata reports whether this graph carries per-edge name/highway
// data (format v2).
func (g *CompactGraph) HasMetadata() bool { return g.version == version2 }

// ExternalID returns the stable external (OSM) id for internal index u.
func (g *CompactGraph) ExternalID(u int32) int64 { return g.nodeIDs[u] }

// InternalIndex resolves an external id to its internal index.
func (g *CompactGraph) InternalIndex(extID int64) (int32, bool) {
	idx, ok := g.idIndex[extID]
	return idx, ok
}

// NodeLatLon returns the coordinates of internal index u in degrees.
func (g *CompactGraph) NodeLatLon(u int32) (lat, lon float64) {
	return float64(g.nodeLats[u]), float64(g.nodeLons[u])
}

// Neighbors returns zero-copy views of the directed outgoing edges from
// internal index u: parallel target-index and weight-in-meters slices.
func (g *CompactGraph) Neighbors(u int32) (targets []int32, weights []float32) {
	start, end := g.adjOffsets[u], g.adjOffsets[u+1]
	return g.adjTargets[start:end], g.adjWeights[start:end]
}

// EdgeName returns the street name of the directed edge u→v, scanning u's
// small outgoing adjacency list. ok is false if the edge does not exist,
// the graph has no metadata, or the name is absent.
func (g *CompactGraph) EdgeName(u, v int32) (name string, ok bool) {
	e, found := g.findEdge(u, v)
	if !found || g.edgeNameIdx == nil {
		return "", false
	}
	idx := g.edgeNameIdx[e]
	if idx == 0 || int(idx) >= len(g.nameTable) || g.nameTable[idx] == "" {
		return "", false
	}
	return g.nameTable[idx], true
}

// EdgeHighway returns the highway classification of the directed edge
// u→v. ok is false under the same conditions as EdgeName.
func (g *CompactGraph) EdgeHighway(u, v int32) (highway string, ok bool) {
	e, found := g.findEdge(u, v)
	if !found || g.edgeHighwayIdx == nil {
		return "", false
	}
	idx := g.edgeHighwayIdx[e]
	if idx == 0 || int(idx) >= len(g.highwayTable) || g.highwayTable[idx] == "" {
		return "", false
	}
	return g.highwayTable[idx], true
}

func (g *CompactGraph) findEdge(u, v int32) (edgeIdx int32, ok bool) {
	start, end := g.adjOffsets[u], g.adjOffsets[u+1]
	for e := start; e < end; e++ {
		if g.adjTargets[e] == v {
			return e, true
		}
	}
	return 0, false
}

// FindNearestNode snaps (lat, lon) to the nearest graph node. It builds
// the KD-tree (or loads its on-disk cache) on first call and reuses it
// thereafter.
func (g *CompactGraph) FindNearestNode(lat, lon float64) (internalIndex int32, meters float64, err error) {
	if g.numNodes == 0 {
		return 0, 0, fmt.Errorf("graph: cannot snap, graph has no nodes")
	}
	g.ensureKDTree()

	qx, qy := geo.EquirectangularProject(lat, lon, g.kdTree.CosLat)
	k := 10
	if int(g.numNodes) < k {
		k = int(g.numNodes)
	}
	candidates := g.kdTree.KNN(qx, qy, k)

	bestIdx := candidates[0]
	bestLat, bestLon := g.NodeLatLon(bestIdx)
	bestDist := geo.Haversine(lat, lon, bestLat, bestLon)
	for _, idx := range candidates[1:] {
		cLat, cLon := g.NodeLatLon(idx)
		d := geo.Haversine(lat, lon, cLat, cLon)
		if d < bestDist {
			bestDist = d
			bestIdx = idx
		}
	}
	return bestIdx, bestDist, nil
}

func (g *CompactGraph) ensureKDTree() {
	g.kdOnce.Do(func() {
		fp := g.cacheFingerprint()
		cachePath := g.cachePath()
		if tree, ok := kdtree.LoadCache(cachePath, fp); ok {
			g.kdTree = tree
			return
		}

		tree := g.buildKDTree()
		g.kdTree = tree
		// Cache write failure is non-fatal and its error is dropped here
		// without logging; the next process launch simply rebuilds.
		_ = kdtree.SaveCache(cachePath, tree, fp)
	})
}

func (g *CompactGraph) cachePath() string {
	if g.path == "" {
		return ""
	}
	return g.path + ".kdtr"
}

func (g *CompactGraph) cacheFingerprint() string {
	return fmt.Sprintf("%d-%d-%d-%d", g.numNodes, g.numDirectedEdges, g.version, g.fileSize)
}

func (g *CompactGraph) buildKDTree() *kdtree.Tree {
	n := int(g.numNodes)
	var sumLat float64
	for i := 0; i < n; i++ {
		sumLat += float64(g.nodeLats[i])
	}
	meanLat := sumLat / float64(n)
	cosLat := math.Cos(meanLat * math.Pi / 180)

	points := make([]kdtree.Point, n)
	for i := 0; i < n; i++ {
		x, y := geo.EquirectangularProject(float64(g.nodeLats[i]), float64(g.nodeLons[i]), cosLat)
		points[i] = kdtree.Point{X: x, Y: y, Index: int32(i)}
	}
	return kdtree.Build(points, cosLat)
}

// Zero-copy typed-slice readers, mirroring the unsafe.Slice reinterpret
// idiom used for the KD-tree cache and the teacher's binary format, but
// operating on a fixed in-memory buffer instead of an io.Reader.

func takeInt64s(c *cursor, n int) ([]int64, error) {
	b, err := c.take(n * 8)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return reinterpret[int64](b, n), nil
}

func takeFloat32s(c *cursor, n int) ([]float32, error) {
	b, err := c.take(n * 4)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return reinterpret[float32](b, n), nil
}

func takeInt32s(c *cursor, n int) ([]int32, error) {
	b, err := c.take(n * 4)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return reinterpret[int32](b, n), nil
}

func takeUint16s(c *cursor, n int) ([]uint16, error) {
	b, err := c.take(n * 2)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return reinterpret[uint16](b, n), nil
}

func takeUint8s(c *cursor, n int) ([]uint8, error) {
	b, err := c.take(n)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return b, nil
}
