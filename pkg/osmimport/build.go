package osmimport

import (
	"github.com/paulmach/osm"

	"map_router/pkg/graph"
)

// ToBuildGraph assembles a parsed OSM extract into a graph.BuildGraph,
// assigning each referenced node a dense internal index in first-seen
// order.
func ToBuildGraph(pr *ParseResult) *graph.BuildGraph {
	index := make(map[osm.NodeID]int32, len(pr.NodeLat))
	var nodeIDs []int64
	var nodeLat, nodeLon []float32

	nodeIndex := func(id osm.NodeID) int32 {
		if idx, ok := index[id]; ok {
			return idx
		}
		idx := int32(len(nodeIDs))
		index[id] = idx
		nodeIDs = append(nodeIDs, int64(id))
		nodeLat = append(nodeLat, float32(pr.NodeLat[id]))
		nodeLon = append(nodeLon, float32(pr.NodeLon[id]))
		return idx
	}

	for _, e := range pr.Edges {
		nodeIndex(e.FromNodeID)
		nodeIndex(e.ToNodeID)
	}

	b := graph.NewBuildGraph(nodeIDs, nodeLat, nodeLon)
	for _, e := range pr.Edges {
		from := index[e.FromNodeID]
		to := index[e.ToNodeID]
		b.AddEdge(from, to, e.WeightM, e.Name, e.Highway)
	}
	return b
}
