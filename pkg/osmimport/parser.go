// Package osmimport parses OSM PBF extracts into the graph package's
// mutable BuildGraph, keeping only ways a pedestrian can walk.
package osmimport

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"map_router/pkg/geo"
)

// RawEdge is a directed edge parsed from OSM data, not yet assigned an
// internal index.
type RawEdge struct {
	FromNodeID osm.NodeID
	ToNodeID   osm.NodeID
	WeightM    float32
	Name       string
	Highway    string
}

// ParseResult holds the output of parsing an OSM PBF file: directed edges
// plus the coordinates of every node they reference.
type ParseResult struct {
	Edges   []RawEdge
	NodeLat map[osm.NodeID]float64
	NodeLon map[osm.NodeID]float64
}

// pedestrianHighways lists highway tag values passable on foot. Motor-only
// classes such as motorway are excluded; trunk and trunk_link are included
// regardless of sidewalk tags.
var pedestrianHighways = map[string]bool{
	"footway":       true,
	"path":          true,
	"pedestrian":    true,
	"steps":         true,
	"cycleway":      true,
	"service":       true,
	"track":         true,
	"residential":   true,
	"living_street": true,
	"tertiary":      true,
	"tertiary_link": true,
	"secondary":      true,
	"secondary_link": true,
	"primary":        true,
	"primary_link":   true,
	"trunk":          true,
	"trunk_link":     true,
	"unclassified":   true,
}

// isWalkable reports whether a way can be walked.
func isWalkable(tags osm.Tags) bool {
	hw := tags.Find("highway")
	if !pedestrianHighways[hw] {
		return false
	}
	if tags.Find("area") == "yes" {
		return false
	}
	foot := tags.Find("foot")
	if foot == "no" || foot == "private" {
		return false
	}
	access := tags.Find("access")
	if (access == "no" || access == "private") && foot != "yes" && foot != "permissive" {
		return false
	}
	return true
}

// wayInfo holds parsed way data collected during the first pass.
type wayInfo struct {
	NodeIDs []osm.NodeID
	Name    string
	Highway string
}

// BBox defines a geographic bounding box for filtering. A zero value
// disables filtering.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ParseOptions configures Parse.
type ParseOptions struct {
	BBox BBox
}

// Parse reads an OSM PBF file and returns the directed pedestrian edges
// within it. rs is scanned twice (once for ways, once for the node
// coordinates they reference) so it must support seeking back to start.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ...ParseOptions) (*ParseResult, error) {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	useBBox := !opt.BBox.IsZero()

	referencedNodes := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if !isWalkable(w.Tags) || len(w.Nodes) < 2 {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			referencedNodes[wn.ID] = struct{}{}
		}

		ways = append(ways, wayInfo{
			NodeIDs: nodeIDs,
			Name:    w.Tags.Find("name"),
			Highway: w.Tags.Find("highway"),
		})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()
	log.Printf("osmimport: pass 1 complete: %d ways, %d referenced nodes", len(ways), len(referencedNodes))

	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	nodeLat := make(map[osm.NodeID]float64, len(referencedNodes))
	nodeLon := make(map[osm.NodeID]float64, len(referencedNodes))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		nodeLat[n.ID] = n.Lat
		nodeLon[n.ID] = n.Lon
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()
	log.Printf("osmimport: pass 2 complete: %d node coordinates collected", len(nodeLat))

	var edges []RawEdge
	var skipped, bboxFiltered int

	for _, w := range ways {
		for i := 0; i < len(w.NodeIDs)-1; i++ {
			fromID, toID := w.NodeIDs[i], w.NodeIDs[i+1]

			fromLat, fromOk := nodeLat[fromID]
			fromLon := nodeLon[fromID]
			toLat, toOk := nodeLat[toID]
			toLon := nodeLon[toID]

			if !fromOk || !toOk {
				skipped++
				continue
			}
			if useBBox && (!opt.BBox.Contains(fromLat, fromLon) || !opt.BBox.Contains(toLat, toLon)) {
				bboxFiltered++
				continue
			}

			dist := geo.Haversine(fromLat, fromLon, toLat, toLon)
			weightM := float32(math.Max(dist, 0.01))

			edges = append(edges,
				RawEdge{FromNodeID: fromID, ToNodeID: toID, WeightM: weightM, Name: w.Name, Highway: w.Highway},
				RawEdge{FromNodeID: toID, ToNodeID: fromID, WeightM: weightM, Name: w.Name, Highway: w.Highway},
			)
		}
	}

	if skipped > 0 {
		log.Printf("osmimport: skipped %d edges with missing node coordinates", skipped)
	}
	if bboxFiltered > 0 {
		log.Printf("osmimport: filtered %d edges outside bounding box", bboxFiltered)
	}
	log.Printf("osmimport: built %d directed edges", len(edges))

	return &ParseResult{Edges: edges, NodeLat: nodeLat, NodeLon: nodeLon}, nil
}
