package routing

import (
	"context"
	"errors"

	"map_router/pkg/graph"
	"map_router/pkg/instructions"
)

// ErrPointTooFar is returned when a requested endpoint snaps to a graph
// node farther away than the service's configured snap radius.
var ErrPointTooFar = errors.New("routing: point too far from nearest road")

// ErrNoRoute is returned when no path exists between the snapped
// endpoints at all (not merely one that misses the novelty/overhead
// targets).
var ErrNoRoute = errors.New("routing: no route found")

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat, Lng float64
}

// RouteQuery is a caller's request for a route between two coordinates.
type RouteQuery struct {
	Start, End  LatLng
	Novelty     bool
	Walked      WalkedSet
	MinNovelty  float64
	MaxOverhead float64
}

// Router is the interface the HTTP layer depends on, satisfied by Service.
type Router interface {
	Route(ctx context.Context, q RouteQuery) (*RouteResult, error)
}

// Service wires a CompactGraph and a PathFinder into the coordinate-level
// Router contract: snapping, shortest/novelty search, and instruction
// synthesis.
type Service struct {
	g             *graph.CompactGraph
	pf            *PathFinder
	maxSnapMeters float64
}

// NewService creates a Service over g. maxSnapMeters <= 0 disables the
// snap-distance check.
func NewService(g *graph.CompactGraph, maxSnapMeters float64) *Service {
	return &Service{g: g, pf: NewPathFinder(g), maxSnapMeters: maxSnapMeters}
}

// Route implements Router. It has no cancellation or timeout behavior of
// its own; ctx is accepted for interface symmetry with the HTTP layer's
// per-request deadline.
func (s *Service) Route(ctx context.Context, q RouteQuery) (*RouteResult, error) {
	srcIdx, srcDist, err := s.g.FindNearestNode(q.Start.Lat, q.Start.Lng)
	if err != nil {
		return nil, err
	}
	if s.maxSnapMeters > 0 && srcDist > s.maxSnapMeters {
		return nil, ErrPointTooFar
	}
	tgtIdx, tgtDist, err := s.g.FindNearestNode(q.End.Lat, q.End.Lng)
	if err != nil {
		return nil, err
	}
	if s.maxSnapMeters > 0 && tgtDist > s.maxSnapMeters {
		return nil, ErrPointTooFar
	}

	srcExt := s.g.ExternalID(srcIdx)
	tgtExt := s.g.ExternalID(tgtIdx)

	var result *RouteResult
	var found bool
	if q.Novelty {
		minNovelty := q.MinNovelty
		if minNovelty == 0 {
			minNovelty = DefaultMinNovelty
		}
		maxOverhead := q.MaxOverhead
		if maxOverhead == 0 {
			maxOverhead = DefaultMaxOverhead
		}
		result, found, err = s.pf.NoveltyRoute(srcExt, tgtExt, q.Walked, minNovelty, maxOverhead)
	} else {
		var pr *PathResult
		pr, found, err = s.pf.ShortestPath(srcExt, tgtExt)
		if found {
			result = s.pf.packageResult(pr, q.Walked, pr.Distance)
		}
	}
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNoRoute
	}

	result.Geometry = s.geometry(result.Path)
	if steps, ok := instructions.Generate(s.g, result.Path); ok {
		result.Instructions = steps
	}
	return result, nil
}

func (s *Service) geometry(path []int64) []LatLng {
	out := make([]LatLng, len(path))
	for i, ext := range path {
		idx, _ := s.g.InternalIndex(ext)
		lat, lon := s.g.NodeLatLon(idx)
		out[i] = LatLng{Lat: lat, Lng: lon}
	}
	return out
}
