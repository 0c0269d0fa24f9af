package routing

import (
	"math"

	"map_router/pkg/instructions"
)

const (
	// DefaultMinNovelty is the fraction of a novelty route's edges that
	// must lie outside the walked set, absent an explicit request value.
	DefaultMinNovelty = 0.3
	// DefaultMaxOverhead bounds how much longer a novelty route may be
	// than the baseline shortest path, absent an explicit request value.
	DefaultMaxOverhead = 0.25

	metersPerDegreeLat = 111320.0
)

// RouteResult is the packaged outcome of a novelty-route search: the path,
// its edges as canonical keys, and the novelty/overhead figures computed
// against the caller's walked set and the baseline shortest path.
type RouteResult struct {
	Path             []int64
	Edges            []EdgeKey
	Distance         float64
	ShortestDistance float64
	Novelty          float64
	Overhead         float64
	Geometry         []LatLng
	Instructions     []instructions.NavigationStep
}

// NoveltyRoute searches for a route from srcExt to tgtExt that revisits at
// most (1-minNovelty) of its edges from walked, while staying within
// maxOverhead of the baseline shortest-path distance. found is false only
// when no path exists at all between the endpoints; a route that can't
// meet the novelty/overhead targets still comes back as the best
// available candidate (see the phase driver below).
func (pf *PathFinder) NoveltyRoute(srcExt, tgtExt int64, walked WalkedSet, minNovelty, maxOverhead float64) (*RouteResult, bool, error) {
	baseline, found, err := pf.ShortestPath(srcExt, tgtExt)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	d0 := baseline.Distance
	baseResult := pf.packageResult(baseline, walked, d0)

	// Phase 2: short-circuit only when the baseline already meets the
	// novelty target and the caller asked for a tight budget — a large
	// requested maxOverhead signals the caller wants a longer walk, so we
	// must not bail out here regardless of how novel the baseline is.
	if baseResult.Novelty >= minNovelty && maxOverhead < 0.30 {
		return baseResult, true, nil
	}

	if len(walked) == 0 {
		return baseResult, true, nil
	}

	best := baseResult

	// Phase 3: exponential penalty-bracket expansion.
	loPenalty, hiPenalty := 1.0, 10.0
	for i := 0; i < 5; i++ {
		pr, ok, serr := pf.PenalizedShortestPath(srcExt, tgtExt, walked, hiPenalty)
		if serr != nil {
			return nil, false, serr
		}
		if !ok {
			break
		}
		candidate := pf.packageResult(pr, walked, d0)
		best = dominant(best, candidate, minNovelty, maxOverhead)
		if candidate.Novelty >= minNovelty {
			break
		}
		hiPenalty *= 2
		if hiPenalty > 100 {
			break
		}
	}

	// Phase 4: binary search between loPenalty and hiPenalty with a
	// dominance rule, refining toward the novelty/overhead target. Runs
	// whenever walked is non-empty, even if phase 3 never found a
	// hiPenalty that met minNovelty — the dominance rule may still turn
	// up a better intermediate candidate than anything phase 3 kept.
	for i := 0; i < 10; i++ {
		mid := (loPenalty + hiPenalty) / 2
		pr, ok, serr := pf.PenalizedShortestPath(srcExt, tgtExt, walked, mid)
		if serr != nil {
			return nil, false, serr
		}
		if !ok {
			break
		}
		candidate := pf.packageResult(pr, walked, d0)
		best = dominant(best, candidate, minNovelty, maxOverhead)

		switch {
		case candidate.Novelty < minNovelty:
			loPenalty = mid
		case candidate.Overhead > maxOverhead:
			hiPenalty = mid
		default:
			loPenalty = mid
		}
	}

	// Phase 5: fixed-penalty fallback if nothing has met the novelty
	// target yet.
	if best.Novelty < minNovelty {
		for _, penalty := range []float64{1.5, 2.0, 3.0, 5.0, 8.0} {
			pr, ok, serr := pf.PenalizedShortestPath(srcExt, tgtExt, walked, penalty)
			if serr != nil {
				return nil, false, serr
			}
			if !ok {
				continue
			}
			candidate := pf.packageResult(pr, walked, d0)
			best = dominant(best, candidate, minNovelty, maxOverhead)
		}
	}

	// Phase 6: lengthen geometrically via a detour waypoint, if the best
	// route found so far is still suspiciously close to the baseline.
	if best.Distance < 0.85*d0*(1+maxOverhead) {
		if wpBest, ok := pf.viaWaypointRoute(srcExt, tgtExt, walked, d0, maxOverhead, best); ok {
			best = wpBest
		}
	}

	return best, true, nil
}

// packageResult computes novelty and overhead for pr against walked and
// the baseline distance d0, and attaches the canonical edge list.
func (pf *PathFinder) packageResult(pr *PathResult, walked WalkedSet, d0 float64) *RouteResult {
	edges := edgeKeysForPath(pr.Path)

	novelty := 1.0
	if len(edges) > 0 {
		var novel int
		for _, e := range edges {
			if !walked.Contains(e) {
				novel++
			}
		}
		novelty = float64(novel) / float64(len(edges))
	}

	overhead := 0.0
	if d0 > 0 {
		overhead = (pr.Distance - d0) / d0
	}

	return &RouteResult{
		Path:             pr.Path,
		Edges:            edges,
		Distance:         pr.Distance,
		ShortestDistance: d0,
		Novelty:          novelty,
		Overhead:         overhead,
	}
}

// dominant picks the better of a and b under the novelty/overhead
// targets: meeting both targets beats anything that doesn't; among
// results meeting both, higher overhead (closer to the budget, presumably
// more novel) wins; among results failing novelty but within budget,
// higher novelty wins; a result over budget never beats one within budget
// (between two over-budget results, higher novelty wins).
func dominant(a, b *RouteResult, minNovelty, maxOverhead float64) *RouteResult {
	aOK := a.Novelty >= minNovelty && a.Overhead <= maxOverhead
	bOK := b.Novelty >= minNovelty && b.Overhead <= maxOverhead

	switch {
	case aOK && bOK:
		if b.Overhead > a.Overhead {
			return b
		}
		return a
	case aOK:
		return a
	case bOK:
		return b
	}

	aOver := a.Overhead > maxOverhead
	bOver := b.Overhead > maxOverhead
	switch {
	case aOver && !bOver:
		return b
	case bOver && !aOver:
		return a
	}

	if b.Novelty > a.Novelty {
		return b
	}
	return a
}

// viaWaypointRoute tries to lengthen the route by routing through a
// detour waypoint offset perpendicular to the src-target line, adopting
// it only if it beats best without exceeding the overhead budget.
func (pf *PathFinder) viaWaypointRoute(srcExt, tgtExt int64, walked WalkedSet, d0, maxOverhead float64, best *RouteResult) (*RouteResult, bool) {
	srcIdx, ok := pf.g.InternalIndex(srcExt)
	if !ok {
		return nil, false
	}
	tgtIdx, ok := pf.g.InternalIndex(tgtExt)
	if !ok {
		return nil, false
	}
	srcLat, srcLon := pf.g.NodeLatLon(srcIdx)
	tgtLat, tgtLon := pf.g.NodeLatLon(tgtIdx)

	midLat := (srcLat + tgtLat) / 2
	midLon := (srcLon + tgtLon) / 2
	cosMidLat := math.Cos(midLat * math.Pi / 180)

	dx := (tgtLon - srcLon) * cosMidLat
	dy := tgtLat - srcLat
	norm := math.Hypot(dx, dy)
	var perpX, perpY float64
	if norm > 0 {
		perpX, perpY = -dy/norm, dx/norm
	} else {
		perpX, perpY = 1, 0
	}

	target := d0 * (1 + maxOverhead)
	var halfChord float64
	if target > d0 {
		halfChord = math.Sqrt(target*target-d0*d0) / 2
	} else {
		halfChord = 0.3 * d0
	}

	best = &RouteResult{
		Path: best.Path, Edges: best.Edges, Distance: best.Distance,
		ShortestDistance: best.ShortestDistance, Novelty: best.Novelty, Overhead: best.Overhead,
	}
	improved := false

	scales := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0, 1.15}
	for _, scale := range scales {
		for _, sign := range []float64{1, -1} {
			offsetMeters := sign * scale * halfChord
			wpLat := midLat + (perpY*offsetMeters)/metersPerDegreeLat
			wpLon := midLon + (perpX*offsetMeters)/(metersPerDegreeLat*cosMidLat)

			wpIdx, _, err := pf.g.FindNearestNode(wpLat, wpLon)
			if err != nil {
				continue
			}
			if wpIdx == srcIdx || wpIdx == tgtIdx {
				continue
			}
			wpExt := pf.g.ExternalID(wpIdx)

			leg1, ok1, err := pf.ShortestPath(srcExt, wpExt)
			if err != nil || !ok1 {
				continue
			}
			leg2, ok2, err := pf.ShortestPath(wpExt, tgtExt)
			if err != nil || !ok2 {
				continue
			}

			combined := concatLegs(leg1, leg2)
			candidate := pf.packageResult(combined, walked, d0)
			if candidate.Overhead > maxOverhead {
				continue
			}
			if candidate.Overhead > best.Overhead {
				best = candidate
				improved = true
			}
		}
	}

	return best, improved
}

// concatLegs joins two path results end to end, dropping the duplicate
// waypoint node shared by the legs' join, and re-sums distance.
func concatLegs(leg1, leg2 *PathResult) *PathResult {
	path := make([]int64, 0, len(leg1.Path)+len(leg2.Path)-1)
	path = append(path, leg1.Path...)
	path = append(path, leg2.Path[1:]...)
	return &PathResult{Path: path, Distance: leg1.Distance + leg2.Distance}
}
